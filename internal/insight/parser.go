package insight

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type Citation struct {
	Title string
	URL   string
}

// RawResponse is the model reply as handed over by the model client: the
// generated text plus any grounding citations attached to it.
type RawResponse struct {
	Text      string
	Citations []Citation
}

// ParsedFields holds candidate values pulled out of a RawResponse. Nothing
// here has been validated yet.
type ParsedFields struct {
	Price       string
	ChangeText  string
	ChangeValue float64
	Analysis    string
	Citations   []Citation
}

var (
	labeledPriceRe  = regexp.MustCompile(`(?i)\b(?:current\s+price|share\s+price|price|trading\s+at|trades\s+at|closed\s+at|last\s+traded\s+at)\b[^0-9\n]{0,24}?([0-9][0-9,]*(?:\.[0-9]+)?)`)
	currencyPriceRe = regexp.MustCompile(`(?:\$|€|£|¥|\bUSD)\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)
	barePriceRe     = regexp.MustCompile(`\b([0-9][0-9,]*\.[0-9]+)`)
	changeRe        = regexp.MustCompile(`([+\-−])\s?([0-9]+(?:\.[0-9]+)?)\s?%`)
	fieldPriceRe    = regexp.MustCompile(`^[+\-]?[0-9][0-9,]*(?:\.[0-9]+)?$`)

	citationMarkerRe = regexp.MustCompile(`\[\d+(?:\s*[,-]\s*\d+)*\]`)
	labelOnlyLineRe  = regexp.MustCompile(`(?i)^[\s*_#>•\-]*(?:(?:current|last|latest|stock|share|daily|24h|percent(?:age)?)\s+)*(?:price|change|move)?\s*[:=\-–]?[\s*_()]*$`)
	tickerLabelRe    = regexp.MustCompile(`^[\s*_#>•\-]*\$?[A-Z][A-Z0-9.\-]{0,11}(?:\s+(?:stock|share)?\s*(?:price|change|move))?\s*[:=–][\s*_()]*$`)
	analysisLabelRe  = regexp.MustCompile(`(?i)^[\s*_#]*analysis\s*[:\-–][\s*_]*`)
	spaceBeforePunct = regexp.MustCompile(`[ \t]+([,.;:!?])`)
	emptyParensRe    = regexp.MustCompile(`\(\s*\)`)
	multiSpaceRe     = regexp.MustCompile(`[ \t]{2,}`)
)

var (
	currencySymbols = []string{"$", "€", "£", "¥", "USD"}
	currencyCodes   = []string{"USD", "EUR", "GBP", "JPY", "USDT"}
)

type span struct{ start, end int }

// Parse extracts price, change, analysis and citations from a model reply.
// A JSON object in the reply is preferred; otherwise the text is scanned
// for a price token and a signed percent token and the remaining prose
// becomes the analysis.
func Parse(raw RawResponse) (ParsedFields, error) {
	var (
		fields  ParsedFields
		sources []Citation
		err     error
	)
	if reply, ok := decodeStructured(raw.Text); ok {
		fields, err = parseStructured(reply)
		sources = reply.sources()
	} else {
		fields, err = parseProse(raw.Text)
	}
	if err != nil {
		return ParsedFields{}, err
	}
	fields.Citations = dedupeCitations(raw.Citations, sources)
	return fields, nil
}

type structuredReply struct {
	Price       json.RawMessage `json:"price"`
	Change      json.RawMessage `json:"change"`
	ChangeValue json.RawMessage `json:"changeValue"`
	Analysis    json.RawMessage `json:"analysis"`
	Sources     []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	} `json:"sources"`
}

func (r structuredReply) sources() []Citation {
	out := make([]Citation, 0, len(r.Sources))
	for _, s := range r.Sources {
		out = append(out, Citation{Title: s.Title, URL: s.URL})
	}
	return out
}

func decodeStructured(text string) (structuredReply, bool) {
	content := cleanJSONResponse(text)
	if !strings.HasPrefix(content, "{") {
		return structuredReply{}, false
	}
	var reply structuredReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return structuredReply{}, false
	}
	if len(reply.Price) == 0 && len(reply.Change) == 0 && len(reply.Analysis) == 0 {
		return structuredReply{}, false
	}
	return reply, true
}

func parseStructured(r structuredReply) (ParsedFields, error) {
	price := stripCurrency(rawScalar(r.Price))
	price = strings.ReplaceAll(price, ",", "")
	if !fieldPriceRe.MatchString(price) {
		return ParsedFields{}, newError(KindUnparseablePrice, "price field %q is not numeric", rawScalar(r.Price))
	}

	changeText := strings.Join(strings.Fields(rawScalar(r.Change)), "")
	changeText = strings.ReplaceAll(changeText, "−", "-")
	if changeText == "" {
		return ParsedFields{}, newError(KindUnparseableChange, "change field missing")
	}
	changeValue, ok := parsePercent(rawScalar(r.ChangeValue))
	if !ok {
		changeValue, ok = parsePercent(changeText)
	}
	if !ok {
		return ParsedFields{}, newError(KindUnparseableChange, "change field %q is not numeric", changeText)
	}

	analysis := tidyAnalysis(rawScalar(r.Analysis), false)
	if analysis == "" {
		return ParsedFields{}, newError(KindEmptyAnalysis, "analysis field empty")
	}
	return ParsedFields{
		Price:       price,
		ChangeText:  changeText,
		ChangeValue: changeValue,
		Analysis:    analysis,
	}, nil
}

func parseProse(text string) (ParsedFields, error) {
	priceSpan, price, ok := findPrice(text)
	if !ok {
		return ParsedFields{}, newError(KindUnparseablePrice, "no price token in reply")
	}

	m := changeRe.FindStringSubmatchIndex(text)
	if m == nil {
		return ParsedFields{}, newError(KindUnparseableChange, "no signed percent token in reply")
	}
	sign := text[m[2]:m[3]]
	digits := text[m[4]:m[5]]
	if sign == "−" {
		sign = "-"
	}
	changeValue, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return ParsedFields{}, newError(KindUnparseableChange, "percent token %q", digits)
	}
	if sign == "-" {
		changeValue = -changeValue
	}

	analysis := tidyAnalysis(removeSpans(text, priceSpan, span{m[0], m[1]}), true)
	if analysis == "" {
		return ParsedFields{}, newError(KindEmptyAnalysis, "no prose left after removing price and change")
	}
	return ParsedFields{
		Price:       price,
		ChangeText:  sign + digits + "%",
		ChangeValue: changeValue,
		Analysis:    analysis,
	}, nil
}

// findPrice tries labeled prices, then currency-prefixed amounts, then the
// first bare decimal. Numbers that carry a sign or a trailing percent are
// changes, not prices, and are skipped.
func findPrice(text string) (span, string, bool) {
	for _, re := range []*regexp.Regexp{labeledPriceRe, currencyPriceRe, barePriceRe} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2], m[3]
			if signedAt(text, start) || percentAfter(text, end) {
				continue
			}
			value := strings.ReplaceAll(text[start:end], ",", "")
			return span{currencyStart(text, start), currencyEnd(text, end)}, value, true
		}
	}
	return span{}, "", false
}

func signedAt(text string, i int) bool {
	prefix := strings.TrimRight(text[:i], " ")
	return strings.HasSuffix(prefix, "+") || strings.HasSuffix(prefix, "-") || strings.HasSuffix(prefix, "−")
}

func percentAfter(text string, i int) bool {
	return strings.HasPrefix(strings.TrimLeft(text[i:], " "), "%")
}

func currencyStart(text string, i int) int {
	prefix := strings.TrimRight(text[:i], " ")
	for _, sym := range currencySymbols {
		if strings.HasSuffix(prefix, sym) {
			return len(prefix) - len(sym)
		}
	}
	return i
}

// currencyEnd extends a price span over a trailing currency code such as
// the "USD" in "192.34 USD".
func currencyEnd(text string, i int) int {
	rest := strings.TrimLeft(text[i:], " ")
	for _, code := range currencyCodes {
		if !strings.HasPrefix(rest, code) {
			continue
		}
		after := rest[len(code):]
		if after != "" && isWordByte(after[0]) {
			continue
		}
		return len(text) - len(after)
	}
	return i
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z'
}

func removeSpans(text string, spans ...span) string {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start > spans[j].start })
	for _, s := range spans {
		if s.start < 0 || s.end > len(text) || s.start >= s.end {
			continue
		}
		text = text[:s.start] + text[s.end:]
	}
	return text
}

// tidyAnalysis removes citation markers and collapses whitespace. In prose
// mode it also drops lines that held nothing but a price or change label.
func tidyAnalysis(text string, prose bool) string {
	text = cleanFences(text)
	text = citationMarkerRe.ReplaceAllString(text, "")
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if prose && (labelOnlyLineRe.MatchString(line) || tickerLabelRe.MatchString(line)) {
			continue
		}
		line = analysisLabelRe.ReplaceAllString(line, "")
		line = emptyParensRe.ReplaceAllString(line, "")
		line = spaceBeforePunct.ReplaceAllString(line, "$1")
		line = multiSpaceRe.ReplaceAllString(line, " ")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func dedupeCitations(groups ...[]Citation) []Citation {
	seen := make(map[string]struct{})
	out := []Citation{}
	for _, group := range groups {
		for _, c := range group {
			u := strings.TrimSpace(c.URL)
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, Citation{Title: strings.TrimSpace(c.Title), URL: u})
		}
	}
	return out
}

func rawScalar(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return trimmed
}

func parsePercent(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "−", "-"))
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func stripCurrency(s string) string {
	s = strings.TrimSpace(s)
	for _, sym := range currencySymbols {
		s = strings.TrimSpace(strings.TrimPrefix(s, sym))
		s = strings.TrimSpace(strings.TrimSuffix(s, sym))
	}
	return s
}

func cleanFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func cleanJSONResponse(content string) string {
	content = cleanFences(content)

	// Grounded replies often wrap the JSON object in prose.
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
