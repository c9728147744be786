package insight

import (
	"math"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"stockinsight/backend-go/internal/models"
)

const MaxAnalysisRunes = 4000

var changeFormatRe = regexp.MustCompile(`^[+-]\d+(\.\d+)?%$`)

// Validated is the output of Validate. Price keeps the textual form the
// model used; PriceValue is the same number as a float for charting.
type Validated struct {
	Price            string
	PriceValue       float64
	ChangeText       string
	ChangeValue      float64
	Analysis         string
	Sources          []models.Source
	DroppedCitations int
}

// Validate checks parsed fields in a fixed order and stops at the first
// failure. Citations with unusable URLs are dropped rather than failing
// the whole report.
func Validate(p ParsedFields) (Validated, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(p.Price))
	if err != nil {
		return Validated{}, &Error{Kind: KindInvalidPrice, Detail: p.Price, Err: err}
	}
	if price.IsNegative() {
		return Validated{}, newError(KindInvalidPrice, "%s is negative", p.Price)
	}

	if !changeFormatRe.MatchString(p.ChangeText) {
		return Validated{}, newError(KindInvalidChangeFormat, "%q", p.ChangeText)
	}

	if !signsAgree(p.ChangeText, p.ChangeValue) {
		return Validated{}, newError(KindChangeSignMismatch, "%s vs %g", p.ChangeText, p.ChangeValue)
	}
	if !magnitudesAgree(p.ChangeText, p.ChangeValue) {
		return Validated{}, newError(KindChangeSignMismatch, "magnitude %s vs %g", p.ChangeText, p.ChangeValue)
	}

	sources, dropped := validSources(p.Citations)

	analysis := strings.TrimSpace(p.Analysis)
	n := utf8.RuneCountInString(analysis)
	if n == 0 {
		return Validated{}, newError(KindAnalysisEmpty, "analysis is blank")
	}
	if n > MaxAnalysisRunes {
		return Validated{}, newError(KindAnalysisTooLong, "%d characters, limit %d", n, MaxAnalysisRunes)
	}

	priceValue, _ := price.Float64()
	return Validated{
		Price:            strings.TrimSpace(p.Price),
		PriceValue:       priceValue,
		ChangeText:       p.ChangeText,
		ChangeValue:      p.ChangeValue,
		Analysis:         analysis,
		Sources:          sources,
		DroppedCitations: dropped,
	}, nil
}

// signsAgree treats zero as non-negative. A "-0%" text paired with a zero
// value is accepted since both describe no movement.
func signsAgree(text string, value float64) bool {
	switch text[0] {
	case '+':
		return value >= 0
	case '-':
		if value < 0 {
			return true
		}
		magnitude, ok := parsePercent(text)
		return ok && magnitude == 0 && value == 0
	}
	return false
}

// magnitudesAgree allows the value to differ from the text by at most half
// a unit in the text's last decimal place, so "+1.3%" accepts 1.27.
func magnitudesAgree(text string, value float64) bool {
	textValue, ok := parsePercent(text)
	if !ok {
		return false
	}
	decimals := 0
	if dot := strings.IndexByte(text, '.'); dot >= 0 {
		decimals = len(text) - dot - 2
	}
	tolerance := 0.5*math.Pow10(-decimals) + 1e-9
	return math.Abs(textValue-value) <= tolerance
}

func validSources(citations []Citation) ([]models.Source, int) {
	out := make([]models.Source, 0, len(citations))
	dropped := 0
	for _, c := range citations {
		u, err := url.Parse(c.URL)
		if err != nil || !u.IsAbs() || u.Host == "" {
			dropped++
			continue
		}
		title := c.Title
		if title == "" {
			title = u.Hostname()
		}
		out = append(out, models.Source{Title: title, URL: c.URL})
	}
	return out, dropped
}
