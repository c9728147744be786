package insight

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStructuredReply(t *testing.T) {
	raw := RawResponse{
		Text: "Here is the report:\n```json\n" +
			`{"price": "$1,192.34", "change": "+1.25%", "changeValue": 1.25, "analysis": "Steady growth driven by services [1]."}` +
			"\n```",
		Citations: []Citation{{Title: "Reuters", URL: "https://reuters.com/a"}},
	}

	got, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "1192.34", got.Price)
	assert.Equal(t, "+1.25%", got.ChangeText)
	assert.Equal(t, 1.25, got.ChangeValue)
	assert.Equal(t, "Steady growth driven by services.", got.Analysis)
	assert.Equal(t, []Citation{{Title: "Reuters", URL: "https://reuters.com/a"}}, got.Citations)
}

func TestParseStructuredDerivesChangeValue(t *testing.T) {
	got, err := Parse(RawResponse{Text: `{"price": 42.5, "change": "-0.40%", "analysis": "Soft tape."}`})
	require.NoError(t, err)
	assert.Equal(t, "42.5", got.Price)
	assert.Equal(t, -0.4, got.ChangeValue)
}

func TestParseStructuredKeepsExplicitChangeValue(t *testing.T) {
	got, err := Parse(RawResponse{Text: `{"price":"192.34","change":"+1.25%","changeValue":-1.25,"analysis":"Mixed."}`})
	require.NoError(t, err)
	assert.Equal(t, "+1.25%", got.ChangeText)
	assert.Equal(t, -1.25, got.ChangeValue)
}

func TestParseProseReply(t *testing.T) {
	raw := RawResponse{
		Text: "AAPL is trading at $192.34, up +1.25% today [1].\nSteady growth driven by services revenue [2, 3].",
	}

	got, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "192.34", got.Price)
	assert.Equal(t, "+1.25%", got.ChangeText)
	assert.Equal(t, 1.25, got.ChangeValue)
	assert.Contains(t, got.Analysis, "Steady growth driven by services revenue.")
	assert.NotContains(t, got.Analysis, "192.34")
	assert.NotContains(t, got.Analysis, "%")
	assert.NotContains(t, got.Analysis, "[")
}

func TestParseProseSkipsSignedNumbersForPrice(t *testing.T) {
	got, err := Parse(RawResponse{Text: "Bitcoin fell −3.10% to $64,250.75 overnight as funding cooled."})
	require.NoError(t, err)
	assert.Equal(t, "64250.75", got.Price)
	assert.Equal(t, "-3.10%", got.ChangeText)
	assert.Equal(t, -3.1, got.ChangeValue)
	assert.Equal(t, "Bitcoin fell to overnight as funding cooled.", got.Analysis)
}

func TestParseProseDropsLabelLines(t *testing.T) {
	text := "**Price:** $10.00\n**Change:** +1.00%\nAnalysis: Buyers stepped in after guidance."
	got, err := Parse(RawResponse{Text: text})
	require.NoError(t, err)
	assert.Equal(t, "Buyers stepped in after guidance.", got.Analysis)
}

func TestParseProseDropsTrailingCurrencyCode(t *testing.T) {
	got, err := Parse(RawResponse{Text: "AAPL closed at 192.34 USD, up +0.50% on strong iPhone demand."})
	require.NoError(t, err)
	assert.Equal(t, "192.34", got.Price)
	assert.Equal(t, "AAPL closed at, up on strong iPhone demand.", got.Analysis)
	assert.NotContains(t, got.Analysis, "USD")
}

func TestCurrencyEndKeepsLongerWords(t *testing.T) {
	text := "at 10.00 USDC pegged"
	assert.Equal(t, len("at 10.00"), currencyEnd(text, len("at 10.00")))

	text = "at 10.00 EUR"
	assert.Equal(t, len(text), currencyEnd(text, len("at 10.00")))
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{name: "no price", text: "Shares rose +2% on the news.", want: ErrUnparseablePrice},
		{name: "only ticker label left", text: "AAPL: 192.34\n+1.25%", want: ErrEmptyAnalysis},
		{name: "only ticker price label left", text: "**BTC-USD price:** $64,250.75\n-3.10%", want: ErrEmptyAnalysis},
		{name: "no change token", text: "NVDA trades at $120.50 with a quiet session.", want: ErrUnparseableChange},
		{name: "unsigned percent is not a change", text: "Price $120.50, moved 2.5% today.", want: ErrUnparseableChange},
		{name: "only labels left", text: "Price: $10.00\nChange: +1.00%", want: ErrEmptyAnalysis},
		{name: "structured price not numeric", text: `{"price":"N/A","change":"+1%","analysis":"x"}`, want: ErrUnparseablePrice},
		{name: "structured change missing", text: `{"price":"10","analysis":"x"}`, want: ErrUnparseableChange},
		{name: "structured analysis blank", text: `{"price":"10","change":"+1%","analysis":"  [1] "}`, want: ErrEmptyAnalysis},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(RawResponse{Text: tt.text})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestParseCitationsDedupedInFirstSeenOrder(t *testing.T) {
	raw := RawResponse{
		Text: `{"price":"10","change":"+1%","analysis":"ok","sources":[{"title":"C","url":"https://c.example"},{"title":"B again","url":"https://b.example"}]}`,
		Citations: []Citation{
			{Title: "A", URL: "https://a.example"},
			{Title: "B", URL: "https://b.example"},
			{Title: "A dup", URL: " https://a.example "},
		},
	}

	got, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []Citation{
		{Title: "A", URL: "https://a.example"},
		{Title: "B", URL: "https://b.example"},
		{Title: "C", URL: "https://c.example"},
	}, got.Citations)
}

func TestParseIsDeterministic(t *testing.T) {
	raw := RawResponse{Text: "TSLA last traded at 250.10, −4.2% on the week. Deliveries missed."}
	first, err := Parse(raw)
	require.NoError(t, err)
	for range 5 {
		again, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain JSON unchanged", input: `{"price":"1"}`, want: `{"price":"1"}`},
		{name: "strips json fenced block", input: "```json\n{\"price\":\"1\"}\n```", want: `{"price":"1"}`},
		{name: "strips surrounding prose", input: "Sure! {\"price\":\"1\"} Hope this helps.", want: `{"price":"1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanJSONResponse(tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
