package insight

import (
	"fmt"
	"strings"
)

const DefaultWindow = "24h"

const systemPrompt = `You are a concise equity and crypto market analyst.
Use Google Search to find the latest market data before answering.

Output as JSON only, no other text:
{
  "price": "current price as a plain decimal number without currency symbol",
  "change": "signed percent change, for example +1.25% or -0.40%",
  "changeValue": 1.25,
  "analysis": "two to four sentences on what is driving the move"
}`

// Prompt is the model query for one ticker. It carries no credentials;
// the model client is configured separately.
type Prompt struct {
	Ticker    string
	System    string
	User      string
	Window    string
	Grounding bool
}

type RequestBuilder struct {
	Window string
}

func NewRequestBuilder(window string) *RequestBuilder {
	window = strings.TrimSpace(window)
	if window == "" {
		window = DefaultWindow
	}
	return &RequestBuilder{Window: window}
}

func (b *RequestBuilder) Build(t Ticker) (Prompt, error) {
	if t.IsZero() {
		return Prompt{}, newError(KindInvalidTicker, "ticker was not validated")
	}
	window := b.Window
	if window == "" {
		window = DefaultWindow
	}
	user := fmt.Sprintf(
		"Ticker: %s\nReport the current price of %s, its percent change over the last %s, "+
			"and a short qualitative analysis of the move. Cite the sources you used.",
		t, t, window,
	)
	return Prompt{
		Ticker:    t.String(),
		System:    systemPrompt,
		User:      user,
		Window:    window,
		Grounding: true,
	}, nil
}
