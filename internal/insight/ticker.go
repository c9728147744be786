package insight

import (
	"regexp"
	"strings"
)

const maxTickerLen = 12

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-]+$`)

// Ticker is a validated instrument symbol such as "AAPL" or "BTC-USD".
// The zero value is not a valid ticker.
type Ticker struct {
	symbol string
}

// ParseTicker trims and upper-cases raw before checking it.
func ParseTicker(raw string) (Ticker, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return Ticker{}, newError(KindInvalidTicker, "empty ticker")
	}
	if len(s) > maxTickerLen {
		return Ticker{}, newError(KindInvalidTicker, "%q exceeds %d characters", s, maxTickerLen)
	}
	if !tickerPattern.MatchString(s) {
		return Ticker{}, newError(KindInvalidTicker, "%q contains unsupported characters", s)
	}
	return Ticker{symbol: s}, nil
}

func (t Ticker) String() string {
	return t.symbol
}

func (t Ticker) IsZero() bool {
	return t.symbol == ""
}
