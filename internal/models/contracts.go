package models

import "time"

type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ChartPoint is one point of a synthetic trend line. Values are derived
// from the current price and percent change only; they are not historical
// market data.
type ChartPoint struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// Trend is the direction of the reported change.
type Trend string

const (
	TrendUp      Trend = "UP"
	TrendDown    Trend = "DOWN"
	TrendNeutral Trend = "NEUTRAL"
)

type StockReport struct {
	Ticker          string       `json:"ticker"`
	Price           string       `json:"price"`
	ChangeText      string       `json:"change"`
	ChangeValue     float64      `json:"changeValue"`
	Trend           Trend        `json:"trend"`
	Analysis        string       `json:"analysis"`
	Sources         []Source     `json:"sources"`
	LastUpdated     time.Time    `json:"lastUpdated"`
	ChartSeries     []ChartPoint `json:"chartData"`
	ChartSynthetic  bool         `json:"chartSynthetic"`
	ChartDegenerate bool         `json:"chartDegenerate,omitempty"`
}

type SearchMeta struct {
	SessionID  string `json:"session_id"`
	Generation uint64 `json:"generation"`
	Superseded bool   `json:"superseded"`
	Source     string `json:"source"`
	Stale      bool   `json:"stale"`
	Err        string `json:"error,omitempty"`
	FetchedAt  string `json:"fetched_at,omitempty"`
}

type InsightResponse struct {
	TsISO  string       `json:"tsISO"`
	Report *StockReport `json:"report"`
	Meta   SearchMeta   `json:"meta"`
}

type ErrorResponse struct {
	Error          string      `json:"error"`
	Kind           string      `json:"kind,omitempty"`
	Retryable      bool        `json:"retryable"`
	UpstreamStatus int         `json:"upstream_status,omitempty"`
	Meta           *SearchMeta `json:"meta,omitempty"`
}

type SessionState struct {
	SessionID  string       `json:"session_id"`
	Status     string       `json:"status"`
	Ticker     string       `json:"ticker,omitempty"`
	Generation uint64       `json:"generation"`
	Message    string       `json:"message,omitempty"`
	Report     *StockReport `json:"report,omitempty"`
	UpdatedISO string       `json:"updated_iso"`
}

type SuggestionsResponse struct {
	TsISO   string   `json:"tsISO"`
	Tickers []string `json:"tickers"`
}

type DepStatus struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type HealthResponse struct {
	Ok          bool                 `json:"ok"`
	TsISO       string               `json:"tsISO"`
	Service     string               `json:"service"`
	Version     string               `json:"version"`
	Deps        []string             `json:"deps"`
	DepsStatus  map[string]DepStatus `json:"deps_status"`
	DataMissing []string             `json:"data_missing"`
	Features    map[string]bool      `json:"features"`
}
