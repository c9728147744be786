package insight

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pctChange(first, last float64) float64 {
	return (last - first) / first * 100
}

func TestSynthesizeEndsAtPriceAndMatchesChange(t *testing.T) {
	synth := NewChartSynthesizer(DefaultChartPoints)
	cases := []struct {
		ticker string
		price  float64
		change float64
	}{
		{"AAPL", 192.34, 1.25},
		{"TSLA", 250.10, -4.2},
		{"BTC-USD", 64250.75, 12.5},
		{"PENNY", 0.0423, -37.5},
		{"MOON", 10, 900},
		{"FLAT", 55, 0},
		{"CRASH", 1.5, -99.5},
		{"SHIB-USD", 0.00001234, 1.25},
		{"PEPE-USD", 0.0000089, 1.25},
		{"PENNY2", 2.01, 100},
		{"RUN", 5.02, 400},
		{"DIP", 1.01, -0.3},
	}

	for _, tc := range cases {
		t.Run(tc.ticker, func(t *testing.T) {
			series, degenerate := synth.Synthesize(tc.ticker, tc.price, tc.change)
			require.False(t, degenerate)
			require.Len(t, series, DefaultChartPoints)
			assert.Equal(t, tc.price, series[len(series)-1].Value)
			implied := pctChange(series[0].Value, series[len(series)-1].Value)
			assert.InDelta(t, tc.change, implied, 0.5)
			if tc.change != 0 {
				assert.Equal(t, tc.change > 0, implied > 0, "trend direction")
			}
			for _, p := range series {
				assert.GreaterOrEqual(t, p.Value, 0.0)
				assert.False(t, math.IsNaN(p.Value))
			}
		})
	}
}

func TestRoundPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{64250.7549, 64250.75},
		{192.345678, 192.346},
		{1.0049999, 1.005},
		{0.0423456789, 0.0423457},
		{0.0000121876543, 0.0000121877},
		{0, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, roundPrice(tt.in), 1e-12, "roundPrice(%g)", tt.in)
	}
}

func TestSynthesizeIsReproducible(t *testing.T) {
	synth := NewChartSynthesizer(DefaultChartPoints)
	first, _ := synth.Synthesize("NVDA", 120.5, 3.4)
	second, _ := synth.Synthesize("NVDA", 120.5, 3.4)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("series differ (-first +second):\n%s", diff)
	}

	other, _ := synth.Synthesize("MSFT", 120.5, 3.4)
	if cmp.Equal(first, other) {
		t.Fatal("expected different tickers to produce different series")
	}
}

func TestSynthesizeTimeLabels(t *testing.T) {
	series, _ := NewChartSynthesizer(4).Synthesize("AAPL", 10, 1)
	got := make([]string, 0, len(series))
	for _, p := range series {
		got = append(got, p.Time)
	}
	assert.Equal(t, []string{"-3h", "-2h", "-1h", "now"}, got)
}

func TestSynthesizeDegenerate(t *testing.T) {
	synth := NewChartSynthesizer(DefaultChartPoints)
	for _, change := range []float64{-100, -150} {
		series, degenerate := synth.Synthesize("LUNA", 0.0001, change)
		require.True(t, degenerate)
		require.Len(t, series, DefaultChartPoints)
		for _, p := range series {
			assert.Equal(t, 0.0001, p.Value)
		}
	}

	series, degenerate := synth.Synthesize("ZERO", 0, 5)
	require.True(t, degenerate)
	for _, p := range series {
		assert.Zero(t, p.Value)
	}
}

func TestSeriesStopsEarly(t *testing.T) {
	seen := 0
	for i := range NewChartSynthesizer(DefaultChartPoints).Series("AAPL", 100, 2) {
		seen++
		if i == 2 {
			break
		}
	}
	assert.Equal(t, 3, seen)
}

func TestNewChartSynthesizerDefaultsPoints(t *testing.T) {
	assert.Equal(t, DefaultChartPoints, NewChartSynthesizer(0).Points)
	assert.Equal(t, DefaultChartPoints, (&ChartSynthesizer{}).points())
}
