package insight

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTicker(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "AAPL", want: "AAPL"},
		{raw: "  btc-usd ", want: "BTC-USD"},
		{raw: "BRK.B", want: "BRK.B"},
		{raw: "0700.HK", want: "0700.HK"},
		{raw: "  ", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "ABCDEFGHIJKLM", wantErr: true},
		{raw: "AA PL", wantErr: true},
		{raw: "USDTRY=X", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTicker(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidTicker))
				assert.True(t, got.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	ticker, err := ParseTicker("NVDA")
	require.NoError(t, err)

	p, err := NewRequestBuilder("").Build(ticker)
	require.NoError(t, err)
	assert.Equal(t, "NVDA", p.Ticker)
	assert.Equal(t, DefaultWindow, p.Window)
	assert.True(t, p.Grounding)
	assert.Contains(t, p.User, "NVDA")
	assert.Contains(t, p.User, "last 24h")
	assert.True(t, strings.Contains(p.System, `"changeValue"`))

	p, err = NewRequestBuilder("5d").Build(ticker)
	require.NoError(t, err)
	assert.Contains(t, p.User, "last 5d")
}

func TestBuildRejectsZeroTicker(t *testing.T) {
	_, err := NewRequestBuilder("").Build(Ticker{})
	assert.True(t, errors.Is(err, ErrInvalidTicker))
}
