package insight

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockinsight/backend-go/internal/models"
)

func validFields() ParsedFields {
	return ParsedFields{
		Price:       "192.34",
		ChangeText:  "+1.25%",
		ChangeValue: 1.25,
		Analysis:    "Steady growth driven by services.",
	}
}

func TestValidateAcceptsWellFormedFields(t *testing.T) {
	got, err := Validate(validFields())
	require.NoError(t, err)
	assert.Equal(t, "192.34", got.Price)
	assert.InDelta(t, 192.34, got.PriceValue, 1e-9)
	assert.Equal(t, "+1.25%", got.ChangeText)
	assert.Empty(t, got.Sources)
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ParsedFields)
		want   error
	}{
		{name: "price not numeric", mutate: func(p *ParsedFields) { p.Price = "abc" }, want: ErrInvalidPrice},
		{name: "price negative", mutate: func(p *ParsedFields) { p.Price = "-3.10" }, want: ErrInvalidPrice},
		{name: "change missing sign", mutate: func(p *ParsedFields) { p.ChangeText = "1.25%" }, want: ErrInvalidChangeFormat},
		{name: "change missing percent", mutate: func(p *ParsedFields) { p.ChangeText = "+1.25" }, want: ErrInvalidChangeFormat},
		{name: "change two dots", mutate: func(p *ParsedFields) { p.ChangeText = "+1.2.5%" }, want: ErrInvalidChangeFormat},
		{name: "plus text negative value", mutate: func(p *ParsedFields) { p.ChangeValue = -1.25 }, want: ErrChangeSignMismatch},
		{
			name: "minus text positive value",
			mutate: func(p *ParsedFields) {
				p.ChangeText = "-0.50%"
				p.ChangeValue = 0.5
			},
			want: ErrChangeSignMismatch,
		},
		{name: "value far from text", mutate: func(p *ParsedFields) { p.ChangeValue = 30 }, want: ErrChangeSignMismatch},
		{
			name: "value off by more than rounding",
			mutate: func(p *ParsedFields) {
				p.ChangeText = "-2.1%"
				p.ChangeValue = -2.2
			},
			want: ErrChangeSignMismatch,
		},
		{name: "analysis blank", mutate: func(p *ParsedFields) { p.Analysis = " \n " }, want: ErrAnalysisEmpty},
		{name: "analysis too long", mutate: func(p *ParsedFields) { p.Analysis = strings.Repeat("é", MaxAnalysisRunes+1) }, want: ErrAnalysisTooLong},
		{
			name: "price checked before change",
			mutate: func(p *ParsedFields) {
				p.Price = "n/a"
				p.ChangeText = "bad"
			},
			want: ErrInvalidPrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validFields()
			tt.mutate(&p)
			_, err := Validate(p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestValidateZeroChange(t *testing.T) {
	p := validFields()
	p.ChangeText = "+0.00%"
	p.ChangeValue = 0
	_, err := Validate(p)
	require.NoError(t, err)

	p.ChangeText = "-0.00%"
	_, err = Validate(p)
	require.NoError(t, err)
}

func TestValidateChangeWithinTextPrecision(t *testing.T) {
	tests := []struct {
		text  string
		value float64
	}{
		{"+1.25%", 1.25},
		{"+1.3%", 1.27},
		{"+1%", 1.4},
		{"-0.8%", -0.84},
	}
	for _, tt := range tests {
		p := validFields()
		p.ChangeText = tt.text
		p.ChangeValue = tt.value
		got, err := Validate(p)
		require.NoError(t, err, "%s vs %g", tt.text, tt.value)
		assert.Equal(t, tt.value, got.ChangeValue)
	}
}

func TestValidateAnalysisAtLimit(t *testing.T) {
	p := validFields()
	p.Analysis = strings.Repeat("é", MaxAnalysisRunes)
	_, err := Validate(p)
	require.NoError(t, err)
}

func TestValidateDropsInvalidCitations(t *testing.T) {
	p := validFields()
	p.Citations = []Citation{
		{Title: "Bad", URL: "not a url"},
		{Title: "", URL: "https://www.reuters.com/markets/aapl"},
		{Title: "No host", URL: "https://"},
		{Title: "Relative", URL: "/news/aapl"},
		{Title: "Broken", URL: "http://[::1"},
		{Title: "Yahoo", URL: "https://finance.yahoo.com/quote/AAPL"},
	}

	got, err := Validate(p)
	require.NoError(t, err)
	assert.Equal(t, 4, got.DroppedCitations)
	assert.Equal(t, []models.Source{
		{Title: "www.reuters.com", URL: "https://www.reuters.com/markets/aapl"},
		{Title: "Yahoo", URL: "https://finance.yahoo.com/quote/AAPL"},
	}, got.Sources)
}

func TestValidateAllCitationsInvalidStillPasses(t *testing.T) {
	p := validFields()
	p.Citations = []Citation{{Title: "Bad", URL: "::::"}}
	got, err := Validate(p)
	require.NoError(t, err)
	assert.Empty(t, got.Sources)
	assert.Equal(t, 1, got.DroppedCitations)
}
