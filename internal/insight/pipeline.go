package insight

import (
	"context"
	"time"

	"go.uber.org/zap"

	"stockinsight/backend-go/internal/models"
)

// ModelClient performs the grounded model call. Network I/O, credentials
// and retries all live behind this interface.
type ModelClient interface {
	Query(ctx context.Context, p Prompt) (RawResponse, error)
}

// Pipeline turns a raw ticker into a StockReport. It holds no mutable
// state, so one Pipeline can serve concurrent searches.
type Pipeline struct {
	builder *RequestBuilder
	client  ModelClient
	chart   *ChartSynthesizer
	log     *zap.Logger
	now     func() time.Time
}

func NewPipeline(client ModelClient, builder *RequestBuilder, chart *ChartSynthesizer, log *zap.Logger) *Pipeline {
	if builder == nil {
		builder = NewRequestBuilder(DefaultWindow)
	}
	if chart == nil {
		chart = NewChartSynthesizer(DefaultChartPoints)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		builder: builder,
		client:  client,
		chart:   chart,
		log:     log,
		now:     time.Now,
	}
}

// Run validates the ticker before any model call is made. It returns
// either a complete report or an *Error; never both, never a partial
// report.
func (p *Pipeline) Run(ctx context.Context, rawTicker string) (*models.StockReport, error) {
	ticker, err := ParseTicker(rawTicker)
	if err != nil {
		return nil, err
	}
	prompt, err := p.builder.Build(ticker)
	if err != nil {
		return nil, err
	}

	start := p.now()
	raw, err := p.client.Query(ctx, prompt)
	if err != nil {
		p.log.Warn("model call failed",
			zap.String("ticker", ticker.String()),
			zap.Duration("elapsed", p.now().Sub(start)),
			zap.Error(err))
		return nil, &Error{Kind: KindModelCallFailed, Detail: ticker.String(), Err: err}
	}
	p.log.Debug("model replied",
		zap.String("ticker", ticker.String()),
		zap.Duration("elapsed", p.now().Sub(start)),
		zap.Int("text_len", len(raw.Text)),
		zap.Int("citations", len(raw.Citations)))

	return p.Assemble(ticker, raw)
}

// Assemble runs parsing, validation and chart synthesis over a reply that
// has already been fetched.
func (p *Pipeline) Assemble(ticker Ticker, raw RawResponse) (*models.StockReport, error) {
	if ticker.IsZero() {
		return nil, newError(KindInvalidTicker, "ticker was not validated")
	}
	fields, err := Parse(raw)
	if err != nil {
		p.log.Info("reply not parseable", zap.String("ticker", ticker.String()), zap.Error(err))
		return nil, err
	}
	v, err := Validate(fields)
	if err != nil {
		p.log.Info("reply failed validation", zap.String("ticker", ticker.String()), zap.Error(err))
		return nil, err
	}
	if v.DroppedCitations > 0 {
		p.log.Debug("dropped invalid citations",
			zap.String("ticker", ticker.String()),
			zap.Int("dropped", v.DroppedCitations))
	}

	series, degenerate := p.chart.Synthesize(ticker.String(), v.PriceValue, v.ChangeValue)
	if degenerate {
		p.log.Info("chart flattened",
			zap.String("ticker", ticker.String()),
			zap.String("kind", string(KindChartSynthesisDegenerate)),
			zap.Float64("change", v.ChangeValue))
	}

	return &models.StockReport{
		Ticker:          ticker.String(),
		Price:           v.Price,
		ChangeText:      v.ChangeText,
		ChangeValue:     v.ChangeValue,
		Trend:           TrendOf(v.ChangeValue),
		Analysis:        v.Analysis,
		Sources:         v.Sources,
		LastUpdated:     p.now().UTC(),
		ChartSeries:     series,
		ChartSynthetic:  true,
		ChartDegenerate: degenerate,
	}, nil
}

func TrendOf(changePct float64) models.Trend {
	switch {
	case changePct > 0:
		return models.TrendUp
	case changePct < 0:
		return models.TrendDown
	}
	return models.TrendNeutral
}
