package insight

import (
	"fmt"
	"hash/fnv"
	"iter"
	"math"
	"math/rand/v2"

	"stockinsight/backend-go/internal/models"
)

const DefaultChartPoints = 12

// noiseShare is the largest wobble applied to an interpolated point, as a
// share of the distance between start and end price (or of the price
// itself for near-flat moves).
const noiseShare = 0.18

// ChartSynthesizer fabricates a smooth trend line ending at the current
// price. The output is a visual approximation for charting and must not be
// presented as historical prices.
type ChartSynthesizer struct {
	Points int
}

func NewChartSynthesizer(points int) *ChartSynthesizer {
	if points < 2 {
		points = DefaultChartPoints
	}
	return &ChartSynthesizer{Points: points}
}

// Degenerate reports whether the interpolation is undefined for the given
// inputs: a total loss (or worse) has no implied starting price, and a zero
// price gives no base to measure change against.
func Degenerate(price, changePct float64) bool {
	return changePct <= -100 || price == 0
}

// Series yields points lazily, oldest first. The first value is the implied
// starting price and the last is exactly price. The noise sequence is
// seeded by the ticker so identical inputs always produce identical series.
func (c *ChartSynthesizer) Series(ticker string, price, changePct float64) iter.Seq2[int, models.ChartPoint] {
	n := c.points()
	return func(yield func(int, models.ChartPoint) bool) {
		if Degenerate(price, changePct) {
			for i := range n {
				if !yield(i, models.ChartPoint{Time: timeLabel(i, n), Value: price}) {
					return
				}
			}
			return
		}

		start := price / (1 + changePct/100)
		amp := noiseShare * math.Abs(price-start)
		if floor := 0.002 * price; amp < floor {
			amp = floor
		}
		rng := rand.New(rand.NewPCG(tickerSeed(ticker), uint64(n)))

		for i := range n {
			var v float64
			switch i {
			case 0:
				v = roundPrice(start)
			case n - 1:
				v = price
			default:
				t := float64(i) / float64(n-1)
				// Taper keeps the noise at zero on both ends.
				taper := math.Sin(math.Pi * t)
				v = start + (price-start)*t + amp*taper*(rng.Float64()*2-1)
				v = roundPrice(math.Max(v, 0))
			}
			if !yield(i, models.ChartPoint{Time: timeLabel(i, n), Value: v}) {
				return
			}
		}
	}
}

// Synthesize collects Series into a slice and reports whether the
// degenerate fallback was used.
func (c *ChartSynthesizer) Synthesize(ticker string, price, changePct float64) ([]models.ChartPoint, bool) {
	out := make([]models.ChartPoint, 0, c.points())
	for _, p := range c.Series(ticker, price, changePct) {
		out = append(out, p)
	}
	return out, Degenerate(price, changePct)
}

func (c *ChartSynthesizer) points() int {
	if c.Points < 2 {
		return DefaultChartPoints
	}
	return c.Points
}

func timeLabel(i, n int) string {
	offset := n - 1 - i
	if offset == 0 {
		return "now"
	}
	return fmt.Sprintf("-%dh", offset)
}

func tickerSeed(ticker string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(ticker))
	return h.Sum64()
}

// priceSigFigs keeps the implied move accurate for micro-priced assets,
// where fixed decimal places would leave one or two significant digits.
const priceSigFigs = 6

// roundPrice rounds to priceSigFigs significant figures, never coarser than
// cents.
func roundPrice(v float64) float64 {
	if v == 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	intDigits := int(math.Ceil(math.Log10(math.Abs(v))))
	decimals := max(priceSigFigs-intDigits, 2)
	scale := math.Pow10(decimals)
	return math.Round(v*scale) / scale
}
