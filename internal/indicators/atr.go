package indicators

import (
	"math"

	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

// ATR represents the Average True Range technical indicator
// ATR measures market volatility by decomposing the entire range of an asset price for that period.
// Smoothing is Wilder's: the first value is the mean true range of the first period bars.
type ATR struct {
	period    int
	lastClose float64
	seen      int
	sum       float64
	lastValue float64
}

// NewATR creates a new ATR indicator
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

// Update feeds one bar.
func (a *ATR) Update(bar types.OHLCV) (float64, bool) {
	tr := bar.High - bar.Low
	if a.seen > 0 {
		tr = TrueRange(bar, a.lastClose)
	}
	a.lastClose = bar.Close
	a.seen++

	p := float64(a.period)
	switch {
	case a.seen < a.period:
		a.sum += tr
		return 0, false
	case a.seen == a.period:
		a.lastValue = (a.sum + tr) / p
	default:
		a.lastValue = (a.lastValue*(p-1) + tr) / p
	}
	return a.lastValue, true
}

func (a *ATR) Value() float64 {
	return a.lastValue
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(bar types.OHLCV, prevClose float64) float64 {
	return math.Max(bar.High-bar.Low, math.Max(math.Abs(bar.High-prevClose), math.Abs(bar.Low-prevClose)))
}

// ATRSeries returns ATR values, NaN before period bars.
func ATRSeries(bars []types.OHLCV, period int) []float64 {
	out := nanSeries(len(bars))
	if period <= 0 {
		return out
	}
	atr := NewATR(period)
	for i, b := range bars {
		if v, ok := atr.Update(b); ok {
			out[i] = v
		}
	}
	return out
}
