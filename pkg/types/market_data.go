package types

import "time"

// OHLCV is one closed bar of market data. Bars are immutable once ingested.
type OHLCV struct {
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// Range returns the high-low extent of the bar.
func (b OHLCV) Range() float64 {
	return b.High - b.Low
}

// Body returns the signed close-open distance.
func (b OHLCV) Body() float64 {
	return b.Close - b.Open
}

// Bullish reports whether the bar closed above its open.
func (b OHLCV) Bullish() bool {
	return b.Close > b.Open
}

// Day returns the UTC calendar day the bar opened in.
func (b OHLCV) Day() time.Time {
	t := b.Timestamp.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Closes extracts the close prices of a series.
func Closes(bars []OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
