package indicators

import "math"

// Bands holds per-bar band values. Entries are NaN during warm-up.
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// BollingerSeries computes Bollinger Bands (SMA middle, population standard deviation).
func BollingerSeries(values []float64, period int, stdDev float64) Bands {
	n := len(values)
	bands := Bands{Upper: nanSeries(n), Middle: nanSeries(n), Lower: nanSeries(n)}
	if period <= 0 {
		return bands
	}

	middle := SMASeries(values, period)
	for i := period - 1; i < n; i++ {
		mean := middle[i]
		variance := 0.0
		for _, v := range values[i-period+1 : i+1] {
			d := v - mean
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))
		bands.Middle[i] = mean
		bands.Upper[i] = mean + stdDev*sd
		bands.Lower[i] = mean - stdDev*sd
	}
	return bands
}
