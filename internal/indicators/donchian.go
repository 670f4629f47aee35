package indicators

import "github.com/ducminhle1904/strategy-lab/pkg/types"

// DonchianSeries tracks the highest high and lowest low over period bars, current bar included.
func DonchianSeries(bars []types.OHLCV, period int) Bands {
	n := len(bars)
	ch := Bands{Upper: nanSeries(n), Middle: nanSeries(n), Lower: nanSeries(n)}
	if period <= 0 {
		return ch
	}

	for i := period - 1; i < n; i++ {
		hi, lo := bars[i].High, bars[i].Low
		for _, b := range bars[i-period+1 : i] {
			if b.High > hi {
				hi = b.High
			}
			if b.Low < lo {
				lo = b.Low
			}
		}
		ch.Upper[i] = hi
		ch.Lower[i] = lo
		ch.Middle[i] = (hi + lo) / 2
	}
	return ch
}
