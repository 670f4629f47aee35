package data

import (
	"time"

	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

// ResampleDaily aggregates bars into UTC calendar-day bars. The last day may be partial.
func ResampleDaily(bars []types.OHLCV) []types.OHLCV {
	daily, _ := ResampleDailyIndex(bars)
	return daily
}

// ResampleDailyIndex aggregates bars into UTC days and also returns, for every input bar,
// the index of the day bar it belongs to.
func ResampleDailyIndex(bars []types.OHLCV) ([]types.OHLCV, []int) {
	daily := make([]types.OHLCV, 0, len(bars)/24+1)
	dayOf := make([]int, len(bars))

	var current time.Time
	for i, b := range bars {
		day := b.Day()
		if len(daily) == 0 || !day.Equal(current) {
			current = day
			daily = append(daily, types.OHLCV{
				Timestamp: day,
				Open:      b.Open,
				High:      b.High,
				Low:       b.Low,
				Close:     b.Close,
				Volume:    b.Volume,
			})
			dayOf[i] = len(daily) - 1
			continue
		}

		d := &daily[len(daily)-1]
		if b.High > d.High {
			d.High = b.High
		}
		if b.Low < d.Low {
			d.Low = b.Low
		}
		d.Close = b.Close
		d.Volume += b.Volume
		dayOf[i] = len(daily) - 1
	}
	return daily, dayOf
}

// CompleteDaysBefore returns the daily bars that close strictly before t's UTC day.
// daily must be sorted by day.
func CompleteDaysBefore(daily []types.OHLCV, t time.Time) []types.OHLCV {
	u := t.UTC()
	day := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	n := len(daily)
	for n > 0 && !daily[n-1].Timestamp.Before(day) {
		n--
	}
	return daily[:n]
}
