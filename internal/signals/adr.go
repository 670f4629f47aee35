package signals

import "github.com/ducminhle1904/strategy-lab/pkg/types"

// ADRDays is the number of complete daily bars averaged into ADR10.
const ADRDays = 10

// ComputeADR returns the mean high-low range of the last n daily bars.
// The bool is false when fewer than n bars are available.
func ComputeADR(daily []types.OHLCV, n int) (float64, bool) {
	if n <= 0 || len(daily) < n {
		return 0, false
	}
	sum := 0.0
	for _, d := range daily[len(daily)-n:] {
		sum += d.High - d.Low
	}
	return sum / float64(n), true
}

// completeDaysBefore drops daily bars that are not strictly before the UTC day of the evaluated bar.
func completeDaysBefore(daily []types.OHLCV, last types.OHLCV) []types.OHLCV {
	day := last.Day()
	n := len(daily)
	for n > 0 && !daily[n-1].Timestamp.Before(day) {
		n--
	}
	return daily[:n]
}
