package data

import (
	"sort"
	"time"

	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

// FilterByPeriod keeps the bars within period of the latest timestamp.
func FilterByPeriod(data []types.OHLCV, period time.Duration) []types.OHLCV {
	if period <= 0 || len(data) == 0 {
		return data
	}
	cutoff := data[len(data)-1].Timestamp.Add(-period)
	idx := sort.Search(len(data), func(i int) bool {
		return !data[i].Timestamp.Before(cutoff)
	})
	return data[idx:]
}

// FilterByDateRange keeps bars with start <= timestamp <= end. Zero bounds are open.
func FilterByDateRange(data []types.OHLCV, start, end time.Time) []types.OHLCV {
	var filtered []types.OHLCV
	for _, candle := range data {
		if !start.IsZero() && candle.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && candle.Timestamp.After(end) {
			continue
		}
		filtered = append(filtered, candle)
	}
	return filtered
}

// SortByTimestamp returns a chronologically sorted copy.
func SortByTimestamp(data []types.OHLCV) []types.OHLCV {
	sorted := make([]types.OHLCV, len(data))
	copy(sorted, data)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// RemoveDuplicates drops bars repeating the previous timestamp, keeping the first occurrence.
// Input must be sorted.
func RemoveDuplicates(data []types.OHLCV) []types.OHLCV {
	if len(data) <= 1 {
		return data
	}
	filtered := make([]types.OHLCV, 0, len(data))
	filtered = append(filtered, data[0])
	for _, candle := range data[1:] {
		if candle.Timestamp.Equal(filtered[len(filtered)-1].Timestamp) {
			continue
		}
		filtered = append(filtered, candle)
	}
	return filtered
}

// ValidateSeries checks that a series is usable as simulation input:
// strictly increasing timestamps and consistent OHLC bounds.
func ValidateSeries(data []types.OHLCV) error {
	for i, candle := range data {
		if err := validateBar(candle); err != nil {
			return errs.NewConfigurationError("data", "bar %d (%s): %v", i, candle.Timestamp.Format(time.RFC3339), err)
		}
		if i == 0 {
			continue
		}
		prev := data[i-1].Timestamp
		switch {
		case candle.Timestamp.Equal(prev):
			return errs.NewConfigurationError("data", "duplicate timestamp at index %d: %s", i, candle.Timestamp.Format(time.RFC3339))
		case candle.Timestamp.Before(prev):
			return errs.NewConfigurationError("data", "data not in chronological order at index %d: %s comes after %s",
				i, candle.Timestamp.Format(time.RFC3339), prev.Format(time.RFC3339))
		}
	}
	return nil
}
