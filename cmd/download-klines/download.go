package main

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ducminhle1904/strategy-lab/internal/exchange/bybit"
	"github.com/ducminhle1904/strategy-lab/pkg/data"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

const pageLimit = 1000

type klineFeed interface {
	GetKlines(ctx context.Context, params bybit.KlineParams) ([]types.OHLCV, error)
}

// fetchRange pages backwards from end, since each response holds the newest
// bars of its window, and returns [start, end] oldest first.
func fetchRange(ctx context.Context, feed klineFeed, symbol string, interval bybit.KlineInterval,
	start, end time.Time, log zerolog.Logger) ([]types.OHLCV, error) {
	var pages [][]types.OHLCV
	total := 0
	cursor := end

	for cursor.After(start) {
		from, to := start, cursor
		bars, err := feed.GetKlines(ctx, bybit.KlineParams{
			Symbol:   symbol,
			Interval: interval,
			Start:    &from,
			End:      &to,
			Limit:    pageLimit,
		})
		if err != nil {
			return nil, err
		}
		if len(bars) == 0 {
			break
		}

		page := make([]types.OHLCV, 0, len(bars))
		for _, b := range bars {
			if !b.Timestamp.Before(start) && !b.Timestamp.After(end) {
				page = append(page, b)
			}
		}
		pages = append(pages, page)
		total += len(page)
		log.Debug().Str("symbol", symbol).Int("bars", total).Msg("downloading")

		oldest := bars[0].Timestamp
		if !oldest.After(start) {
			break
		}
		cursor = oldest.Add(-time.Millisecond)
	}

	out := make([]types.OHLCV, 0, total)
	for i := len(pages) - 1; i >= 0; i-- {
		out = append(out, pages[i]...)
	}
	return data.RemoveDuplicates(out), nil
}

// candlesPath is the layout the data locator resolves for exchange "bybit".
func candlesPath(root, category, symbol, interval string) string {
	return filepath.Join(root, "bybit", strings.ToLower(category), strings.ToUpper(symbol),
		data.ConvertIntervalToMinutes(interval), "candles.csv")
}

// writeCandlesCSV writes bars in the default CSV layout.
func writeCandlesCSV(bars []types.OHLCV, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, b := range bars {
		record := []string{b.Timestamp.UTC().Format("2006-01-02 15:04:05"), f(b.Open), f(b.High), f(b.Low), f(b.Close), f(b.Volume)}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func splitList(s string, normalize func(string) string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if v := normalize(strings.TrimSpace(part)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
