package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/strategy-lab/internal/exchange/bybit"
	"github.com/ducminhle1904/strategy-lab/pkg/data"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

// pagedFeed serves the newest `page` bars inside each requested window, like the exchange.
type pagedFeed struct {
	bars  []types.OHLCV
	page  int
	calls int
	err   error
}

func (f *pagedFeed) GetKlines(_ context.Context, p bybit.KlineParams) ([]types.OHLCV, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var in []types.OHLCV
	for _, b := range f.bars {
		if !b.Timestamp.Before(*p.Start) && !b.Timestamp.After(*p.End) {
			in = append(in, b)
		}
	}
	if len(in) > f.page {
		in = in[len(in)-f.page:]
	}
	return in, nil
}

func hourly(n int) []types.OHLCV {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.OHLCV, n)
	for i := range bars {
		p := 2300 + float64(i)
		bars[i] = types.OHLCV{Timestamp: start.Add(time.Duration(i) * time.Hour), Open: p, High: p + 2, Low: p - 2, Close: p + 1, Volume: 5}
	}
	return bars
}

func TestFetchRange_PagesBackwards(t *testing.T) {
	bars := hourly(25)
	feed := &pagedFeed{bars: bars, page: 10}

	got, err := fetchRange(context.Background(), feed, "XAUUSDT", bybit.Interval1h,
		bars[2].Timestamp, bars[24].Timestamp, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, got, 23)
	assert.Equal(t, bars[2].Timestamp, got[0].Timestamp)
	assert.Equal(t, bars[24].Timestamp, got[22].Timestamp)
	assert.NoError(t, data.ValidateSeries(got))
	assert.Equal(t, 3, feed.calls)
}

func TestFetchRange_Error(t *testing.T) {
	feed := &pagedFeed{err: errors.New("rate limited")}
	_, err := fetchRange(context.Background(), feed, "XAUUSDT", bybit.Interval1h,
		time.Now().Add(-time.Hour), time.Now(), zerolog.Nop())
	assert.Error(t, err)
}

func TestWriteCandlesCSV_RoundTripThroughLocator(t *testing.T) {
	root := t.TempDir()
	bars := hourly(5)
	path := candlesPath(root, "linear", "xauusdt", "1h")
	assert.Equal(t, filepath.Join(root, "bybit", "linear", "XAUUSDT", "60", "candles.csv"), path)
	require.NoError(t, writeCandlesCSV(bars, path))

	dm := data.NewDataManager(zerolog.Nop())
	found, err := dm.Locate(root, "bybit", "XAUUSDT", "1h")
	require.NoError(t, err)
	assert.Equal(t, path, found)

	loaded, err := dm.Load(found, data.Selection{})
	require.NoError(t, err)
	require.Len(t, loaded, 5)
	assert.Equal(t, bars[4].Timestamp, loaded[4].Timestamp)
	assert.Equal(t, bars[4].Close, loaded[4].Close)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"XAUUSDT", "BTCUSDT"}, splitList(" xauusdt, ,btcusdt ", strings.ToUpper))
	assert.Empty(t, splitList("", strings.ToLower))
}
