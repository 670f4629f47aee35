package bybit

import (
	"testing"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

func TestParseInterval(t *testing.T) {
	cases := map[string]KlineInterval{
		"5m":  Interval5m,
		"15m": Interval15m,
		"1h":  Interval1h,
		"4h":  Interval4h,
		"1d":  Interval1d,
		"1w":  Interval1w,
		"60":  Interval1h,
		"d":   Interval1d,
	}
	for in, want := range cases {
		got, err := ParseInterval(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "7m", "2d", "x", "0m"} {
		_, err := ParseInterval(bad)
		assert.Error(t, err, bad)
	}

	assert.Equal(t, 5*time.Minute, Interval5m.Duration())
	assert.Equal(t, 24*time.Hour, Interval1d.Duration())
}

func TestParseKlineResponse_SortsAscending(t *testing.T) {
	resp := &bybit_api.ServerResponse{
		RetCode: 0,
		Result: map[string]interface{}{
			"symbol": "XAUUSDT",
			"list": []interface{}{
				[]interface{}{"1700000600000", "2001", "2003", "2000", "2002", "12", "24000"},
				[]interface{}{"1700000300000", "2000", "2002", "1999", "2001", "10", "20000"},
			},
		},
	}

	bars, err := parseKlineResponse(resp)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, time.UnixMilli(1700000300000).UTC(), bars[0].Timestamp)
	assert.Equal(t, 2001.0, bars[0].Close)
	assert.Equal(t, 2003.0, bars[1].High)
	assert.Equal(t, 12.0, bars[1].Volume)
}

func TestParseKlineResponse_Errors(t *testing.T) {
	_, err := parseKlineResponse(&bybit_api.ServerResponse{RetCode: ErrCodeRateLimitExceeded, RetMsg: "too many visits"})
	require.Error(t, err)
	assert.True(t, IsRateLimitError(err))

	_, err = parseKlineResponse("not a response")
	assert.Error(t, err)

	_, err = parseKlineResponse(&bybit_api.ServerResponse{Result: map[string]interface{}{
		"list": []interface{}{[]interface{}{"oops", "1", "1", "1", "1", "1"}},
	}})
	assert.Error(t, err)
}

func TestClosedOnly(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	bars := []types.OHLCV{
		{Timestamp: start},
		{Timestamp: start.Add(5 * time.Minute)},
		{Timestamp: start.Add(10 * time.Minute)},
	}

	assert.Len(t, ClosedOnly(bars, Interval5m, start.Add(12*time.Minute)), 2)
	assert.Len(t, ClosedOnly(bars, Interval5m, start.Add(15*time.Minute)), 3)
	assert.Empty(t, ClosedOnly(bars, Interval5m, start.Add(time.Minute)))
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{Testnet: true}, zerolog.Nop())
	assert.Equal(t, "linear", c.Category())
	assert.Equal(t, "testnet", c.GetEnvironment())
}
