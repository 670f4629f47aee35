package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

// KlineInterval is the interval code of the kline endpoint.
type KlineInterval string

const (
	Interval1m  KlineInterval = "1"
	Interval3m  KlineInterval = "3"
	Interval5m  KlineInterval = "5"
	Interval15m KlineInterval = "15"
	Interval30m KlineInterval = "30"
	Interval1h  KlineInterval = "60"
	Interval2h  KlineInterval = "120"
	Interval4h  KlineInterval = "240"
	Interval6h  KlineInterval = "360"
	Interval12h KlineInterval = "720"
	Interval1d  KlineInterval = "D"
	Interval1w  KlineInterval = "W"
)

var intervalDurations = map[KlineInterval]time.Duration{
	Interval1m:  time.Minute,
	Interval3m:  3 * time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval30m: 30 * time.Minute,
	Interval1h:  time.Hour,
	Interval2h:  2 * time.Hour,
	Interval4h:  4 * time.Hour,
	Interval6h:  6 * time.Hour,
	Interval12h: 12 * time.Hour,
	Interval1d:  24 * time.Hour,
	Interval1w:  7 * 24 * time.Hour,
}

// ParseInterval accepts "5m", "1h", "1d", "1w" or a native code such as "60".
func ParseInterval(s string) (KlineInterval, error) {
	s = strings.TrimSpace(s)
	if _, ok := intervalDurations[KlineInterval(strings.ToUpper(s))]; ok {
		return KlineInterval(strings.ToUpper(s)), nil
	}
	if len(s) >= 2 {
		n, err := strconv.Atoi(s[:len(s)-1])
		if err == nil && n > 0 {
			var code KlineInterval
			switch strings.ToLower(s[len(s)-1:]) {
			case "m":
				code = KlineInterval(strconv.Itoa(n))
			case "h":
				code = KlineInterval(strconv.Itoa(n * 60))
			case "d":
				if n == 1 {
					code = Interval1d
				}
			case "w":
				if n == 1 {
					code = Interval1w
				}
			}
			if _, ok := intervalDurations[code]; ok {
				return code, nil
			}
		}
	}
	return "", fmt.Errorf("unsupported interval %q", s)
}

// Duration is the bar length of the interval.
func (i KlineInterval) Duration() time.Duration {
	return intervalDurations[i]
}

// KlineParams holds parameters for fetching kline data
type KlineParams struct {
	Symbol   string
	Interval KlineInterval
	Start    *time.Time
	End      *time.Time
	// Limit is capped at 1000; 0 means 200.
	Limit int
}

// GetKlines fetches bars oldest first. The newest bar may still be forming; see ClosedOnly.
func (c *Client) GetKlines(ctx context.Context, params KlineParams) ([]types.OHLCV, error) {
	if params.Limit == 0 {
		params.Limit = 200
	}
	if params.Limit > 1000 {
		params.Limit = 1000
	}

	reqParams := map[string]interface{}{
		"category": c.category,
		"symbol":   params.Symbol,
		"interval": string(params.Interval),
		"limit":    params.Limit,
	}
	if params.Start != nil {
		reqParams["start"] = params.Start.UnixMilli()
	}
	if params.End != nil {
		reqParams["end"] = params.End.UnixMilli()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, wrap("get_klines", err)
	}
	result, err := c.httpClient.NewUtaBybitServiceWithParams(reqParams).GetMarketKline(ctx)
	if err != nil {
		return nil, wrap("get_klines", err)
	}

	bars, err := parseKlineResponse(result)
	if err != nil {
		return nil, wrap("get_klines", err)
	}
	c.log.Debug().Str("symbol", params.Symbol).Str("interval", string(params.Interval)).Int("bars", len(bars)).Msg("klines fetched")
	return bars, nil
}

// ClosedOnly drops bars that have not closed at now.
func ClosedOnly(bars []types.OHLCV, interval KlineInterval, now time.Time) []types.OHLCV {
	d := interval.Duration()
	end := len(bars)
	for end > 0 && bars[end-1].Timestamp.Add(d).After(now) {
		end--
	}
	return bars[:end]
}

func decodeResult(response interface{}, out interface{}) error {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok || serverResp == nil {
		return fmt.Errorf("invalid response type %T", response)
	}
	if err := ParseAPIError(serverResp.RetCode, serverResp.RetMsg); err != nil {
		return err
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return json.Unmarshal(resultBytes, out)
}

// parseKlineResponse converts [start, open, high, low, close, volume, turnover]
// rows, newest first on the wire, into an ascending series.
func parseKlineResponse(response interface{}) ([]types.OHLCV, error) {
	var klineResult struct {
		Symbol string     `json:"symbol"`
		List   [][]string `json:"list"`
	}
	if err := decodeResult(response, &klineResult); err != nil {
		return nil, err
	}

	bars := make([]types.OHLCV, 0, len(klineResult.List))
	for _, item := range klineResult.List {
		if len(item) < 6 {
			continue
		}
		ms, err := strconv.ParseInt(item[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad kline start %q: %w", item[0], err)
		}
		vals := make([]float64, 5)
		for i := range vals {
			if vals[i], err = strconv.ParseFloat(item[i+1], 64); err != nil {
				return nil, fmt.Errorf("bad kline value %q: %w", item[i+1], err)
			}
		}
		bars = append(bars, types.OHLCV{
			Timestamp: time.UnixMilli(ms).UTC(),
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}
