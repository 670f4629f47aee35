package signals

import (
	"fmt"
	"math"
	"sync"
	"time"

	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/internal/indicators"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

// GoldConfig tunes the consolidation breakout engine.
type GoldConfig struct {
	RangeBars         int     `json:"range_bars" yaml:"range_bars"`
	ATRPeriod         int     `json:"atr_period" yaml:"atr_period"`
	TrendEMA          int     `json:"trend_ema" yaml:"trend_ema"`
	MinBoxATR         float64 `json:"min_box_atr" yaml:"min_box_atr"`
	MaxBoxATR         float64 `json:"max_box_atr" yaml:"max_box_atr"`
	BreakoutBufferATR float64 `json:"breakout_buffer_atr" yaml:"breakout_buffer_atr"`
	MinBodyRatio      float64 `json:"min_body_ratio" yaml:"min_body_ratio"`
	ZoneWidthATR      float64 `json:"zone_width_atr" yaml:"zone_width_atr"`
}

func DefaultGoldConfig() GoldConfig {
	return GoldConfig{
		RangeBars:         20,
		ATRPeriod:         14,
		TrendEMA:          50,
		MinBoxATR:         0.5,
		MaxBoxATR:         4.0,
		BreakoutBufferATR: 0.1,
		MinBodyRatio:      0.5,
		ZoneWidthATR:      0.2,
	}
}

func (c GoldConfig) withDefaults() GoldConfig {
	d := DefaultGoldConfig()
	if c.RangeBars == 0 {
		c.RangeBars = d.RangeBars
	}
	if c.ATRPeriod == 0 {
		c.ATRPeriod = d.ATRPeriod
	}
	if c.TrendEMA == 0 {
		c.TrendEMA = d.TrendEMA
	}
	if c.MinBoxATR == 0 {
		c.MinBoxATR = d.MinBoxATR
	}
	if c.MaxBoxATR == 0 {
		c.MaxBoxATR = d.MaxBoxATR
	}
	if c.BreakoutBufferATR == 0 {
		c.BreakoutBufferATR = d.BreakoutBufferATR
	}
	if c.MinBodyRatio == 0 {
		c.MinBodyRatio = d.MinBodyRatio
	}
	if c.ZoneWidthATR == 0 {
		c.ZoneWidthATR = d.ZoneWidthATR
	}
	return c
}

func (c GoldConfig) validate() error {
	if c.RangeBars < 2 || c.ATRPeriod < 1 || c.TrendEMA < 1 {
		return errs.NewConfigurationError("signals", "gold range_bars >= 2, atr_period >= 1 and trend_ema >= 1 required")
	}
	if c.MinBoxATR > c.MaxBoxATR {
		return errs.NewConfigurationError("signals", "gold min_box_atr %.2f above max_box_atr %.2f", c.MinBoxATR, c.MaxBoxATR)
	}
	if c.MinBodyRatio < 0 || c.MinBodyRatio > 1 {
		return errs.NewConfigurationError("signals", "gold min_body_ratio must be within [0,1], got %.2f", c.MinBodyRatio)
	}
	return nil
}

// GoldEngine trades breakouts from a tight consolidation box in the direction of
// the EMA trend. It needs only working-timeframe bars; daily context is ignored.
type GoldEngine struct {
	symbol string
	cfg    GoldConfig

	mu          sync.Mutex
	phase       Phase
	lastBarTime time.Time
	lastSignal  *types.Signal
	lastBox     box
}

type box struct {
	high, low, atr, ema float64
}

func NewGoldEngine(symbol string, cfg GoldConfig) (*GoldEngine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &GoldEngine{symbol: symbol, cfg: cfg, phase: PhaseWarming}, nil
}

func (e *GoldEngine) Name() string   { return EngineGold }
func (e *GoldEngine) Symbol() string { return e.symbol }

func (e *GoldEngine) MinBars() int {
	n := e.cfg.RangeBars + 2
	if m := e.cfg.ATRPeriod + e.cfg.RangeBars; m > n {
		n = m
	}
	if m := e.cfg.TrendEMA + 1; m > n {
		n = m
	}
	return n
}

// measure computes the box formed by the RangeBars bars preceding the last bar,
// the ATR as of the bar before the last, and the trend EMA at the last bar.
func (e *GoldEngine) measure(window []types.OHLCV) box {
	n := len(window)
	b := box{high: math.Inf(-1), low: math.Inf(1)}
	for _, bar := range window[n-1-e.cfg.RangeBars : n-1] {
		b.high = math.Max(b.high, bar.High)
		b.low = math.Min(b.low, bar.Low)
	}
	b.atr = indicators.ATRSeries(window, e.cfg.ATRPeriod)[n-2]
	b.ema = indicators.EMASeries(types.Closes(window), e.cfg.TrendEMA)[n-1]
	return b
}

func (e *GoldEngine) OnBar(recent, _ []types.OHLCV, _ float64) *types.Signal {
	e.mu.Lock()
	defer e.mu.Unlock()

	need := e.MinBars()
	if len(recent) < need {
		return nil
	}
	window := tail(recent, need)
	last := window[len(window)-1]
	e.lastBarTime = last.Timestamp

	b := e.measure(window)
	if math.IsNaN(b.atr) || math.IsNaN(b.ema) || b.atr <= 0 {
		return nil
	}
	e.phase = PhaseActive
	e.lastBox = b

	height := b.high - b.low
	if height < e.cfg.MinBoxATR*b.atr || height > e.cfg.MaxBoxATR*b.atr {
		return nil
	}
	rng := last.Range()
	if rng <= 0 {
		return nil
	}
	bodyRatio := math.Abs(last.Body()) / rng
	if bodyRatio < e.cfg.MinBodyRatio {
		return nil
	}

	buffer := e.cfg.BreakoutBufferATR * b.atr
	var dir types.Direction
	var stop, excess float64
	switch {
	case last.Close > b.high+buffer && last.Bullish() && last.Close > b.ema:
		dir = types.Long
		stop = b.low - e.cfg.ZoneWidthATR*b.atr
		excess = last.Close - b.high
	case last.Close < b.low-buffer && !last.Bullish() && last.Close < b.ema:
		dir = types.Short
		stop = b.high + e.cfg.ZoneWidthATR*b.atr
		excess = b.low - last.Close
	default:
		return nil
	}

	tightness := 1 - height/(e.cfg.MaxBoxATR*b.atr)
	confidence := clamp(0.4*bodyRatio+0.3*tightness+0.3*clamp(excess/b.atr, 0, 1), 0, 1)

	sig := &types.Signal{
		Direction:      dir,
		EntryPriceHint: last.Close,
		StopLossHint:   stop,
		Confidence:     confidence,
		Reason:         fmt.Sprintf("breakout of %d-bar box [%.5f, %.5f] atr %.5f", e.cfg.RangeBars, b.low, b.high, b.atr),
		Engine:         EngineGold,
		Time:           last.Timestamp,
	}
	e.lastSignal = sig
	return sig
}

// ReversalDirection reports a close beyond either side of the box formed by the preceding bars.
func (e *GoldEngine) ReversalDirection(recent []types.OHLCV) types.Direction {
	n := len(recent)
	if n < e.cfg.RangeBars+1 {
		return types.Flat
	}
	hi, lo := math.Inf(-1), math.Inf(1)
	for _, bar := range recent[n-1-e.cfg.RangeBars : n-1] {
		hi = math.Max(hi, bar.High)
		lo = math.Min(lo, bar.Low)
	}
	last := recent[n-1]
	switch {
	case last.Close > hi:
		return types.Long
	case last.Close < lo:
		return types.Short
	}
	return types.Flat
}

func (e *GoldEngine) HasReversalSignal(recent []types.OHLCV) bool {
	return e.ReversalDirection(recent) != types.Flat
}

func (e *GoldEngine) StateSummary() StateSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := StateSummary{
		Engine:      EngineGold,
		Symbol:      e.symbol,
		Phase:       e.phase,
		LastBarTime: e.lastBarTime,
		Details: map[string]float64{
			"box_high": e.lastBox.high,
			"box_low":  e.lastBox.low,
			"atr":      e.lastBox.atr,
			"ema":      e.lastBox.ema,
		},
	}
	if e.lastSignal != nil {
		sig := *e.lastSignal
		s.LastSignal = &sig
	}
	return s
}
