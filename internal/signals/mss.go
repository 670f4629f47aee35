package signals

import (
	"fmt"
	"sync"
	"time"

	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

// MSSConfig tunes the market-structure-shift engine.
type MSSConfig struct {
	LookbackBars    int     `json:"lookback_bars" yaml:"lookback_bars"`
	SwingStrength   int     `json:"swing_strength" yaml:"swing_strength"`
	DisplacementADR float64 `json:"displacement_adr" yaml:"displacement_adr"`
	StopBufferADR   float64 `json:"stop_buffer_adr" yaml:"stop_buffer_adr"`
	MaxStopADR      float64 `json:"max_stop_adr" yaml:"max_stop_adr"`
	// AllowNeutral also accepts breaks out of a ranging structure.
	AllowNeutral bool `json:"allow_neutral" yaml:"allow_neutral"`
}

// DefaultMSSConfig returns the engine defaults.
func DefaultMSSConfig() MSSConfig {
	return MSSConfig{
		LookbackBars:    85,
		SwingStrength:   3,
		DisplacementADR: 0.15,
		StopBufferADR:   0.05,
		MaxStopADR:      1.0,
	}
}

func (c MSSConfig) withDefaults() MSSConfig {
	d := DefaultMSSConfig()
	if c.LookbackBars == 0 {
		c.LookbackBars = d.LookbackBars
	}
	if c.SwingStrength == 0 {
		c.SwingStrength = d.SwingStrength
	}
	if c.DisplacementADR == 0 {
		c.DisplacementADR = d.DisplacementADR
	}
	if c.StopBufferADR == 0 {
		c.StopBufferADR = d.StopBufferADR
	}
	if c.MaxStopADR == 0 {
		c.MaxStopADR = d.MaxStopADR
	}
	return c
}

func (c MSSConfig) validate() error {
	if c.LookbackBars < 2*c.SwingStrength+3 {
		return errs.NewConfigurationError("signals", "mss lookback_bars %d too short for swing_strength %d", c.LookbackBars, c.SwingStrength)
	}
	if c.SwingStrength < 1 {
		return errs.NewConfigurationError("signals", "mss swing_strength must be >= 1, got %d", c.SwingStrength)
	}
	if c.DisplacementADR < 0 || c.StopBufferADR < 0 || c.MaxStopADR < 0 {
		return errs.NewConfigurationError("signals", "mss ADR multiples must be non-negative")
	}
	return nil
}

// MSSEngine detects market structure shifts: a close through the latest swing point
// against a bearish (or bullish) swing structure, with a displacement body measured in ADR.
// Its only evaluation state is the cached ADR10 used when daily history runs short.
type MSSEngine struct {
	symbol string
	cfg    MSSConfig

	mu          sync.Mutex
	phase       Phase
	lastADR10   float64
	lastBarTime time.Time
	lastSignal  *types.Signal
	lastStruct  Structure
}

// NewMSSEngine validates cfg and returns a warming engine.
func NewMSSEngine(symbol string, cfg MSSConfig) (*MSSEngine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &MSSEngine{symbol: symbol, cfg: cfg, phase: PhaseWarming}, nil
}

func (e *MSSEngine) Name() string   { return EngineMSS }
func (e *MSSEngine) Symbol() string { return e.symbol }
func (e *MSSEngine) MinBars() int   { return e.cfg.LookbackBars }

// resolveADR picks override, then a fresh ADR10 from complete daily bars, then the cached value.
func (e *MSSEngine) resolveADR(last types.OHLCV, daily []types.OHLCV, override float64) (float64, bool) {
	if override > 0 {
		return override, true
	}
	if adr, ok := ComputeADR(completeDaysBefore(daily, last), ADRDays); ok && adr > 0 {
		e.lastADR10 = adr
		return adr, true
	}
	if e.lastADR10 > 0 {
		return e.lastADR10, true
	}
	return 0, false
}

func (e *MSSEngine) OnBar(recent, daily []types.OHLCV, adr10Override float64) *types.Signal {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(recent) < e.cfg.LookbackBars {
		return nil
	}
	window := tail(recent, e.cfg.LookbackBars)
	last := window[len(window)-1]
	e.lastBarTime = last.Timestamp

	adr, ok := e.resolveADR(last, daily, adr10Override)
	if !ok {
		return nil
	}
	e.phase = PhaseActive

	dir, swingHigh, swingLow, structure := structureBreak(window, e.cfg.SwingStrength)
	e.lastStruct = structure
	if dir == types.Flat {
		return nil
	}
	if structure == StructureNeutral && !e.cfg.AllowNeutral {
		return nil
	}

	body := last.Close - last.Open
	var level, stop float64
	switch dir {
	case types.Long:
		if body < e.cfg.DisplacementADR*adr || swingLow.Price == 0 {
			return nil
		}
		level = swingHigh.Price
		stop = swingLow.Price - e.cfg.StopBufferADR*adr
		if stop >= last.Close {
			return nil
		}
	case types.Short:
		if -body < e.cfg.DisplacementADR*adr || swingHigh.Price == 0 {
			return nil
		}
		level = swingLow.Price
		stop = swingHigh.Price + e.cfg.StopBufferADR*adr
		if stop <= last.Close {
			return nil
		}
	}

	risk := last.Close - stop
	if risk < 0 {
		risk = -risk
	}
	if e.cfg.MaxStopADR > 0 && risk > e.cfg.MaxStopADR*adr {
		return nil
	}

	absBody := body
	if absBody < 0 {
		absBody = -absBody
	}
	confidence := clamp(0.5*clamp(absBody/(0.5*adr), 0, 1)+0.5*clamp(last.Range()/(0.5*adr), 0, 1), 0, 1)

	sig := &types.Signal{
		Direction:      dir,
		EntryPriceHint: last.Close,
		StopLossHint:   stop,
		Confidence:     confidence,
		Reason:         fmt.Sprintf("%s structure broken at %.5f (adr10 %.5f)", structure, level, adr),
		Engine:         EngineMSS,
		Time:           last.Timestamp,
	}
	e.lastSignal = sig
	return sig
}

func (e *MSSEngine) ReversalDirection(recent []types.OHLCV) types.Direction {
	window := tail(recent, e.cfg.LookbackBars)
	dir, _, _, structure := structureBreak(window, e.cfg.SwingStrength)
	switch {
	case dir == types.Long && structure == StructureBearish:
		return types.Long
	case dir == types.Short && structure == StructureBullish:
		return types.Short
	}
	return types.Flat
}

func (e *MSSEngine) HasReversalSignal(recent []types.OHLCV) bool {
	return e.ReversalDirection(recent) != types.Flat
}

func (e *MSSEngine) StateSummary() StateSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := StateSummary{
		Engine:      EngineMSS,
		Symbol:      e.symbol,
		Phase:       e.phase,
		ADR10:       e.lastADR10,
		LastBarTime: e.lastBarTime,
		Details: map[string]float64{
			"lookback_bars":  float64(e.cfg.LookbackBars),
			"swing_strength": float64(e.cfg.SwingStrength),
			"structure":      float64(e.lastStruct),
		},
	}
	if e.lastSignal != nil {
		sig := *e.lastSignal
		s.LastSignal = &sig
	}
	return s
}
