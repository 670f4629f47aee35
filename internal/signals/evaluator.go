package signals

import (
	"strings"
	"time"

	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

// Engine names accepted by New.
const (
	EngineMSS  = "mss"
	EngineGold = "gold"
)

// Phase is the evaluator lifecycle state.
type Phase string

const (
	PhaseWarming Phase = "warming"
	PhaseActive  Phase = "active"
)

// Evaluator turns a window of closed bars into at most one breakout signal per bar.
// Backtests and the live runner drive the same contract.
type Evaluator interface {
	Name() string
	Symbol() string

	// MinBars is the working-timeframe window the evaluator needs.
	MinBars() int

	// OnBar evaluates the newest bar of recent. daily may be nil for engines that do
	// not need daily context; adr10Override > 0 replaces the computed ADR.
	OnBar(recent, daily []types.OHLCV, adr10Override float64) *types.Signal

	// HasReversalSignal reports whether the last bar reverses the prevailing structure.
	// It never mutates evaluator state.
	HasReversalSignal(recent []types.OHLCV) bool

	// ReversalDirection is the side of the reversal move, Flat when there is none.
	ReversalDirection(recent []types.OHLCV) types.Direction

	StateSummary() StateSummary
}

// StateSummary is a read-only snapshot for display.
type StateSummary struct {
	Engine      string             `json:"engine"`
	Symbol      string             `json:"symbol"`
	Phase       Phase              `json:"phase"`
	ADR10       float64            `json:"adr10"`
	LastBarTime time.Time          `json:"last_bar_time"`
	LastSignal  *types.Signal      `json:"last_signal,omitempty"`
	Details     map[string]float64 `json:"details,omitempty"`
}

// Config selects per-engine parameters. Zero fields take engine defaults.
type Config struct {
	MSS  MSSConfig  `json:"mss" yaml:"mss"`
	Gold GoldConfig `json:"gold" yaml:"gold"`
}

// New builds a fresh evaluator. Every simulation run needs its own instance.
func New(engine, symbol string, cfg Config) (Evaluator, error) {
	switch strings.ToLower(engine) {
	case EngineMSS:
		e, err := NewMSSEngine(symbol, cfg.MSS)
		if err != nil {
			return nil, err
		}
		return e, nil
	case EngineGold:
		e, err := NewGoldEngine(symbol, cfg.Gold)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, errs.NewConfigurationError("signals", "unknown signal engine %q", engine)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func tail(bars []types.OHLCV, n int) []types.OHLCV {
	if len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}
