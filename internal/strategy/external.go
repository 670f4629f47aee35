package strategy

import (
	"fmt"
	"math"
	"time"

	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/internal/indicators"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

// TradeAction is what an external strategy asks for.
type TradeAction int

const (
	ActionHold TradeAction = iota
	ActionOpen
	ActionClose
)

func (ta TradeAction) String() string {
	switch ta {
	case ActionHold:
		return "HOLD"
	case ActionOpen:
		return "OPEN"
	case ActionClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// Intent is one request from an external strategy. Close with a Flat direction closes every side.
type Intent struct {
	Action    TradeAction
	Direction types.Direction
	Reason    string
}

// BarView is a read-only window over the bars up to and including the current one.
type BarView struct {
	bars []types.OHLCV
}

func (v BarView) Len() int { return len(v.bars) }

// At returns bar i counted from the oldest visible bar.
func (v BarView) At(i int) types.OHLCV { return v.bars[i] }

// Last returns the current bar.
func (v BarView) Last() types.OHLCV { return v.bars[len(v.bars)-1] }

// Closes copies the last n closes, oldest first.
func (v BarView) Closes(n int) []float64 {
	if n > len(v.bars) {
		n = len(v.bars)
	}
	out := make([]float64, n)
	for i, b := range v.bars[len(v.bars)-n:] {
		out[i] = b.Close
	}
	return out
}

// DecisionContext is everything an external strategy may read on a bar.
type DecisionContext struct {
	Index      int
	Bars       BarView
	Portfolio  Portfolio
	Prediction float64
}

// Decider is user-supplied strategy code. It only ever sees copies of simulator state.
type Decider interface {
	Decide(ctx DecisionContext) ([]Intent, error)
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx DecisionContext) ([]Intent, error)

func (f DeciderFunc) Decide(ctx DecisionContext) ([]Intent, error) { return f(ctx) }

// Sandbox calls a Decider with panic recovery and a cumulative wall-clock budget.
type Sandbox struct {
	decider Decider
	budget  time.Duration
	used    time.Duration
	calls   int
}

// NewSandbox wraps decider. A zero budget means unlimited.
func NewSandbox(decider Decider, budget time.Duration) *Sandbox {
	return &Sandbox{decider: decider, budget: budget}
}

// Call runs the decider once. Panics and budget overruns come back as strategy errors.
func (s *Sandbox) Call(ctx DecisionContext) (intents []Intent, err error) {
	start := time.Now()
	defer func() {
		s.used += time.Since(start)
		s.calls++
		if rec := recover(); rec != nil {
			intents = nil
			err = errs.NewStrategyError("decide", fmt.Sprintf("panic at bar %d: %v", ctx.Index, rec), nil)
			return
		}
		if err == nil && s.budget > 0 && s.used > s.budget {
			intents = nil
			err = errs.NewStrategyError("decide", fmt.Sprintf("time budget %s exceeded after %d calls", s.budget, s.calls), nil)
		}
	}()

	intents, err = s.decider.Decide(ctx)
	if err != nil {
		return nil, errs.NewStrategyError("decide", fmt.Sprintf("bar %d", ctx.Index), err)
	}
	return intents, nil
}

// Used reports the time spent inside the decider so far.
func (s *Sandbox) Used() time.Duration {
	return s.used
}

// ExternalRunner drives a Decider through a Sandbox. Sizing, stops and targets
// still come from the risk config.
type ExternalRunner struct {
	sandbox     *Sandbox
	bars        []types.OHLCV
	predictions []float64
	risk        RiskConfig
	atr         []float64
	warmup      int
}

// NewExternalRunner binds decider to bars. warmup bars are skipped before the first call.
func NewExternalRunner(decider Decider, bars []types.OHLCV, predictions []float64, risk RiskConfig, warmup int, budget time.Duration) (*ExternalRunner, error) {
	if decider == nil {
		return nil, errs.NewConfigurationError("strategy", "external strategy has no decider")
	}
	def := Definition{Risk: risk}.WithDefaults()
	if err := def.Risk.validate(false); err != nil {
		return nil, err
	}
	if warmup < 1 {
		warmup = 1
	}
	return &ExternalRunner{
		sandbox:     NewSandbox(decider, budget),
		bars:        bars,
		predictions: predictions,
		risk:        def.Risk,
		atr:         indicators.ATRSeries(bars, def.Risk.ATRPeriod),
		warmup:      warmup,
	}, nil
}

func (r *ExternalRunner) Warmup() int      { return r.warmup }
func (r *ExternalRunner) Risk() RiskConfig { return r.risk }

func (r *ExternalRunner) ATR(i int) float64 {
	if i < 0 || i >= len(r.atr) {
		return math.NaN()
	}
	return r.atr[i]
}

func (r *ExternalRunner) Decide(i int, portfolio Portfolio) (Decision, error) {
	var dec Decision
	if i+1 < r.warmup {
		return dec, nil
	}

	positions := make([]Position, len(portfolio.Positions))
	copy(positions, portfolio.Positions)
	portfolio.Positions = positions

	pred := math.NaN()
	if i < len(r.predictions) {
		pred = r.predictions[i]
	}

	intents, err := r.sandbox.Call(DecisionContext{
		Index:      i,
		Bars:       BarView{bars: r.bars[:i+1:i+1]},
		Portfolio:  portfolio,
		Prediction: pred,
	})
	if err != nil {
		return dec, err
	}

	for _, in := range intents {
		switch in.Action {
		case ActionOpen:
			if in.Direction != types.Flat && dec.Entry == types.Flat {
				dec.Entry = in.Direction
				dec.Reason = in.Reason
			}
		case ActionClose:
			switch in.Direction {
			case types.Long:
				dec.ExitLong = true
			case types.Short:
				dec.ExitShort = true
			default:
				dec.ExitLong, dec.ExitShort = true, true
			}
		}
	}
	return dec, nil
}
