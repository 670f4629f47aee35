package strategy

import (
	"math"
	"strings"

	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/internal/indicators"
	"github.com/ducminhle1904/strategy-lab/internal/signals"
	"github.com/ducminhle1904/strategy-lab/pkg/data"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

// Position is a read-only copy of one open position handed to strategies.
type Position struct {
	Direction  types.Direction
	EntryBar   int
	EntryPrice float64
	Size       float64
	StopLoss   float64
	TakeProfit float64
}

// Portfolio is the account snapshot a strategy sees on a bar.
type Portfolio struct {
	Balance   float64
	Equity    float64
	Positions []Position
}

// Decision is what a strategy wants after bar i closes.
type Decision struct {
	Entry     types.Direction
	Signal    *types.Signal
	ExitLong  bool
	ExitShort bool
	Reason    string
}

// Runner is the per-run, per-bar strategy the simulator drives. Runners are bound
// to one bar series and are not safe for concurrent use.
type Runner interface {
	// Warmup is the number of bars needed before the first entry decision.
	Warmup() int
	Decide(i int, portfolio Portfolio) (Decision, error)
	Risk() RiskConfig
	// ATR returns the risk ATR at bar i, NaN during warm-up.
	ATR(i int) float64
}

// RuleRunner evaluates a compiled Definition.
type RuleRunner struct {
	def         Definition
	bars        []types.OHLCV
	predictions []float64
	cache       *indicators.Cache
	atr         []float64
	entries     map[types.Direction]ruleSet
	exits       map[types.Direction]ruleSet
	allowed     []types.Direction
	warmup      int

	evaluator signals.Evaluator
	daily     []types.OHLCV
	dayOf     []int
}

// Compile validates def, computes the indicator cache over bars and binds the rules.
// predictions may be nil unless the definition has an ML filter.
func Compile(def Definition, bars []types.OHLCV, predictions []float64) (*RuleRunner, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	def = def.WithDefaults()

	if def.MLFilter != nil && len(predictions) != len(bars) {
		return nil, errs.NewConfigurationError("strategy", "ml_filter needs %d predictions aligned to bars, got %d", len(bars), len(predictions))
	}

	specs := make([]indicators.Spec, len(def.Indicators))
	for i, ind := range def.Indicators {
		specs[i] = ind.spec()
	}
	cache, err := indicators.Build(bars, specs)
	if err != nil {
		return nil, errs.NewConfigurationError("strategy", "%v", err)
	}

	r := &RuleRunner{
		def:         def,
		bars:        bars,
		predictions: predictions,
		cache:       cache,
		atr:         indicators.ATRSeries(bars, def.Risk.ATRPeriod),
		entries:     make(map[types.Direction]ruleSet),
		exits:       make(map[types.Direction]ruleSet),
		warmup:      cache.Warmup(),
	}
	r.allowed, _ = def.allowedDirections()

	b := newBinder(bars, cache)
	for _, dir := range []types.Direction{types.Long, types.Short} {
		d := dir
		if r.entries[d], err = b.compileRules(def.EntryRules, func(rule Rule) bool {
			parsed, _ := types.ParseDirection(rule.Direction)
			return parsed == d
		}); err != nil {
			return nil, errs.NewConfigurationError("strategy", "%v", err)
		}
		if r.exits[d], err = b.compileRules(def.ExitRules, func(rule Rule) bool {
			parsed, _ := types.ParseDirection(rule.Direction)
			return parsed == d || parsed == types.Flat
		}); err != nil {
			return nil, errs.NewConfigurationError("strategy", "%v", err)
		}
	}

	if usesATR(def.Risk) || def.Filters.MinATR > 0 || def.Filters.MaxATR > 0 {
		if def.Risk.ATRPeriod > r.warmup {
			r.warmup = def.Risk.ATRPeriod
		}
	}

	if g := def.SignalGate; g != nil {
		ev, err := signals.New(g.Engine, def.Symbol, g.Config)
		if err != nil {
			return nil, err
		}
		r.evaluator = ev
		r.daily, r.dayOf = data.ResampleDailyIndex(bars)
		if ev.MinBars() > r.warmup {
			r.warmup = ev.MinBars()
		}
	}
	return r, nil
}

func usesATR(r RiskConfig) bool {
	return r.StopLoss.Mode == LevelATR || r.TakeProfit.Mode == LevelATR
}

func (r *RuleRunner) Warmup() int      { return r.warmup }
func (r *RuleRunner) Risk() RiskConfig { return r.def.Risk }

func (r *RuleRunner) ATR(i int) float64 {
	if i < 0 || i >= len(r.atr) {
		return math.NaN()
	}
	return r.atr[i]
}

// Evaluator exposes the bound signal evaluator, nil without a gate.
func (r *RuleRunner) Evaluator() signals.Evaluator {
	return r.evaluator
}

func (r *RuleRunner) Decide(i int, _ Portfolio) (Decision, error) {
	var dec Decision

	var reversal types.Direction
	if r.evaluator != nil && i+1 >= r.evaluator.MinBars() {
		start := i + 1 - r.evaluator.MinBars()
		window := r.bars[start : i+1]
		// complete days only: the bar's own day is excluded
		daily := r.daily[:r.dayOf[i]]
		dec.Signal = r.evaluator.OnBar(window, daily, r.def.SignalGate.ADR10Override)
		if r.def.SignalGate.ExitOnReversal {
			reversal = r.evaluator.ReversalDirection(window)
		}
	}

	dec.ExitLong = r.exits[types.Long].eval(i) || reversal == types.Short
	dec.ExitShort = r.exits[types.Short].eval(i) || reversal == types.Long

	if i+1 < r.warmup {
		return dec, nil
	}

	dir, reason := r.entryDirection(i, dec.Signal)
	if dir == types.Flat || !r.passesFilters(i, dir) {
		return dec, nil
	}
	dec.Entry = dir
	dec.Reason = reason
	return dec, nil
}

func (r *RuleRunner) entryDirection(i int, sig *types.Signal) (types.Direction, string) {
	var ruleDir types.Direction
	fired := 0
	for _, d := range r.allowed {
		if rs := r.entries[d]; !rs.empty() && rs.eval(i) {
			ruleDir = d
			fired++
		}
	}
	if fired > 1 {
		// long and short rules agreeing on the same bar cancel out
		ruleDir = types.Flat
	}

	g := r.def.SignalGate
	if g == nil {
		return ruleDir, "entry rules"
	}
	if sig == nil || sig.Confidence < g.MinConfidence || !r.isAllowed(sig.Direction) {
		return types.Flat, ""
	}
	if g.Mode == GateOnly {
		return sig.Direction, sig.Reason
	}
	if ruleDir == sig.Direction {
		return ruleDir, "entry rules confirmed: " + sig.Reason
	}
	return types.Flat, ""
}

func (r *RuleRunner) isAllowed(d types.Direction) bool {
	for _, a := range r.allowed {
		if a == d {
			return true
		}
	}
	return false
}

func (r *RuleRunner) passesFilters(i int, dir types.Direction) bool {
	f := r.def.Filters
	ts := r.bars[i].Timestamp.UTC()

	if f.SessionStartHour != f.SessionEndHour {
		h := ts.Hour()
		if f.SessionStartHour < f.SessionEndHour {
			if h < f.SessionStartHour || h >= f.SessionEndHour {
				return false
			}
		} else if h < f.SessionStartHour && h >= f.SessionEndHour {
			return false
		}
	}

	if len(f.Weekdays) > 0 {
		ok := false
		for _, wd := range f.Weekdays {
			if int(ts.Weekday()) == wd {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}

	if f.MinATR > 0 || f.MaxATR > 0 {
		atr := r.ATR(i)
		if math.IsNaN(atr) || (f.MinATR > 0 && atr < f.MinATR) || (f.MaxATR > 0 && atr > f.MaxATR) {
			return false
		}
	}

	if m := r.def.MLFilter; m != nil {
		p := r.predictions[i]
		if math.IsNaN(p) {
			return false
		}
		if dir == types.Long && p < m.Threshold {
			return false
		}
		if dir == types.Short && p > 1-m.Threshold {
			return false
		}
	}
	return true
}

// Name returns the trimmed definition name.
func (r *RuleRunner) Name() string {
	return strings.TrimSpace(r.def.Name)
}
