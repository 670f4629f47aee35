package optimization

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ducminhle1904/strategy-lab/internal/backtest"
	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/internal/strategy"
	"github.com/ducminhle1904/strategy-lab/pkg/validation"
)

// metricSource reads objective values from a scored run.
type metricSource interface {
	Metric(name string) (float64, bool)
}

func knownMetric(name string, walkForward bool) bool {
	if strings.EqualFold(name, ObjectiveConsistency) {
		return walkForward
	}
	_, ok := backtest.Stats{}.Metric(name)
	return ok
}

// objectiveValue reads name from src, negating drawdowns so higher is always better.
func objectiveValue(src metricSource, name string) (float64, error) {
	v, ok := src.Metric(strings.ToLower(name))
	if !ok {
		return 0, fmt.Errorf("unknown metric %q", name)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("metric %q is not finite", name)
	}
	if backtest.IsDrawdownMetric(name) {
		v = -v
	}
	return v, nil
}

func (f *SecondaryFilter) validate(walkForward bool) error {
	if !knownMetric(f.Metric, walkForward) {
		return errs.NewConfigurationError("optimization", "unknown filter metric %q", f.Metric)
	}
	if f.Op != ">=" && f.Op != "<=" {
		return errs.NewConfigurationError("optimization", "filter op must be >= or <=, got %q", f.Op)
	}
	return nil
}

// passes compares the raw metric, without drawdown negation.
func (f *SecondaryFilter) passes(src metricSource) bool {
	v, ok := src.Metric(strings.ToLower(f.Metric))
	if !ok || math.IsNaN(v) {
		return false
	}
	if f.Op == "<=" {
		return v <= f.Threshold
	}
	return v >= f.Threshold
}

// evaluator scores assignments. It is safe for concurrent use: every call builds
// its own definition, runner and simulation state.
type evaluator struct {
	req Request
	log zerolog.Logger
}

// evaluate scores one assignment. Any error or panic becomes a trial failure.
func (e *evaluator) evaluate(number int, params Assignment) (t Trial, err error) {
	t = Trial{Number: number, Params: params}
	defer func() {
		if r := recover(); r != nil {
			err = errs.NewTrialFailure(number, fmt.Errorf("panic: %v", r))
		}
	}()

	def, err := strategy.ApplyParams(e.req.Template, params)
	if err != nil {
		return t, errs.NewTrialFailure(number, err)
	}

	var src metricSource
	if e.req.WalkForward != nil {
		wf := *e.req.WalkForward
		wf.Workers = 1
		summary, err := validation.NewValidator(e.req.Simulation, wf, e.log).
			Run(context.Background(), def, e.req.Bars, e.req.Predictions)
		if err != nil {
			return t, errs.NewTrialFailure(number, err)
		}
		t.Stats = summary.Aggregate
		src = summary
	} else {
		stats, _, _, err := backtest.RunBacktest(def, e.req.Bars, e.req.Predictions, e.req.Simulation)
		if err != nil {
			return t, errs.NewTrialFailure(number, err)
		}
		t.Stats = stats
		src = stats
	}

	score, err := objectiveValue(src, e.req.Objective)
	if err != nil {
		return t, errs.NewTrialFailure(number, err)
	}
	t.Score = score
	t.Feasible = e.req.Filter == nil || e.req.Filter.passes(src)
	return t, nil
}
