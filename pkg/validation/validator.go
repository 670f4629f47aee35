package validation

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/ducminhle1904/strategy-lab/internal/backtest"
	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/internal/monitoring"
	"github.com/ducminhle1904/strategy-lab/internal/strategy"
	"github.com/ducminhle1904/strategy-lab/pkg/data"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

// Validator runs walk-forward validation of one strategy definition.
type Validator struct {
	sim backtest.SimulationConfig
	cfg WalkForwardConfig
	log zerolog.Logger
}

// NewValidator creates a new walk-forward validator
func NewValidator(sim backtest.SimulationConfig, cfg WalkForwardConfig, log zerolog.Logger) *Validator {
	return &Validator{
		sim: sim,
		cfg: cfg,
		log: log.With().Str("component", "walkforward").Logger(),
	}
}

// RunWalkForward validates def over bars with a throwaway Validator.
func RunWalkForward(ctx context.Context, def strategy.Definition, bars []types.OHLCV, predictions []float64,
	sim backtest.SimulationConfig, cfg WalkForwardConfig) (*WalkForwardSummary, error) {
	return NewValidator(sim, cfg, zerolog.Nop()).Run(ctx, def, bars, predictions)
}

// Run partitions bars, simulates every fold on train and test windows and
// aggregates the out-of-sample results. Configuration problems are reported before
// any fold runs. Cancellation stops new folds from starting and returns a
// cancellation error.
func (v *Validator) Run(ctx context.Context, def strategy.Definition, bars []types.OHLCV, predictions []float64) (*WalkForwardSummary, error) {
	if err := data.ValidateSeries(bars); err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if predictions != nil && len(predictions) != len(bars) {
		return nil, errs.NewConfigurationError("walkforward", "predictions must align with bars: %d != %d", len(predictions), len(bars))
	}
	windows, err := Partition(len(bars), v.cfg)
	if err != nil {
		return nil, err
	}

	workers := v.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	jobs := make([]backtest.Job[Fold], len(windows))
	for k, w := range windows {
		w := w
		jobs[k] = backtest.Job[Fold]{ID: k, Run: func(context.Context) (Fold, error) {
			return v.runFold(def, bars, predictions, w)
		}}
	}

	results, err := backtest.RunJobs(ctx, workers, jobs)
	if err != nil {
		return nil, errs.NewCancelled("walkforward", err)
	}

	folds := make([]Fold, len(results))
	for k, r := range results {
		if r.Err != nil {
			return nil, r.Err
		}
		folds[k] = r.Value
	}

	summary := v.summarize(folds)
	v.log.Info().
		Int("folds", len(folds)).
		Str("mode", string(v.cfg.Mode)).
		Float64("oos_net_profit", summary.Aggregate.NetProfit).
		Float64("consistency", summary.ConsistencyScore).
		Str("overfitting_risk", summary.OverfittingRisk).
		Msg("walk-forward finished")
	return summary, nil
}

func (v *Validator) runFold(def strategy.Definition, bars []types.OHLCV, predictions []float64, w Window) (Fold, error) {
	train, err := v.simulate(def, bars, predictions, w.Train.Start, w.Train.End, 0)
	if err != nil {
		return Fold{}, err
	}

	from := w.Test.Start
	if v.cfg.WarmupContext {
		from = w.Train.Start
	}
	test, err := v.simulate(def, bars, predictions, from, w.Test.End, w.Test.Start-from)
	if err != nil {
		return Fold{}, err
	}

	trades := make([]backtest.Trade, len(test.Trades))
	for k, t := range test.Trades {
		t.EntryBar += from
		t.ExitBar += from
		trades[k] = t
	}

	fold := Fold{
		Index:      w.Index,
		TrainRange: w.Train,
		TestRange:  w.Test,
		TrainStart: bars[w.Train.Start].Timestamp,
		TestStart:  bars[w.Test.Start].Timestamp,
		TestEnd:    bars[w.Test.End-1].Timestamp,
		TrainStats: backtest.ComputeStats(train),
		TestStats:  backtest.ComputeStats(test),
		TestTrades: trades,
		TestEquity: test.EquityCurve,
	}

	monitoring.RecordFold(string(v.cfg.Mode))
	v.log.Debug().
		Int("fold", w.Index+1).
		Time("test_start", fold.TestStart).
		Time("test_end", fold.TestEnd).
		Float64("train_return", fold.TrainStats.TotalReturnPct).
		Float64("test_return", fold.TestStats.TotalReturnPct).
		Int("test_trades", fold.TestStats.TotalTrades).
		Msg("fold evaluated")
	return fold, nil
}

// simulate runs bars[from:to] with trading allowed from tradeFrom (relative to from).
func (v *Validator) simulate(def strategy.Definition, bars []types.OHLCV, predictions []float64, from, to, tradeFrom int) (*backtest.SimulationResult, error) {
	window := bars[from:to:to]
	var preds []float64
	if predictions != nil {
		preds = predictions[from:to:to]
	}
	runner, err := strategy.Compile(def, window, preds)
	if err != nil {
		return nil, err
	}
	cfg := v.sim
	cfg.TradeFrom = tradeFrom
	return backtest.NewBacktestEngine(cfg, v.log).Run(window, runner)
}

// summarize chains fold test equity, offsetting each fold by the out-of-sample
// P&L of the folds before it, and recomputes stats over the concatenation.
func (v *Validator) summarize(folds []Fold) *WalkForwardSummary {
	initial := v.sim.InitialBalance
	if initial == 0 {
		initial = backtest.DefaultSimulationConfig().InitialBalance
	}

	var (
		equity []float64
		trades []backtest.Trade
		offset float64
	)
	for _, f := range folds {
		for _, e := range f.TestEquity {
			equity = append(equity, e+offset)
		}
		for _, t := range f.TestTrades {
			t.ID = len(trades) + 1
			trades = append(trades, t)
		}
		if n := len(f.TestEquity); n > 0 {
			offset += f.TestEquity[n-1] - initial
		}
	}

	s := &WalkForwardSummary{
		Config: v.cfg,
		Folds:  folds,
		Aggregate: backtest.ComputeStats(&backtest.SimulationResult{
			Trades:         trades,
			EquityCurve:    equity,
			InitialBalance: initial,
		}),
		ConsistencyScore: ConsistencyScore(folds),
		Equity:           equity,
		Trades:           trades,
	}

	trainReturns := make([]float64, len(folds))
	testReturns := make([]float64, len(folds))
	for k, f := range folds {
		trainReturns[k] = f.TrainStats.TotalReturnPct
		testReturns[k] = f.TestStats.TotalReturnPct
	}
	s.AverageTrainReturn = average(trainReturns)
	s.AverageTestReturn = average(testReturns)
	s.ReturnDegradation = (s.AverageTrainReturn - s.AverageTestReturn) / math.Max(0.01, math.Abs(s.AverageTrainReturn)) * 100
	switch {
	case s.ReturnDegradation > 30:
		s.OverfittingRisk = "HIGH"
	case s.ReturnDegradation > 15:
		s.OverfittingRisk = "MODERATE"
	default:
		s.OverfittingRisk = "LOW"
	}
	return s
}
