// Package validation provides walk-forward validation for trading strategies.
//
// TrainPct sizes the out-of-sample region of the whole series: the last
// (100-TrainPct)% of the bars is cut into the fold test windows, which are
// disjoint, gap-free and end at the last bar. Together with the first fold's
// training bars they cover the series exactly once. Earlier bars are training
// history only, so a single fold trains on more than TrainPct of its own bars.
package validation

import (
	"time"

	"github.com/ducminhle1904/strategy-lab/internal/backtest"
)

// Mode selects how training windows move between folds.
type Mode string

const (
	// ModeAnchored grows every training window from the first bar.
	ModeAnchored Mode = "anchored"
	// ModeRolling slides a fixed-length training window.
	ModeRolling Mode = "rolling"
)

const MaxFolds = 100

// WalkForwardConfig holds the configuration for walk-forward validation
type WalkForwardConfig struct {
	NFolds   int     `json:"n_folds" yaml:"n_folds"`
	TrainPct float64 `json:"train_pct" yaml:"train_pct"`
	Mode     Mode    `json:"mode" yaml:"mode"`
	// Workers bounds concurrent folds; 1 runs them in order.
	Workers int `json:"workers" yaml:"workers"`
	// WarmupContext lets test runs warm indicators on the preceding train bars.
	WarmupContext bool `json:"warmup_context" yaml:"warmup_context"`
}

// DefaultWalkForwardConfig returns 5 anchored folds with a 70% train share.
func DefaultWalkForwardConfig() WalkForwardConfig {
	return WalkForwardConfig{NFolds: 5, TrainPct: 70, Mode: ModeAnchored, Workers: 1, WarmupContext: true}
}

// Range is a half-open bar index interval [Start, End).
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r Range) Len() int { return r.End - r.Start }

// Window is the train/test split of one fold.
type Window struct {
	Index int   `json:"index"`
	Train Range `json:"train"`
	Test  Range `json:"test"`
}

// Fold is one evaluated window. Test trade bar indices refer to the full series.
type Fold struct {
	Index      int              `json:"index"`
	TrainRange Range            `json:"train_range"`
	TestRange  Range            `json:"test_range"`
	TrainStart time.Time        `json:"train_start"`
	TestStart  time.Time        `json:"test_start"`
	TestEnd    time.Time        `json:"test_end"`
	TrainStats backtest.Stats   `json:"train_stats"`
	TestStats  backtest.Stats   `json:"test_stats"`
	TestTrades []backtest.Trade `json:"test_trades"`
	TestEquity []float64        `json:"test_equity"`
}

// WalkForwardSummary holds the summary of all walk-forward validation results
type WalkForwardSummary struct {
	Config           WalkForwardConfig `json:"config"`
	Folds            []Fold            `json:"folds"`
	Aggregate        backtest.Stats    `json:"aggregate"`
	ConsistencyScore float64           `json:"consistency_score"`
	Equity           []float64         `json:"equity"`
	Trades           []backtest.Trade  `json:"trades"`

	AverageTrainReturn float64 `json:"average_train_return"`
	AverageTestReturn  float64 `json:"average_test_return"`
	ReturnDegradation  float64 `json:"return_degradation"`
	OverfittingRisk    string  `json:"overfitting_risk"`
}

// Metric reads an objective from the aggregate stats, plus consistency_score.
func (s *WalkForwardSummary) Metric(name string) (float64, bool) {
	if name == "consistency_score" {
		return s.ConsistencyScore, true
	}
	return s.Aggregate.Metric(name)
}
