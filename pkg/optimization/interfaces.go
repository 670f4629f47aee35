// Package optimization searches strategy parameter spaces with genetic, bayesian,
// hybrid or random proposers, scoring each trial by simulation.
package optimization

import (
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/ducminhle1904/strategy-lab/internal/backtest"
	"github.com/ducminhle1904/strategy-lab/internal/strategy"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
	"github.com/ducminhle1904/strategy-lab/pkg/validation"
)

// Method selects the proposer.
type Method string

const (
	MethodBayesian Method = "bayesian"
	MethodGenetic  Method = "genetic"
	MethodHybrid   Method = "hybrid"
	MethodRandom   Method = "random"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

const (
	MaxTrials = 10000

	// FailedTrialScore is recorded for trials that errored during scoring.
	FailedTrialScore = -math.MaxFloat64

	ObjectiveConsistency = "consistency_score"
)

// SecondaryFilter marks trials infeasible unless Metric Op Threshold holds.
type SecondaryFilter struct {
	Metric    string  `json:"metric" yaml:"metric"`
	Op        string  `json:"op" yaml:"op"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// OptimizationConfig tunes the proposers. Zero values take defaults.
type OptimizationConfig struct {
	PopulationSize int     `json:"population_size" yaml:"population_size"`
	MutationRate   float64 `json:"mutation_rate" yaml:"mutation_rate"`
	CrossoverRate  float64 `json:"crossover_rate" yaml:"crossover_rate"`
	EliteSize      int     `json:"elite_size" yaml:"elite_size"`
	TournamentSize int     `json:"tournament_size" yaml:"tournament_size"`
	InitialRandom  int     `json:"initial_random" yaml:"initial_random"`
	HybridSwitch   int     `json:"hybrid_switch" yaml:"hybrid_switch"`
	Candidates     int     `json:"candidates" yaml:"candidates"`
}

// GetDefaultOptimizationConfig returns the default optimization configuration
func GetDefaultOptimizationConfig() OptimizationConfig {
	return OptimizationConfig{
		PopulationSize: 10,
		MutationRate:   0.2,
		CrossoverRate:  0.85,
		EliteSize:      2,
		TournamentSize: 3,
		InitialRandom:  8,
		HybridSwitch:   30,
		Candidates:     256,
	}
}

func (c OptimizationConfig) withDefaults() OptimizationConfig {
	d := GetDefaultOptimizationConfig()
	if c.PopulationSize <= 0 {
		c.PopulationSize = d.PopulationSize
	}
	if c.MutationRate <= 0 {
		c.MutationRate = d.MutationRate
	}
	if c.CrossoverRate <= 0 {
		c.CrossoverRate = d.CrossoverRate
	}
	if c.EliteSize <= 0 {
		c.EliteSize = d.EliteSize
	}
	if c.EliteSize > c.PopulationSize {
		c.EliteSize = c.PopulationSize
	}
	if c.TournamentSize <= 0 {
		c.TournamentSize = d.TournamentSize
	}
	if c.InitialRandom <= 0 {
		c.InitialRandom = d.InitialRandom
	}
	if c.HybridSwitch <= 0 {
		c.HybridSwitch = d.HybridSwitch
	}
	if c.Candidates <= 0 {
		c.Candidates = d.Candidates
	}
	return c
}

// Request describes one optimization run. Bars and Predictions are supplied in
// full before the run and never modified.
type Request struct {
	Template    strategy.Definition           `json:"template" yaml:"template"`
	Ranges      []ParamRange                  `json:"ranges" yaml:"ranges"`
	Objective   string                        `json:"objective" yaml:"objective"`
	NTrials     int                           `json:"n_trials" yaml:"n_trials"`
	Method      Method                        `json:"method" yaml:"method"`
	Simulation  backtest.SimulationConfig     `json:"simulation" yaml:"simulation"`
	WalkForward *validation.WalkForwardConfig `json:"walk_forward,omitempty" yaml:"walk_forward,omitempty"`
	Filter      *SecondaryFilter              `json:"filter,omitempty" yaml:"filter,omitempty"`
	Seed        int64                         `json:"seed" yaml:"seed"`
	Workers     int                           `json:"workers" yaml:"workers"`
	Config      OptimizationConfig            `json:"config" yaml:"config"`

	Bars        []types.OHLCV `json:"-" yaml:"-"`
	Predictions []float64     `json:"-" yaml:"-"`
}

// Trial is one scored parameter assignment. Numbers start at 1 in submission order.
type Trial struct {
	Number   int            `json:"number"`
	Params   Assignment     `json:"params"`
	Score    float64        `json:"score"`
	Stats    backtest.Stats `json:"stats"`
	Feasible bool           `json:"feasible"`
	Failed   bool           `json:"failed"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// eligible reports whether the trial can be best.
func (t Trial) eligible() bool {
	return t.Feasible && !t.Failed
}

// better orders trials for selection: eligible first, then by score, then earlier number.
func better(a, b Trial) bool {
	if a.eligible() != b.eligible() {
		return a.eligible()
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Number < b.Number
}

// Result is the outcome of a run.
type Result struct {
	RunID           uuid.UUID          `json:"run_id"`
	Status          Status             `json:"status"`
	Method          Method             `json:"method"`
	Objective       string             `json:"objective"`
	BestParams      Assignment         `json:"best_params"`
	BestScore       float64            `json:"best_score"`
	BestTrial       *Trial             `json:"best_trial,omitempty"`
	Trials          []Trial            `json:"trials"`
	ParamImportance map[string]float64 `json:"param_importance"`
	Elapsed         time.Duration      `json:"elapsed"`
}

// StatusSnapshot is what pollers see while a run is in progress.
type StatusSnapshot struct {
	RunID          uuid.UUID     `json:"run_id"`
	Status         Status        `json:"status"`
	Progress       float64       `json:"progress"`
	CurrentTrial   int           `json:"current_trial"`
	HasBest        bool          `json:"has_best"`
	BestScoreSoFar float64       `json:"best_score_so_far"`
	Elapsed        time.Duration `json:"elapsed"`
	Remaining      time.Duration `json:"remaining"`
}

// proposer suggests the next batch of assignments from the trial history. It
// returns at most n assignments and draws randomness only from its own source.
type proposer interface {
	propose(history []Trial, n int) []Assignment
}

func newProposer(method Method, sp space, cfg OptimizationConfig, rng *rand.Rand) proposer {
	switch method {
	case MethodGenetic:
		return newGeneticProposer(sp, cfg, rng)
	case MethodBayesian:
		return newBayesianProposer(sp, cfg, rng)
	case MethodHybrid:
		return &hybridProposer{
			genetic:  newGeneticProposer(sp, cfg, rng),
			bayesian: newBayesianProposer(sp, cfg, rng),
			switchAt: cfg.HybridSwitch,
		}
	}
	return &randomProposer{space: sp, batch: cfg.PopulationSize, rng: rng}
}
