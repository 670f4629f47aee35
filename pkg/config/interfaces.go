// Package config loads and validates job files: one backtest, walk-forward or
// optimization run over a bar series, in JSON or YAML.
package config

// JobKind selects what a job runs.
type JobKind string

const (
	JobBacktest    JobKind = "backtest"
	JobWalkForward JobKind = "walk_forward"
	JobOptimize    JobKind = "optimize"
)

// JobLoader reads and writes job files.
type JobLoader interface {
	Load(path string) (*Job, error)
	Save(job *Job, path string) error
}

// Validator interface for job validation
type Validator interface {
	Validate(job *Job) error
}

const (
	DefaultDataRoot = "data"
	DefaultNTrials  = 50
	DefaultMethod   = "hybrid"
	DefaultMetric   = "net_profit"

	ResultsDir     = "results"
	BestConfigFile = "best.json"
)
