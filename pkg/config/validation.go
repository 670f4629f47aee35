package config

import (
	"github.com/rs/zerolog"

	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/pkg/optimization"
)

// JobValidator checks a job before any data is loaded.
type JobValidator struct{}

// NewJobValidator creates a new job validator
func NewJobValidator() *JobValidator {
	return &JobValidator{}
}

// Validate reports the first configuration error of the job.
func (v *JobValidator) Validate(job *Job) error {
	if job == nil {
		return errs.NewConfigurationError("config", "nil job")
	}
	switch job.Kind {
	case JobBacktest, JobWalkForward, JobOptimize:
	default:
		return errs.NewConfigurationError("config", "unknown job kind %q", job.Kind)
	}

	if err := v.validateData(job.Data); err != nil {
		return err
	}
	if err := v.validateSimulation(job); err != nil {
		return err
	}
	if err := job.Strategy.Validate(); err != nil {
		return err
	}

	switch job.Kind {
	case JobWalkForward:
		if job.WalkForward == nil {
			return errs.NewConfigurationError("config", "walk_forward section is required")
		}
		return job.WalkForward.Validate()
	case JobOptimize:
		if job.Optimize == nil {
			return errs.NewConfigurationError("config", "optimize section is required")
		}
		// no bars yet: the engine checks everything else
		return optimization.NewEngine(job.Request(nil, nil), zerolog.Nop()).Validate()
	}
	return nil
}

func (v *JobValidator) validateData(d DataConfig) error {
	if d.File == "" && (d.Symbol == "" || d.Interval == "") {
		return errs.NewConfigurationError("config", "data.file or data.symbol and data.interval are required")
	}
	if _, err := d.CSVFormat(); err != nil {
		return err
	}
	_, err := d.Selection()
	return err
}

func (v *JobValidator) validateSimulation(job *Job) error {
	s := job.Simulation
	if s.InitialBalance <= 0 {
		return errs.NewConfigurationError("config", "initial balance must be positive, got: %.2f", s.InitialBalance)
	}
	if s.SpreadPoints < 0 {
		return errs.NewConfigurationError("config", "spread must not be negative, got: %v", s.SpreadPoints)
	}
	if s.CommissionPerLot < 0 {
		return errs.NewConfigurationError("config", "commission must not be negative, got: %v", s.CommissionPerLot)
	}
	if s.PointValue < 0 || s.PointSize < 0 {
		return errs.NewConfigurationError("config", "point value and size must not be negative")
	}
	return nil
}
