package config

import (
	"strings"
	"time"

	"github.com/ducminhle1904/strategy-lab/internal/backtest"
	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/internal/strategy"
	"github.com/ducminhle1904/strategy-lab/pkg/data"
	"github.com/ducminhle1904/strategy-lab/pkg/optimization"
	"github.com/ducminhle1904/strategy-lab/pkg/reporting"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
	"github.com/ducminhle1904/strategy-lab/pkg/validation"
)

// Job is one run described by a job file.
type Job struct {
	Kind        JobKind                       `json:"kind" yaml:"kind"`
	Name        string                        `json:"name" yaml:"name"`
	Data        DataConfig                    `json:"data" yaml:"data"`
	Strategy    strategy.Definition           `json:"strategy" yaml:"strategy"`
	Simulation  backtest.SimulationConfig     `json:"simulation" yaml:"simulation"`
	WalkForward *validation.WalkForwardConfig `json:"walk_forward,omitempty" yaml:"walk_forward,omitempty"`
	Optimize    *OptimizeConfig               `json:"optimize,omitempty" yaml:"optimize,omitempty"`
	Reporting   reporting.ReportingConfig     `json:"reporting" yaml:"reporting"`
}

// DataConfig points at the bar series. File wins; otherwise the file is located
// from Root, Exchange, Symbol and Interval.
type DataConfig struct {
	File     string `json:"file,omitempty" yaml:"file,omitempty"`
	Root     string `json:"root,omitempty" yaml:"root,omitempty"`
	Exchange string `json:"exchange,omitempty" yaml:"exchange,omitempty"`
	Symbol   string `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Interval string `json:"interval,omitempty" yaml:"interval,omitempty"`
	// Format is "default" or "metatrader".
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	Start    string `json:"start,omitempty" yaml:"start,omitempty"`
	End      string `json:"end,omitempty" yaml:"end,omitempty"`
	Trailing string `json:"trailing,omitempty" yaml:"trailing,omitempty"`

	// Predictions is an optional "timestamp,value" CSV aligned to the bars.
	Predictions string `json:"predictions,omitempty" yaml:"predictions,omitempty"`
}

// OptimizeConfig is the search part of an optimize job. The strategy section is the template.
type OptimizeConfig struct {
	Method    optimization.Method            `json:"method" yaml:"method"`
	Objective string                         `json:"objective" yaml:"objective"`
	NTrials   int                            `json:"n_trials" yaml:"n_trials"`
	Ranges    []optimization.ParamRange      `json:"ranges" yaml:"ranges"`
	Filter    *optimization.SecondaryFilter  `json:"filter,omitempty" yaml:"filter,omitempty"`
	Seed      int64                          `json:"seed" yaml:"seed"`
	Workers   int                            `json:"workers" yaml:"workers"`
	Config    optimization.OptimizationConfig `json:"config" yaml:"config"`
	// ScoreWalkForward scores every trial on the walk-forward section instead of one backtest.
	ScoreWalkForward bool `json:"score_walk_forward" yaml:"score_walk_forward"`
}

// NewDefaultJob returns a job of kind with every section at its defaults.
// Loaders decode files on top of it, so omitted fields keep these values.
func NewDefaultJob(kind JobKind) *Job {
	wf := validation.DefaultWalkForwardConfig()
	return &Job{
		Kind:        kind,
		Data:        DataConfig{Root: DefaultDataRoot, Format: "default"},
		Simulation:  backtest.DefaultSimulationConfig(),
		WalkForward: &wf,
		Optimize: &OptimizeConfig{
			Method:    DefaultMethod,
			Objective: DefaultMetric,
			NTrials:   DefaultNTrials,
			Seed:      1,
			Config:    optimization.GetDefaultOptimizationConfig(),
		},
		Reporting: reporting.DefaultReportingConfig(),
	}
}

// Symbol is the data symbol, falling back to the strategy symbol.
func (j *Job) Symbol() string {
	if j.Data.Symbol != "" {
		return j.Data.Symbol
	}
	return j.Strategy.Symbol
}

// Interval is the configured interval or the one found in the data path.
func (j *Job) Interval() string {
	if j.Data.Interval != "" {
		return j.Data.Interval
	}
	return reporting.ExtractIntervalFromPath(j.Data.File)
}

// CSVFormat maps Data.Format to a column layout.
func (d DataConfig) CSVFormat() (data.CSVColumnMapping, error) {
	switch strings.ToLower(d.Format) {
	case "", "default":
		return data.DefaultCSVFormat, nil
	case "metatrader", "mt":
		return data.MetaTraderCSVFormat, nil
	}
	return data.CSVColumnMapping{}, errs.NewConfigurationError("config", "unknown data format %q", d.Format)
}

// Selection parses the date bounds. Dates are RFC3339 or YYYY-MM-DD (UTC).
func (d DataConfig) Selection() (data.Selection, error) {
	sel := data.Selection{Trailing: d.Trailing}
	var err error
	if sel.Start, err = parseDate(d.Start); err != nil {
		return sel, errs.NewConfigurationError("config", "data.start: %v", err)
	}
	if sel.End, err = parseDate(d.End); err != nil {
		return sel, errs.NewConfigurationError("config", "data.end: %v", err)
	}
	if !sel.Start.IsZero() && !sel.End.IsZero() && sel.End.Before(sel.Start) {
		return sel, errs.NewConfigurationError("config", "data.end %s is before data.start %s", d.End, d.Start)
	}
	return sel, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}

// Request builds the optimization request of an optimize job.
func (j *Job) Request(bars []types.OHLCV, predictions []float64) optimization.Request {
	opt := j.Optimize
	if opt == nil {
		opt = NewDefaultJob(JobOptimize).Optimize
	}
	req := optimization.Request{
		Template:    j.Strategy,
		Ranges:      opt.Ranges,
		Objective:   opt.Objective,
		NTrials:     opt.NTrials,
		Method:      opt.Method,
		Simulation:  j.Simulation,
		Filter:      opt.Filter,
		Seed:        opt.Seed,
		Workers:     opt.Workers,
		Config:      opt.Config,
		Bars:        bars,
		Predictions: predictions,
	}
	if opt.ScoreWalkForward {
		wf := validation.DefaultWalkForwardConfig()
		if j.WalkForward != nil {
			wf = *j.WalkForward
		}
		req.WalkForward = &wf
	}
	return req
}
