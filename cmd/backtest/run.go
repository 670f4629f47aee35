package main

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ducminhle1904/strategy-lab/internal/backtest"
	envconfig "github.com/ducminhle1904/strategy-lab/internal/config"
	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/pkg/config"
	"github.com/ducminhle1904/strategy-lab/pkg/data"
	"github.com/ducminhle1904/strategy-lab/pkg/optimization"
	"github.com/ducminhle1904/strategy-lab/pkg/reporting"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
	"github.com/ducminhle1904/strategy-lab/pkg/validation"
)

const progressEvery = 5 * time.Second

type options struct {
	JobPath     string
	OutputDir   string
	ConsoleOnly bool
}

// run executes one job file and reports it. It returns the files written.
func run(ctx context.Context, opts options, env *envconfig.Config, out io.Writer, log zerolog.Logger) ([]string, error) {
	job, err := config.NewJobManager().Load(opts.JobPath)
	if err != nil {
		return nil, err
	}
	log = log.With().Str("job", job.Name).Str("kind", string(job.Kind)).Logger()

	bars, predictions, err := loadSeries(job, env, log)
	if err != nil {
		return nil, err
	}
	log.Info().Int("bars", len(bars)).Str("symbol", job.Symbol()).Str("interval", job.Interval()).Msg("data loaded")

	title := job.Name
	if title == "" {
		title = job.Strategy.Name
	}
	report := &reporting.Report{
		Title:          title,
		Symbol:         job.Symbol(),
		Interval:       job.Interval(),
		InitialBalance: job.Simulation.InitialBalance,
	}

	switch job.Kind {
	case config.JobBacktest:
		stats, trades, equity, err := backtest.RunBacktest(job.Strategy, bars, predictions, job.Simulation)
		if err != nil {
			return nil, err
		}
		report.Stats, report.Trades, report.Equity = &stats, trades, equity

	case config.JobWalkForward:
		wf := validation.DefaultWalkForwardConfig()
		if job.WalkForward != nil {
			wf = *job.WalkForward
		}
		summary, err := validation.NewValidator(job.Simulation, wf, log).Run(ctx, job.Strategy, bars, predictions)
		if err != nil {
			return nil, err
		}
		report.WalkForward, report.Trades, report.Equity = summary, summary.Trades, summary.Equity

	case config.JobOptimize:
		result, err := optimize(ctx, job, bars, predictions, env.Workers, log)
		if err != nil && !(errs.IsCancelled(err) && result != nil) {
			return nil, err
		}
		if result == nil {
			return nil, errs.New(errs.CategoryTrial, "backtest", "optimize", "optimization returned no result")
		}
		if err != nil {
			log.Warn().Int("trials", len(result.Trials)).Msg("optimization cancelled; reporting partial result")
		}
		report.Optimization = result
		if result.BestTrial != nil {
			stats := result.BestTrial.Stats
			report.Stats = &stats
		}

	default:
		return nil, errs.NewConfigurationError("backtest", "unsupported job kind %q", job.Kind)
	}

	rcfg := job.Reporting
	if opts.OutputDir != "" {
		rcfg.OutputDirectory = opts.OutputDir
	}
	if rcfg.OutputDirectory == "" {
		rcfg.OutputDirectory = filepath.Join(env.ResultsDir, filepath.Base(reporting.DefaultOutputDir(report.Symbol, report.Interval)))
	}
	if opts.ConsoleOnly {
		rcfg.EnableFiles = false
	}

	manager := reporting.NewReportingManager(rcfg, out)
	written, err := manager.Report(report)
	if err != nil {
		return written, err
	}

	if rcfg.EnableFiles && report.Optimization != nil && report.Optimization.BestTrial != nil {
		path := filepath.Join(manager.OutputDir(report), config.BestConfigFile)
		if err := reporting.WriteBestConfigJSON(job.Strategy, report.Optimization, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	for _, path := range written {
		log.Info().Str("path", path).Msg("written")
	}
	return written, nil
}

// loadSeries resolves the data file, loads the selected bars and aligns predictions.
func loadSeries(job *config.Job, env *envconfig.Config, log zerolog.Logger) ([]types.OHLCV, []float64, error) {
	format, err := job.Data.CSVFormat()
	if err != nil {
		return nil, nil, err
	}
	sel, err := job.Data.Selection()
	if err != nil {
		return nil, nil, err
	}

	dm := data.NewDataManagerWithProvider(
		data.NewCachedProvider(data.NewCSVProviderWithFormat(format, log), log), log)

	source := job.Data.File
	if source == "" {
		root := job.Data.Root
		if root == "" || (root == config.DefaultDataRoot && env.DataRoot != "") {
			root = env.DataRoot
		}
		if source, err = dm.Locate(root, job.Data.Exchange, job.Symbol(), job.Interval()); err != nil {
			return nil, nil, err
		}
	}

	bars, err := dm.Load(source, sel)
	if err != nil {
		return nil, nil, err
	}

	var predictions []float64
	if job.Data.Predictions != "" {
		if predictions, err = data.LoadPredictions(job.Data.Predictions, bars); err != nil {
			return nil, nil, err
		}
	}
	return bars, predictions, nil
}

// optimize runs the search and logs progress until it finishes.
func optimize(ctx context.Context, job *config.Job, bars []types.OHLCV, predictions []float64, workers int, log zerolog.Logger) (*optimization.Result, error) {
	req := job.Request(bars, predictions)
	if req.Workers == 0 {
		req.Workers = workers
	}
	engine := optimization.NewEngine(req, log)
	if err := engine.Validate(); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(progressEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s := engine.Status()
				ev := log.Info().
					Str("run_id", s.RunID.String()).
					Float64("progress", s.Progress).
					Int("trial", s.CurrentTrial).
					Dur("remaining", s.Remaining)
				if s.HasBest {
					ev = ev.Float64("best", s.BestScoreSoFar)
				}
				ev.Msg("optimizing")
			}
		}
	}()

	return engine.Run(ctx)
}
