package optimization

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ducminhle1904/strategy-lab/internal/backtest"
	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/internal/monitoring"
	"github.com/ducminhle1904/strategy-lab/pkg/data"
	"github.com/ducminhle1904/strategy-lab/pkg/validation"
)

// Engine runs one optimization request. Run may be called once; Status may be
// polled from other goroutines at any time.
type Engine struct {
	req   Request
	runID uuid.UUID
	log   zerolog.Logger

	mu       sync.RWMutex
	status   Status
	started  time.Time
	elapsed  time.Duration
	trials   []Trial
	best     *Trial
	progress *backtest.ProgressTracker
}

// NewEngine creates a pending engine for req.
func NewEngine(req Request, log zerolog.Logger) *Engine {
	id := uuid.New()
	return &Engine{
		req:    req,
		runID:  id,
		status: StatusPending,
		log:    log.With().Str("component", "optimizer").Str("run_id", id.String()).Logger(),
	}
}

// RunID identifies the run in logs, metrics and results.
func (e *Engine) RunID() uuid.UUID { return e.runID }

// Validate reports configuration errors without running anything.
func (e *Engine) Validate() error {
	req := e.req
	if req.NTrials < 1 || req.NTrials > MaxTrials {
		return errs.NewConfigurationError("optimization", "n_trials must be in [1,%d], got %d", MaxTrials, req.NTrials)
	}
	switch req.Method {
	case MethodBayesian, MethodGenetic, MethodHybrid, MethodRandom:
	default:
		return errs.NewConfigurationError("optimization", "unknown method %q", req.Method)
	}
	if len(req.Ranges) == 0 {
		return errs.NewConfigurationError("optimization", "no parameter ranges")
	}
	if err := req.Template.Validate(); err != nil {
		return err
	}
	paths := make(map[string]bool, len(req.Ranges))
	for _, r := range req.Ranges {
		if paths[r.Path] {
			return errs.NewConfigurationError("optimization", "duplicate range path %q", r.Path)
		}
		paths[r.Path] = true
		if err := r.Validate(req.Template); err != nil {
			return err
		}
	}
	walkForward := req.WalkForward != nil
	if !knownMetric(req.Objective, walkForward) {
		return errs.NewConfigurationError("optimization", "unknown objective %q", req.Objective)
	}
	if req.Filter != nil {
		if err := req.Filter.validate(walkForward); err != nil {
			return err
		}
	}
	if walkForward {
		if _, err := validation.Partition(len(req.Bars), *req.WalkForward); err != nil {
			return err
		}
	}
	if req.Workers < 0 {
		return errs.NewConfigurationError("optimization", "workers must not be negative")
	}
	return data.ValidateSeries(req.Bars)
}

// Run executes the search. Configuration errors fail the run before any trial.
// Trials are proposed in batches and evaluated concurrently; results are applied
// to the history in trial-number order. Cancelling ctx stops new batches; the
// partial result is returned with status cancelled and the cancellation error.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if e.status != StatusPending {
		e.mu.Unlock()
		return nil, errs.NewConfigurationError("optimization", "run %s already started", e.runID)
	}
	e.status = StatusRunning
	e.started = time.Now()
	e.progress = backtest.NewProgressTracker(e.req.NTrials)
	e.mu.Unlock()

	if err := e.Validate(); err != nil {
		e.finish(StatusFailed)
		e.log.Error().Err(err).Msg("optimization rejected")
		return e.result(), err
	}

	cfg := e.req.Config.withDefaults()
	rng := rand.New(rand.NewSource(e.req.Seed))
	prop := newProposer(e.req.Method, space(e.req.Ranges), cfg, rng)
	eval := &evaluator{req: e.req, log: zerolog.Nop()}

	e.log.Info().
		Str("method", string(e.req.Method)).
		Str("objective", e.req.Objective).
		Int("n_trials", e.req.NTrials).
		Int("ranges", len(e.req.Ranges)).
		Bool("walk_forward", e.req.WalkForward != nil).
		Msg("optimization started")

	// batches always finish once started
	batchCtx := context.WithoutCancel(ctx)
	for {
		history := e.History()
		remaining := e.req.NTrials - len(history)
		if remaining <= 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			e.finish(StatusCancelled)
			e.log.Warn().Int("trials", len(history)).Msg("optimization cancelled")
			return e.result(), errs.NewCancelled("optimization", err)
		}

		batch := prop.propose(history, remaining)
		if len(batch) == 0 {
			break
		}
		jobs := make([]backtest.Job[Trial], len(batch))
		for k, params := range batch {
			number := len(history) + k + 1
			params := params
			jobs[k] = backtest.Job[Trial]{ID: number, Run: func(context.Context) (Trial, error) {
				return eval.evaluate(number, params)
			}}
		}
		results, _ := backtest.RunJobs(batchCtx, e.req.Workers, jobs)
		e.apply(results)
	}

	e.finish(StatusCompleted)
	res := e.result()
	e.log.Info().
		Int("trials", len(res.Trials)).
		Float64("best_score", res.BestScore).
		Dur("elapsed", res.Elapsed).
		Msg("optimization completed")
	return res, nil
}

// apply records a batch in trial order; it is the only writer of history and best.
func (e *Engine) apply(results []backtest.JobResult[Trial]) {
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range results {
		t := r.Value
		t.Number = r.ID
		t.Duration = r.Duration
		state := "completed"
		if r.Err != nil {
			t.Failed = true
			t.Feasible = false
			t.Score = FailedTrialScore
			t.Error = r.Err.Error()
			state = "failed"
			e.log.Debug().Err(r.Err).Int("trial", t.Number).Msg("trial failed")
		} else if !t.Feasible {
			state = "infeasible"
		}
		e.trials = append(e.trials, t)
		e.progress.Increment()
		monitoring.RecordTrial(string(e.req.Method), state)

		if t.eligible() && (e.best == nil || t.Score > e.best.Score) {
			best := t
			e.best = &best
			monitoring.UpdateBestScore(e.runID.String(), t.Score)
			e.log.Info().Int("trial", t.Number).Float64("score", t.Score).Interface("params", t.Params).Msg("new best trial")
		}
	}
}

func (e *Engine) finish(status Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = status
	e.elapsed = time.Since(e.started)
	monitoring.ClearBestScore(e.runID.String())
}

// History returns a copy of the trials recorded so far, in number order.
func (e *Engine) History() []Trial {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Trial(nil), e.trials...)
}

// Status returns a consistent snapshot of the run.
func (e *Engine) Status() StatusSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := StatusSnapshot{RunID: e.runID, Status: e.status}
	if e.progress != nil {
		completed, _, pct, _ := e.progress.GetProgress()
		s.Progress = pct
		s.CurrentTrial = completed
		s.Remaining = e.progress.EstimateTimeRemaining()
	}
	switch e.status {
	case StatusPending:
	case StatusRunning:
		s.Elapsed = time.Since(e.started)
	default:
		s.Elapsed = e.elapsed
		s.Remaining = 0
	}
	if e.best != nil {
		s.HasBest = true
		s.BestScoreSoFar = e.best.Score
	}
	return s
}

func (e *Engine) result() *Result {
	e.mu.RLock()
	defer e.mu.RUnlock()

	res := &Result{
		RunID:           e.runID,
		Status:          e.status,
		Method:          e.req.Method,
		Objective:       e.req.Objective,
		BestScore:       FailedTrialScore,
		Trials:          append([]Trial(nil), e.trials...),
		ParamImportance: ParamImportance(e.req.Ranges, e.trials),
		Elapsed:         e.elapsed,
	}
	if e.best != nil {
		best := *e.best
		res.BestTrial = &best
		res.BestParams = best.Params
		res.BestScore = best.Score
	}
	return res
}
