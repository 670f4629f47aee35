// Package live drives a signal evaluator from a polled kline feed. It emits
// signals only; no orders are placed.
package live

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/internal/exchange/bybit"
	"github.com/ducminhle1904/strategy-lab/internal/monitoring"
	"github.com/ducminhle1904/strategy-lab/internal/safety"
	"github.com/ducminhle1904/strategy-lab/internal/signals"
	"github.com/ducminhle1904/strategy-lab/pkg/data"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

const (
	DefaultPollInterval = 15 * time.Second
	DefaultWindowBars   = 300
	maxFeedLimit        = 1000
)

// Feed supplies klines oldest first. *bybit.Client satisfies it.
type Feed interface {
	GetKlines(ctx context.Context, params bybit.KlineParams) ([]types.OHLCV, error)
}

type Config struct {
	Symbol       string
	Interval     string
	PollInterval time.Duration
	// WindowBars is raised to the evaluator's MinBars when smaller.
	WindowBars int
}

// Event is emitted for every newly closed bar after warm-up.
type Event struct {
	SessionID string
	Bar       types.OHLCV
	Signal    *types.Signal
	Reversal  types.Direction
	State     signals.StateSummary
}

func (e Event) HasSignal() bool {
	return e.Signal != nil
}

// Runner polls the feed, evaluates each closed bar once and hands the result to the sink.
type Runner struct {
	cfg       Config
	interval  bybit.KlineInterval
	feed      Feed
	eval      signals.Evaluator
	sink      func(Event)
	breaker   *safety.CircuitBreaker
	health    *monitoring.HealthChecker
	log       zerolog.Logger
	sessionID string
	now       func() time.Time

	lastBar  time.Time
	daily    []types.OHLCV
	dailyDay time.Time
	warmed   bool
}

func NewRunner(cfg Config, feed Feed, eval signals.Evaluator, sink func(Event), log zerolog.Logger) (*Runner, error) {
	if feed == nil {
		return nil, errs.NewConfigurationError("live", "feed is required")
	}
	if eval == nil {
		return nil, errs.NewConfigurationError("live", "evaluator is required")
	}
	interval, err := bybit.ParseInterval(cfg.Interval)
	if err != nil {
		return nil, errs.NewConfigurationError("live", "%v", err)
	}
	if cfg.Symbol == "" {
		cfg.Symbol = eval.Symbol()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.WindowBars <= 0 {
		cfg.WindowBars = DefaultWindowBars
	}
	if cfg.WindowBars < eval.MinBars() {
		cfg.WindowBars = eval.MinBars()
	}
	if cfg.WindowBars > maxFeedLimit {
		cfg.WindowBars = maxFeedLimit
	}
	if sink == nil {
		sink = func(Event) {}
	}

	sessionID := uuid.New().String()
	r := &Runner{
		cfg:       cfg,
		interval:  interval,
		feed:      feed,
		eval:      eval,
		sink:      sink,
		health:    monitoring.NewHealthChecker(0),
		log:       log.With().Str("component", "live").Str("session_id", sessionID).Logger(),
		sessionID: sessionID,
		now:       time.Now,
	}

	// Back off the feed for a few poll periods after repeated failures.
	r.breaker = safety.NewCircuitBreaker("kline_feed", safety.CircuitBreakerConfig{
		FailureThreshold: 5,
		Timeout:          4 * cfg.PollInterval,
	})
	r.breaker.SetStateChangeCallback(func(from, to safety.CircuitBreakerState) {
		r.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("feed circuit breaker")
	})
	return r, nil
}

// WithHealth replaces the runner's health checker, typically one served over HTTP.
func (r *Runner) WithHealth(h *monitoring.HealthChecker) *Runner {
	if h != nil {
		r.health = h
	}
	return r
}

func (r *Runner) SessionID() string                 { return r.sessionID }
func (r *Runner) Health() *monitoring.HealthChecker { return r.health }

// Run polls until ctx is done. Poll failures are logged and retried on the next tick.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info().
		Str("symbol", r.cfg.Symbol).
		Str("interval", r.cfg.Interval).
		Str("engine", r.eval.Name()).
		Dur("poll", r.cfg.PollInterval).
		Int("window", r.cfg.WindowBars).
		Msg("live runner started")

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := r.Poll(ctx); err != nil && ctx.Err() == nil {
			r.log.Warn().Err(err).Msg("poll failed")
		}
		select {
		case <-ctx.Done():
			r.log.Info().Msg("live runner stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Poll fetches the latest window and evaluates every bar closed since the last poll.
// The first poll replays the window silently and emits only its newest bar.
func (r *Runner) Poll(ctx context.Context) ([]Event, error) {
	var bars []types.OHLCV
	err := r.breaker.Call(func() error {
		var err error
		bars, err = r.feed.GetKlines(ctx, bybit.KlineParams{
			Symbol:   r.cfg.Symbol,
			Interval: r.interval,
			Limit:    r.cfg.WindowBars + 1,
		})
		return err
	})
	if err != nil {
		r.health.ObserveError(err)
		monitoring.RecordError("feed")
		return nil, errs.Wrap(err, errs.CategoryExchange, "live", "poll", "failed to fetch klines")
	}

	closed := bybit.ClosedOnly(bars, r.interval, r.now())
	if len(closed) == 0 {
		return nil, nil
	}
	newest := closed[len(closed)-1]
	r.health.ObserveBar(newest.Timestamp, newest.Close)
	monitoring.UpdatePrice(r.cfg.Symbol, newest.Close)
	if !newest.Timestamp.After(r.lastBar) {
		return nil, nil
	}

	r.refreshDaily(ctx, newest.Timestamp)

	var events []Event
	for i, bar := range closed {
		if !bar.Timestamp.After(r.lastBar) {
			continue
		}
		start := i + 1 - r.cfg.WindowBars
		if start < 0 {
			start = 0
		}
		recent := closed[start : i+1]
		sig := r.eval.OnBar(recent, data.CompleteDaysBefore(r.daily, bar.Timestamp), 0)

		if !r.warmed && i < len(closed)-1 {
			if sig != nil {
				r.log.Debug().Time("bar", bar.Timestamp).Str("signal", sig.String()).Msg("warm-up signal skipped")
			}
			continue
		}

		ev := Event{
			SessionID: r.sessionID,
			Bar:       bar,
			Signal:    sig,
			Reversal:  r.eval.ReversalDirection(recent),
			State:     r.eval.StateSummary(),
		}
		r.publish(ev)
		events = append(events, ev)
	}

	r.lastBar = newest.Timestamp
	r.warmed = true
	return events, nil
}

func (r *Runner) publish(ev Event) {
	if ev.Signal != nil {
		monitoring.RecordSignal(r.eval.Name(), r.cfg.Symbol, ev.Signal.Direction.String(), ev.Signal.Confidence)
		r.health.ObserveSignal(ev.Signal.String())
		r.log.Info().
			Time("bar", ev.Bar.Timestamp).
			Str("direction", ev.Signal.Direction.String()).
			Float64("entry", ev.Signal.EntryPriceHint).
			Float64("stop", ev.Signal.StopLossHint).
			Float64("confidence", ev.Signal.Confidence).
			Str("reason", ev.Signal.Reason).
			Msg("signal")
	} else {
		r.log.Debug().Time("bar", ev.Bar.Timestamp).Float64("close", ev.Bar.Close).Msg("bar evaluated")
	}
	if ev.Reversal != types.Flat {
		r.log.Info().Time("bar", ev.Bar.Timestamp).Str("direction", ev.Reversal.String()).Msg("reversal")
	}
	r.sink(ev)
}

// refreshDaily refetches daily bars once per UTC day. A failure keeps the previous set.
func (r *Runner) refreshDaily(ctx context.Context, t time.Time) {
	u := t.UTC()
	day := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	if day.Equal(r.dailyDay) {
		return
	}
	daily, err := r.feed.GetKlines(ctx, bybit.KlineParams{
		Symbol:   r.cfg.Symbol,
		Interval: bybit.Interval1d,
		Limit:    signals.ADRDays + 2,
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("daily klines unavailable")
		return
	}
	r.daily = daily
	r.dailyDay = day
}
