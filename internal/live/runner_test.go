package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/internal/exchange/bybit"
	"github.com/ducminhle1904/strategy-lab/internal/safety"
	"github.com/ducminhle1904/strategy-lab/internal/signals"
	"github.com/ducminhle1904/strategy-lab/pkg/data"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

var feedStart = time.Date(2024, 3, 1, 23, 40, 0, 0, time.UTC)

type fakeFeed struct {
	mu        sync.Mutex
	bars      []types.OHLCV
	err       error
	lastLimit int
	calls     int
}

func (f *fakeFeed) GetKlines(_ context.Context, params bybit.KlineParams) ([]types.OHLCV, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if params.Interval == bybit.Interval1d {
		return data.ResampleDaily(f.bars), nil
	}
	f.lastLimit = params.Limit
	out := f.bars
	if len(out) > params.Limit {
		out = out[len(out)-params.Limit:]
	}
	return append([]types.OHLCV(nil), out...), nil
}

func (f *fakeFeed) push(closes ...float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range closes {
		f.bars = append(f.bars, types.OHLCV{
			Timestamp: feedStart.Add(time.Duration(len(f.bars)) * 5 * time.Minute),
			Open:      c - 0.5,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1,
		})
	}
}

// stubEvaluator signals long whenever the close reaches trigger.
type stubEvaluator struct {
	trigger   float64
	seen      []time.Time
	dailyLens []int
}

func (s *stubEvaluator) Name() string   { return "stub" }
func (s *stubEvaluator) Symbol() string { return "XAUUSDT" }
func (s *stubEvaluator) MinBars() int   { return 3 }

func (s *stubEvaluator) OnBar(recent, daily []types.OHLCV, _ float64) *types.Signal {
	last := recent[len(recent)-1]
	s.seen = append(s.seen, last.Timestamp)
	s.dailyLens = append(s.dailyLens, len(daily))
	if last.Close < s.trigger {
		return nil
	}
	return &types.Signal{
		Direction:      types.Long,
		EntryPriceHint: last.Close,
		StopLossHint:   last.Low,
		Confidence:     0.8,
		Reason:         "stub",
		Engine:         "stub",
		Time:           last.Timestamp,
	}
}

func (s *stubEvaluator) HasReversalSignal(recent []types.OHLCV) bool {
	return s.ReversalDirection(recent) != types.Flat
}

func (s *stubEvaluator) ReversalDirection([]types.OHLCV) types.Direction { return types.Flat }

func (s *stubEvaluator) StateSummary() signals.StateSummary {
	return signals.StateSummary{Engine: "stub", Symbol: "XAUUSDT", Phase: signals.PhaseActive}
}

func newTestRunner(t *testing.T, feed Feed, eval signals.Evaluator, sink func(Event)) *Runner {
	t.Helper()
	r, err := NewRunner(Config{Interval: "5m"}, feed, eval, sink, zerolog.Nop())
	require.NoError(t, err)
	r.now = func() time.Time { return feedStart.Add(24 * time.Hour) }
	return r
}

func TestNewRunner_Validation(t *testing.T) {
	eval := &stubEvaluator{}

	_, err := NewRunner(Config{Interval: "5m"}, nil, eval, nil, zerolog.Nop())
	assert.True(t, errs.IsConfiguration(err))

	_, err = NewRunner(Config{Interval: "5m"}, &fakeFeed{}, nil, nil, zerolog.Nop())
	assert.True(t, errs.IsConfiguration(err))

	_, err = NewRunner(Config{Interval: "7m"}, &fakeFeed{}, eval, nil, zerolog.Nop())
	assert.True(t, errs.IsConfiguration(err))

	r, err := NewRunner(Config{Interval: "5m", WindowBars: 2}, &fakeFeed{}, eval, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "XAUUSDT", r.cfg.Symbol)
	assert.Equal(t, 3, r.cfg.WindowBars)
	assert.Equal(t, DefaultPollInterval, r.cfg.PollInterval)
	assert.NotEmpty(t, r.SessionID())
}

func TestRunner_PollWarmUpThenLive(t *testing.T) {
	feed := &fakeFeed{}
	feed.push(100, 101, 105, 102, 103)
	eval := &stubEvaluator{trigger: 105}

	var received []Event
	r := newTestRunner(t, feed, eval, func(ev Event) { received = append(received, ev) })

	events, err := r.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1, "warm-up replays silently and emits only the newest bar")
	assert.False(t, events[0].HasSignal())
	assert.Equal(t, feedStart.Add(20*time.Minute), events[0].Bar.Timestamp)
	assert.Len(t, eval.seen, 5)
	assert.Equal(t, []int{0, 0, 0, 0, 1}, eval.dailyLens, "only days completed before the bar")
	assert.Equal(t, DefaultWindowBars+1, feed.lastLimit)

	feed.push(106, 104)
	events, err = r.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.True(t, events[0].HasSignal())
	assert.Equal(t, types.Long, events[0].Signal.Direction)
	assert.Equal(t, r.SessionID(), events[0].SessionID)
	assert.False(t, events[1].HasSignal())
	assert.Len(t, received, 3)

	status, _ := r.Health().Status(feedStart.Add(35 * time.Minute))
	assert.Equal(t, 104.0, status.LastPrice)
	assert.True(t, status.IsConnected)
	assert.Contains(t, status.LastSignal, "stub")

	events, err = r.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events, "a bar is evaluated once")
	assert.Len(t, eval.seen, 7)
}

func TestRunner_SkipsFormingBar(t *testing.T) {
	feed := &fakeFeed{}
	feed.push(100, 101, 102, 103)
	eval := &stubEvaluator{trigger: 1000}
	r := newTestRunner(t, feed, eval, nil)
	r.now = func() time.Time { return feedStart.Add(17 * time.Minute) }

	events, err := r.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, feedStart.Add(10*time.Minute), events[0].Bar.Timestamp)
	assert.Len(t, eval.seen, 3)
}

func TestRunner_FeedError(t *testing.T) {
	feed := &fakeFeed{err: errors.New("connection reset")}
	r := newTestRunner(t, feed, &stubEvaluator{}, nil)

	_, err := r.Poll(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.CategoryExchange, errs.CategoryOf(err))

	status, _ := r.Health().Status(time.Now())
	assert.False(t, status.IsConnected)
	assert.Equal(t, "unhealthy", status.Status)
}

func TestRunner_FeedCircuitBreaker(t *testing.T) {
	feed := &fakeFeed{err: errors.New("503")}
	r := newTestRunner(t, feed, &stubEvaluator{}, nil)

	for i := 0; i < 5; i++ {
		_, err := r.Poll(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, 5, feed.calls)

	_, err := r.Poll(context.Background())
	var open *safety.ErrOpen
	require.ErrorAs(t, err, &open)
	assert.Equal(t, 5, feed.calls, "open breaker skips the feed")
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	feed := &fakeFeed{}
	feed.push(100, 101, 102)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Event, 1)
	r, err := NewRunner(Config{Interval: "5m", PollInterval: 5 * time.Millisecond}, feed, &stubEvaluator{trigger: 1000}, func(ev Event) {
		select {
		case got <- ev:
		default:
		}
	}, zerolog.Nop())
	require.NoError(t, err)
	r.now = func() time.Time { return feedStart.Add(time.Hour) }

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}
