package safety

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("feed", CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Minute})
	cb.now = func() time.Time { return now }

	var transitions []string
	cb.SetStateChangeCallback(func(from, to CircuitBreakerState) {
		transitions = append(transitions, from.String()+">"+to.String())
	})

	boom := errors.New("boom")
	calls := 0
	fail := func() error { calls++; return boom }
	ok := func() error { calls++; return nil }

	assert.ErrorIs(t, cb.Call(fail), boom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Call(fail), boom)
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Call(ok)
	var open *ErrOpen
	require.ErrorAs(t, err, &open)
	assert.Equal(t, "feed", open.Name)
	assert.Equal(t, 2, calls, "open breaker does not call through")

	now = now.Add(time.Minute)
	assert.NoError(t, cb.Call(ok))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []string{"CLOSED>OPEN", "OPEN>HALF_OPEN", "HALF_OPEN>CLOSED"}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("feed", CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Second})
	cb.now = func() time.Time { return now }

	_ = cb.Call(func() error { return errors.New("down") })
	require.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Second)
	_ = cb.Call(func() error { return errors.New("still down") })
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("feed", CircuitBreakerConfig{FailureThreshold: 2})
	_ = cb.Call(func() error { return errors.New("x") })
	_ = cb.Call(func() error { return nil })
	_ = cb.Call(func() error { return errors.New("x") })
	assert.Equal(t, StateClosed, cb.State())
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter("bybit", 2, 50)
	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, rl.Wait(ctx))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	blocked := NewRateLimiter("slow", 1, 1)
	require.True(t, blocked.Allow())
	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	assert.ErrorIs(t, blocked.Wait(ctx2), context.DeadlineExceeded)
}
