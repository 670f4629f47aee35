package backtest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunJobs_OrderedResults(t *testing.T) {
	jobs := make([]Job[int], 20)
	for i := range jobs {
		id := i
		jobs[i] = Job[int]{ID: id, Run: func(context.Context) (int, error) {
			time.Sleep(time.Duration(20-id) * time.Millisecond / 10)
			if id == 7 {
				return 0, errors.New("boom")
			}
			return id * id, nil
		}}
	}

	results, err := RunJobs(context.Background(), 4, jobs)
	require.NoError(t, err)
	require.Len(t, results, 20)
	for i, r := range results {
		assert.Equal(t, i, r.ID)
		if i == 7 {
			assert.EqualError(t, r.Err, "boom")
			continue
		}
		assert.NoError(t, r.Err)
		assert.Equal(t, i*i, r.Value)
	}
}

func TestRunJobs_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var ran int32
	jobs := make([]Job[int], 5)
	for i := range jobs {
		jobs[i] = Job[int]{ID: i, Run: func(context.Context) (int, error) {
			atomic.AddInt32(&ran, 1)
			cancel()
			return 1, nil
		}}
	}

	results, err := RunJobs(ctx, 1, jobs)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))

	results, err = RunJobs(ctx, 2, jobs)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestWorkerPool_OnDone(t *testing.T) {
	wp := NewWorkerPool[string](context.Background(), 2, 3)
	var done int32
	wp.OnDone(func(JobResult[string]) { atomic.AddInt32(&done, 1) })
	wp.Start()
	for i := 0; i < 3; i++ {
		require.NoError(t, wp.SubmitJob(Job[string]{ID: i, Run: func(context.Context) (string, error) { return "ok", nil }}))
	}
	wp.Stop()

	var n int
	for r := range wp.GetResults() {
		assert.Equal(t, "ok", r.Value)
		n++
	}
	assert.Equal(t, 3, n)
	assert.Equal(t, int32(3), atomic.LoadInt32(&done))
}

func TestProgressTracker(t *testing.T) {
	pt := NewProgressTracker(4)
	assert.Zero(t, pt.EstimateTimeRemaining())

	pt.Increment()
	pt.Increment()
	completed, total, pct, _ := pt.GetProgress()
	assert.Equal(t, 2, completed)
	assert.Equal(t, 4, total)
	assert.Equal(t, 50.0, pct)

	for i := 0; i < 5; i++ {
		pt.Increment()
	}
	completed, _, pct, _ = pt.GetProgress()
	assert.Equal(t, 4, completed)
	assert.Equal(t, 100.0, pct)
	assert.Zero(t, pt.EstimateTimeRemaining())

	_, _, pct, _ = NewProgressTracker(0).GetProgress()
	assert.Zero(t, pct)
}
