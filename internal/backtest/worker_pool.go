package backtest

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Job is one unit of work for a WorkerPool. IDs order the results of RunJobs.
type Job[T any] struct {
	ID  int
	Run func(ctx context.Context) (T, error)
}

// JobResult carries the output of a job.
type JobResult[T any] struct {
	ID       int
	Value    T
	Duration time.Duration
	Err      error
}

// WorkerPool runs jobs on a fixed number of goroutines. Jobs queued after the
// pool context is cancelled are dropped without running; running jobs finish.
type WorkerPool[T any] struct {
	workerCount int
	jobQueue    chan Job[T]
	resultQueue chan JobResult[T]
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	onDone      func(JobResult[T])
}

// NewWorkerPool creates a pool. workerCount <= 0 uses runtime.NumCPU.
func NewWorkerPool[T any](ctx context.Context, workerCount int, jobBufferSize int) *WorkerPool[T] {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobBufferSize < 0 {
		jobBufferSize = 0
	}

	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool[T]{
		workerCount: workerCount,
		jobQueue:    make(chan Job[T], jobBufferSize),
		resultQueue: make(chan JobResult[T], jobBufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// OnDone registers a callback invoked from the worker after each job. Set it before Start.
func (wp *WorkerPool[T]) OnDone(fn func(JobResult[T])) {
	wp.onDone = fn
}

// Start starts the worker pool
func (wp *WorkerPool[T]) Start() {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// Stop closes the queue, waits for the workers and closes the result channel.
func (wp *WorkerPool[T]) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// SubmitJob queues a job, blocking while the queue is full.
func (wp *WorkerPool[T]) SubmitJob(job Job[T]) error {
	if err := wp.ctx.Err(); err != nil {
		return err
	}
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// GetResults returns the result channel for collecting completed jobs
func (wp *WorkerPool[T]) GetResults() <-chan JobResult[T] {
	return wp.resultQueue
}

func (wp *WorkerPool[T]) worker() {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		if wp.ctx.Err() != nil {
			continue
		}
		result := wp.processJob(job)
		if wp.onDone != nil {
			wp.onDone(result)
		}
		wp.resultQueue <- result
	}
}

func (wp *WorkerPool[T]) processJob(job Job[T]) JobResult[T] {
	startTime := time.Now()
	value, err := job.Run(wp.ctx)
	return JobResult[T]{
		ID:       job.ID,
		Value:    value,
		Duration: time.Since(startTime),
		Err:      err,
	}
}

// RunJobs runs jobs with at most workers in parallel and returns the results of
// every job that ran, ordered by ID. After ctx is cancelled no new job starts and
// the context error is returned together with the finished results.
func RunJobs[T any](ctx context.Context, workers int, jobs []Job[T]) ([]JobResult[T], error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(jobs) && len(jobs) > 0 {
		workers = len(jobs)
	}

	wp := NewWorkerPool[T](ctx, workers, len(jobs))
	wp.Start()
	for _, job := range jobs {
		if err := wp.SubmitJob(job); err != nil {
			break
		}
	}
	wp.Stop()

	results := make([]JobResult[T], 0, len(jobs))
	for r := range wp.GetResults() {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })

	return results, ctx.Err()
}

// ProgressTracker tracks completion of a known number of items.
type ProgressTracker struct {
	total     int
	completed int
	startTime time.Time
	mutex     sync.RWMutex
}

func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{
		total:     total,
		startTime: time.Now(),
	}
}

func (pt *ProgressTracker) Increment() {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()
	if pt.completed < pt.total {
		pt.completed++
	}
}

// GetProgress returns completed, total, percent done and elapsed time.
func (pt *ProgressTracker) GetProgress() (int, int, float64, time.Duration) {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()

	elapsed := time.Since(pt.startTime)
	var progress float64
	if pt.total > 0 {
		progress = float64(pt.completed) / float64(pt.total) * 100
	}
	return pt.completed, pt.total, progress, elapsed
}

// EstimateTimeRemaining extrapolates from the average time per completed item.
func (pt *ProgressTracker) EstimateTimeRemaining() time.Duration {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()

	if pt.completed == 0 {
		return 0
	}

	elapsed := time.Since(pt.startTime)
	avgTimePerItem := elapsed / time.Duration(pt.completed)
	return avgTimePerItem * time.Duration(pt.total-pt.completed)
}
