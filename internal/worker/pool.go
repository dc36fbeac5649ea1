package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ErrPoolStopped is returned by Submit once Stop has been called.
var ErrPoolStopped = errors.New("worker pool is stopped")

// PanicError is returned for a task that panicked. The pool recovers the
// panic so sibling tasks keep running.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// PoolMetrics provides metrics about the worker pool's performance
type PoolMetrics struct {
	TotalTasks         int64
	CompletedTasks     int64
	FailedTasks        int64
	CurrentWorkers     int64
	PeakWorkers        int64
	AverageExecutionMs int64
	TotalExecutionMs   int64
	mu                 sync.RWMutex
}

// Task represents a unit of work to be executed
type Task func(ctx context.Context) error

// Option configures a Pool
type Option func(*Pool)

// WithTaskTimeout bounds every task with its own deadline. Zero disables the
// per-task deadline.
func WithTaskTimeout(d time.Duration) Option {
	return func(p *Pool) {
		p.taskTimeout = d
	}
}

// Pool manages a pool of workers for executing tasks concurrently
type Pool struct {
	maxWorkers    int
	taskTimeout   time.Duration
	tasks         chan Task
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
	metrics       *PoolMetrics
	activeWorkers int64
	submitMu      sync.RWMutex
	stopping      bool
}

// NewPool creates a new worker pool with the specified number of workers.
// maxWorkers below 1 is treated as 1.
func NewPool(maxWorkers int, opts ...Option) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		maxWorkers: maxWorkers,
		tasks:      make(chan Task, maxWorkers*2), // Buffer the channel to prevent blocking
		ctx:        ctx,
		cancel:     cancel,
		metrics:    &PoolMetrics{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop stops accepting tasks, lets the workers drain what was already
// submitted and waits for them to exit.
func (p *Pool) Stop() {
	p.submitMu.Lock()
	if p.stopping {
		p.submitMu.Unlock()
		return
	}
	p.stopping = true
	close(p.tasks)
	p.submitMu.Unlock()

	p.wg.Wait()
	p.cancel()
}

// MaxWorkers returns the concurrency bound of the pool
func (p *Pool) MaxWorkers() int {
	return p.maxWorkers
}

// GetMetrics returns the current metrics for the pool
func (p *Pool) GetMetrics() PoolMetrics {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()

	// Create a new metrics struct without copying the mutex
	return PoolMetrics{
		TotalTasks:         p.metrics.TotalTasks,
		CompletedTasks:     p.metrics.CompletedTasks,
		FailedTasks:        p.metrics.FailedTasks,
		CurrentWorkers:     atomic.LoadInt64(&p.activeWorkers),
		PeakWorkers:        atomic.LoadInt64(&p.metrics.PeakWorkers),
		AverageExecutionMs: p.metrics.TotalExecutionMs / max(p.metrics.CompletedTasks+p.metrics.FailedTasks, 1),
		TotalExecutionMs:   p.metrics.TotalExecutionMs,
	}
}

// Submit submits a task to the pool. It blocks while the task buffer is full.
func (p *Pool) Submit(task Task) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if p.stopping {
		return ErrPoolStopped
	}
	p.tasks <- task
	return nil
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	current := atomic.AddInt64(&p.activeWorkers, 1)
	defer atomic.AddInt64(&p.activeWorkers, -1)

	// Update peak workers count if needed
	for {
		peak := atomic.LoadInt64(&p.metrics.PeakWorkers)
		if current <= peak {
			break
		}
		if atomic.CompareAndSwapInt64(&p.metrics.PeakWorkers, peak, current) {
			break
		}
	}

	start := time.Now()

	taskCtx, cancel := p.taskContext()
	err := safeCall(taskCtx, task)
	cancel()

	executionMs := time.Since(start).Milliseconds()

	p.metrics.mu.Lock()
	p.metrics.TotalExecutionMs += executionMs
	if err != nil {
		p.metrics.FailedTasks++
	} else {
		p.metrics.CompletedTasks++
	}
	p.metrics.mu.Unlock()
}

func (p *Pool) taskContext() (context.Context, context.CancelFunc) {
	if p.taskTimeout > 0 {
		return context.WithTimeout(p.ctx, p.taskTimeout)
	}
	return context.WithCancel(p.ctx)
}

// safeCall runs task and converts a panic into a *PanicError
func safeCall(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return task(ctx)
}

// ExecuteTasks executes a slice of tasks concurrently using the worker pool
// and returns once every task has run exactly once. Tasks that cannot be
// submitted because the pool is stopping run inline with a cancelled context.
func (p *Pool) ExecuteTasks(tasks []Task) {
	var wg sync.WaitGroup
	wg.Add(len(tasks))

	p.metrics.mu.Lock()
	p.metrics.TotalTasks += int64(len(tasks))
	p.metrics.mu.Unlock()

	for _, t := range tasks {
		task := t
		wrappedTask := func(ctx context.Context) error {
			defer wg.Done()
			return task(ctx)
		}

		if err := p.Submit(wrappedTask); err != nil {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_ = safeCall(ctx, wrappedTask)
		}
	}

	wg.Wait()
}
