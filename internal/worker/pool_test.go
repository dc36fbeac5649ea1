package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteTasks_RunsEveryTaskOnce(t *testing.T) {
	pool := NewPool(4)
	pool.Start()
	defer pool.Stop()

	var runs int64
	tasks := make([]Task, 100)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) error {
			atomic.AddInt64(&runs, 1)
			return nil
		}
	}

	pool.ExecuteTasks(tasks)
	assert.Equal(t, int64(100), atomic.LoadInt64(&runs))

	metrics := pool.GetMetrics()
	assert.Equal(t, int64(100), metrics.TotalTasks)
	assert.Equal(t, int64(100), metrics.CompletedTasks)
	assert.Zero(t, metrics.FailedTasks)
	assert.LessOrEqual(t, metrics.PeakWorkers, int64(4))
}

func TestExecuteTasks_FailuresAndPanicsAreCounted(t *testing.T) {
	pool := NewPool(2)
	pool.Start()
	defer pool.Stop()

	var after int64
	pool.ExecuteTasks([]Task{
		func(context.Context) error { return errors.New("failed") },
		func(context.Context) error { panic("boom") },
		func(context.Context) error {
			atomic.AddInt64(&after, 1)
			return nil
		},
	})

	assert.Equal(t, int64(1), atomic.LoadInt64(&after))
	metrics := pool.GetMetrics()
	assert.Equal(t, int64(2), metrics.FailedTasks)
	assert.Equal(t, int64(1), metrics.CompletedTasks)
}

func TestWithTaskTimeout(t *testing.T) {
	pool := NewPool(1, WithTaskTimeout(20*time.Millisecond))
	pool.Start()
	defer pool.Stop()

	var taskErr atomic.Value
	pool.ExecuteTasks([]Task{
		func(ctx context.Context) error {
			<-ctx.Done()
			taskErr.Store(ctx.Err())
			return ctx.Err()
		},
	})

	assert.Equal(t, context.DeadlineExceeded, taskErr.Load())
}

func TestSafeCall_RecoversPanic(t *testing.T) {
	err := safeCall(context.Background(), func(context.Context) error {
		panic("kaboom")
	})

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
}

func TestStop_RejectsNewTasks(t *testing.T) {
	pool := NewPool(1)
	pool.Start()
	pool.Stop()
	pool.Stop()

	assert.ErrorIs(t, pool.Submit(func(context.Context) error { return nil }), ErrPoolStopped)

	var ran int64
	var ctxErr error
	pool.ExecuteTasks([]Task{
		func(ctx context.Context) error {
			atomic.AddInt64(&ran, 1)
			ctxErr = ctx.Err()
			return nil
		},
	})
	assert.Equal(t, int64(1), ran)
	assert.ErrorIs(t, ctxErr, context.Canceled)
}

func TestNewPool_MinimumOneWorker(t *testing.T) {
	pool := NewPool(0)
	assert.Equal(t, 1, pool.MaxWorkers())
}
