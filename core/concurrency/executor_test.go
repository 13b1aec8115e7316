// File: core/concurrency/executor_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecutorRunsSubmittedTasks(t *testing.T) {
	e := NewExecutor(4)
	defer e.Close()

	const tasks = 200
	var counter atomic.Int64
	var wg sync.WaitGroup
	wg.Add(tasks)
	for i := 0; i < tasks; i++ {
		require.NoError(t, e.Submit(func() {
			counter.Add(1)
			wg.Done()
		}))
	}
	wg.Wait()
	require.EqualValues(t, tasks, counter.Load())
}

func TestExecutorSubmitAfterClose(t *testing.T) {
	e := NewExecutor(2)
	e.Close()
	require.ErrorIs(t, e.Submit(func() {}), ErrExecutorClosed)
}

func TestExecutorCloseIdempotent(t *testing.T) {
	e := NewExecutor(2)
	e.Close()
	e.Close()
}

func TestExecutorIsolatesPanics(t *testing.T) {
	e := NewExecutor(1)
	defer e.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	require.NoError(t, e.Submit(func() {
		defer wg.Done()
		panic("boom")
	}))
	require.NoError(t, e.Submit(func() { wg.Done() }))
	wg.Wait()
}

// TestExecutorSubmitNeverBlocksWhenSaturated parks the only worker and
// fills every queue: Submit must report ErrQueueFull instead of parking
// the caller.
func TestExecutorSubmitNeverBlocksWhenSaturated(t *testing.T) {
	e := NewExecutor(1)
	gate := make(chan struct{})
	require.NoError(t, e.Submit(func() { <-gate }))

	var err error
	for i := 0; i < 5000; i++ {
		if err = e.Submit(func() {}); err != nil {
			break
		}
	}
	require.ErrorIs(t, err, ErrQueueFull)

	close(gate)
	e.Close()
}

func TestExecutorDefaultWorkerCount(t *testing.T) {
	e := NewExecutor(0)
	defer e.Close()
	require.Greater(t, e.NumWorkers(), 0)
}

// TestLockFreeQueueConcurrent hammers the MPMC queue from multiple
// producers and consumers and checks that every enqueued value is
// dequeued exactly once.
func TestLockFreeQueueConcurrent(t *testing.T) {
	q := NewLockFreeQueue[int](256)
	const producers = 4
	const perProducer = 10000

	var produced, consumed atomic.Int64
	var wg sync.WaitGroup

	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for !q.Enqueue(i) {
					// full, retry
				}
				produced.Add(1)
			}
		}()
	}

	done := make(chan struct{})
	var cwg sync.WaitGroup
	cwg.Add(producers)
	for c := 0; c < producers; c++ {
		go func() {
			defer cwg.Done()
			for {
				if _, ok := q.Dequeue(); ok {
					consumed.Add(1)
					continue
				}
				select {
				case <-done:
					// Drain whatever is left.
					for {
						if _, ok := q.Dequeue(); ok {
							consumed.Add(1)
							continue
						}
						return
					}
				default:
				}
			}
		}()
	}

	wg.Wait()
	close(done)
	cwg.Wait()

	require.EqualValues(t, producers*perProducer, produced.Load())
	require.Equal(t, produced.Load(), consumed.Load())
}

func TestLockFreeQueueBounds(t *testing.T) {
	q := NewLockFreeQueue[int](2)
	require.True(t, q.Enqueue(1))
	require.True(t, q.Enqueue(2))
	require.False(t, q.Enqueue(3), "full queue rejects")

	v, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, 1, v, "FIFO")

	_, ok = q.Dequeue()
	require.True(t, ok)
	_, ok = q.Dequeue()
	require.False(t, ok, "empty queue reports not ok")
}
