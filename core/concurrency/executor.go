// File: core/concurrency/executor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor dispatches fire-and-forget tasks across a fixed set of worker
// goroutines: lock-free per-worker local queues with a buffered global
// channel as the spillover path. Task panics are isolated so one bad
// connection handler cannot take a worker down.

package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/linewire/api"
)

// TaskFunc is a zero-argument unit of work.
type TaskFunc func()

// Executor manages a bounded pool of worker goroutines. The pool size is
// fixed at construction; there is no completion signal for submitted tasks.
type Executor struct {
	globalQueue chan TaskFunc
	localQueues []*LockFreeQueue[TaskFunc]
	closeCh     chan struct{}
	closed      atomic.Bool
	next        atomic.Uint64 // round-robin cursor over local queues
	wg          sync.WaitGroup
}

// NewExecutor creates an Executor with numWorkers goroutines.
// A non-positive count falls back to the CPU count.
func NewExecutor(numWorkers int) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	e := &Executor{
		globalQueue: make(chan TaskFunc, numWorkers*4),
		localQueues: make([]*LockFreeQueue[TaskFunc], numWorkers),
		closeCh:     make(chan struct{}),
	}
	for i := 0; i < numWorkers; i++ {
		e.localQueues[i] = NewLockFreeQueue[TaskFunc](1024)
	}
	e.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go e.runWorker(i)
	}
	return e
}

// Submit enqueues a task on a round-robin local queue, spilling to the
// global queue when the local one is full. Submit never blocks: event-loop
// callers cannot afford to park outside their readiness wait, so full
// queues report ErrQueueFull and leave the retry policy to the caller.
func (e *Executor) Submit(task func()) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}
	idx := int(e.next.Add(1)) % len(e.localQueues)
	if e.localQueues[idx].Enqueue(task) {
		return nil
	}
	select {
	case e.globalQueue <- task:
		return nil
	case <-e.closeCh:
		return ErrExecutorClosed
	default:
		return ErrQueueFull
	}
}

// NumWorkers returns the fixed worker count.
func (e *Executor) NumWorkers() int { return len(e.localQueues) }

// Close shuts the executor down and waits for workers to finish their
// current task. Idempotent.
func (e *Executor) Close() {
	if e.closed.CompareAndSwap(false, true) {
		close(e.closeCh)
		e.wg.Wait()
	}
}

func (e *Executor) runWorker(id int) {
	defer e.wg.Done()
	local := e.localQueues[id]
	for {
		if task, ok := local.Dequeue(); ok {
			safeExecute(task)
			continue
		}
		select {
		case task := <-e.globalQueue:
			safeExecute(task)
		case <-e.closeCh:
			// Drain the local queue before exiting.
			for {
				task, ok := local.Dequeue()
				if !ok {
					return
				}
				safeExecute(task)
			}
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func safeExecute(task TaskFunc) {
	defer func() { _ = recover() }()
	task()
}

var _ api.Executor = (*Executor)(nil)
