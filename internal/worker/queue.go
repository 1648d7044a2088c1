// Package worker provides a lazily started, self-stopping background task queue.
package worker

import (
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned when submitting to a closed Queue.
var ErrClosed = errors.New("worker queue closed")

// DefaultIdleTimeout is how long the goroutine waits for new work before exiting.
const DefaultIdleTimeout = 60 * time.Second

// Queue runs submitted tasks in submission order on at most one goroutine.
//
// The goroutine is started by Submit when none is running and exits once it has
// been idle for the configured timeout, so an unused Queue costs nothing.
type Queue struct {
	idleTimeout time.Duration

	mu      sync.Mutex
	tasks   []func()
	running bool // a goroutine is alive
	active  bool // a task is executing
	closed  bool

	wake chan struct{}
	wg   sync.WaitGroup
}

// NewQueue creates a queue. An idleTimeout <= 0 uses DefaultIdleTimeout.
func NewQueue(idleTimeout time.Duration) *Queue {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Queue{
		idleTimeout: idleTimeout,
		wake:        make(chan struct{}, 1),
	}
}

// Submit enqueues task and returns without waiting for it.
func (q *Queue) Submit(task func()) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.tasks = append(q.tasks, task)
	if !q.running {
		q.running = true
		q.wg.Add(1)
		go q.run()
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Running reports whether the worker goroutine is alive.
func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Idle reports whether there is no pending or executing task.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks) == 0 && !q.active
}

func (q *Queue) run() {
	defer q.wg.Done()

	timer := time.NewTimer(q.idleTimeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.tasks) > 0 {
			task := q.tasks[0]
			q.tasks[0] = nil
			q.tasks = q.tasks[1:]
			q.active = true
			q.mu.Unlock()

			task()

			q.mu.Lock()
			q.active = false
			q.mu.Unlock()
			continue
		}
		if q.closed {
			q.running = false
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()

		timer.Reset(q.idleTimeout)
		select {
		case <-q.wake:
		case <-timer.C:
			q.mu.Lock()
			if len(q.tasks) == 0 {
				q.running = false
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
		}
	}
}

// Close rejects further submissions, runs the tasks already queued and waits
// for the goroutine to exit. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	q.wg.Wait()
}
