package omgr

import (
	"context"
	"sync"

	"github.com/roach88/dobj/internal/dobj"
)

// unit is one entry of the dispatch queue: either an event or a function
// to run on the dispatcher goroutine.
type unit struct {
	event dobj.Event
	run   func(ctx context.Context)
}

func (u unit) String() string {
	if u.event != nil {
		return u.event.String()
	}
	return "runnable"
}

// unitQueue is a thread-safe unbounded FIFO queue.
//
// The queue uses a channel for signaling so the Run loop can wait on it
// alongside context cancellation.
type unitQueue struct {
	mu     sync.Mutex
	units  []unit
	closed bool
	signal chan struct{} // buffered, size 1
}

func newUnitQueue() *unitQueue {
	return &unitQueue{
		units:  make([]unit, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds u to the back of the queue. It returns false if the queue is
// closed.
func (q *unitQueue) Enqueue(u unit) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.units = append(q.units, u)

	// A buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front unit without blocking.
func (q *unitQueue) TryDequeue() (unit, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.units) == 0 {
		return unit{}, false
	}

	u := q.units[0]

	// Clear the slot so the backing array does not retain the event.
	q.units[0] = unit{}

	if len(q.units) == 1 {
		q.units = q.units[:0]
	} else {
		q.units = q.units[1:]
	}

	return u, true
}

// Wait returns a channel that signals when units may be available. It is
// closed once the queue is closed.
func (q *unitQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *unitQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.units)
}

// Close stops accepting units and wakes any waiter.
func (q *unitQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
