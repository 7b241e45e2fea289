// Package queue provides the blocking FIFO shared by the pool's workers.
//
// Blocking parks idle consumers on a condition variable instead of spinning.
// Every park is bounded by a liveness timer that wakes parked consumers so they
// re-check the queue; the timer guards against a lost wakeup and is never the
// mechanism by which items are discovered.
package queue

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultLiveness is the upper bound on a single park in Pop.
const DefaultLiveness = 100 * time.Millisecond

var (
	// ErrClosed is returned by Push after Close, and by Pop once the queue
	// is closed and empty.
	ErrClosed = errors.New("queue: closed")

	// ErrPoisoned is returned by every operation after code panicked while
	// holding the queue lock.
	ErrPoisoned = errors.New("queue: lock poisoned")
)

// Option configures a Blocking queue.
type Option func(*options)

type options struct {
	liveness time.Duration
}

// WithLiveness sets the bounded wait used by Pop. Zero disables the timer and
// parks until an explicit signal.
func WithLiveness(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.liveness = d
		}
	}
}

// Blocking is an unbounded multi-producer, multi-consumer FIFO.
// The zero value is not usable; create one with New.
type Blocking[T any] struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	items    []T
	closed   bool
	poisoned error
	waiting  int
	liveness time.Duration

	wakeups atomic.Int64
}

// New creates an empty queue.
func New[T any](opts ...Option) *Blocking[T] {
	o := options{liveness: DefaultLiveness}
	for _, opt := range opts {
		opt(&o)
	}

	q := &Blocking[T]{liveness: o.liveness}
	q.nonEmpty = sync.NewCond(&q.mu)
	return q
}

// Push appends item to the tail and wakes one parked consumer.
func (q *Blocking[T]) Push(item T) error {
	var err error
	if gerr := q.guard(func() {
		if q.closed {
			err = ErrClosed
			return
		}
		q.items = append(q.items, item)
		q.nonEmpty.Signal()
	}); gerr != nil {
		return gerr
	}
	return err
}

// PushAll appends every item in one critical section. Either all items are
// enqueued or none are.
func (q *Blocking[T]) PushAll(items []T) error {
	if len(items) == 0 {
		return nil
	}

	var err error
	if gerr := q.guard(func() {
		if q.closed {
			err = ErrClosed
			return
		}
		q.items = append(q.items, items...)
		if len(items) == 1 {
			q.nonEmpty.Signal()
		} else {
			q.nonEmpty.Broadcast()
		}
	}); gerr != nil {
		return gerr
	}
	return err
}

// Pop removes and returns the head item, blocking while the queue is empty.
// Items still queued after Close are handed out; once the queue is closed and
// empty Pop returns ErrClosed.
func (q *Blocking[T]) Pop() (T, error) {
	var (
		item T
		err  error
	)
	if gerr := q.guard(func() {
		for len(q.items) == 0 && !q.closed && q.poisoned == nil {
			q.park()
		}
		if q.poisoned != nil {
			err = q.poisoned
			return
		}
		if len(q.items) == 0 {
			err = ErrClosed
			return
		}

		item = q.items[0]
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]

		// cascade: another consumer may be parked behind a batch push
		if len(q.items) > 0 && q.waiting > 0 {
			q.nonEmpty.Signal()
		}
	}); gerr != nil {
		return item, gerr
	}
	return item, err
}

// park waits on the condition with the lock held. The liveness timer takes the
// lock before broadcasting so it cannot slip between a re-check and Wait.
func (q *Blocking[T]) park() {
	q.waiting++
	var timer *time.Timer
	if q.liveness > 0 {
		timer = time.AfterFunc(q.liveness, func() {
			q.mu.Lock()
			q.nonEmpty.Broadcast()
			q.mu.Unlock()
		})
	}

	q.nonEmpty.Wait()

	if timer != nil {
		timer.Stop()
	}
	q.waiting--
	q.wakeups.Add(1)
}

// Close rejects further pushes and wakes every parked consumer. It is safe to
// call more than once.
func (q *Blocking[T]) Close() {
	_ = q.guard(func() {
		q.closed = true
		q.nonEmpty.Broadcast()
	})
}

// Drain removes and returns every pending item.
func (q *Blocking[T]) Drain() []T {
	var out []T
	_ = q.guard(func() {
		out = q.items
		q.items = nil
	})
	return out
}

// Abandon closes the queue and returns whatever is still pending, even when
// the queue is poisoned. It is the salvage path for a pool that is going down.
func (q *Blocking[T]) Abandon() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.items
	q.items = nil
	q.closed = true
	q.nonEmpty.Broadcast()
	return out
}

// Len returns the number of queued items.
func (q *Blocking[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Waiting returns the number of consumers currently parked in Pop.
func (q *Blocking[T]) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waiting
}

// Wakeups returns how many times a parked consumer has been woken.
func (q *Blocking[T]) Wakeups() int64 {
	return q.wakeups.Load()
}

// Poison marks the queue unusable as if a critical section had panicked with
// cause, and returns the resulting error.
func (q *Blocking[T]) Poison(cause any) error {
	return q.guard(func() { panic(cause) })
}

// Err returns the poison error, if any.
func (q *Blocking[T]) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.poisoned
}

// guard runs fn with the lock held. A panic inside fn poisons the queue:
// parked consumers are woken and every later call fails with ErrPoisoned.
func (q *Blocking[T]) guard(fn func()) (err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.poisoned != nil {
		return q.poisoned
	}

	defer func() {
		if r := recover(); r != nil {
			q.poisoned = fmt.Errorf("%w: %v", ErrPoisoned, r)
			q.nonEmpty.Broadcast()
			err = q.poisoned
		}
	}()

	fn()
	return nil
}
