package pool

import (
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// batch is the shared result store of one ScatterGather call. Workers insert
// outcomes by index; the caller parks on ready until all of them are in.
type batch[R any] struct {
	id   string
	size int

	mu       sync.Mutex
	ready    *sync.Cond
	results  map[int]Outcome[R]
	poisoned error
}

func newBatch[R any](size int) *batch[R] {
	b := &batch[R]{
		id:      uuid.NewString(),
		size:    size,
		results: make(map[int]Outcome[R], size),
	}
	b.ready = sync.NewCond(&b.mu)
	return b
}

// put records the outcome for o.Index. Recording an index twice, or one
// outside the batch, breaks the exactly-once invariant and poisons the batch.
func (b *batch[R]) put(o Outcome[R]) {
	_ = b.guard(func() {
		if o.Index < 0 || o.Index >= b.size {
			panic(fmt.Sprintf("outcome index %d outside batch of %d", o.Index, b.size))
		}
		if _, dup := b.results[o.Index]; dup {
			panic(fmt.Sprintf("outcome for index %d recorded twice", o.Index))
		}

		b.results[o.Index] = o
		if len(b.results) == b.size {
			b.ready.Signal()
		}
	})
}

// gather blocks until every outcome is recorded and drains them in input order.
func (b *batch[R]) gather() ([]Outcome[R], error) {
	var out []Outcome[R]
	err := b.guard(func() {
		for len(b.results) < b.size && b.poisoned == nil {
			b.ready.Wait()
		}
		if b.poisoned != nil {
			return
		}

		out = make([]Outcome[R], b.size)
		for i := range out {
			out[i] = b.results[i]
		}
		clear(b.results)
	})
	if err == nil && out == nil {
		err = b.err()
	}
	return out, err
}

func (b *batch[R]) err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.poisoned
}

// guard runs fn with the batch lock held; a panic inside poisons the batch and
// releases the waiting caller.
func (b *batch[R]) guard(fn func()) (err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.poisoned != nil {
		return b.poisoned
	}

	defer func() {
		if r := recover(); r != nil {
			b.poisoned = fmt.Errorf("%w: batch %s: %v", ErrLockPoisoned, b.id, r)
			b.ready.Broadcast()
			err = b.poisoned
		}
	}()

	fn()
	return nil
}

// ScatterGather applies fn to every element of args on the pool's workers and
// returns one Outcome per input, in input order, whatever order the tasks
// finish in.
//
// All tasks are queued before the caller starts waiting. A task that returns
// an error or panics only affects its own slot; a panic is recorded as a
// *CapturedFailure. With WithRetryPolicy, returned errors are retried with
// exponential backoff; panics are not.
//
// An empty args returns an empty slice at once without touching the pool.
// The error is non-nil only when the batch could not be submitted
// (ErrPoolClosed, ErrLockPoisoned) or its result store was poisoned.
//
// Example:
//
//	outcomes, err := pool.ScatterGather(p, func(n int) (int, error) {
//	    return n * n, nil
//	}, []int{1, 2, 3, 4})
//	// outcomes[i].Value: 1, 4, 9, 16
func ScatterGather[A, R any](p *Pool, fn func(A) (R, error), args []A) ([]Outcome[R], error) {
	if len(args) == 0 {
		return []Outcome[R]{}, nil
	}
	if fn == nil {
		return nil, ErrNilTask
	}

	b := newBatch[R](len(args))
	jobs := make([]*job, len(args))
	for i, arg := range args {
		jobs[i] = &job{
			index: i,
			run: func() error {
				v, err := callTask(p, i, fn, arg)
				b.put(Outcome[R]{Value: v, Err: err, Index: i})
				return err
			},
			drop: func(cause error) {
				b.put(Outcome[R]{Err: cause, Index: i})
			},
		}
	}

	log := p.log.With(zap.String("batch", b.id))
	if err := p.enqueue(jobs...); err != nil {
		log.Debug("batch rejected", zap.Error(err))
		return nil, err
	}
	log.Debug("batch submitted", zap.Int("size", len(args)))

	out, err := b.gather()
	if err != nil {
		log.Error("batch result store poisoned", zap.Error(err))
		return nil, err
	}

	log.Debug("batch gathered", zap.Int("size", len(out)))
	return out, nil
}

// Map is ScatterGather for functions that cannot fail other than by panicking.
func Map[A, R any](p *Pool, fn func(A) R, args []A) ([]Outcome[R], error) {
	if fn == nil && len(args) > 0 {
		return nil, ErrNilTask
	}
	return ScatterGather(p, func(a A) (R, error) {
		return fn(a), nil
	}, args)
}

// callTask runs fn on arg, retrying returned errors per the pool's retry
// policy. A panic ends the task at once and becomes a *CapturedFailure.
func callTask[A, R any](p *Pool, index int, fn func(A) (R, error), arg A) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			result = zero
			err = newCapturedFailure(index, r)
		}
	}()

	if !p.cfg.retrying() {
		return fn(arg)
	}

	return backoff.Retry(p.ctx, func() (R, error) {
		return fn(arg)
	},
		backoff.WithBackOff(p.cfg.newBackOff()),
		backoff.WithMaxTries(uint(p.cfg.maxAttempts)),
	)
}

// JoinErrors combines the errors of every failed outcome, in input order.
// It returns nil when all outcomes succeeded.
func JoinErrors[R any](outcomes []Outcome[R]) error {
	var err error
	for _, o := range outcomes {
		if o.Err != nil {
			err = multierr.Append(err, o.Err)
		}
	}
	return err
}

// Values returns the produced values in input order, or the combined error if
// any outcome failed.
func Values[R any](outcomes []Outcome[R]) ([]R, error) {
	if err := JoinErrors(outcomes); err != nil {
		return nil, err
	}

	values := make([]R, len(outcomes))
	for i, o := range outcomes {
		values[i] = o.Value
	}
	return values, nil
}
