package pool

import (
	"context"
	"sync"
)

// Future is the completion handle returned by SubmitFuture.
// It completes exactly once, either when the task returns or when the pool
// drops it.
type Future struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed when the task has finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the task's error once Done is closed, and nil before that.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the task has finished and returns its error.
func (f *Future) Wait() error {
	<-f.done
	return f.err
}

// WaitContext is Wait bounded by ctx. Giving up on the wait does not stop
// the task.
func (f *Future) WaitContext(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
