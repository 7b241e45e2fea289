package pool

import (
	"errors"
	"fmt"

	"github.com/utkarsh5026/starmap/internal/queue"
)

var (
	// ErrInvalidThreadCount is wrapped by the ConstructionError returned for
	// a thread count below one.
	ErrInvalidThreadCount = errors.New("pool: thread count must be at least 1")

	// ErrPoolClosed is returned when work is submitted after Shutdown.
	ErrPoolClosed = errors.New("pool: pool closed")

	// ErrLockPoisoned reports that a participant panicked while holding a
	// shared lock. It is fatal for the pool instance that raised it.
	ErrLockPoisoned = queue.ErrPoisoned

	// ErrTaskDropped completes tasks discarded by Shutdown(false) or by a
	// poisoned pool before a worker picked them up.
	ErrTaskDropped = errors.New("pool: task dropped before it ran")

	// ErrShutdownTimeout is returned by ShutdownTimeout when the workers are
	// still running after the timeout.
	ErrShutdownTimeout = errors.New("pool: shutdown timeout reached")
)

// ConstructionError describes an invalid pool configuration.
type ConstructionError struct {
	Param string
	Value any
	Err   error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("pool: invalid %s %v: %v", e.Param, e.Value, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// CapturedFailure records a panic raised by a task. It is stored in the
// task's outcome and never crosses the worker boundary.
type CapturedFailure struct {
	// Index is the input position for scatter/gather tasks, -1 otherwise.
	Index int
	// Panic is the value passed to panic.
	Panic any
	// Stack is the goroutine stack at the point of recovery.
	Stack []byte
}

func (f *CapturedFailure) Error() string {
	if f.Index < 0 {
		return fmt.Sprintf("task panicked: %v", f.Panic)
	}
	return fmt.Sprintf("task %d panicked: %v", f.Index, f.Panic)
}

// Unwrap exposes the panic value when it is itself an error.
func (f *CapturedFailure) Unwrap() error {
	if err, ok := f.Panic.(error); ok {
		return err
	}
	return nil
}

// mapQueueErr translates queue errors into the pool's vocabulary.
func mapQueueErr(err error) error {
	if errors.Is(err, queue.ErrClosed) {
		return ErrPoolClosed
	}
	return err
}
