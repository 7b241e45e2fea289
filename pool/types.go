package pool

// Task is a unit of work submitted with Submit or SubmitFuture.
// A returned error or a panic is the task's failure.
type Task func() error

// Outcome is the result of one scatter/gather task.
//
// Fields:
//   - Value: The value produced by the function (zero if Err is set)
//   - Err: The returned error, a *CapturedFailure for a panic, or ErrTaskDropped
//   - Index: The position of the input this outcome belongs to
type Outcome[R any] struct {
	Value R
	Err   error
	Index int
}

// Ok reports whether the task produced a value.
func (o Outcome[R]) Ok() bool {
	return o.Err == nil
}

// job is what travels through the shared queue. It is owned by the queue
// until a worker pops it, then by that worker until it finishes.
type job struct {
	// index is the input position for scatter/gather tasks, -1 otherwise.
	index int
	run   func() error
	// done, when set, receives the run's error after it returns.
	done func(error)
	// drop, when set, is called instead of run if the job is discarded.
	drop func(error)
}
