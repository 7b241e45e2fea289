// Package pool provides a fixed-size worker pool over one blocking FIFO queue
// and a scatter/gather primitive built on it.
//
// The primary type is Pool: N worker goroutines that pop tasks from a shared
// queue, run each one under panic recovery, and park on a condition variable
// while the queue is empty. ScatterGather applies one function to a list of
// inputs on those workers and returns the outcomes in input order.
//
// # Basic Usage
//
//	p, err := pool.New(4, false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Shutdown(true)
//
//	outcomes, err := pool.ScatterGather(p, func(n int) (int, error) {
//	    return n * n, nil
//	}, []int{1, 2, 3, 4})
//	// outcomes[0].Value == 1, outcomes[3].Value == 16
//
// # Failure Isolation
//
// Each scatter/gather task has its own outcome slot. A task that returns an
// error stores that error; a task that panics stores a *CapturedFailure with
// the panic value and stack. Neither affects the other tasks of the batch or
// the worker that ran it. Use JoinErrors or Values to propagate failures when
// the batch as a whole should fail.
//
// # Submitting Work
//
//   - Submit: fire and forget, failures are logged and counted only
//   - SubmitFuture: returns a Future completed when the task finishes or is dropped
//   - ScatterGather / Map: ordered parallel map over a slice
//
// Submitting to a pool after Shutdown fails with ErrPoolClosed.
//
// # Shutdown
//
// Shutdown(true) runs every queued task before the workers exit;
// Shutdown(false) drops queued tasks, completing them with ErrTaskDropped, and
// reports how many were dropped. Either way, tasks already running finish
// first and Shutdown returns only after every worker has exited.
//
// # Lock Poisoning
//
// If code panics while holding the queue lock or a batch lock, the structure
// is marked poisoned and every later operation fails with ErrLockPoisoned.
// For the shared queue this is fatal to the pool: workers exit, pending tasks
// are dropped and further submissions are rejected.
//
// # Configuration Options
//
//   - WithLogger(l): zap logger for lifecycle and failure events
//   - WithMetrics(m): Prometheus collectors from NewMetrics
//   - WithRateLimit(tasksPerSecond, burst): throttle task starts
//   - WithRetryPolicy(maxAttempts, initialDelay): retry returned errors with exponential backoff
//   - WithLivenessTimeout(d): bound on a single idle wait
//   - WithLockedThreads(), WithCPUPinning(): dedicate an OS thread (and core) to each worker
package pool
