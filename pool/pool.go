package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/starmap/internal/cpu"
	"github.com/utkarsh5026/starmap/internal/queue"
)

// ErrNilTask is returned when a nil task or function is submitted.
var ErrNilTask = errors.New("pool: nil task")

// Pool is a fixed-size set of workers sharing one blocking FIFO queue.
//
// The caller that submits work is a peer of the workers, not one of them.
// A Pool is safe for concurrent use.
type Pool struct {
	cfg    *config
	log    *zap.Logger
	queue  *queue.Blocking[*job]
	size   int
	daemon bool

	group  errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	shutdownOnce sync.Once
	closing      atomic.Bool
	done         chan struct{}
	joinErr      error

	poisonOnce sync.Once
	poison     atomic.Pointer[error]
}

// New starts threadCount workers bound to one shared queue.
//
// daemon records whether the pool is meant to live as long as the process.
// A daemon pool may be abandoned at exit; a non-daemon pool is expected to be
// stopped with Shutdown. Both kinds support Shutdown.
//
// Example:
//
//	p, err := pool.New(4, false, pool.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer p.Shutdown(true)
func New(threadCount int, daemon bool, opts ...Option) (*Pool, error) {
	if threadCount < 1 {
		return nil, &ConstructionError{
			Param: "thread count",
			Value: threadCount,
			Err:   ErrInvalidThreadCount,
		}
	}

	cfg := newConfig(opts...)
	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		cfg:    cfg,
		log:    cfg.logger.With(zap.String("pool", cfg.name)),
		queue:  queue.New[*job](queue.WithLiveness(cfg.liveness)),
		size:   threadCount,
		daemon: daemon,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	for i := range threadCount {
		p.group.Go(func() error {
			return p.worker(i)
		})
	}

	p.log.Debug("pool started",
		zap.Int("size", threadCount),
		zap.Bool("daemon", daemon),
		zap.Bool("locked_threads", cfg.lockThreads),
	)
	return p, nil
}

// DefaultThreadCount is the worker count used by Default: the number of
// physical cores available to the process, never less than 1. It is measured
// on every call so a changed affinity mask is picked up.
func DefaultThreadCount() int {
	return cpu.PhysicalCores()
}

// Default creates a non-daemon pool sized by DefaultThreadCount.
func Default(opts ...Option) *Pool {
	p, err := New(DefaultThreadCount(), false, opts...)
	if err != nil {
		// DefaultThreadCount never reports less than one core
		panic(err)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Daemon reports whether the pool was created as a daemon pool.
func (p *Pool) Daemon() bool { return p.daemon }

// Pending returns the number of tasks waiting for a worker.
func (p *Pool) Pending() int { return p.queue.Len() }

// Closed reports whether Shutdown has been called.
func (p *Pool) Closed() bool { return p.closing.Load() }

// Err returns the poison error once the pool has hit a fatal lock failure.
func (p *Pool) Err() error {
	if errp := p.poison.Load(); errp != nil {
		return *errp
	}
	return nil
}

// Submit enqueues task without waiting for it. A panic or error from the task
// is logged and counted but not reported back; use SubmitFuture for that.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	return p.enqueue(&job{index: -1, run: task})
}

// SubmitFuture enqueues task and returns a Future that completes with the
// task's error, a *CapturedFailure if it panicked, or ErrTaskDropped.
func (p *Pool) SubmitFuture(task Task) (*Future, error) {
	if task == nil {
		return nil, ErrNilTask
	}

	f := newFuture()
	j := &job{index: -1, run: task, done: f.complete, drop: f.complete}
	if err := p.enqueue(j); err != nil {
		return nil, err
	}
	return f, nil
}

// enqueue pushes jobs in one step. The queued gauge is raised before the push
// so a worker that pops a job at once never takes it below zero.
func (p *Pool) enqueue(jobs ...*job) error {
	p.cfg.metrics.queued(len(jobs))
	if err := p.queue.PushAll(jobs); err != nil {
		p.cfg.metrics.queued(-len(jobs))
		return mapQueueErr(err)
	}
	p.cfg.metrics.submitted(len(jobs))
	return nil
}

// Shutdown stops accepting work and waits for every worker to exit. Each
// worker finishes the task it is running first.
//
// With drain set, tasks still queued are run to completion. Otherwise they are
// dropped: their futures and scatter/gather slots complete with ErrTaskDropped
// and the number dropped is returned.
//
// Shutdown is idempotent; later calls wait for the same workers and report
// zero dropped. The error is the poison error if the pool was poisoned.
func (p *Pool) Shutdown(drain bool) (dropped int, err error) {
	dropped = p.beginShutdown(drain)
	<-p.done
	return dropped, p.joinErr
}

// ShutdownTimeout is Shutdown with a bound on the wait. When the workers are
// still busy after timeout it returns an error wrapping ErrShutdownTimeout;
// the workers keep going and the pool stays closed.
func (p *Pool) ShutdownTimeout(drain bool, timeout time.Duration) (dropped int, err error) {
	dropped = p.beginShutdown(drain)
	if err := waitUntil(p.done, timeout); err != nil {
		return dropped, err
	}
	return dropped, p.joinErr
}

func (p *Pool) beginShutdown(drain bool) int {
	dropped := 0
	p.shutdownOnce.Do(func() {
		p.closing.Store(true)
		p.queue.Close()
		if !drain {
			dropped = p.dropPending(p.queue.Drain(), ErrTaskDropped)
		}

		p.log.Info("pool shutting down",
			zap.Bool("drain", drain),
			zap.Int("dropped", dropped),
		)

		go func() {
			p.joinErr = p.group.Wait()
			p.cancel()
			p.log.Debug("pool stopped")
			close(p.done)
		}()
	})
	return dropped
}

// dropPending completes every discarded job with cause and returns how many
// there were.
func (p *Pool) dropPending(jobs []*job, cause error) int {
	for _, j := range jobs {
		if j.drop != nil {
			j.drop(cause)
		}
	}
	p.cfg.metrics.dropped(len(jobs))
	return len(jobs)
}

// poisoned marks the pool unusable after the shared queue reported a panic
// inside its critical section. Pending work is salvaged and failed so that no
// caller waits forever on it.
func (p *Pool) poisoned(err error) {
	p.poisonOnce.Do(func() {
		p.poison.Store(&err)
		n := p.dropPending(p.queue.Abandon(), fmt.Errorf("%w: %w", ErrTaskDropped, err))
		p.log.Error("shared queue poisoned, pool is no longer usable",
			zap.Error(err),
			zap.Int("dropped", n),
		)
	})
}
