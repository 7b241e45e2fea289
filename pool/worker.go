package pool

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/utkarsh5026/starmap/internal/cpu"
	"github.com/utkarsh5026/starmap/internal/queue"
)

// worker is the loop run by every pool goroutine. It pops one job at a time
// from the shared queue and runs it under panic recovery, so a failing task
// never takes the worker down.
//
// It returns nil once the queue is closed and drained, and the poison error if
// the queue's lock was poisoned.
func (p *Pool) worker(id int) error {
	log := p.log.With(zap.Int("worker", id))

	if p.cfg.lockThreads {
		release, err := cpu.LockWorkerThread(id, p.cfg.pinThreads)
		defer release()
		if err != nil {
			log.Warn("worker thread not pinned", zap.Error(err))
		}
	}

	log.Debug("worker started")
	defer log.Debug("worker exited")

	for {
		j, err := p.queue.Pop()
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			p.poisoned(err)
			return err
		}

		p.throttle()
		p.execute(log, j)
	}
}

// throttle blocks until the rate limiter, if any, admits the next task.
func (p *Pool) throttle() {
	if p.cfg.rateLimiter == nil {
		return
	}
	// only fails once the pool context is cancelled, which happens after
	// every worker has exited
	_ = p.cfg.rateLimiter.Wait(p.ctx)
}

// execute runs one job and reports its outcome to the job, the logger and the
// metrics.
func (p *Pool) execute(log *zap.Logger, j *job) {
	p.cfg.metrics.started()
	start := time.Now()

	err := runWithRecovery(j.index, j.run)

	outcome := outcomeSuccess
	var failure *CapturedFailure
	switch {
	case errors.As(err, &failure):
		outcome = outcomePanic
		log.Warn("task panicked",
			zap.Int("index", failure.Index),
			zap.Any("panic", failure.Panic),
			zap.ByteString("stack", failure.Stack),
		)
	case err != nil:
		outcome = outcomeError
		log.Debug("task failed", zap.Int("index", j.index), zap.Error(err))
	}
	p.cfg.metrics.finished(outcome, time.Since(start))

	if j.done != nil {
		j.done(err)
	}
}
