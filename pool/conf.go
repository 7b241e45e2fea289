package pool

import (
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/utkarsh5026/starmap/internal/queue"
)

// Option is a functional option for configuring a Pool.
type Option func(*config)

type config struct {
	name        string
	logger      *zap.Logger
	metrics     *Metrics
	rateLimiter *rate.Limiter
	liveness    time.Duration

	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration

	lockThreads bool
	pinThreads  bool
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		name:        "starmap",
		logger:      zap.NewNop(),
		liveness:    queue.DefaultLiveness,
		maxAttempts: 1,
		maxDelay:    5 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithName sets the pool name attached to every log line.
func WithName(name string) Option {
	return func(cfg *config) {
		if name != "" {
			cfg.name = name
		}
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus collectors created by NewMetrics.
func WithMetrics(m *Metrics) Option {
	return func(cfg *config) {
		cfg.metrics = m
	}
}

// WithRateLimit caps how fast workers start tasks.
// tasksPerSecond is the sustained rate and burst the bucket size.
//
// Example:
//
//	WithRateLimit(10, 5) // Allow 10 tasks/sec with burst of 5
func WithRateLimit(tasksPerSecond float64, burst int) Option {
	return func(cfg *config) {
		if tasksPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(tasksPerSecond), burst)
		}
	}
}

// WithRetryPolicy retries scatter/gather tasks whose function returns an
// error, up to maxAttempts runs in total, with exponential backoff starting
// at initialDelay. Panics are never retried.
func WithRetryPolicy(maxAttempts int, initialDelay time.Duration) Option {
	return func(cfg *config) {
		if maxAttempts > 0 {
			cfg.maxAttempts = maxAttempts
		}
		if initialDelay > 0 {
			cfg.initialDelay = initialDelay
		}
	}
}

// WithLivenessTimeout bounds each idle wait of a worker on the shared queue.
func WithLivenessTimeout(d time.Duration) Option {
	return func(cfg *config) {
		if d >= 0 {
			cfg.liveness = d
		}
	}
}

// WithLockedThreads gives every worker its own OS thread for its lifetime.
func WithLockedThreads() Option {
	return func(cfg *config) {
		cfg.lockThreads = true
	}
}

// WithCPUPinning locks every worker to an OS thread and pins worker i to the
// i-th CPU of the process affinity mask, wrapping around. Pinning is only
// honoured on Linux.
func WithCPUPinning() Option {
	return func(cfg *config) {
		cfg.lockThreads = true
		cfg.pinThreads = true
	}
}

func (cfg *config) retrying() bool {
	return cfg.maxAttempts > 1
}

// newBackOff builds a fresh backoff for one task; ExponentialBackOff is
// stateful and must not be shared between goroutines.
func (cfg *config) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if cfg.initialDelay > 0 {
		b.InitialInterval = cfg.initialDelay
	}
	b.MaxInterval = cfg.maxDelay
	return b
}
