package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/utkarsh5026/starmap/pool"
)

// report is what one demo run produced.
type report struct {
	Threads  int
	Inputs   []int
	Outcomes []pool.Outcome[int]
	Failed   int
	Dropped  int
	Elapsed  time.Duration
	Counters map[string]float64
}

// runDemo squares 0..Inputs-1 on a fresh pool and shuts it down with the
// configured drain policy. progress receives the progress bar.
func runDemo(cfg *Config, log *zap.Logger, progress io.Writer) (*report, error) {
	threads := cfg.Threads
	if threads == 0 {
		threads = pool.DefaultThreadCount()
	}

	reg := prometheus.NewRegistry()
	metrics, err := pool.NewMetrics("starmap", reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	opts := []pool.Option{
		pool.WithName("starmap"),
		pool.WithLogger(log),
		pool.WithMetrics(metrics),
		pool.WithRetryPolicy(cfg.Retries, 10*time.Millisecond),
	}
	if cfg.Rate > 0 {
		opts = append(opts, pool.WithRateLimit(cfg.Rate, cfg.Burst))
	}
	if cfg.Pin {
		opts = append(opts, pool.WithCPUPinning())
	}

	p, err := pool.New(threads, false, opts...)
	if err != nil {
		return nil, err
	}

	bar := makeProgressBar(cfg.Inputs, progress)
	inputs := make([]int, cfg.Inputs)
	for i := range inputs {
		inputs[i] = i
	}

	start := time.Now()
	outcomes, err := pool.ScatterGather(p, func(n int) (int, error) {
		defer func() { _ = bar.Add(1) }()
		return square(n, cfg.FailEvery, cfg.Delay), nil
	}, inputs)
	elapsed := time.Since(start)
	_ = bar.Finish()

	dropped, shutdownErr := p.Shutdown(cfg.Drain)
	if err != nil {
		return nil, err
	}
	if shutdownErr != nil {
		return nil, fmt.Errorf("pool shutdown: %w", shutdownErr)
	}

	r := &report{
		Threads:  threads,
		Inputs:   inputs,
		Outcomes: outcomes,
		Dropped:  dropped,
		Elapsed:  elapsed,
		Counters: gatherCounters(reg),
	}
	for _, o := range outcomes {
		if !o.Ok() {
			r.Failed++
		}
	}

	log.Info("demo finished",
		zap.Int("inputs", len(inputs)),
		zap.Int("failed", r.Failed),
		zap.Duration("elapsed", elapsed),
	)
	return r, nil
}

// square is the demo workload. It panics on every non-zero multiple of
// failEvery to show failure isolation.
func square(n, failEvery int, delay time.Duration) int {
	if delay > 0 {
		time.Sleep(delay)
	}
	if failEvery > 0 && n != 0 && n%failEvery == 0 {
		panic(fmt.Sprintf("input %d is a multiple of %d", n, failEvery))
	}
	return n * n
}

// gatherCounters flattens the counter families of reg, keyed by metric name
// and label values.
func gatherCounters(reg *prometheus.Registry) map[string]float64 {
	families, err := reg.Gather()
	if err != nil {
		return nil
	}

	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				name += fmt.Sprintf("{%s=%q}", lp.GetName(), lp.GetValue())
			}
			out[name] = m.GetCounter().GetValue()
		}
	}
	return out
}

func makeProgressBar(total int, w io.Writer) *progressbar.ProgressBar {
	if w == nil {
		w = os.Stderr
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Mapping inputs"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(w),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
