package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestShutdown_Idle(t *testing.T) {
	p, err := New(4, false)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}

	start := time.Now()
	dropped, err := p.Shutdown(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dropped != 0 {
		t.Errorf("expected nothing dropped, got %d", dropped)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("idle shutdown took %v", elapsed)
	}
	if !p.Closed() {
		t.Error("expected pool to report closed")
	}
}

func TestShutdown_WaitsForRunningTask(t *testing.T) {
	p, err := New(1, false)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	_ = p.Submit(func() error {
		close(started)
		<-release
		finished.Store(true)
		return nil
	})
	<-started

	done := make(chan struct{})
	go func() {
		_, _ = p.Shutdown(false)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("shutdown returned while a task was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not return after the task finished")
	}
	if !finished.Load() {
		t.Error("running task was not allowed to finish")
	}
}

func TestShutdown_Drain(t *testing.T) {
	p, err := New(1, false)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}

	release := make(chan struct{})
	_ = p.Submit(func() error {
		<-release
		return nil
	})

	var ran atomic.Int32
	futures := make([]*Future, 10)
	for i := range futures {
		futures[i], _ = p.SubmitFuture(func() error {
			ran.Add(1)
			return nil
		})
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	dropped, err := p.Shutdown(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dropped != 0 {
		t.Errorf("drain must not drop tasks, dropped %d", dropped)
	}
	if ran.Load() != 10 {
		t.Errorf("expected all 10 queued tasks to run, got %d", ran.Load())
	}
	for i, f := range futures {
		if err := f.Err(); err != nil {
			t.Errorf("future %d: unexpected error %v", i, err)
		}
	}
}

func TestShutdown_NoDrain(t *testing.T) {
	p, err := New(1, false)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	_ = p.Submit(func() error {
		close(started)
		<-release
		return nil
	})
	<-started

	var ran atomic.Int32
	futures := make([]*Future, 5)
	for i := range futures {
		futures[i], _ = p.SubmitFuture(func() error {
			ran.Add(1)
			return nil
		})
	}

	type result struct {
		outcomes []Outcome[int]
		err      error
	}
	batch := make(chan result, 1)
	go func() {
		outcomes, err := ScatterGather(p, square, []int{1, 2, 3})
		batch <- result{outcomes, err}
	}()
	waitFor(t, 2*time.Second, func() bool { return p.Pending() == 8 })

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	dropped, err := p.Shutdown(false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dropped != 8 {
		t.Errorf("expected 8 dropped tasks, got %d", dropped)
	}
	if ran.Load() != 0 {
		t.Errorf("dropped tasks must not run, %d ran", ran.Load())
	}

	for i, f := range futures {
		if err := f.Wait(); !errors.Is(err, ErrTaskDropped) {
			t.Errorf("future %d: expected ErrTaskDropped, got %v", i, err)
		}
	}

	select {
	case r := <-batch:
		if r.err != nil {
			t.Fatalf("unexpected batch error: %v", r.err)
		}
		for i, o := range r.outcomes {
			if !errors.Is(o.Err, ErrTaskDropped) {
				t.Errorf("slot %d: expected ErrTaskDropped, got %v", i, o.Err)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scatter/gather caller left waiting on dropped tasks")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	p, err := New(2, true)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}

	if _, err := p.Shutdown(true); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	dropped, err := p.Shutdown(false)
	if err != nil {
		t.Errorf("second shutdown: %v", err)
	}
	if dropped != 0 {
		t.Errorf("second shutdown reported %d dropped", dropped)
	}
}

func TestShutdown_RejectsNewWork(t *testing.T) {
	p, err := New(2, false)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	_, _ = p.Shutdown(true)

	if err := p.Submit(func() error { return nil }); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Submit: expected ErrPoolClosed, got %v", err)
	}
	if _, err := p.SubmitFuture(func() error { return nil }); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("SubmitFuture: expected ErrPoolClosed, got %v", err)
	}

	outcomes, err := ScatterGather(p, square, []int{1, 2})
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("ScatterGather: expected ErrPoolClosed, got %v", err)
	}
	if outcomes != nil {
		t.Errorf("expected no outcomes, got %v", outcomes)
	}
}

func TestShutdownTimeout(t *testing.T) {
	p, err := New(1, false)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}

	release := make(chan struct{})
	_ = p.Submit(func() error {
		<-release
		return nil
	})
	waitFor(t, time.Second, func() bool { return p.Pending() == 0 })

	_, err = p.ShutdownTimeout(true, 30*time.Millisecond)
	if !errors.Is(err, ErrShutdownTimeout) {
		t.Errorf("expected ErrShutdownTimeout, got %v", err)
	}

	close(release)
	if _, err := p.ShutdownTimeout(true, 2*time.Second); err != nil {
		t.Errorf("expected clean shutdown after release, got %v", err)
	}
}

func TestFuture_WaitContext(t *testing.T) {
	p := newTestPool(t, 1)

	release := make(chan struct{})
	defer close(release)
	f, _ := p.SubmitFuture(func() error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := f.WaitContext(ctx); err == nil {
		t.Error("expected context error while task is blocked")
	}
}
