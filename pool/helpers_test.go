package pool

import (
	"testing"
	"time"
)

// newTestPool creates a pool that is shut down (draining) when the test ends.
func newTestPool(t *testing.T, threads int, opts ...Option) *Pool {
	t.Helper()
	p, err := New(threads, false, opts...)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	t.Cleanup(func() {
		_, _ = p.ShutdownTimeout(true, 5*time.Second)
	})
	return p
}

// sequence returns [0, n).
func sequence(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
