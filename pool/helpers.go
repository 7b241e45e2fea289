package pool

import (
	"fmt"
	"runtime"
	"time"
)

// newCapturedFailure records a recovered panic together with the stack of the
// goroutine that raised it.
func newCapturedFailure(index int, rec any) *CapturedFailure {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return &CapturedFailure{Index: index, Panic: rec, Stack: buf[:n]}
}

// runWithRecovery runs fn and converts a panic into a *CapturedFailure.
func runWithRecovery(index int, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newCapturedFailure(index, r)
		}
	}()
	return fn()
}

// waitUntil blocks until either the done channel is closed or the timeout is reached.
// A non-positive timeout waits forever.
func waitUntil(d <-chan struct{}, timeout time.Duration) error {
	if timeout <= 0 {
		<-d
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-d:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrShutdownTimeout, timeout)
	}
}
