//go:build !linux

package cpu

import (
	"errors"
	"runtime"
)

// ErrPinningUnsupported is returned when CPU pinning is requested on a
// platform without a thread affinity call.
var ErrPinningUnsupported = errors.New("cpu: pinning not supported on " + runtime.GOOS)

// LockWorkerThread locks the calling goroutine to its own OS thread.
// Pinning is not available here; the thread is still locked and
// ErrPinningUnsupported is returned when pin is set.
func LockWorkerThread(workerID int, pin bool) (release func(), err error) {
	runtime.LockOSThread()
	if pin {
		err = ErrPinningUnsupported
	}

	return runtime.UnlockOSThread, err
}
