//go:build linux

package cpu

import (
	"errors"
	"runtime"

	"golang.org/x/sys/unix"
)

var errEmptyAffinity = errors.New("cpu: empty affinity mask")

// nthAllowed returns the n-th CPU set in mask, folding n into the number of
// set CPUs.
func nthAllowed(mask *unix.CPUSet, n int) (int, error) {
	count := mask.Count()
	if count == 0 {
		return 0, errEmptyAffinity
	}
	n %= count
	if n < 0 {
		n += count
	}

	seen := 0
	for cpu := 0; ; cpu++ {
		if !mask.IsSet(cpu) {
			continue
		}
		if seen == n {
			return cpu, nil
		}
		seen++
	}
}

// pinToCore pins the current OS thread to the slot-th CPU the process is
// allowed to run on. Must be called after runtime.LockOSThread().
func pinToCore(slot int) error {
	var allowed unix.CPUSet
	if err := unix.SchedGetaffinity(0, &allowed); err != nil {
		return err
	}
	cpuID, err := nthAllowed(&allowed, slot)
	if err != nil {
		return err
	}

	var mask unix.CPUSet
	mask.Zero()
	mask.Set(cpuID)

	return unix.SchedSetaffinity(0, &mask) // 0 = current thread
}

// LockWorkerThread locks the calling goroutine to its own OS thread and, when
// pin is set, restricts that thread to one CPU of the process affinity mask,
// chosen by workerID.
// The returned function undoes the lock and must be deferred. A pinned thread
// stays locked so that it exits with the goroutine instead of returning to
// the scheduler with a narrowed mask.
func LockWorkerThread(workerID int, pin bool) (release func(), err error) {
	runtime.LockOSThread()
	if !pin {
		return runtime.UnlockOSThread, nil
	}

	if err := pinToCore(workerID); err != nil {
		return runtime.UnlockOSThread, err
	}
	return func() {}, nil
}
