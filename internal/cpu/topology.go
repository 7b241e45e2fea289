// Package cpu answers host topology questions for pool sizing and binds
// worker goroutines to OS threads.
package cpu

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// topology is the part of the CPUID report used for sizing.
type topology struct {
	// physical and logical count one package; both are 0 when undetectable.
	physical       int
	logical        int
	threadsPerCore int
}

func hostTopology() topology {
	return topology{
		physical:       cpuid.CPU.PhysicalCores,
		logical:        cpuid.CPU.LogicalCores,
		threadsPerCore: cpuid.CPU.ThreadsPerCore,
	}
}

// PhysicalCores returns the number of physical cores backing the logical CPUs
// this process may run on. Hyperthread siblings count once. When the core
// layout cannot be detected it falls back to the usable logical CPU count.
func PhysicalCores() int {
	return coresFor(usableCPUs(), hostTopology())
}

// coresFor maps usable logical CPUs to physical cores. The package core count
// is exact only when the process sees the whole package; otherwise the usable
// set is divided by the SMT width.
func coresFor(usable int, t topology) int {
	if usable < 1 {
		return 1
	}
	if t.physical > 0 && t.logical == usable {
		return min(t.physical, usable)
	}
	return max(usable/max(t.threadsPerCore, 1), 1)
}

// LogicalCPUs returns the number of logical CPUs, never less than 1.
func LogicalCPUs() int {
	return max(runtime.NumCPU(), 1)
}
