//go:build linux

package cpu

import "golang.org/x/sys/unix"

// usableCPUs is the size of the process affinity mask, so a restricted cpuset
// caps the core count.
func usableCPUs() int {
	var mask unix.CPUSet
	if err := unix.SchedGetaffinity(0, &mask); err == nil {
		if n := mask.Count(); n > 0 {
			return n
		}
	}
	return LogicalCPUs()
}
