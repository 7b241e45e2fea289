//go:build !linux

package cpu

func usableCPUs() int {
	return LogicalCPUs()
}
