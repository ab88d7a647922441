//go:build linux

package metrics

import (
	"time"

	"golang.org/x/sys/unix"
)

// ProcessMemoryGB returns the peak resident set size of this process in GB.
func ProcessMemoryGB() float64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	// Maxrss is kilobytes on Linux.
	return float64(ru.Maxrss) / (1024 * 1024)
}

// ProcessCPUPercent returns total CPU time (user+system) as a percentage of
// elapsed wall time. Can exceed 100 on multi-core workloads.
func ProcessCPUPercent(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	cpu := time.Duration(ru.Utime.Nano() + ru.Stime.Nano())
	return cpu.Seconds() / elapsed.Seconds() * 100
}
