//go:build !linux

package metrics

import (
	"runtime"
	"time"
)

// ProcessMemoryGB approximates resident memory from the Go runtime on
// platforms without rusage support wired up.
func ProcessMemoryGB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.Sys) / (1024 * 1024 * 1024)
}

// ProcessCPUPercent is unavailable without rusage; reports zero.
func ProcessCPUPercent(time.Duration) float64 {
	return 0
}
