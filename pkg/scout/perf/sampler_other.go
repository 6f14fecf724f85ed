//go:build !linux && !darwin

package perf

import (
	"runtime"
	"runtime/pprof"
	"time"
)

func cpuTime() time.Duration {
	return 0
}

func residentBytes() (int64, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int64(ms.Sys), nil
}

func ioCounters() (read, write int64) {
	return 0, 0
}

func openFiles() int {
	return 0
}

func threadCount() int {
	return pprof.Lookup("threadcreate").Count()
}
