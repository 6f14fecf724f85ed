//go:build darwin

package perf

import (
	"fmt"
	"os"
	"runtime/pprof"

	"golang.org/x/sys/unix"
)

// residentBytes reports the peak RSS; darwin has no cheap current-RSS probe
// outside of task_info.
func residentBytes() (int64, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, fmt.Errorf("getrusage: %w", err)
	}
	return ru.Maxrss, nil
}

func ioCounters() (read, write int64) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, 0
	}
	// Block operations, not bytes; scaled by a nominal 4KiB block.
	return ru.Inblock * 4096, ru.Oublock * 4096
}

func openFiles() int {
	entries, err := os.ReadDir("/dev/fd")
	if err != nil {
		return 0
	}
	return max(len(entries)-1, 0)
}

func threadCount() int {
	return pprof.Lookup("threadcreate").Count()
}
