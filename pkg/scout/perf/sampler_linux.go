//go:build linux

package perf

import (
	"fmt"

	"github.com/prometheus/procfs"
)

func residentBytes() (int64, error) {
	p, err := procfs.Self()
	if err != nil {
		return 0, fmt.Errorf("opening procfs: %w", err)
	}
	stat, err := p.Stat()
	if err != nil {
		return 0, fmt.Errorf("reading process stat: %w", err)
	}
	return int64(stat.ResidentMemory()), nil
}

// ioCounters returns read_bytes and write_bytes of the process.
// /proc/self/io is unreadable in some containers; zero is returned then.
func ioCounters() (read, write int64) {
	p, err := procfs.Self()
	if err != nil {
		return 0, 0
	}
	counters, err := p.IO()
	if err != nil {
		return 0, 0
	}
	return int64(counters.ReadBytes), int64(counters.WriteBytes)
}

func openFiles() int {
	p, err := procfs.Self()
	if err != nil {
		return 0
	}
	n, err := p.FileDescriptorsLen()
	if err != nil {
		return 0
	}
	// The directory handle used for the listing is one of the entries.
	return max(n-1, 0)
}

func threadCount() int {
	p, err := procfs.Self()
	if err != nil {
		return 0
	}
	stat, err := p.Stat()
	if err != nil {
		return 0
	}
	return stat.NumThreads
}
