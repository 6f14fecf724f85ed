package perf

import (
	"sync"
	"time"

	"github.com/jamesainslie/scout/pkg/scout/tuner"
)

const bytesPerMB = 1024 * 1024

// processSampler measures the current process. CPU is the rusage delta
// over wall time since the previous sample, so it can exceed 100 on
// multi-core hosts.
type processSampler struct {
	mu        sync.Mutex
	now       func() time.Time
	totalRAM  int64
	lastWall  time.Time
	lastCPU   time.Duration
	baseRead  int64
	baseWrite int64
}

// NewProcessSampler returns a Sampler for the running process. Disk I/O is
// reported relative to the moment of construction.
func NewProcessSampler() Sampler {
	res, _ := tuner.Detect()

	p := &processSampler{
		now:      time.Now,
		totalRAM: res.TotalRAM,
	}
	p.lastWall = p.now()
	p.lastCPU = cpuTime()
	p.baseRead, p.baseWrite = ioCounters()
	return p
}

func (p *processSampler) Sample() (Sample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	wall := p.now()
	cpu := cpuTime()

	var cpuPct float64
	if elapsed := wall.Sub(p.lastWall); elapsed > 0 {
		cpuPct = float64(cpu-p.lastCPU) / float64(elapsed) * 100
	}
	p.lastWall, p.lastCPU = wall, cpu

	rss, err := residentBytes()
	if err != nil {
		return Sample{}, err
	}

	read, write := ioCounters()

	s := Sample{
		Time:        wall,
		CPUPercent:  cpuPct,
		MemoryMB:    float64(rss) / bytesPerMB,
		DiskReadMB:  float64(max(read-p.baseRead, 0)) / bytesPerMB,
		DiskWriteMB: float64(max(write-p.baseWrite, 0)) / bytesPerMB,
		OpenFiles:   openFiles(),
		Threads:     threadCount(),
	}
	if p.totalRAM > 0 {
		s.MemoryPercent = float64(rss) / float64(p.totalRAM) * 100
	}
	return s, nil
}
