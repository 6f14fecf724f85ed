package perf

import (
	"sync"
	"time"
)

// DefaultHistorySize is the number of samples kept when none is configured.
const DefaultHistorySize = 1000

// History is a fixed-capacity ring of samples; the newest overwrites the
// oldest once full.
type History struct {
	samples []Sample
	size    int
	start   int
	count   int
	mu      sync.RWMutex
}

// NewHistory creates a history holding at most size samples.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{
		samples: make([]Sample, size),
		size:    size,
	}
}

// Add appends a sample, evicting the oldest when full.
func (h *History) Add(s Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples[(h.start+h.count)%h.size] = s
	if h.count < h.size {
		h.count++
	} else {
		h.start = (h.start + 1) % h.size
	}
}

// All returns every retained sample, oldest first.
func (h *History) All() []Sample {
	return h.Since(time.Time{})
}

// Since returns samples taken at or after t, oldest first.
func (h *History) Since(t time.Time) []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Sample, 0, h.count)
	for i := 0; i < h.count; i++ {
		s := h.samples[(h.start+i)%h.size]
		if !s.Time.Before(t) {
			out = append(out, s)
		}
	}
	return out
}

// Latest returns the newest sample.
func (h *History) Latest() (Sample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 {
		return Sample{}, false
	}
	return h.samples[(h.start+h.count-1)%h.size], true
}

// Len returns the number of retained samples.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Cap returns the capacity.
func (h *History) Cap() int {
	return h.size
}

// peak returns the sample with the highest memory use.
func peak(samples []Sample) (Sample, bool) {
	if len(samples) == 0 {
		return Sample{}, false
	}
	best := samples[0]
	for _, s := range samples[1:] {
		if s.MemoryMB > best.MemoryMB {
			best = s
		}
	}
	return best, true
}

// average returns the field-wise mean, stamped with the newest time.
func average(samples []Sample) (Sample, bool) {
	n := len(samples)
	if n == 0 {
		return Sample{}, false
	}

	var avg Sample
	var openFiles, threads int
	for _, s := range samples {
		avg.CPUPercent += s.CPUPercent
		avg.MemoryMB += s.MemoryMB
		avg.MemoryPercent += s.MemoryPercent
		avg.DiskReadMB += s.DiskReadMB
		avg.DiskWriteMB += s.DiskWriteMB
		openFiles += s.OpenFiles
		threads += s.Threads
	}

	f := float64(n)
	avg.Time = samples[n-1].Time
	avg.CPUPercent /= f
	avg.MemoryMB /= f
	avg.MemoryPercent /= f
	avg.DiskReadMB /= f
	avg.DiskWriteMB /= f
	avg.OpenFiles = openFiles / n
	avg.Threads = threads / n
	return avg, true
}
