// Package perf implements adaptive admission control for file analysis.
//
// Three parts cooperate:
//
//   - Monitor samples process resource usage into a bounded History and
//     notifies subscribers with every sample.
//   - Limiter evaluates each sample against memory and CPU ceilings and
//     latches the emergency and paused states.
//   - Pool is a resizable admission gate whose worker count is adjusted
//     from resource usage and throughput feedback.
//
// Manager composes them behind AcquireWorker and ReleaseWorker.
package perf

import (
	"fmt"
	"sync"
	"time"

	"github.com/jamesainslie/scout/pkg/scout/logging"
)

// Sample is one snapshot of process resource usage.
type Sample struct {
	Time          time.Time `json:"time"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryMB      float64   `json:"memory_mb"`
	MemoryPercent float64   `json:"memory_percent"`

	// DiskReadMB and DiskWriteMB are cumulative since the sampler started.
	DiskReadMB  float64 `json:"disk_read_mb"`
	DiskWriteMB float64 `json:"disk_write_mb"`

	OpenFiles int `json:"open_files"`
	Threads   int `json:"threads"`
}

// Sampler captures a resource sample. Implementations are called from a
// single goroutine.
type Sampler interface {
	Sample() (Sample, error)
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func() (Sample, error)

// Sample calls f.
func (f SamplerFunc) Sample() (Sample, error) {
	return f()
}

// subscribers is a copy-on-notify list of callbacks.
type subscribers[T any] struct {
	mu  sync.RWMutex
	fns []func(T)
}

func (s *subscribers[T]) add(fn func(T)) {
	s.mu.Lock()
	s.fns = append(s.fns, fn)
	s.mu.Unlock()
}

func (s *subscribers[T]) notify(v T) {
	s.mu.RLock()
	fns := make([]func(T), len(s.fns))
	copy(fns, s.fns)
	s.mu.RUnlock()

	for _, fn := range fns {
		if err := callSubscriber(fn, v); err != nil {
			logging.Get("perf").Error("subscriber failed", "error", err)
		}
	}
}

// callSubscriber runs fn, turning a panic into an error so a faulty
// subscriber cannot take down the sampling loop.
func callSubscriber[T any](fn func(T), v T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in subscriber: %v", r)
		}
	}()
	fn(v)
	return nil
}
