package perf

import (
	"context"
	"sync"
	"time"

	"github.com/jamesainslie/scout/pkg/scout/logging"
)

// DefaultSampleInterval is the sampling period when none is configured.
const DefaultSampleInterval = 5 * time.Second

// Monitor periodically samples resource usage into a History.
type Monitor struct {
	sampler  Sampler
	interval time.Duration
	history  *History
	subs     subscribers[Sample]
	now      func() time.Time
	log      *logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor. A nil sampler uses NewProcessSampler.
func NewMonitor(sampler Sampler, interval time.Duration, historySize int) *Monitor {
	if sampler == nil {
		sampler = NewProcessSampler()
	}
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Monitor{
		sampler:  sampler,
		interval: interval,
		history:  NewHistory(historySize),
		now:      time.Now,
		log:      logging.Get("perf"),
	}
}

// Subscribe registers fn to receive every recorded sample. Callbacks run
// on the sampling goroutine and must not block.
func (m *Monitor) Subscribe(fn func(Sample)) {
	m.subs.add(fn)
}

// Start begins sampling. A first sample is taken immediately.
// Calling Start on a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(ctx, m.done)
	m.log.Debug("resource monitor started", "interval", m.interval)
}

// Stop halts sampling and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.log.Debug("resource monitor stopped")
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.collect()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) collect() {
	s, err := m.sampler.Sample()
	if err != nil {
		m.log.Warn("resource sample failed", "error", err)
		return
	}
	if s.Time.IsZero() {
		s.Time = m.now()
	}
	m.Record(s)
}

// Record appends a sample and notifies subscribers synchronously.
// The sampling loop uses it; callers may inject samples directly.
func (m *Monitor) Record(s Sample) {
	if s.Time.IsZero() {
		s.Time = m.now()
	}
	m.history.Add(s)
	m.subs.notify(s)
}

// History returns the underlying sample ring.
func (m *Monitor) History() *History {
	return m.history
}

// Latest returns the newest sample.
func (m *Monitor) Latest() (Sample, bool) {
	return m.history.Latest()
}

// Recent returns samples from the last window, oldest first.
func (m *Monitor) Recent(window time.Duration) []Sample {
	return m.history.Since(m.now().Add(-window))
}

// Peak returns the sample with the highest memory use in the window.
func (m *Monitor) Peak(window time.Duration) (Sample, bool) {
	return peak(m.Recent(window))
}

// Average returns the mean sample over the window.
func (m *Monitor) Average(window time.Duration) (Sample, bool) {
	return average(m.Recent(window))
}
