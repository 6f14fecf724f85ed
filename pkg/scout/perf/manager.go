package perf

import (
	"context"
	"sync"
	"time"

	"github.com/jamesainslie/scout/pkg/scout/logging"
)

// Defaults for the paused wait inside AcquireWorker.
const (
	DefaultPauseTimeout      = 60 * time.Second
	DefaultPausePollInterval = time.Second

	statsWindow = 10 * time.Minute
)

// Options configures a Manager.
type Options struct {
	Limits

	InitialWorkers  int
	MaxWorkers      int
	AdjustInterval  time.Duration
	ThroughputFloor float64

	SampleInterval time.Duration
	HistorySize    int

	// PauseTimeout bounds how long AcquireWorker waits while paused.
	PauseTimeout time.Duration

	// PausePollInterval is how often the pause latch is rechecked.
	PausePollInterval time.Duration

	// Sampler overrides the process sampler.
	Sampler Sampler

	// Now overrides the clock used for adjustment spacing and windows.
	Now func() time.Time
}

// Stats is a point-in-time view of the admission controller.
type Stats struct {
	Current *Sample `json:"current,omitempty"`
	Peak    *Sample `json:"peak,omitempty"`
	Average *Sample `json:"average,omitempty"`
	Metrics Metrics `json:"metrics"`

	CurrentWorkers int `json:"current_workers"`
	MaxWorkers     int `json:"max_workers"`
	InFlight       int `json:"in_flight"`

	Emergency bool `json:"emergency"`
	Paused    bool `json:"paused"`
}

// Manager composes the resource monitor, limiter and pool. All per-file
// analysis goes through AcquireWorker and ReleaseWorker.
type Manager struct {
	monitor *Monitor
	limiter *Limiter
	pool    *Pool
	events  subscribers[Event]
	log     *logging.Logger

	pauseTimeout time.Duration
	pausePoll    time.Duration

	mu      sync.Mutex
	running bool
}

// NewManager wires a Manager from opts.
func NewManager(opts Options) *Manager {
	if opts.PauseTimeout <= 0 {
		opts.PauseTimeout = DefaultPauseTimeout
	}
	if opts.PausePollInterval <= 0 {
		opts.PausePollInterval = DefaultPausePollInterval
	}

	m := &Manager{
		monitor: NewMonitor(opts.Sampler, opts.SampleInterval, opts.HistorySize),
		limiter: NewLimiter(opts.Limits),
		pool: NewPool(PoolOptions{
			InitialWorkers:  opts.InitialWorkers,
			MaxWorkers:      opts.MaxWorkers,
			AdjustInterval:  opts.AdjustInterval,
			ThroughputFloor: opts.ThroughputFloor,
			Now:             opts.Now,
		}),
		log:          logging.Get("perf"),
		pauseTimeout: opts.PauseTimeout,
		pausePoll:    opts.PausePollInterval,
	}
	if opts.Now != nil {
		m.monitor.now = opts.Now
	}

	m.monitor.Subscribe(m.limiter.Evaluate)
	m.monitor.Subscribe(func(s Sample) {
		if m.isRunning() {
			m.pool.Adjust(s)
		}
	})
	m.limiter.Subscribe(m.events.notify)
	m.pool.Subscribe(m.events.notify)

	return m
}

// Start begins resource sampling and adaptive scaling.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	m.log.Info("performance manager started",
		"workers", m.pool.Current(), "max_workers", m.pool.Max())
	m.monitor.Start(ctx)
}

// Stop halts sampling. In-flight workers are unaffected.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	m.monitor.Stop()
	m.pool.Close()
	m.log.Info("performance manager stopped")
}

func (m *Manager) isRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Subscribe registers fn for every limiter and pool event.
func (m *Manager) Subscribe(fn func(Event)) {
	m.events.add(fn)
}

// Record injects a sample as if the monitor had taken it.
func (m *Manager) Record(s Sample) {
	m.monitor.Record(s)
}

// AcquireWorker admits one unit of work.
//
// It fails with ErrAdmissionRefused as soon as the emergency latch is set.
// While paused it rechecks every poll interval up to the pause timeout and
// then fails with ErrStillPaused. Otherwise it blocks on the pool.
func (m *Manager) AcquireWorker(ctx context.Context) error {
	if m.limiter.Emergency() {
		return ErrAdmissionRefused
	}

	if m.limiter.Paused() {
		if err := m.waitUnpaused(ctx); err != nil {
			return err
		}
	}

	return m.pool.Acquire(ctx)
}

func (m *Manager) waitUnpaused(ctx context.Context) error {
	deadline := time.Now().Add(m.pauseTimeout)
	timer := time.NewTimer(m.pausePoll)
	defer timer.Stop()

	for m.limiter.Paused() {
		if m.limiter.Emergency() {
			return ErrAdmissionRefused
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrStillPaused
		}
		timer.Reset(min(m.pausePoll, remaining))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if m.limiter.Emergency() {
		return ErrAdmissionRefused
	}
	return nil
}

// ReleaseWorker returns a slot taken by AcquireWorker and records the
// processed size and outcome.
func (m *Manager) ReleaseWorker(size int64, err error) {
	m.pool.Release(size, err)
}

// ResetPause clears the pause latch.
func (m *Manager) ResetPause() {
	m.limiter.ResetPause()
}

// Emergency reports whether admissions are permanently refused.
func (m *Manager) Emergency() bool {
	return m.limiter.Emergency()
}

// Paused reports whether admissions are temporarily held.
func (m *Manager) Paused() bool {
	return m.limiter.Paused()
}

// Monitor exposes the resource monitor.
func (m *Manager) Monitor() *Monitor {
	return m.monitor
}

// Pool exposes the admission pool.
func (m *Manager) Pool() *Pool {
	return m.pool
}

// Stats returns a snapshot covering the last ten minutes of samples.
func (m *Manager) Stats() Stats {
	st := Stats{
		Metrics:        m.pool.Tracker().Metrics(),
		CurrentWorkers: m.pool.Current(),
		MaxWorkers:     m.pool.Max(),
		InFlight:       m.pool.InFlight(),
		Emergency:      m.limiter.Emergency(),
		Paused:         m.limiter.Paused(),
	}
	if s, ok := m.limiter.Current(); ok {
		st.Current = &s
	}
	if s, ok := m.monitor.Peak(statsWindow); ok {
		st.Peak = &s
	}
	if s, ok := m.monitor.Average(statsWindow); ok {
		st.Average = &s
	}
	return st
}
