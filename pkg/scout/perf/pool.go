package perf

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jamesainslie/scout/pkg/scout/logging"
)

// Scaling thresholds.
const (
	scaleUpMaxCPU       = 70.0
	scaleUpMaxMemory    = 80.0
	scaleUpMaxErrorRate = 0.05

	scaleDownCPU       = 90.0
	scaleDownMemory    = 90.0
	scaleDownErrorRate = 0.10

	// DefaultThroughputFloor is the files/s below which the pool shrinks.
	DefaultThroughputFloor = 1.0

	// DefaultAdjustInterval is the minimum time between adjustments.
	// Shorter intervals are raised to it.
	DefaultAdjustInterval = 30 * time.Second
)

// reservation holds one permit of the underlying semaphore away from
// workers. A pending reservation queues like any acquirer; because the
// semaphore is FIFO, later workers wait behind it, so shrinking takes
// effect as in-flight work drains without revoking anything.
type reservation struct {
	cancel context.CancelFunc
	done   chan struct{}
	held   bool
}

// Pool is the adaptive admission gate. The semaphore is sized to the
// maximum; capacity above the current worker count is parked in
// reservations.
type Pool struct {
	sem     *semaphore.Weighted
	max     int
	tracker *Tracker
	subs    subscribers[Event]
	log     *logging.Logger

	now            func() time.Time
	adjustInterval time.Duration
	floor          float64

	mu           sync.Mutex
	current      int
	reservations []*reservation
	lastAdjust   time.Time

	inflight atomic.Int64
}

// PoolOptions configures a Pool.
type PoolOptions struct {
	InitialWorkers  int
	MaxWorkers      int
	AdjustInterval  time.Duration
	ThroughputFloor float64
	Now             func() time.Time
}

// NewPool creates a pool with InitialWorkers permits available, clamped
// to [1, MaxWorkers]. AdjustInterval is never below DefaultAdjustInterval.
func NewPool(opts PoolOptions) *Pool {
	maxWorkers := max(opts.MaxWorkers, 1)
	initial := min(max(opts.InitialWorkers, 1), maxWorkers)
	opts.AdjustInterval = max(opts.AdjustInterval, DefaultAdjustInterval)
	if opts.ThroughputFloor <= 0 {
		opts.ThroughputFloor = DefaultThroughputFloor
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	p := &Pool{
		sem:            semaphore.NewWeighted(int64(maxWorkers)),
		max:            maxWorkers,
		tracker:        NewTracker(opts.Now),
		log:            logging.Get("perf"),
		now:            opts.Now,
		adjustInterval: opts.AdjustInterval,
		floor:          opts.ThroughputFloor,
		current:        initial,
		lastAdjust:     opts.Now(),
	}

	for i := initial; i < maxWorkers; i++ {
		// The semaphore is fresh, so every TryAcquire succeeds.
		p.sem.TryAcquire(1)
		done := make(chan struct{})
		close(done)
		p.reservations = append(p.reservations, &reservation{cancel: func() {}, done: done, held: true})
	}

	return p
}

// Subscribe registers fn for scale events.
func (p *Pool) Subscribe(fn func(Event)) {
	p.subs.add(fn)
}

// Acquire blocks until a worker slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.inflight.Add(1)
	return nil
}

// Release frees a slot and records the outcome for scaling decisions.
func (p *Pool) Release(size int64, err error) {
	p.inflight.Add(-1)
	p.sem.Release(1)
	p.tracker.Record(size, err != nil)
}

// Current returns the target worker count.
func (p *Pool) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Max returns the worker ceiling.
func (p *Pool) Max() int {
	return p.max
}

// InFlight returns the number of admitted, unreleased workers.
func (p *Pool) InFlight() int {
	return int(p.inflight.Load())
}

// Tracker returns the throughput tracker fed by Release.
func (p *Pool) Tracker() *Tracker {
	return p.tracker
}

// Adjust resizes the pool by at most one worker based on s and recent
// throughput. It does nothing if called within the adjust interval of
// the previous adjustment. It reports the resulting event, if any.
func (p *Pool) Adjust(s Sample) (Event, bool) {
	p.mu.Lock()

	now := p.now()
	if now.Sub(p.lastAdjust) < p.adjustInterval {
		p.mu.Unlock()
		return Event{}, false
	}
	p.lastAdjust = now

	m := p.tracker.Metrics()

	up := s.CPUPercent < scaleUpMaxCPU &&
		s.MemoryPercent < scaleUpMaxMemory &&
		m.ErrorRate < scaleUpMaxErrorRate &&
		p.current < p.max

	down := (s.CPUPercent > scaleDownCPU ||
		s.MemoryPercent > scaleDownMemory ||
		m.ErrorRate > scaleDownErrorRate ||
		m.FilesPerSecond < p.floor) && p.current > 1

	var ev Event
	switch {
	case up:
		p.growLocked()
		ev = Event{Kind: EventScaleUp, Workers: p.current, Time: now,
			Reason: fmt.Sprintf("cpu %.1f%%, memory %.1f%%, error rate %.2f", s.CPUPercent, s.MemoryPercent, m.ErrorRate)}
	case down:
		p.shrinkLocked()
		ev = Event{Kind: EventScaleDown, Workers: p.current, Time: now,
			Reason: fmt.Sprintf("cpu %.1f%%, memory %.1f%%, error rate %.2f, %.2f files/s",
				s.CPUPercent, s.MemoryPercent, m.ErrorRate, m.FilesPerSecond)}
	default:
		p.mu.Unlock()
		return Event{}, false
	}
	p.mu.Unlock()

	p.log.Info("concurrency adjusted", "kind", ev.Kind, "workers", ev.Workers, "reason", ev.Reason)
	p.subs.notify(ev)
	return ev, true
}

// growLocked returns the newest reservation's permit to workers.
func (p *Pool) growLocked() {
	n := len(p.reservations)
	r := p.reservations[n-1]
	p.reservations = p.reservations[:n-1]

	r.cancel()
	<-r.done
	if r.held {
		p.sem.Release(1)
	}
	p.current++
}

// shrinkLocked parks one more permit. The reservation acquires it
// asynchronously once a worker releases.
func (p *Pool) shrinkLocked() {
	if p.sem.TryAcquire(1) {
		done := make(chan struct{})
		close(done)
		p.reservations = append(p.reservations, &reservation{cancel: func() {}, done: done, held: true})
		p.current--
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &reservation{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(r.done)
		if err := p.sem.Acquire(ctx, 1); err == nil {
			r.held = true
		}
	}()

	p.reservations = append(p.reservations, r)
	p.current--
}

// Close cancels pending reservations. A reservation that never got its
// permit is dropped and its worker restored, so the pool stays consistent
// and may be used again.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.reservations[:0]
	for _, r := range p.reservations {
		r.cancel()
		<-r.done
		if r.held {
			kept = append(kept, r)
			continue
		}
		p.current++
	}
	clear(p.reservations[len(kept):])
	p.reservations = kept
}
