package perf

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	calm     = Sample{CPUPercent: 10, MemoryPercent: 10}
	overload = Sample{CPUPercent: 95, MemoryPercent: 10}
)

func newTestPool(initial, maxWorkers int) (*Pool, *fakeClock) {
	clock := newFakeClock()
	p := NewPool(PoolOptions{
		InitialWorkers: initial,
		MaxWorkers:     maxWorkers,
		AdjustInterval: 30 * time.Second,
		Now:            clock.Now,
	})
	return p, clock
}

func tryAcquire(p *Pool, wait time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	return p.Acquire(ctx)
}

func TestNewPoolClamps(t *testing.T) {
	p, _ := newTestPool(0, 4)
	assert.Equal(t, 1, p.Current())

	p, _ = newTestPool(10, 4)
	assert.Equal(t, 4, p.Current())

	p, _ = newTestPool(3, 0)
	assert.Equal(t, 1, p.Current())
	assert.Equal(t, 1, p.Max())
}

func TestPoolAdmissionBound(t *testing.T) {
	p, _ := newTestPool(3, 6)

	var active, peakActive atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !assert.NoError(t, p.Acquire(context.Background())) {
				return
			}
			n := active.Add(1)
			for {
				old := peakActive.Load()
				if n <= old || peakActive.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
			p.Release(10, nil)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peakActive.Load(), int64(3))
	assert.Equal(t, 0, p.InFlight())
	assert.Equal(t, int64(20), p.Tracker().Metrics().TotalFiles)
}

func TestPoolAdjustRespectsInterval(t *testing.T) {
	p, clock := newTestPool(1, 4)

	_, changed := p.Adjust(calm)
	assert.False(t, changed, "adjust within the first interval must be a no-op")

	clock.Advance(29 * time.Second)
	_, changed = p.Adjust(calm)
	assert.False(t, changed)

	clock.Advance(2 * time.Second)
	ev, changed := p.Adjust(calm)
	require.True(t, changed)
	assert.Equal(t, EventScaleUp, ev.Kind)
	assert.Equal(t, 2, p.Current())

	// The successful adjustment restarts the interval.
	_, changed = p.Adjust(calm)
	assert.False(t, changed)
}

func TestPoolShortAdjustIntervalIsRaised(t *testing.T) {
	clock := newFakeClock()
	p := NewPool(PoolOptions{
		InitialWorkers: 2,
		MaxWorkers:     8,
		AdjustInterval: time.Second,
		Now:            clock.Now,
	})

	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		_, changed := p.Adjust(calm)
		assert.False(t, changed, "resized %ds after start", i+1)
	}
	assert.Equal(t, 2, p.Current())

	clock.Advance(DefaultAdjustInterval)
	_, changed := p.Adjust(calm)
	assert.True(t, changed)
	assert.Equal(t, 3, p.Current())
}

func TestPoolScaleUpStopsAtMax(t *testing.T) {
	p, clock := newTestPool(1, 2)

	for i := 0; i < 5; i++ {
		clock.Advance(31 * time.Second)
		p.Adjust(calm)
		assert.LessOrEqual(t, p.Current(), 2)
	}
	assert.Equal(t, 2, p.Current())

	// Both permits are usable.
	require.NoError(t, tryAcquire(p, 50*time.Millisecond))
	require.NoError(t, tryAcquire(p, 50*time.Millisecond))
	assert.Error(t, tryAcquire(p, 20*time.Millisecond))
}

func TestPoolScaleDownNeverBelowOne(t *testing.T) {
	p, clock := newTestPool(2, 4)

	clock.Advance(31 * time.Second)
	ev, changed := p.Adjust(overload)
	require.True(t, changed)
	assert.Equal(t, EventScaleDown, ev.Kind)
	assert.Equal(t, 1, p.Current())

	clock.Advance(31 * time.Second)
	_, changed = p.Adjust(overload)
	assert.False(t, changed)
	assert.Equal(t, 1, p.Current())
}

func TestPoolScaleDownOnErrorRate(t *testing.T) {
	p, clock := newTestPool(3, 4)
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Acquire(context.Background()))
		var err error
		if i%3 == 0 {
			err = errors.New("boom")
		}
		p.Release(1, err)
	}

	clock.Advance(31 * time.Second)
	ev, changed := p.Adjust(Sample{CPUPercent: 10, MemoryPercent: 10})
	require.True(t, changed)
	assert.Equal(t, EventScaleDown, ev.Kind)
}

func TestPoolScaleDownDoesNotRevoke(t *testing.T) {
	p, clock := newTestPool(2, 2)

	require.NoError(t, p.Acquire(context.Background()))
	require.NoError(t, p.Acquire(context.Background()))

	clock.Advance(31 * time.Second)
	_, changed := p.Adjust(overload)
	require.True(t, changed)
	assert.Equal(t, 1, p.Current())

	// Both in-flight workers keep their permits.
	assert.Equal(t, 2, p.InFlight())

	// Give the reservation time to queue on the semaphore.
	time.Sleep(20 * time.Millisecond)

	// The first release feeds the reservation, not a new worker.
	p.Release(1, nil)
	assert.Error(t, tryAcquire(p, 30*time.Millisecond))

	// The second release frees the single remaining worker slot.
	p.Release(1, nil)
	require.NoError(t, tryAcquire(p, 50*time.Millisecond))
	assert.Error(t, tryAcquire(p, 20*time.Millisecond))
}

func TestPoolScaleUpCancelsPendingReservation(t *testing.T) {
	p, clock := newTestPool(2, 2)

	require.NoError(t, p.Acquire(context.Background()))
	require.NoError(t, p.Acquire(context.Background()))

	clock.Advance(31 * time.Second)
	p.Adjust(overload)
	assert.Equal(t, 1, p.Current())

	clock.Advance(31 * time.Second)
	ev, changed := p.Adjust(calm)
	require.True(t, changed)
	assert.Equal(t, EventScaleUp, ev.Kind)
	assert.Equal(t, 2, p.Current())

	p.Release(1, nil)
	require.NoError(t, tryAcquire(p, 50*time.Millisecond))
	p.Release(1, nil)
	p.Release(1, nil)
	p.Close()
}

func TestPoolCloseSettlesPendingReservations(t *testing.T) {
	p, clock := newTestPool(2, 2)

	require.NoError(t, p.Acquire(context.Background()))
	require.NoError(t, p.Acquire(context.Background()))

	clock.Advance(31 * time.Second)
	_, changed := p.Adjust(overload)
	require.True(t, changed)
	assert.Equal(t, 1, p.Current())

	// The reservation is still waiting for a permit when the pool closes.
	time.Sleep(20 * time.Millisecond)
	p.Close()
	assert.Equal(t, 2, p.Current(), "an unfilled reservation gives its worker back")

	p.Release(1, nil)
	p.Release(1, nil)

	// Capacity matches Current after a restart.
	require.NoError(t, tryAcquire(p, 50*time.Millisecond))
	require.NoError(t, tryAcquire(p, 50*time.Millisecond))
	assert.Error(t, tryAcquire(p, 20*time.Millisecond))
}

func TestPoolCloseKeepsHeldReservations(t *testing.T) {
	p, clock := newTestPool(2, 2)

	clock.Advance(31 * time.Second)
	_, changed := p.Adjust(overload)
	require.True(t, changed)
	assert.Equal(t, 1, p.Current())

	p.Close()
	assert.Equal(t, 1, p.Current())
	require.NoError(t, tryAcquire(p, 50*time.Millisecond))
	assert.Error(t, tryAcquire(p, 20*time.Millisecond))
}

func TestPoolAcquireHonoursContext(t *testing.T) {
	p, _ := newTestPool(1, 1)
	require.NoError(t, p.Acquire(context.Background()))

	err := tryAcquire(p, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, p.InFlight())
}

func TestPoolSubscribe(t *testing.T) {
	p, clock := newTestPool(1, 2)

	var got []Event
	p.Subscribe(func(ev Event) { got = append(got, ev) })

	clock.Advance(31 * time.Second)
	p.Adjust(calm)

	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Workers)
}
