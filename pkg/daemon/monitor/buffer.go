package monitor

import (
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/scout/pkg/scout/logging"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

type pending struct {
	event   types.ChangeEvent
	touched time.Time
}

// Buffer coalesces change events per path until they have been quiet for
// the debounce window. The latest event for a path wins.
type Buffer struct {
	window    time.Duration
	warnLimit int
	log       *logging.Logger

	mu      sync.Mutex
	entries map[string]pending
	warned  bool
}

// NewBuffer creates a buffer. A warnLimit of zero disables the size warning.
func NewBuffer(window time.Duration, warnLimit int) *Buffer {
	return &Buffer{
		window:    window,
		warnLimit: warnLimit,
		log:       logging.Get("monitor"),
		entries:   make(map[string]pending),
	}
}

// Add records ev as the latest change for its path at time now.
//
// A Moved event also drops anything pending for its source. A later
// Created or Modified for the destination of a pending move keeps the move
// so the source is still retired.
func (b *Buffer) Add(ev types.ChangeEvent, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if prev, ok := b.entries[ev.Path]; ok && prev.event.Kind == types.Moved {
		switch ev.Kind {
		case types.Created, types.Modified:
			ev.Kind = types.Moved
			ev.OldPath = prev.event.OldPath
		case types.Deleted:
			b.entries[prev.event.OldPath] = pending{
				event:   types.ChangeEvent{Kind: types.Deleted, Path: prev.event.OldPath, Time: ev.Time},
				touched: now,
			}
		}
	}
	if ev.Kind == types.Moved && ev.OldPath != "" {
		delete(b.entries, ev.OldPath)
	}
	b.entries[ev.Path] = pending{event: ev, touched: now}

	if b.warnLimit > 0 && len(b.entries) >= b.warnLimit && !b.warned {
		b.warned = true
		b.log.Warn("change buffer is large", "pending", len(b.entries), "limit", b.warnLimit)
	}
}

// Ready removes and returns the changes untouched for at least the
// debounce window, oldest first.
func (b *Buffer) Ready(now time.Time) []types.ChangeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ready []pending
	for path, p := range b.entries {
		if now.Sub(p.touched) >= b.window {
			ready = append(ready, p)
			delete(b.entries, path)
		}
	}
	b.resetWarning()
	return sorted(ready)
}

// FlushAll removes and returns every pending change, oldest first.
func (b *Buffer) FlushAll() []types.ChangeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ready := make([]pending, 0, len(b.entries))
	for _, p := range b.entries {
		ready = append(ready, p)
	}
	b.entries = make(map[string]pending)
	b.resetWarning()
	return sorted(ready)
}

// Pending returns the number of buffered paths.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *Buffer) resetWarning() {
	if b.warnLimit > 0 && len(b.entries) < b.warnLimit/2 {
		b.warned = false
	}
}

func sorted(ps []pending) []types.ChangeEvent {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].touched.Equal(ps[j].touched) {
			return ps[i].touched.Before(ps[j].touched)
		}
		return ps[i].event.Path < ps[j].event.Path
	})

	out := make([]types.ChangeEvent, len(ps))
	for i := range ps {
		out[i] = ps[i].event
	}
	return out
}
