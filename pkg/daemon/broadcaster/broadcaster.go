// Package broadcaster manages subscribers and distributes service events.
//
// Events form a closed set: ScanProgress, ScanComplete, FileChange and
// PerformanceEvent. Publishing never blocks; a subscriber whose buffer
// is full misses the event and the drop is counted.
package broadcaster

import (
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/scout/pkg/scout/perf"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

// DefaultBuffer is the channel capacity of a subscription.
const DefaultBuffer = 100

// Kind identifies an event variant.
type Kind string

// Event kinds.
const (
	KindScanProgress Kind = "scan_progress"
	KindScanComplete Kind = "scan_complete"
	KindFileChange   Kind = "file_change"
	KindPerformance  Kind = "performance_event"
)

// Event is implemented only by the event types of this package.
type Event interface {
	Kind() Kind
	root() string
	sealed()
}

// ScanProgress carries one batch of records emitted by a scan.
type ScanProgress struct {
	Root  string             `json:"root"`
	Batch []types.FileRecord `json:"batch"`
	Stats types.ScanStats    `json:"stats"`
}

// ScanComplete reports the final statistics of a scan.
type ScanComplete struct {
	Root  string          `json:"root"`
	Stats types.ScanStats `json:"stats"`
	Err   string          `json:"error,omitempty"`
}

// FileChange carries the results of one reconciliation tick.
type FileChange struct {
	Root    string               `json:"root"`
	Results []types.ChangeResult `json:"results"`
}

// PerformanceEvent wraps a resource limiter or pool event.
type PerformanceEvent struct {
	Root  string     `json:"root"`
	Event perf.Event `json:"event"`
}

func (ScanProgress) Kind() Kind     { return KindScanProgress }
func (ScanComplete) Kind() Kind     { return KindScanComplete }
func (FileChange) Kind() Kind       { return KindFileChange }
func (PerformanceEvent) Kind() Kind { return KindPerformance }

func (e ScanProgress) root() string     { return e.Root }
func (e ScanComplete) root() string     { return e.Root }
func (e FileChange) root() string       { return e.Root }
func (e PerformanceEvent) root() string { return e.Root }

func (ScanProgress) sealed()     {}
func (ScanComplete) sealed()     {}
func (FileChange) sealed()       {}
func (PerformanceEvent) sealed() {}

// Envelope is what subscribers receive.
type Envelope struct {
	ID    string    `json:"id"`
	Time  time.Time `json:"time"`
	Event Event     `json:"event"`
}

// Subscriber represents a consumer subscribed to events.
type Subscriber struct {
	ID     string
	Root   string
	Kinds  []Kind
	Events chan Envelope

	dropped atomic.Int64
}

// Dropped returns how many events this subscriber missed.
func (s *Subscriber) Dropped() int64 {
	return s.dropped.Load()
}

// Broadcaster manages subscribers and distributes events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	closed      bool

	published atomic.Int64
	dropped   atomic.Int64
}

// New creates a new Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]*Subscriber),
	}
}

// Subscribe registers a subscriber for events under root. An empty root
// matches every root; no kinds means every kind.
func (b *Broadcaster) Subscribe(root string, kinds ...Kind) *Subscriber {
	return b.SubscribeBuffered(root, DefaultBuffer, kinds...)
}

// SubscribeBuffered is Subscribe with an explicit channel capacity.
func (b *Broadcaster) SubscribeBuffered(root string, buffer int, kinds ...Kind) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	if buffer < 1 {
		buffer = 1
	}

	sub := &Subscriber{
		ID:     uuid.New().String(),
		Root:   root,
		Kinds:  kinds,
		Events: make(chan Envelope, buffer),
	}

	b.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		close(sub.Events)
		delete(b.subscribers, id)
	}
}

// Publish delivers ev to every matching subscriber without blocking.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.published.Add(1)

	env := Envelope{ID: uuid.NewString(), Time: time.Now(), Event: ev}
	for _, sub := range b.subscribers {
		if !matches(sub, ev) {
			continue
		}
		select {
		case sub.Events <- env:
		default:
			sub.dropped.Add(1)
			b.dropped.Add(1)
		}
	}
}

// matches checks if an event matches a subscriber's filters.
func matches(sub *Subscriber, ev Event) bool {
	if len(sub.Kinds) > 0 {
		found := false
		for _, k := range sub.Kinds {
			if k == ev.Kind() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if sub.Root == "" {
		return true
	}
	path := ev.root()
	if !strings.HasPrefix(path, sub.Root) {
		return false
	}
	// Ensure it's actually under the root (not just a prefix match)
	return len(path) == len(sub.Root) || path[len(sub.Root)] == filepath.Separator
}

// Close closes the broadcaster and all subscriptions.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.Events)
	}
	b.subscribers = make(map[string]*Subscriber)
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Published returns the number of events published.
func (b *Broadcaster) Published() int64 {
	return b.published.Load()
}

// Dropped returns the number of deliveries skipped on full channels.
func (b *Broadcaster) Dropped() int64 {
	return b.dropped.Load()
}
