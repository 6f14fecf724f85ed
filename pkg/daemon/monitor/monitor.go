// Package monitor keeps the index in step with the filesystem after a scan.
//
// Filesystem events are filtered with the scanner's scope rules, coalesced
// in a Buffer, and reconciled once they have been quiet for the debounce
// window. Reconciliation is serialized; the per-file analyses inside one
// pass run concurrently through the scanner's gate and are applied in
// order.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/scout/pkg/daemon/indexer"
	"github.com/jamesainslie/scout/pkg/daemon/watcher"
	"github.com/jamesainslie/scout/pkg/scout/config"
	"github.com/jamesainslie/scout/pkg/scout/logging"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

var (
	// ErrInvalidOptions is returned by New for missing collaborators.
	ErrInvalidOptions = errors.New("invalid monitor options")

	// ErrAlreadyRunning is returned by Start on a running monitor.
	ErrAlreadyRunning = errors.New("monitor already running")
)

// Analyzer is the part of the scanner the monitor reuses.
type Analyzer interface {
	Root() string
	Analyze(ctx context.Context, path string) (*types.FileRecord, error)
	Relative(path string) (string, bool)
	InScope(path string, size int64) bool
	DirInScope(path string) bool
}

// Options configures a Monitor.
type Options struct {
	Analyzer Analyzer
	Indexer  *indexer.Indexer

	DebounceWindow  time.Duration
	PollInterval    time.Duration
	BufferWarnLimit int

	// OnChange receives the results of every non-empty reconciliation.
	OnChange func([]types.ChangeResult)
}

// Stats is a snapshot of monitor activity.
type Stats struct {
	Running          bool      `json:"running"`
	EventsReceived   int64     `json:"events_received"`
	EventsFiltered   int64     `json:"events_filtered"`
	ChangesProcessed int64     `json:"changes_processed"`
	Pending          int       `json:"pending"`
	WatchedDirs      int       `json:"watched_dirs"`
	LastReconcile    time.Time `json:"last_reconcile,omitzero"`
}

// Monitor watches one root and reconciles changes into an Indexer.
type Monitor struct {
	opts   Options
	buffer *Buffer
	log    *logging.Logger
	now    func() time.Time

	reconcileMu sync.Mutex

	mu            sync.Mutex
	watcher       *watcher.Watcher
	cancel        context.CancelFunc
	feed          sync.WaitGroup // watcher and ingestion
	poller        sync.WaitGroup
	running       bool
	lastReconcile time.Time

	received  atomic.Int64
	filtered  atomic.Int64
	processed atomic.Int64
}

// New creates a stopped monitor.
func New(opts Options) (*Monitor, error) {
	if opts.Analyzer == nil || opts.Indexer == nil {
		return nil, fmt.Errorf("%w: analyzer and indexer are required", ErrInvalidOptions)
	}
	if opts.DebounceWindow < 0 {
		return nil, fmt.Errorf("%w: negative debounce window", ErrInvalidOptions)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = config.DefaultPollInterval
	}

	return &Monitor{
		opts:   opts,
		buffer: NewBuffer(opts.DebounceWindow, opts.BufferWarnLimit),
		log:    logging.Get("monitor"),
		now:    time.Now,
	}, nil
}

// Start watches the analyzer's root and begins reconciling.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}

	root := m.opts.Analyzer.Root()
	w, err := watcher.New(watcher.WithSkipDir(func(path string) bool {
		return !m.opts.Analyzer.DirInScope(path)
	}))
	if err != nil {
		return err
	}
	if err := w.Watch(root); err != nil {
		_ = w.Close()
		return fmt.Errorf("watching %s: %w", root, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.watcher = w
	m.cancel = cancel
	m.running = true

	m.feed.Add(2)
	go func() {
		defer m.feed.Done()
		if err := w.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			m.log.Warn("watcher stopped", "error", err)
		}
	}()
	go func() {
		defer m.feed.Done()
		m.ingest(w.Events())
	}()
	m.poller.Add(1)
	go func() {
		defer m.poller.Done()
		m.poll(runCtx)
	}()

	m.log.Info("monitor started", "root", root, "watched_dirs", w.WatchCount(),
		"debounce", m.opts.DebounceWindow)
	return nil
}

// Stop closes the OS watcher, waits for the loops to exit and then
// reconciles everything still buffered before returning.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	w, cancel := m.watcher, m.cancel
	m.running = false
	m.mu.Unlock()

	// Closing the watcher ends Run, which closes the event stream and
	// lets ingest drain it into the buffer.
	closeErr := w.Close()
	drained := make(chan struct{})
	go func() {
		m.feed.Wait()
		close(drained)
	}()

	// The poll loop is cancelled only after ingestion has drained.
	select {
	case <-drained:
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
	cancel()
	m.poller.Wait()

	m.reconcile(ctx, m.buffer.FlushAll())
	m.log.Info("monitor stopped", "processed", m.processed.Load())
	return closeErr
}

// ingest filters events and adds the relevant ones to the buffer until
// the event stream closes.
func (m *Monitor) ingest(events <-chan types.ChangeEvent) {
	for ev := range events {
		m.received.Add(1)
		if !m.relevant(ev) {
			m.filtered.Add(1)
			continue
		}
		m.buffer.Add(ev, m.now())
	}
}

func (m *Monitor) poll(ctx context.Context) {
	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// relevant applies the scan scope rules. A move is kept if either side is
// in scope.
func (m *Monitor) relevant(ev types.ChangeEvent) bool {
	a := m.opts.Analyzer
	switch ev.Kind {
	case types.Created, types.Modified:
		return a.InScope(ev.Path, sizeOf(ev.Path))
	case types.Deleted:
		if ev.IsDir {
			_, ok := a.Relative(ev.Path)
			return ok
		}
		return a.InScope(ev.Path, -1)
	case types.Moved:
		return a.InScope(ev.Path, sizeOf(ev.Path)) || a.InScope(ev.OldPath, -1)
	default:
		return false
	}
}

// sizeOf returns the file size, or -1 if the path cannot be stat'ed.
func sizeOf(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return -1
	}
	return info.Size()
}

// Tick reconciles the changes whose debounce window has passed.
func (m *Monitor) Tick(ctx context.Context) []types.ChangeResult {
	return m.reconcile(ctx, m.buffer.Ready(m.now()))
}

// Flush reconciles every buffered change immediately.
func (m *Monitor) Flush(ctx context.Context) []types.ChangeResult {
	return m.reconcile(ctx, m.buffer.FlushAll())
}

type analysis struct {
	rec     *types.FileRecord
	err     error
	inScope bool
}

// reconcile applies events in order. Only one reconciliation runs at a time.
func (m *Monitor) reconcile(ctx context.Context, events []types.ChangeEvent) []types.ChangeResult {
	if len(events) == 0 {
		return nil
	}

	m.reconcileMu.Lock()
	defer m.reconcileMu.Unlock()

	analyses := m.analyzeAll(ctx, events)

	results := make([]types.ChangeResult, len(events))
	for i, ev := range events {
		results[i] = m.apply(ctx, ev, analyses[i])
	}

	m.processed.Add(int64(len(events)))
	m.mu.Lock()
	m.lastReconcile = m.now()
	m.mu.Unlock()

	m.log.Debug("reconciled changes", "count", len(events))
	if m.opts.OnChange != nil {
		if err := m.notify(results); err != nil {
			m.log.Error("change callback failed", "count", len(results), "error", err)
		}
	}
	return results
}

func (m *Monitor) notify(results []types.ChangeResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in change callback: %v", r)
		}
	}()
	m.opts.OnChange(results)
	return nil
}

// analyzeAll re-analyzes every event that carries a file to upsert.
func (m *Monitor) analyzeAll(ctx context.Context, events []types.ChangeEvent) []analysis {
	out := make([]analysis, len(events))

	var g errgroup.Group
	for i, ev := range events {
		if ev.IsDir || ev.Kind == types.Deleted {
			continue
		}
		g.Go(func() error {
			size := sizeOf(ev.Path)
			if size < 0 {
				out[i] = analysis{err: fs.ErrNotExist}
				return nil
			}
			if !m.opts.Analyzer.InScope(ev.Path, size) {
				return nil
			}
			rec, err := m.opts.Analyzer.Analyze(ctx, ev.Path)
			out[i] = analysis{rec: rec, err: err, inScope: true}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (m *Monitor) apply(ctx context.Context, ev types.ChangeEvent, an analysis) types.ChangeResult {
	res := types.ChangeResult{Event: ev}
	idx := m.opts.Indexer
	a := m.opts.Analyzer

	var err error
	switch {
	case ev.Kind == types.Deleted && ev.IsDir:
		rel, _ := a.Relative(ev.Path)
		var n int
		n, err = idx.RetireTree(ctx, rel)
		res.Action = types.ActionNoop
		if n > 0 {
			res.Action = types.ActionRetired
		}

	case ev.Kind == types.Deleted:
		res.Action, err = m.retire(ctx, ev.Path)

	case an.err != nil && errors.Is(an.err, fs.ErrNotExist):
		// Gone before it could be analyzed.
		if _, err = m.retire(ctx, ev.Path); err == nil && ev.Kind == types.Moved {
			_, err = m.retire(ctx, ev.OldPath)
		}
		res.Action = types.ActionVanished

	case an.err != nil:
		err = an.err

	case !an.inScope:
		// A Moved whose destination left scope, or a file that grew past
		// the size ceiling.
		source := ev.Path
		if ev.Kind == types.Moved {
			source = ev.OldPath
		}
		res.Action, err = m.retire(ctx, source)

	case ev.Kind == types.Moved:
		res.Record = an.rec
		if oldRel, ok := a.Relative(ev.OldPath); ok && oldRel != "" {
			res.Action, err = idx.Move(ctx, oldRel, *an.rec)
		} else {
			_, err = idx.Upsert(ctx, *an.rec)
			res.Action = types.ActionMoved
		}

	default:
		res.Record = an.rec
		res.Action, err = idx.Upsert(ctx, *an.rec)
	}

	if err != nil {
		res.Action = types.ActionFailed
		res.Err = err.Error()
		m.log.Warn("change not applied", "kind", ev.Kind, "path", ev.Path, "error", err)
	}
	return res
}

func (m *Monitor) retire(ctx context.Context, path string) (types.ChangeAction, error) {
	rel, ok := m.opts.Analyzer.Relative(path)
	if !ok || rel == "" {
		return types.ActionNoop, nil
	}
	return m.opts.Indexer.Retire(ctx, rel)
}

// Pending returns the number of buffered changes.
func (m *Monitor) Pending() int {
	return m.buffer.Pending()
}

// Stats returns a snapshot of monitor activity.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	running, last, w := m.running, m.lastReconcile, m.watcher
	m.mu.Unlock()

	st := Stats{
		Running:          running,
		EventsReceived:   m.received.Load(),
		EventsFiltered:   m.filtered.Load(),
		ChangesProcessed: m.processed.Load(),
		Pending:          m.buffer.Pending(),
		LastReconcile:    last,
	}
	if running && w != nil {
		st.WatchedDirs = w.WatchCount()
	}
	return st
}
