// Package watcher provides recursive filesystem watching.
//
// Raw fsnotify events are translated into types.ChangeEvent values and
// delivered on a channel. Newly created directories are watched and
// expanded into Created events for the files they already contain. A
// rename followed by a create within the move window becomes one Moved
// event.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/scout/pkg/scout/logging"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

// DefaultMoveWindow is how long a rename waits for its matching create.
const DefaultMoveWindow = 100 * time.Millisecond

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("watcher closed")

// Option configures a Watcher.
type Option func(*Watcher)

// WithSkipDir sets a predicate for directories that must not be watched.
func WithSkipDir(skip func(path string) bool) Option {
	return func(w *Watcher) { w.skipDir = skip }
}

// WithMoveWindow overrides DefaultMoveWindow.
func WithMoveWindow(d time.Duration) Option {
	return func(w *Watcher) { w.moveWindow = d }
}

// WithBuffer sets the capacity of the event channel.
func WithBuffer(n int) Option {
	return func(w *Watcher) { w.buffer = n }
}

type rename struct {
	path  string
	isDir bool
	at    time.Time
}

// Watcher monitors directory trees for changes.
type Watcher struct {
	watcher    *fsnotify.Watcher
	skipDir    func(path string) bool
	moveWindow time.Duration
	buffer     int
	events     chan types.ChangeEvent
	log        *logging.Logger
	now        func() time.Time

	mu     sync.RWMutex
	paths  map[string]bool // watched directories
	closed bool

	// Only touched by Run.
	renames []rename
}

// New creates a watcher. Events are available from Events once Run is called.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		watcher:    fsw,
		moveWindow: DefaultMoveWindow,
		buffer:     256,
		log:        logging.Get("watcher"),
		now:        time.Now,
		paths:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.events = make(chan types.ChangeEvent, w.buffer)
	return w, nil
}

// Events returns the translated change stream. It is closed when Run returns.
func (w *Watcher) Events() <-chan types.ChangeEvent {
	return w.events
}

// Watch adds watches for root and every directory below it.
func (w *Watcher) Watch(root string) error {
	w.mu.RLock()
	closed := w.closed
	w.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	if err := w.addWatch(root); err != nil {
		return err
	}
	_, err = w.walkNew(root, false)
	return err
}

// walkNew watches every directory below dir. With collect set it returns
// the regular files found, sorted.
func (w *Watcher) walkNew(dir string, collect bool) ([]string, error) {
	var (
		mu    sync.Mutex
		files []string
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Debug("walk error", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}
		if path == dir {
			return nil
		}

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			if collect && isRegularTarget(path) {
				mu.Lock()
				files = append(files, path)
				mu.Unlock()
			}
		case d.IsDir():
			if w.skip(path) {
				return fastwalk.SkipDir
			}
			if err := w.addWatch(path); err != nil {
				return fastwalk.SkipDir
			}
		case d.Type().IsRegular():
			if collect {
				mu.Lock()
				files = append(files, path)
				mu.Unlock()
			}
		}
		return nil
	})

	sort.Strings(files)
	return files, err
}

func (w *Watcher) skip(path string) bool {
	return w.skipDir != nil && w.skipDir(path)
}

// addWatch adds a single directory to the watch list.
func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.paths[path] {
		return nil
	}

	if err := w.watcher.Add(path); err != nil {
		w.log.Warn("failed to add watch", "path", path, "error", err)
		return err
	}
	w.paths[path] = true
	return nil
}

// Unwatch removes watches for root and everything below it.
func (w *Watcher) Unwatch(root string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path := range w.paths {
		if path == root || isSubPath(root, path) {
			_ = w.watcher.Remove(path)
			delete(w.paths, path)
		}
	}
}

// WatchCount returns the number of watched directories.
func (w *Watcher) WatchCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.paths)
}

func (w *Watcher) isWatched(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.paths[path]
}

// Run translates fsnotify events until ctx is cancelled or Close is called.
// It closes the Events channel on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)

	tick := w.moveWindow / 2
	if tick <= 0 {
		tick = DefaultMoveWindow / 2
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				w.flushRenames(ctx, time.Time{})
				return nil
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.flushRenames(ctx, time.Time{})
				return nil
			}
			w.log.Warn("watcher error", "error", err)

		case <-ticker.C:
			w.flushRenames(ctx, w.now().Add(-w.moveWindow))
		}
	}
}

// handleEvent processes a single filesystem event.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	switch {
	case event.Has(fsnotify.Create):
		w.handleCreate(ctx, path)
	case event.Has(fsnotify.Write):
		w.handleWrite(ctx, path)
	case event.Has(fsnotify.Remove):
		w.handleRemove(ctx, path)
	case event.Has(fsnotify.Rename):
		w.handleRename(path)
	}
}

func (w *Watcher) handleCreate(ctx context.Context, path string) {
	info, err := os.Lstat(path)
	if err != nil {
		// Gone again before we looked; a pending rename still expires
		// into a delete.
		return
	}

	var ev types.ChangeEvent
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		if !isRegularTarget(path) {
			return
		}
		ev = types.ChangeEvent{Kind: types.Created, Path: path}
	case info.IsDir():
		w.handleNewDir(ctx, path)
		return
	case info.Mode().IsRegular():
		ev = types.ChangeEvent{Kind: types.Created, Path: path}
	default:
		return
	}

	if old, ok := w.takeRename(path, false); ok {
		ev.Kind = types.Moved
		ev.OldPath = old.path
	}
	w.emit(ctx, ev)
}

// handleNewDir watches a new directory tree. A directory that arrived by
// rename retires its old location first.
func (w *Watcher) handleNewDir(ctx context.Context, path string) {
	if w.skip(path) {
		return
	}
	if old, ok := w.takeRename(path, true); ok {
		w.emit(ctx, types.ChangeEvent{Kind: types.Deleted, Path: old.path, IsDir: true})
	}

	if err := w.addWatch(path); err != nil {
		return
	}
	files, err := w.walkNew(path, true)
	if err != nil {
		w.log.Debug("new directory walk incomplete", "path", path, "error", err)
	}
	for _, f := range files {
		w.emit(ctx, types.ChangeEvent{Kind: types.Created, Path: f})
	}
}

func (w *Watcher) handleWrite(ctx context.Context, path string) {
	if w.isWatched(path) {
		return
	}
	w.emit(ctx, types.ChangeEvent{Kind: types.Modified, Path: path})
}

func (w *Watcher) handleRemove(ctx context.Context, path string) {
	isDir := w.isWatched(path)
	if isDir {
		w.Unwatch(path)
	}
	w.emit(ctx, types.ChangeEvent{Kind: types.Deleted, Path: path, IsDir: isDir})
}

// handleRename records the source of a rename. It becomes a Moved event if
// a create follows within the move window, a Deleted event otherwise.
func (w *Watcher) handleRename(path string) {
	isDir := w.isWatched(path)
	if isDir {
		w.Unwatch(path)
	}
	for _, r := range w.renames {
		// A moved directory reports itself a second time.
		if r.path == path {
			return
		}
	}
	w.renames = append(w.renames, rename{path: path, isDir: isDir, at: w.now()})
}

// takeRename pairs a create with a pending rename. A rename keeping the
// base name wins; otherwise the oldest pending rename is used.
func (w *Watcher) takeRename(path string, isDir bool) (rename, bool) {
	cutoff := w.now().Add(-w.moveWindow)
	match := -1
	for i, r := range w.renames {
		if r.isDir != isDir || r.at.Before(cutoff) {
			continue
		}
		if filepath.Base(r.path) == filepath.Base(path) {
			match = i
			break
		}
		if match < 0 {
			match = i
		}
	}
	if match < 0 {
		return rename{}, false
	}

	r := w.renames[match]
	w.renames = append(w.renames[:match], w.renames[match+1:]...)
	return r, true
}

// flushRenames turns renames older than cutoff into deletes. A zero
// cutoff flushes all of them.
func (w *Watcher) flushRenames(ctx context.Context, cutoff time.Time) {
	kept := w.renames[:0]
	for _, r := range w.renames {
		if cutoff.IsZero() || r.at.Before(cutoff) {
			w.emit(ctx, types.ChangeEvent{Kind: types.Deleted, Path: r.path, IsDir: r.isDir})
			continue
		}
		kept = append(kept, r)
	}
	w.renames = kept
}

func (w *Watcher) emit(ctx context.Context, ev types.ChangeEvent) {
	ev.Time = w.now()
	select {
	case w.events <- ev:
	case <-ctx.Done():
	}
}

// Close stops the watcher. Run returns once the fsnotify channels close.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.paths = make(map[string]bool)
	return w.watcher.Close()
}

func isRegularTarget(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// isSubPath checks if child is a subdirectory of parent.
func isSubPath(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
