package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jamesainslie/scout/pkg/scout/filter"
	"github.com/jamesainslie/scout/pkg/scout/logging"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

// ErrScanInProgress is returned when Scan is called while a scan is running.
var ErrScanInProgress = errors.New("scan already in progress")

// progressEvery is the processed-file interval between progress log lines.
const progressEvery = 1000

// Traversal halts without error on these.
var (
	errStopped   = errors.New("scan stopped")
	errTruncated = errors.New("emergency file limit reached")
)

// Scanner performs a one-shot crawl of a project root.
type Scanner struct {
	opts   Options
	root   string
	filter *filter.Filter
	gate   Gate
	log    *logging.Logger

	stopped atomic.Bool
	pause   pauser

	mu      sync.Mutex
	stats   types.ScanStats
	started time.Time
	running bool
	cancel  context.CancelFunc
}

// New creates a Scanner. The root must exist and be a directory.
func New(opts Options) (*Scanner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	root, err := resolveRoot(opts.Root)
	if err != nil {
		return nil, err
	}

	f := opts.Filter
	if f == nil {
		if f, err = filter.New(); err != nil {
			return nil, err
		}
	}

	gate := opts.Gate
	if gate == nil {
		gate = NewFixedGate(opts.Workers)
	}

	return &Scanner{
		opts:   opts,
		root:   root,
		filter: f,
		gate:   gate,
		log:    logging.Get("scanner"),
	}, nil
}

func resolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, abs)
	}
	return abs, nil
}

// Root returns the absolute scan root.
func (s *Scanner) Root() string {
	return s.root
}

// Scan crawls the root and returns the session statistics.
//
// Per-file and directory errors are recorded in the stats. Stop ends the
// scan early without an error. An admission refusal from the gate halts
// discovery and is returned together with the stats, as is the context
// error when ctx is cancelled. Records completed before the halt are
// still emitted.
func (s *Scanner) Scan(ctx context.Context) (*types.ScanStats, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrScanInProgress
	}
	s.running = true
	s.cancel = cancel
	s.stats = types.ScanStats{}
	s.started = time.Now()
	s.mu.Unlock()

	s.stopped.Store(false)
	s.log.Info("starting scan", "root", s.root,
		"max_depth", s.opts.MaxDepth, "max_files", s.opts.MaxFiles, "batch_size", s.opts.BatchSize)

	p := newPipeline(runCtx, s)
	walkErr := s.walk(runCtx, p, s.root, 0)
	p.finish()

	var err error
	switch {
	case walkErr == nil:
	case errors.Is(walkErr, errTruncated):
		s.mu.Lock()
		s.stats.Truncated = true
		s.mu.Unlock()
		s.log.Error("emergency file limit reached, discovery halted", "limit", s.opts.MaxFiles)
	case errors.Is(walkErr, errStopped):
		s.markStopped()
	case ctx.Err() != nil:
		s.markStopped()
		err = ctx.Err()
	default:
		err = walkErr
	}

	s.mu.Lock()
	s.stats.Elapsed = time.Since(s.started)
	stats := s.snapshotLocked()
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	s.log.Info("scan complete",
		"files_discovered", stats.FilesDiscovered,
		"files_processed", stats.FilesProcessed,
		"files_skipped", stats.FilesSkipped,
		"files_errored", stats.FilesErrored,
		"directories", stats.DirectoriesScanned,
		"bytes", types.FormatSize(stats.BytesProcessed),
		"elapsed", stats.Elapsed.Round(time.Millisecond),
		"truncated", stats.Truncated,
		"stopped", stats.Stopped)

	return &stats, err
}

// Stop halts discovery. Analyses already admitted finish and their
// records are emitted before Scan returns.
func (s *Scanner) Stop() {
	s.stopped.Store(true)

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		s.log.Info("stopping scan", "root", s.root)
		cancel()
	}
	s.pause.release()
}

// Pause suspends traversal at the next directory or entry boundary.
func (s *Scanner) Pause() {
	if s.pause.hold() {
		s.log.Info("scan paused", "root", s.root)
	}
}

// Resume continues a paused traversal.
func (s *Scanner) Resume() {
	if s.pause.release() {
		s.log.Info("scan resumed", "root", s.root)
	}
}

// Paused reports whether traversal is paused.
func (s *Scanner) Paused() bool {
	return s.pause.isHeld()
}

// Stats returns a snapshot of the current or most recent scan.
func (s *Scanner) Stats() types.ScanStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.snapshotLocked()
	if s.running {
		st.Elapsed = time.Since(s.started)
	}
	return st
}

func (s *Scanner) snapshotLocked() types.ScanStats {
	st := s.stats
	st.Errors = append([]types.ScanError(nil), s.stats.Errors...)
	return st
}

// checkpoint blocks while paused and reports whether traversal must end.
func (s *Scanner) checkpoint(ctx context.Context) error {
	if err := s.pause.wait(ctx); err != nil {
		return err
	}
	if s.stopped.Load() {
		return errStopped
	}
	return ctx.Err()
}

func (s *Scanner) walk(ctx context.Context, p *pipeline, dir string, depth int) error {
	if err := s.checkpoint(ctx); err != nil {
		return err
	}

	rel, _ := s.Relative(dir)
	if s.filter.ExcludeDir(rel) {
		s.log.Debug("directory excluded", "path", dir)
		return nil
	}
	if depth > s.opts.MaxDepth {
		s.log.Warn("maximum directory depth reached", "path", dir, "depth", depth)
		return nil
	}

	// os.ReadDir returns entries sorted by name.
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.log.Warn("cannot read directory", "path", dir, "error", err)
		s.addError(dir, err)
		return nil
	}
	s.enterDir(depth)

	var subdirs []string
	for _, e := range entries {
		if err := s.checkpoint(ctx); err != nil {
			return err
		}

		path := filepath.Join(dir, e.Name())
		switch {
		case e.IsDir():
			subdirs = append(subdirs, path)

		case e.Type()&fs.ModeSymlink != 0:
			// Links to regular files are scanned. Links to directories are
			// never followed.
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			if err := s.consider(ctx, p, path, info.Size()); err != nil {
				return err
			}

		case e.Type().IsRegular():
			info, err := e.Info()
			if err != nil {
				s.addError(path, err)
				continue
			}
			if err := s.consider(ctx, p, path, info.Size()); err != nil {
				return err
			}
		}
	}

	for _, sub := range subdirs {
		if err := s.walk(ctx, p, sub, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// consider applies the filter to one file and queues it for analysis.
func (s *Scanner) consider(ctx context.Context, p *pipeline, path string, size int64) error {
	rel, _ := s.Relative(path)
	if v := s.filter.Evaluate(rel, size); v != filter.Included {
		s.mu.Lock()
		s.stats.FilesSkipped++
		s.mu.Unlock()
		s.log.Debug("file skipped", "path", rel, "reason", v)
		return nil
	}

	s.mu.Lock()
	if s.opts.MaxFiles > 0 && s.stats.FilesDiscovered >= int64(s.opts.MaxFiles) {
		s.mu.Unlock()
		return errTruncated
	}
	s.stats.FilesDiscovered++
	s.mu.Unlock()

	if err := p.dispatch(ctx, path); err != nil {
		if s.stopped.Load() {
			return errStopped
		}
		return err
	}
	return nil
}

func (s *Scanner) enterDir(depth int) {
	s.mu.Lock()
	s.stats.DirectoriesScanned++
	s.stats.MaxDepthReached = max(s.stats.MaxDepthReached, depth)
	s.mu.Unlock()
}

func (s *Scanner) addError(path string, err error) {
	s.mu.Lock()
	s.stats.Errors = append(s.stats.Errors, types.ScanError{Path: path, Error: err.Error()})
	s.mu.Unlock()
}

func (s *Scanner) markStopped() {
	s.mu.Lock()
	s.stats.Stopped = true
	s.mu.Unlock()
}

// recordResult updates counters for one finished analysis.
func (s *Scanner) recordResult(path string, rec *types.FileRecord, err error) {
	s.mu.Lock()
	if err != nil {
		s.stats.FilesErrored++
		s.stats.Errors = append(s.stats.Errors, types.ScanError{Path: path, Error: err.Error()})
		s.mu.Unlock()
		s.log.Warn("file analysis failed", "path", path, "error", err)
		return
	}

	s.stats.FilesProcessed++
	s.stats.BytesProcessed += rec.Size
	processed := s.stats.FilesProcessed
	st := s.stats
	st.Elapsed = time.Since(s.started)
	s.mu.Unlock()

	if processed%progressEvery == 0 {
		s.log.Info("scan progress",
			"files_processed", processed,
			"files_per_second", fmt.Sprintf("%.1f", st.FilesPerSecond()),
			"elapsed", st.Elapsed.Round(time.Second))
	}
}

// Relative returns path relative to the root with forward slashes.
// It reports false for paths outside the root.
func (s *Scanner) Relative(path string) (string, bool) {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	if rel == "." {
		rel = ""
	}
	return rel, true
}

// InScope reports whether a file at path with the given size would be
// discovered by a scan. A negative size skips the size ceiling, which is
// how paths that no longer exist are checked.
func (s *Scanner) InScope(path string, size int64) bool {
	rel, ok := s.Relative(path)
	if !ok || rel == "" {
		return false
	}

	parts := strings.Split(rel, "/")
	if len(parts)-1 > s.opts.MaxDepth {
		return false
	}
	for i := 1; i < len(parts); i++ {
		if s.filter.ExcludeDir(strings.Join(parts[:i], "/")) {
			return false
		}
	}

	if size < 0 {
		return s.filter.MatchPath(rel)
	}
	return s.filter.Match(rel, size)
}

// DirInScope reports whether a scan would descend into the directory at path.
func (s *Scanner) DirInScope(path string) bool {
	rel, ok := s.Relative(path)
	if !ok {
		return false
	}
	if rel == "" {
		return true
	}

	parts := strings.Split(rel, "/")
	if len(parts) > s.opts.MaxDepth {
		return false
	}
	for i := 1; i <= len(parts); i++ {
		if s.filter.ExcludeDir(strings.Join(parts[:i], "/")) {
			return false
		}
	}
	return true
}
