package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// RotationConfig configures log file rotation behavior.
type RotationConfig struct {
	// MaxSize is the size in bytes that triggers rotation. Zero uses 10MB.
	MaxSize int64

	// MaxAge is the number of days rotated files are kept. Zero keeps them.
	MaxAge int

	// MaxBackups is the number of rotated files kept. Zero keeps them all.
	MaxBackups int

	// Daily rotates when the date changes.
	Daily bool
}

// DefaultRotationConfig returns sensible defaults for rotation.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:    10 * 1024 * 1024,
		MaxAge:     30,
		MaxBackups: 5,
		Daily:      true,
	}
}

// RotatingWriter is an io.WriteCloser that rotates its file by size or date.
// Writes take an advisory flock so several scout processes can share a log.
type RotatingWriter struct {
	path   string
	cfg    RotationConfig
	mu     sync.Mutex
	file   *os.File
	size   int64
	opened time.Time
}

// NewRotatingWriter opens path for appending, creating parent directories.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultRotationConfig().MaxSize
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &RotatingWriter{path: path, cfg: cfg}
	if err := w.open(); err != nil {
		return nil, err
	}
	w.prune()

	return w, nil
}

// Write appends p, rotating first when the size or date limit is crossed.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	if w.due(int64(len(p)), time.Now()) {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("rotating log file: %w", err)
		}
	}

	fd := int(w.file.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return 0, fmt.Errorf("acquiring file lock: %w", err)
	}
	defer func() { _ = unix.Flock(fd, unix.LOCK_UN) }()

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing to log file: %w", err)
	}
	return n, nil
}

// Close syncs and closes the log file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	syncErr := w.file.Sync()
	closeErr := w.file.Close()
	w.file = nil

	if syncErr != nil {
		return fmt.Errorf("syncing log file: %w", syncErr)
	}
	return closeErr
}

func (w *RotatingWriter) open() error {
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	w.file = file
	w.size = info.Size()
	w.opened = info.ModTime()
	return nil
}

func (w *RotatingWriter) due(incoming int64, now time.Time) bool {
	if w.size > 0 && w.size+incoming > w.cfg.MaxSize {
		return true
	}
	if !w.cfg.Daily {
		return false
	}
	y1, m1, d1 := now.Date()
	y2, m2, d2 := w.opened.Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

// rotatedName returns base.<timestamp>.ext for the current path.
func (w *RotatingWriter) rotatedName(now time.Time) string {
	ext := filepath.Ext(w.path)
	return fmt.Sprintf("%s.%s%s", strings.TrimSuffix(w.path, ext), now.Format("2006-01-02-150405.000"), ext)
}

func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing current file: %w", err)
	}
	w.file = nil

	now := time.Now()
	if _, err := os.Stat(w.path); err == nil {
		if err := os.Rename(w.path, w.rotatedName(now)); err != nil {
			return fmt.Errorf("renaming log file: %w", err)
		}
	}

	if err := w.open(); err != nil {
		return err
	}
	w.opened = now
	w.prune()

	return nil
}

// Backups returns rotated files for this writer, newest first.
func (w *RotatingWriter) Backups() []string {
	dir := filepath.Dir(w.path)
	base := filepath.Base(w.path)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	type backup struct {
		path string
		mod  time.Time
	}
	var found []backup
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == base || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, backup{filepath.Join(dir, name), info.ModTime()})
	}

	slices.SortFunc(found, func(a, b backup) int {
		if c := b.mod.Compare(a.mod); c != 0 {
			return c
		}
		return strings.Compare(b.path, a.path)
	})

	paths := make([]string, len(found))
	for i, b := range found {
		paths[i] = b.path
	}
	return paths
}

// prune removes backups beyond MaxBackups or older than MaxAge days.
func (w *RotatingWriter) prune() {
	cutoff := time.Time{}
	if w.cfg.MaxAge > 0 {
		cutoff = time.Now().AddDate(0, 0, -w.cfg.MaxAge)
	}

	for i, path := range w.Backups() {
		drop := w.cfg.MaxBackups > 0 && i >= w.cfg.MaxBackups
		if !drop && !cutoff.IsZero() {
			if info, err := os.Stat(path); err == nil && info.ModTime().Before(cutoff) {
				drop = true
			}
		}
		if drop {
			_ = os.Remove(path)
		}
	}
}
