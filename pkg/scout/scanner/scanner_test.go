package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/scout/pkg/scout/config"
	"github.com/jamesainslie/scout/pkg/scout/filter"
	"github.com/jamesainslie/scout/pkg/scout/perf"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

// writeFile creates root/rel with content, creating parent directories.
func writeFile(t *testing.T, root, rel string, content []byte) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

// batchRecorder collects emitted batches.
type batchRecorder struct {
	mu      sync.Mutex
	batches [][]types.FileRecord
}

func (b *batchRecorder) onBatch(_ context.Context, batch []types.FileRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches = append(b.batches, batch)
	return nil
}

func (b *batchRecorder) paths() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, batch := range b.batches {
		for _, rec := range batch {
			out = append(out, rec.RelativePath)
		}
	}
	return out
}

func (b *batchRecorder) sizes() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []int
	for _, batch := range b.batches {
		out = append(out, len(batch))
	}
	return out
}

func newScanner(t *testing.T, opts Options) (*Scanner, *batchRecorder) {
	t.Helper()
	rec := &batchRecorder{}
	if opts.OnBatch == nil {
		opts.OnBatch = rec.onBatch
	}
	s, err := New(opts)
	require.NoError(t, err)
	return s, rec
}

func mustFilter(t *testing.T, opts ...filter.Option) *filter.Filter {
	t.Helper()
	f, err := filter.New(opts...)
	require.NoError(t, err)
	return f
}

func TestScanSkipsExcludedAndOversized(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", []byte(strings.Repeat("x", 2*1024)))
	writeFile(t, root, "b.bin", make([]byte, 2*1024*1024))
	writeFile(t, root, "c.py", []byte("print('c')\n"))

	opts := DefaultOptions(root)
	opts.Filter = mustFilter(t,
		filter.WithExclude("c.py"),
		filter.WithMaxFileSize(1024*1024),
	)
	s, rec := newScanner(t, opts)

	stats, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a.py"}, rec.paths())
	assert.Equal(t, int64(1), stats.FilesDiscovered)
	assert.Equal(t, int64(1), stats.FilesProcessed)
	assert.Equal(t, int64(2), stats.FilesSkipped)
	assert.Equal(t, int64(2*1024), stats.BytesProcessed)
	assert.Equal(t, int64(1), stats.DirectoriesScanned)
	assert.False(t, stats.Truncated)
	assert.False(t, stats.Stopped)
}

func TestScanIsDeterministic(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{
		"z.txt", "m.go", "a/x.go", "a/b/y.go", "a/b/c/w.md", "b/v.py", "b/a/u.py", "A.md",
	} {
		writeFile(t, root, rel, []byte(rel))
	}

	var runs [][]string
	for i := 0; i < 3; i++ {
		opts := DefaultOptions(root)
		opts.Workers = 8
		opts.BatchSize = 2
		s, rec := newScanner(t, opts)
		_, err := s.Scan(context.Background())
		require.NoError(t, err)
		runs = append(runs, rec.paths())
	}

	// Files before subdirectories, names in byte order.
	want := []string{"A.md", "m.go", "z.txt", "a/x.go", "a/b/y.go", "a/b/c/w.md", "b/v.py", "b/a/u.py"}
	for _, got := range runs {
		assert.Equal(t, want, got)
	}
}

func TestScanBatchesPreserveDiscoveryOrder(t *testing.T) {
	root := t.TempDir()
	var want []string
	for i := 0; i < 25; i++ {
		name := fmt.Sprintf("f%02d.go", i)
		// Vary sizes so analyses finish out of order.
		writeFile(t, root, name, []byte(strings.Repeat("y", (25-i)*4096)))
		want = append(want, name)
	}

	opts := DefaultOptions(root)
	opts.BatchSize = 10
	opts.Workers = 8
	s, rec := newScanner(t, opts)

	stats, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{10, 10, 5}, rec.sizes())
	assert.Equal(t, want, rec.paths())
	assert.Equal(t, int64(25), stats.FilesProcessed)
}

func TestScanEmergencyFileLimit(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 10; i++ {
		writeFile(t, root, fmt.Sprintf("f%d.txt", i), []byte("data"))
	}

	opts := DefaultOptions(root)
	opts.MaxFiles = 4
	opts.BatchSize = 3
	s, rec := newScanner(t, opts)

	stats, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.True(t, stats.Truncated)
	assert.Equal(t, int64(4), stats.FilesDiscovered)
	assert.Equal(t, int64(4), stats.FilesProcessed)
	assert.Equal(t, []int{3, 1}, rec.sizes())
	assert.Equal(t, []string{"f0.txt", "f1.txt", "f2.txt", "f3.txt"}, rec.paths())
}

func TestScanEmergencyLimitNotHitAtExactCount(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 3; i++ {
		writeFile(t, root, fmt.Sprintf("f%d.txt", i), []byte("data"))
	}

	opts := DefaultOptions(root)
	opts.MaxFiles = 3
	s, _ := newScanner(t, opts)

	stats, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.False(t, stats.Truncated)
	assert.Equal(t, int64(3), stats.FilesDiscovered)
}

func TestScanMaxDepth(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "top.txt", []byte("0"))
	writeFile(t, root, "a/one.txt", []byte("1"))
	writeFile(t, root, "a/b/two.txt", []byte("2"))
	writeFile(t, root, "a/b/c/three.txt", []byte("3"))

	opts := DefaultOptions(root)
	opts.MaxDepth = 2
	s, rec := newScanner(t, opts)

	stats, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"top.txt", "a/one.txt", "a/b/two.txt"}, rec.paths())
	assert.Equal(t, 2, stats.MaxDepthReached)
	assert.Equal(t, int64(3), stats.DirectoriesScanned)
}

func TestScanDoesNotFollowDirectorySymlinks(t *testing.T) {
	root := t.TempDir()
	target := writeFile(t, root, "real/f.txt", []byte("f"))
	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "link")))
	require.NoError(t, os.Symlink(target, filepath.Join(root, "flink.txt")))
	// A cycle back to the root.
	require.NoError(t, os.Symlink(root, filepath.Join(root, "real", "loop")))

	s, rec := newScanner(t, DefaultOptions(root))
	stats, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"flink.txt", "real/f.txt"}, rec.paths())
	assert.Equal(t, int64(2), stats.DirectoriesScanned)
}

func TestScanPrunesExcludedDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.js", []byte("x"))
	writeFile(t, root, "node_modules/dep/index.js", []byte("x"))
	writeFile(t, root, ".git/HEAD", []byte("ref"))

	opts := DefaultOptions(root)
	opts.Filter = mustFilter(t, filter.WithExclude(config.DefaultExcludePatterns...))
	s, rec := newScanner(t, opts)

	stats, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"index.js"}, rec.paths())
	assert.Equal(t, int64(0), stats.FilesSkipped, "pruned subtrees are never listed")
	assert.Equal(t, int64(1), stats.DirectoriesScanned)
}

func TestScanUnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	root := t.TempDir()
	writeFile(t, root, "ok.txt", []byte("ok"))
	writeFile(t, root, "locked/secret.txt", []byte("s"))
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	s, rec := newScanner(t, DefaultOptions(root))
	stats, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ok.txt"}, rec.paths())
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, locked, stats.Errors[0].Path)
}

// scriptedGate runs fn on the nth acquisition.
type scriptedGate struct {
	n        int
	fn       func(ctx context.Context) error
	calls    atomic.Int32
	released atomic.Int32
}

func (g *scriptedGate) AcquireWorker(ctx context.Context) error {
	if int(g.calls.Add(1)) == g.n {
		return g.fn(ctx)
	}
	return nil
}

func (g *scriptedGate) ReleaseWorker(int64, error) {
	g.released.Add(1)
}

func TestScanStop(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 10; i++ {
		writeFile(t, root, fmt.Sprintf("f%d.txt", i), []byte("data"))
	}

	var s *Scanner
	gate := &scriptedGate{n: 3, fn: func(ctx context.Context) error {
		s.Stop()
		<-ctx.Done()
		return ctx.Err()
	}}

	opts := DefaultOptions(root)
	opts.Gate = gate
	s, rec := newScanner(t, opts)

	stats, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.True(t, stats.Stopped)
	assert.Equal(t, int64(2), stats.FilesProcessed)
	assert.Equal(t, []string{"f0.txt", "f1.txt"}, rec.paths())
	assert.Equal(t, int32(2), gate.released.Load())
}

func TestScanAdmissionRefused(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 5; i++ {
		writeFile(t, root, fmt.Sprintf("f%d.txt", i), []byte("data"))
	}

	opts := DefaultOptions(root)
	opts.Gate = &scriptedGate{n: 3, fn: func(context.Context) error {
		return perf.ErrAdmissionRefused
	}}
	s, rec := newScanner(t, opts)

	stats, err := s.Scan(context.Background())
	require.ErrorIs(t, err, perf.ErrAdmissionRefused)
	require.NotNil(t, stats)

	assert.Equal(t, []string{"f0.txt", "f1.txt"}, rec.paths())
	assert.Equal(t, int64(2), stats.FilesProcessed)
	assert.False(t, stats.Stopped)
}

func TestScanWithPerformanceManager(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 12; i++ {
		writeFile(t, root, fmt.Sprintf("d%d/f.go", i%3), []byte(fmt.Sprintf("package d%d // %d", i%3, i)))
		writeFile(t, root, fmt.Sprintf("f%02d.md", i), []byte("# doc"))
	}

	m := perf.NewManager(perf.Options{
		Limits:         perf.Limits{MemoryLimitMB: 1 << 20, EmergencyMemoryLimitMB: 1 << 21, CPUUsageLimit: 100},
		InitialWorkers: 2,
		MaxWorkers:     4,
		Sampler: perf.SamplerFunc(func() (perf.Sample, error) {
			return perf.Sample{}, nil
		}),
	})

	opts := DefaultOptions(root)
	opts.Gate = m
	s, _ := newScanner(t, opts)

	stats, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(15), stats.FilesProcessed)
	assert.Equal(t, int64(15), m.Stats().Metrics.TotalFiles)
	assert.Equal(t, 0, m.Stats().InFlight)
}

func TestScanCountsAnalysisErrors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", []byte("a"))
	gone := writeFile(t, root, "b.txt", []byte("b"))
	writeFile(t, root, "c.txt", []byte("c"))

	opts := DefaultOptions(root)
	opts.Gate = &scriptedGate{n: 2, fn: func(context.Context) error {
		return os.Remove(gone)
	}}
	s, rec := newScanner(t, opts)

	stats, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "c.txt"}, rec.paths())
	assert.Equal(t, int64(3), stats.FilesDiscovered)
	assert.Equal(t, int64(2), stats.FilesProcessed)
	assert.Equal(t, int64(1), stats.FilesErrored)
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, gone, stats.Errors[0].Path)
}

func TestScanBatchCallbackErrorIsNotFatal(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", []byte("a"))
	writeFile(t, root, "b.txt", []byte("b"))

	var calls atomic.Int32
	opts := DefaultOptions(root)
	opts.BatchSize = 1
	opts.OnBatch = func(context.Context, []types.FileRecord) error {
		calls.Add(1)
		return errors.New("store unavailable")
	}
	s, _ := newScanner(t, opts)

	stats, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int64(2), stats.FilesProcessed)
}

func TestScanBatchCallbackPanicIsNotFatal(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", []byte("a"))
	writeFile(t, root, "b.txt", []byte("b"))

	var calls atomic.Int32
	opts := DefaultOptions(root)
	opts.BatchSize = 1
	opts.OnBatch = func(context.Context, []types.FileRecord) error {
		if calls.Add(1) == 1 {
			panic("batch boom")
		}
		return nil
	}
	s, _ := newScanner(t, opts)

	var stats *types.ScanStats
	var err error
	require.NotPanics(t, func() { stats, err = s.Scan(context.Background()) })
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "batches after the panic are still delivered")
	assert.Equal(t, int64(2), stats.FilesProcessed)
}

// slotGate admits one analysis at a time and counts admissions.
type slotGate struct {
	slot     chan struct{}
	admitted atomic.Int32
}

func (g *slotGate) AcquireWorker(ctx context.Context) error {
	select {
	case g.slot <- struct{}{}:
		g.admitted.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *slotGate) ReleaseWorker(int64, error) {
	<-g.slot
}

func TestScanSlowBatchCallbackHoldsWorkerSlots(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
		writeFile(t, root, name, []byte(name))
	}

	unblock := make(chan struct{})
	opts := DefaultOptions(root)
	opts.BatchSize = 1
	gate := &slotGate{slot: make(chan struct{}, 1)}
	opts.Gate = gate
	opts.OnBatch = func(context.Context, []types.FileRecord) error {
		<-unblock
		return nil
	}
	s, _ := newScanner(t, opts)

	done := make(chan *types.ScanStats, 1)
	go func() {
		stats, _ := s.Scan(context.Background())
		done <- stats
	}()

	// The first batch is stuck in the callback and the second result is
	// waiting for the collector with its slot held.
	require.Eventually(t, func() bool { return gate.admitted.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(2), gate.admitted.Load(), "no admission while results are unconsumed")

	close(unblock)
	select {
	case stats := <-done:
		require.NotNil(t, stats)
		assert.Equal(t, int64(4), stats.FilesProcessed)
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not finish")
	}
}

func TestScanCancelledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", []byte("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, rec := newScanner(t, DefaultOptions(root))
	stats, err := s.Scan(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, stats.Stopped)
	assert.Empty(t, rec.paths())
}

func TestScanPauseResume(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", []byte("a"))

	s, rec := newScanner(t, DefaultOptions(root))
	s.Pause()
	assert.True(t, s.Paused())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := s.Scan(context.Background())
		assert.NoError(t, err)
	}()

	select {
	case <-done:
		t.Fatal("scan finished while paused")
	case <-time.After(50 * time.Millisecond):
	}

	s.Resume()
	<-done
	assert.False(t, s.Paused())
	assert.Equal(t, []string{"a.txt"}, rec.paths())
}

func TestNewInvalidRoot(t *testing.T) {
	root := t.TempDir()
	file := writeFile(t, root, "file.txt", nil)

	for _, path := range []string{"", filepath.Join(root, "missing"), file} {
		_, err := New(Options{Root: path})
		assert.ErrorIs(t, err, ErrInvalidRoot, path)
	}
}

func TestFromConfigInvalidPattern(t *testing.T) {
	cfg := config.Default()
	cfg.ExcludePatterns = []string{"[broken"}

	_, err := FromConfig(t.TempDir(), cfg)
	assert.ErrorIs(t, err, filter.ErrInvalidPattern)
}

func TestFromConfig(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/main.py", []byte("print('hi')\n"))
	writeFile(t, root, "app/logo.png", []byte{0x89, 'P', 'N', 'G'})
	writeFile(t, root, "node_modules/x/index.js", []byte("x"))

	opts, err := FromConfig(root, config.Default())
	require.NoError(t, err)
	s, rec := newScanner(t, opts)

	stats, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"app/main.py"}, rec.paths())
	assert.Equal(t, int64(1), stats.FilesSkipped)
}

func TestAnalyze(t *testing.T) {
	root := t.TempDir()
	content := []byte("print('hi')\n")
	path := writeFile(t, root, "src/main.py", content)
	writeFile(t, root, "img/logo.png", []byte{0x89, 'P', 'N', 'G', 0, 0})
	writeFile(t, root, "web/index.html", []byte("<p>caf\xc3\xa9</p>"))

	s, _ := newScanner(t, DefaultOptions(root))

	rec, err := s.Analyze(context.Background(), path)
	require.NoError(t, err)

	sum := sha256.Sum256(content)
	assert.Equal(t, path, rec.Path)
	assert.Equal(t, "src/main.py", rec.RelativePath)
	assert.Equal(t, "main.py", rec.Name)
	assert.Equal(t, "py", rec.Extension)
	assert.Equal(t, int64(len(content)), rec.Size)
	assert.Equal(t, "code", rec.Category)
	assert.Equal(t, "python", rec.Language)
	assert.Equal(t, hex.EncodeToString(sum[:]), rec.ContentHash)
	assert.Equal(t, EncodingASCII, rec.Encoding)
	assert.False(t, rec.ModifiedAt.IsZero())
	assert.False(t, rec.CreatedAt.IsZero())

	rec, err = s.Analyze(context.Background(), filepath.Join(root, "img", "logo.png"))
	require.NoError(t, err)
	assert.Empty(t, rec.ContentHash, "non-text categories are not hashed")
	assert.Empty(t, rec.Encoding)
	assert.Equal(t, "image/png", rec.MimeType)

	rec, err = s.Analyze(context.Background(), filepath.Join(root, "web", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "text/html", rec.MimeType)
	assert.Equal(t, EncodingUTF8, rec.Encoding)

	_, err = s.Analyze(context.Background(), filepath.Join(root, "src"))
	assert.ErrorIs(t, err, ErrNotRegular)

	_, err = s.Analyze(context.Background(), filepath.Join(root, "missing.py"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAnalyzeStreamsLargeFiles(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "huge.go")
	f, err := os.Create(path)
	require.NoError(t, err)
	const size = 64 << 20
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())

	s, _ := newScanner(t, DefaultOptions(root))

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	rec, err := s.Analyze(context.Background(), path)
	runtime.ReadMemStats(&after)
	require.NoError(t, err)

	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20), "content must not be read into memory whole")
	assert.Equal(t, int64(size), rec.Size)

	h := sha256.New()
	_, err = h.Write(make([]byte, size))
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(h.Sum(nil)), rec.ContentHash)
	assert.Equal(t, EncodingBinary, rec.Encoding)
}

func TestAnalyzeSniffsEncodingAcrossSampleBoundary(t *testing.T) {
	root := t.TempDir()
	// The second two-byte rune straddles the end of the sample.
	content := "é" + strings.Repeat("a", sniffSize-3) + "é" + strings.Repeat("b", 100)
	path := writeFile(t, root, "notes.md", []byte(content))

	s, _ := newScanner(t, DefaultOptions(root))
	rec, err := s.Analyze(context.Background(), path)
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(content))
	assert.Equal(t, hex.EncodeToString(sum[:]), rec.ContentHash)
	assert.Equal(t, EncodingUTF8, rec.Encoding)
}

func TestTrimPartialRune(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"empty", nil, nil},
		{"ascii", []byte("abc"), []byte("abc")},
		{"complete rune", []byte("a\u00e9"), []byte("a\u00e9")},
		{"cut two-byte rune", []byte{'a', 0xC3}, []byte{'a'}},
		{"cut three-byte rune", []byte{'a', 0xE2, 0x82}, []byte{'a'}},
		{"complete three-byte rune", []byte("a\u20ac"), []byte("a\u20ac")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trimPartialRune(tt.in))
		})
	}
}

func TestAnalyzeHonoursGate(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "a.py", []byte("x = 1\n"))

	opts := DefaultOptions(root)
	opts.Gate = &scriptedGate{n: 1, fn: func(context.Context) error { return perf.ErrStillPaused }}
	s, _ := newScanner(t, opts)

	_, err := s.Analyze(context.Background(), path)
	assert.ErrorIs(t, err, perf.ErrStillPaused)
}

func TestInScope(t *testing.T) {
	root := t.TempDir()
	opts := DefaultOptions(root)
	opts.MaxDepth = 3
	opts.Filter = mustFilter(t,
		filter.WithInclude("**/*.py", "**/*.md"),
		filter.WithExclude("**/node_modules/**", "build/"),
		filter.WithMaxFileSize(100),
	)
	s, _ := newScanner(t, opts)

	tests := []struct {
		rel  string
		size int64
		want bool
	}{
		{"a.py", 10, true},
		{"a.py", 1000, false},
		{"a.py", -1, true},
		{"docs/readme.md", 10, true},
		{"a.go", 10, false},
		{"node_modules/x/y.py", 10, false},
		{"build/gen.py", 10, false},
		{"a/b/c/d.py", 10, true},
		{"a/b/c/d/e.py", 10, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.rel, tt.size), func(t *testing.T) {
			assert.Equal(t, tt.want, s.InScope(filepath.Join(root, filepath.FromSlash(tt.rel)), tt.size))
		})
	}

	assert.False(t, s.InScope(filepath.Join(filepath.Dir(root), "other.py"), 10))
	assert.False(t, s.InScope(root, 0))

	assert.True(t, s.DirInScope(root))
	assert.True(t, s.DirInScope(filepath.Join(root, "src")))
	assert.False(t, s.DirInScope(filepath.Join(root, "build")))
	assert.False(t, s.DirInScope(filepath.Join(root, "src", "node_modules", "pkg")))
	assert.True(t, s.DirInScope(filepath.Join(root, "a", "b", "c")))
	assert.False(t, s.DirInScope(filepath.Join(root, "a", "b", "c", "d")))
}
