package perf

import (
	"sync"
	"time"
)

// errorWindow is the number of recent outcomes the error rate covers.
const errorWindow = 100

// Metrics summarizes processing throughput.
type Metrics struct {
	FilesPerSecond float64       `json:"files_per_second"`
	BytesPerSecond float64       `json:"bytes_per_second"`
	AvgFileSizeKB  float64       `json:"avg_file_size_kb"`
	TotalFiles     int64         `json:"total_files"`
	TotalBytes     int64         `json:"total_bytes"`
	TotalErrors    int64         `json:"total_errors"`
	Elapsed        time.Duration `json:"elapsed"`

	// ErrorRate covers only the most recent outcomes.
	ErrorRate float64 `json:"error_rate"`
}

// Tracker records per-file outcomes for throughput and error-rate feedback.
type Tracker struct {
	mu     sync.Mutex
	now    func() time.Time
	start  time.Time
	files  int64
	bytes  int64
	errors int64

	recent [errorWindow]bool
	next   int
	filled int
}

// NewTracker creates a tracker whose clock starts now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now, start: now()}
}

// Reset clears all counters and restarts the clock.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.start = t.now()
	t.files, t.bytes, t.errors = 0, 0, 0
	t.next, t.filled = 0, 0
}

// Record adds one processed file.
func (t *Tracker) Record(size int64, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.files++
	if size > 0 {
		t.bytes += size
	}
	if failed {
		t.errors++
	}

	t.recent[t.next] = failed
	t.next = (t.next + 1) % errorWindow
	if t.filled < errorWindow {
		t.filled++
	}
}

// Metrics returns a snapshot.
func (t *Tracker) Metrics() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := Metrics{
		TotalFiles:  t.files,
		TotalBytes:  t.bytes,
		TotalErrors: t.errors,
		Elapsed:     t.now().Sub(t.start),
	}
	if secs := m.Elapsed.Seconds(); secs > 0 {
		m.FilesPerSecond = float64(t.files) / secs
		m.BytesPerSecond = float64(t.bytes) / secs
	}
	if t.files > 0 {
		m.AvgFileSizeKB = float64(t.bytes) / float64(t.files) / 1024
	}
	if t.filled > 0 {
		failed := 0
		for i := 0; i < t.filled; i++ {
			if t.recent[i] {
				failed++
			}
		}
		m.ErrorRate = float64(failed) / float64(t.filled)
	}
	return m
}
