// Package types provides the core data types shared by the scanner, the
// change monitor and the persistence layer: file records, scan statistics,
// change events and their reconciliation results.
package types

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// FileRecord is the per-file metadata produced by analysis.
// It is a value type: a newer record always replaces the stored one.
type FileRecord struct {
	// Path is the absolute path to the file.
	Path string `json:"path"`

	// RelativePath is Path made relative to the scan root.
	RelativePath string `json:"relative_path"`

	// Name is the base name of the file.
	Name string `json:"name"`

	// Extension is the lowercase extension without the leading dot.
	Extension string `json:"extension"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// CreatedAt is the birth time where the platform reports one, else ModifiedAt.
	CreatedAt time.Time `json:"created_at"`

	// ModifiedAt is the last modification time.
	ModifiedAt time.Time `json:"modified_at"`

	// ContentHash is the hex SHA-256 of the content. Only set for text-like categories.
	ContentHash string `json:"content_hash,omitempty"`

	// Encoding is the detected text encoding. Only set for text-like categories.
	Encoding string `json:"encoding,omitempty"`

	// MimeType is derived from the extension.
	MimeType string `json:"mime_type,omitempty"`

	// Category is the coarse classification (code, config, docs, test, ...).
	Category string `json:"category"`

	// Language is the finer classification within the category.
	Language string `json:"language"`
}

// HumanSize returns the file size formatted with binary units.
func (r *FileRecord) HumanSize() string {
	return FormatSize(r.Size)
}

// Hashed reports whether the record carries a content hash.
func (r *FileRecord) Hashed() bool {
	return r.ContentHash != ""
}

// StoredFile is a FileRecord as held by a persistence backend.
// Rows are never deleted; a file that disappears is marked retired.
type StoredFile struct {
	ID     string     `json:"id"`
	RootID string     `json:"root_id"`
	Record FileRecord `json:"record"`

	// Retired is set once the file was deleted or moved away.
	Retired bool `json:"retired,omitempty"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ScanError pairs a path with the error encountered there.
type ScanError struct {
	// Path is the file or directory path where the error occurred.
	Path string `json:"path"`

	// Error is the error message describing what went wrong.
	Error string `json:"error"`
}

// ScanStats holds the counters for one scan session.
// Counters are monotonic within a session and replaced by the next scan.
type ScanStats struct {
	FilesDiscovered    int64         `json:"files_discovered"`
	FilesProcessed     int64         `json:"files_processed"`
	FilesSkipped       int64         `json:"files_skipped"`
	FilesErrored       int64         `json:"files_errored"`
	BytesProcessed     int64         `json:"bytes_processed"`
	DirectoriesScanned int64         `json:"directories_scanned"`
	MaxDepthReached    int           `json:"max_depth_reached"`
	Elapsed            time.Duration `json:"elapsed"`

	// Truncated is set when discovery stopped at the emergency file limit.
	Truncated bool `json:"truncated,omitempty"`

	// Stopped is set when the scan was stopped or its context cancelled.
	Stopped bool `json:"stopped,omitempty"`

	Errors []ScanError `json:"errors,omitempty"`
}

// FilesPerSecond returns the processing rate over the elapsed time.
func (s *ScanStats) FilesPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.FilesProcessed) / s.Elapsed.Seconds()
}

// BytesPerSecond returns the byte throughput over the elapsed time.
func (s *ScanStats) BytesPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.BytesProcessed) / s.Elapsed.Seconds()
}

// ErrorRate returns errored files as a fraction of discovered files.
func (s *ScanStats) ErrorRate() float64 {
	if s.FilesDiscovered == 0 {
		return 0
	}
	return float64(s.FilesErrored) / float64(s.FilesDiscovered)
}

// ChangeKind identifies the type of a filesystem change.
type ChangeKind int

// Change kinds.
const (
	Created ChangeKind = iota
	Modified
	Deleted
	Moved
)

// String returns the lowercase name of the kind.
func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Moved:
		return "moved"
	default:
		return "unknown"
	}
}

// ChangeEvent is a single observed filesystem change.
type ChangeEvent struct {
	Kind ChangeKind `json:"kind"`

	// Path is the affected path. For Moved it is the destination.
	Path string `json:"path"`

	// OldPath is the source path of a Moved event.
	OldPath string `json:"old_path,omitempty"`

	IsDir bool      `json:"is_dir,omitempty"`
	Time  time.Time `json:"time"`
}

// ChangeAction is what reconciliation did with a change.
type ChangeAction string

// Reconciliation outcomes.
const (
	ActionCreated  ChangeAction = "created"
	ActionUpdated  ChangeAction = "updated"
	ActionRetired  ChangeAction = "retired"
	ActionMoved    ChangeAction = "moved"
	ActionNoop     ChangeAction = "noop"
	ActionFailed   ChangeAction = "failed"
	ActionVanished ChangeAction = "vanished"
)

// ChangeResult reports the outcome of reconciling one change.
type ChangeResult struct {
	Event  ChangeEvent  `json:"event"`
	Action ChangeAction `json:"action"`
	Record *FileRecord  `json:"record,omitempty"`
	Err    string       `json:"error,omitempty"`
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size ("512", "100K", "10MB", "1.5GiB")
// into bytes. Decimal values are truncated to the nearest byte.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}
	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	unit := strings.TrimSuffix(strings.TrimSuffix(strings.ToUpper(matches[2]), "IB"), "B")

	multipliers := map[string]int64{"": 1, "K": KiB, "M": MiB, "G": GiB, "T": TiB}
	multiplier, ok := multipliers[unit]
	if !ok {
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, unit)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatSize converts a size in bytes to a string using binary units.
func FormatSize(bytes int64) string {
	return humanize.IBytes(uint64(bytes))
}
