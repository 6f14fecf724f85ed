// Package scanner crawls a project root and turns every in-scope file
// into a types.FileRecord.
//
// Traversal runs on a single goroutine in a fixed order (entries sorted by
// name, files before subdirectories) so an unchanged tree is always
// discovered the same way. Per-file analysis runs concurrently behind a
// Gate, and results are re-sequenced so each emitted batch keeps discovery
// order.
package scanner

import (
	"context"
	"errors"

	"github.com/jamesainslie/scout/pkg/scout/config"
	"github.com/jamesainslie/scout/pkg/scout/filter"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

// ErrInvalidRoot is returned when the scan root is missing or not a directory.
var ErrInvalidRoot = errors.New("invalid scan root")

// BatchFunc receives completed records in discovery order. A returned
// error is logged and does not interrupt the scan.
type BatchFunc func(ctx context.Context, batch []types.FileRecord) error

// Options configures the scanner behavior.
type Options struct {
	// Root is the directory to scan.
	Root string

	// Filter decides which files and directories are in scope.
	// Nil means everything is in scope.
	Filter *filter.Filter

	// MaxDepth bounds recursion. The root is depth 0.
	MaxDepth int

	// MaxFiles halts discovery once this many files were discovered.
	// Zero disables the limit.
	MaxFiles int

	// BatchSize is the number of records per emitted batch.
	BatchSize int

	// Workers bounds concurrent analyses when Gate is nil.
	Workers int

	// Gate admits each analysis. Nil uses a fixed gate of Workers slots.
	Gate Gate

	// OnBatch is called with each full batch and the trailing partial one.
	OnBatch BatchFunc
}

// DefaultOptions returns options with the configured defaults for root.
func DefaultOptions(root string) Options {
	return Options{
		Root:      root,
		MaxDepth:  config.DefaultMaxDirectoryDepth,
		MaxFiles:  config.DefaultEmergencyStopFileCount,
		BatchSize: config.DefaultScanBatchSize,
		Workers:   config.DefaultMaxConcurrentWorkers,
	}
}

// FromConfig builds options for root from cfg, compiling its patterns.
// An invalid pattern is returned wrapping filter.ErrInvalidPattern.
func FromConfig(root string, cfg *config.Config) (Options, error) {
	f, err := NewFilter(cfg)
	if err != nil {
		return Options{}, err
	}

	return Options{
		Root:      root,
		Filter:    f,
		MaxDepth:  cfg.MaxDirectoryDepth,
		MaxFiles:  cfg.EmergencyStopFileCount,
		BatchSize: cfg.ScanBatchSize,
		Workers:   cfg.MaxConcurrentWorkers,
	}, nil
}

// NewFilter compiles the scope rules held in cfg.
func NewFilter(cfg *config.Config) (*filter.Filter, error) {
	return filter.New(
		filter.WithInclude(cfg.IncludePatterns...),
		filter.WithExclude(cfg.ExcludePatterns...),
		filter.WithMaxFileSize(cfg.MaxFileSizeBytes()),
		filter.WithSkipVendored(cfg.SkipVendored),
	)
}

// Validate applies defaults for unset values.
func (o *Options) Validate() error {
	if o.Root == "" {
		return ErrInvalidRoot
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = config.DefaultMaxDirectoryDepth
	}
	if o.MaxFiles < 0 {
		o.MaxFiles = 0
	}
	if o.BatchSize < 1 {
		o.BatchSize = config.DefaultScanBatchSize
	}
	if o.Workers < 1 {
		o.Workers = config.DefaultMaxConcurrentWorkers
	}
	return nil
}
