// Package filter decides which paths under a project root are in scope.
//
// The same Filter is shared by the scanner and the change monitor so that
// a file is either visible to both or to neither.
package filter

import (
	"path/filepath"
	"strings"

	"github.com/src-d/enry/v2"
)

// Verdict is the outcome of evaluating a file against a Filter.
type Verdict int

// Verdicts. Everything except Included counts as skipped.
const (
	Included Verdict = iota
	Excluded
	NotIncluded
	TooLarge
	Vendored
)

// String returns a short reason for the verdict.
func (v Verdict) String() string {
	switch v {
	case Included:
		return "included"
	case Excluded:
		return "excluded"
	case NotIncluded:
		return "not included"
	case TooLarge:
		return "too large"
	case Vendored:
		return "vendored"
	default:
		return "unknown"
	}
}

// Filter holds the compiled scope rules.
type Filter struct {
	include      Set
	exclude      Set
	maxFileSize  int64
	skipVendored bool

	includeRaw []string
	excludeRaw []string
}

// Option is a functional option for configuring a Filter.
type Option func(*Filter)

// WithInclude sets the include patterns. When non-empty, files must match
// at least one of them.
func WithInclude(patterns ...string) Option {
	return func(f *Filter) {
		f.includeRaw = patterns
	}
}

// WithExclude sets the exclude patterns. They apply to files and directories.
func WithExclude(patterns ...string) Option {
	return func(f *Filter) {
		f.excludeRaw = patterns
	}
}

// WithMaxFileSize sets the size ceiling in bytes. Zero or negative disables it.
func WithMaxFileSize(size int64) Option {
	return func(f *Filter) {
		if size < 0 {
			size = 0
		}
		f.maxFileSize = size
	}
}

// WithSkipVendored excludes paths that look like vendored or generated
// dependency trees (node_modules, vendor, third_party, ...).
func WithSkipVendored(skip bool) Option {
	return func(f *Filter) {
		f.skipVendored = skip
	}
}

// New compiles a Filter. An invalid pattern is returned as an error
// wrapping ErrInvalidPattern.
func New(opts ...Option) (*Filter, error) {
	f := &Filter{}
	for _, opt := range opts {
		opt(f)
	}

	var err error
	if f.include, err = CompileSet(f.includeRaw); err != nil {
		return nil, err
	}
	if f.exclude, err = CompileSet(f.excludeRaw); err != nil {
		return nil, err
	}

	return f, nil
}

// MaxFileSize returns the configured size ceiling in bytes.
func (f *Filter) MaxFileSize() int64 {
	return f.maxFileSize
}

// Evaluate classifies a file given its root-relative path and size.
// Exclusion is checked first, then inclusion, then the size ceiling.
func (f *Filter) Evaluate(rel string, size int64) Verdict {
	rel = normalize(rel)

	if f.exclude.Match(rel) {
		return Excluded
	}
	if f.skipVendored && enry.IsVendor(rel) {
		return Vendored
	}
	if len(f.include) > 0 && !f.include.Match(rel) {
		return NotIncluded
	}
	if f.maxFileSize > 0 && size > f.maxFileSize {
		return TooLarge
	}
	return Included
}

// Match reports whether a file is in scope.
func (f *Filter) Match(rel string, size int64) bool {
	return f.Evaluate(rel, size) == Included
}

// MatchPath reports whether a file path is in scope ignoring its size.
// The monitor uses it for paths that no longer exist.
func (f *Filter) MatchPath(rel string) bool {
	v := f.Evaluate(rel, 0)
	return v == Included
}

// ExcludeDir reports whether a directory should be pruned from traversal.
// The root itself ("" or ".") is never pruned.
func (f *Filter) ExcludeDir(rel string) bool {
	rel = normalize(rel)
	if rel == "" || rel == "." {
		return false
	}
	dir := rel + "/"
	if f.exclude.Match(rel) || f.exclude.Match(dir) {
		return true
	}
	return f.skipVendored && enry.IsVendor(dir)
}

func normalize(rel string) string {
	return strings.TrimPrefix(filepath.ToSlash(rel), "./")
}
