package filter

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// ErrInvalidPattern is returned when a glob pattern cannot be compiled.
var ErrInvalidPattern = errors.New("invalid pattern")

// Pattern is a compiled gitignore-style glob.
//
// Supported forms:
//   - "**/node_modules/**" matches at any depth, including the root
//   - "build/" matches the directory build and everything below it
//   - "*.min.js" (no slash) matches the base name at any depth
//   - "/vendor/**" is anchored to the root
//   - "**/*.{js,ts}" uses brace alternation
type Pattern struct {
	raw      string
	globs    []glob.Glob
	baseName bool
}

// Compile compiles a single pattern. Paths are matched with '/' as the
// separator, so callers pass slash-separated relative paths.
func Compile(raw string) (*Pattern, error) {
	p := strings.TrimSpace(raw)
	if p == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}

	anchored := strings.HasPrefix(p, "/")
	p = strings.TrimPrefix(p, "/")

	if strings.HasSuffix(p, "/") {
		p += "**"
	}

	variants := []string{p}
	if strings.HasPrefix(p, "**/") {
		variants = append(variants, strings.TrimPrefix(p, "**/"))
	} else if !anchored && strings.HasSuffix(p, "/**") && !strings.Contains(strings.TrimSuffix(p, "/**"), "/") {
		variants = append(variants, "**/"+p)
	}

	pat := &Pattern{
		raw:      raw,
		baseName: !anchored && !strings.Contains(p, "/"),
	}
	for _, v := range variants {
		g, err := glob.Compile(v, '/')
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPattern, raw, err)
		}
		pat.globs = append(pat.globs, g)
	}

	return pat, nil
}

// String returns the pattern as written.
func (p *Pattern) String() string {
	return p.raw
}

// Match reports whether the slash-separated relative path matches.
func (p *Pattern) Match(rel string) bool {
	for _, g := range p.globs {
		if g.Match(rel) {
			return true
		}
	}
	if p.baseName {
		base := path.Base(rel)
		for _, g := range p.globs {
			if g.Match(base) {
				return true
			}
		}
	}
	return false
}

// Set is an ordered list of patterns; a path matches the set if it
// matches any member.
type Set []*Pattern

// CompileSet compiles every pattern, failing on the first invalid one.
func CompileSet(patterns []string) (Set, error) {
	set := make(Set, 0, len(patterns))
	for _, raw := range patterns {
		p, err := Compile(raw)
		if err != nil {
			return nil, err
		}
		set = append(set, p)
	}
	return set, nil
}

// Match reports whether any pattern matches rel.
func (s Set) Match(rel string) bool {
	for _, p := range s {
		if p.Match(rel) {
			return true
		}
	}
	return false
}
