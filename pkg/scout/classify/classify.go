// Package classify maps file names to a (category, language) pair.
//
// Classification is pure and table driven; the first matching rule wins:
//
//  1. the exact file name is a special name (.gitignore, tsconfig.json)
//  2. the upper-cased stem is a special name (README.md, license.txt)
//  3. the name carries a test marker (.test., _spec., ...) and the base
//     extension is known: category "test", language of the extension
//  4. the exact file name is a known manifest (Makefile, package.json)
//  5. the lowercase extension is known
//  6. otherwise category "unknown" with the bare extension as language
package classify

import (
	"path/filepath"
	"strings"
)

// Classify returns the category and language for path.
// Only the base name is inspected; the file is never opened.
func Classify(path string) (category, language string) {
	k := Lookup(filepath.Base(path))
	return k.Category, k.Language
}

// Lookup classifies a bare file name.
func Lookup(name string) Kind {
	if k, ok := specialNames[name]; ok {
		return k
	}

	ext := Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if k, ok := specialNames[strings.ToUpper(stem)]; ok {
		return k
	}

	lower := strings.ToLower(name)
	for _, marker := range testMarkers {
		if !strings.Contains(lower, marker) {
			continue
		}
		if k, ok := extensions[ext]; ok {
			return Kind{Category: Test, Language: k.Language}
		}
		break
	}

	if k, ok := fileNames[name]; ok {
		return k
	}

	if k, ok := extensions[ext]; ok {
		return k
	}

	return Kind{Category: Unknown, Language: strings.TrimPrefix(ext, ".")}
}

// Ext returns the lowercase extension of name including the dot.
// A leading dot does not start an extension, so ".gitignore" has none.
func Ext(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i:])
}

// IsTextLike reports whether files of category are hashed and sniffed
// for an encoding during analysis.
func IsTextLike(category string) bool {
	return textLike[category]
}
