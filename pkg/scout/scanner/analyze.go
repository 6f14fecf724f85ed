package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jamesainslie/scout/pkg/scout/classify"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

// ErrNotRegular is returned when analysing something other than a regular file.
var ErrNotRegular = errors.New("not a regular file")

// sniffSize is how much of a file DetectEncoding sees.
const sniffSize = 8 * 1024

// Analyze builds the record for a single file under the root, admitted
// through the scanner's gate. The change monitor uses it to re-analyse
// changed files. It does not touch the scan statistics.
func (s *Scanner) Analyze(ctx context.Context, path string) (*types.FileRecord, error) {
	if err := s.gate.AcquireWorker(ctx); err != nil {
		return nil, err
	}

	rec, err := s.analyze(path)
	var size int64
	if rec != nil {
		size = rec.Size
	}
	s.gate.ReleaseWorker(size, err)
	return rec, err
}

// analyze stats, classifies and, for text-like categories, hashes path.
func (s *Scanner) analyze(path string) (*types.FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}

	rel, ok := s.Relative(path)
	if !ok {
		return nil, fmt.Errorf("%s: outside root %s", path, s.root)
	}

	name := filepath.Base(path)
	ext := classify.Ext(name)
	category, language := classify.Classify(name)

	rec := &types.FileRecord{
		Path:         path,
		RelativePath: rel,
		Name:         name,
		Extension:    strings.TrimPrefix(ext, "."),
		Size:         info.Size(),
		CreatedAt:    birthTime(path, info),
		ModifiedAt:   info.ModTime(),
		MimeType:     mimeType(ext),
		Category:     category,
		Language:     language,
	}

	if classify.IsTextLike(category) {
		hash, encoding, err := hashContent(path)
		if err != nil {
			return nil, fmt.Errorf("reading content: %w", err)
		}
		rec.ContentHash = hash
		rec.Encoding = encoding
	}

	return rec, nil
}

// hashContent streams path through SHA-256 and detects the encoding of its
// first sniffSize bytes.
func hashContent(path string) (hash, encoding string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	head := make([]byte, sniffSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", "", err
	}
	head = head[:n]

	h := sha256.New()
	h.Write(head)
	if n == sniffSize {
		if _, err := io.Copy(h, f); err != nil {
			return "", "", err
		}
		head = trimPartialRune(head)
	}
	return hex.EncodeToString(h.Sum(nil)), DetectEncoding(head), nil
}

// trimPartialRune drops a UTF-8 sequence cut off by the end of a sample.
func trimPartialRune(data []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(data); i++ {
		b := data[len(data)-i]
		if b < utf8.RuneSelf {
			return data
		}
		if utf8.RuneStart(b) {
			if !utf8.FullRune(data[len(data)-i:]) {
				return data[:len(data)-i]
			}
			return data
		}
	}
	return data
}

// mimeType returns the media type for ext without parameters.
func mimeType(ext string) string {
	if ext == "" {
		return ""
	}
	t := mime.TypeByExtension(ext)
	if t == "" {
		return ""
	}
	media, _, err := mime.ParseMediaType(t)
	if err != nil {
		return t
	}
	return media
}
