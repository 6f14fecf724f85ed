package scanner

import (
	"bytes"
	"unicode/utf8"

	"github.com/src-d/enry/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Encoding names reported in FileRecord.Encoding.
const (
	EncodingASCII       = "ascii"
	EncodingUTF8        = "utf-8"
	EncodingUTF8BOM     = "utf-8-sig"
	EncodingUTF16LE     = "utf-16le"
	EncodingUTF16BE     = "utf-16be"
	EncodingWindows1252 = "windows-1252"
	EncodingLatin1      = "iso-8859-1"
	EncodingBinary      = "binary"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DetectEncoding guesses the text encoding of data. It returns "" for
// empty input.
//
// A byte order mark wins. Otherwise content enry considers binary is
// reported as such, then ASCII and UTF-8 are tried, and anything else is
// taken as a single-byte Latin encoding.
func DetectEncoding(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return EncodingUTF8BOM
	case bytes.HasPrefix(data, bomUTF16LE) && decodes(data, unicode.LittleEndian):
		return EncodingUTF16LE
	case bytes.HasPrefix(data, bomUTF16BE) && decodes(data, unicode.BigEndian):
		return EncodingUTF16BE
	}

	if enry.IsBinary(data) {
		return EncodingBinary
	}
	if isASCII(data) {
		return EncodingASCII
	}
	if utf8.Valid(data) {
		return EncodingUTF8
	}
	return latin(data)
}

func decodes(data []byte, order unicode.Endianness) bool {
	_, err := unicode.UTF16(order, unicode.ExpectBOM).NewDecoder().Bytes(data)
	return err == nil
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// latin picks windows-1252 when the C1 range holds printable Windows
// characters, and ISO-8859-1 otherwise.
func latin(data []byte) string {
	hasC1 := false
	for _, b := range data {
		if b >= 0x80 && b <= 0x9F {
			hasC1 = true
			break
		}
	}
	if !hasC1 {
		return EncodingLatin1
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil || bytes.ContainsRune(decoded, utf8.RuneError) {
		return EncodingLatin1
	}
	return EncodingWindows1252
}
