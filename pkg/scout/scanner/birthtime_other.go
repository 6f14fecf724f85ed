//go:build !linux && !darwin

package scanner

import (
	"os"
	"time"
)

// birthTime falls back to the modification time.
func birthTime(_ string, info os.FileInfo) time.Time {
	return info.ModTime()
}
