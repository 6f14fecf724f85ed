//go:build linux

package perf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinuxProcessCounters(t *testing.T) {
	rss, err := residentBytes()
	require.NoError(t, err)
	assert.Greater(t, rss, int64(0))

	assert.GreaterOrEqual(t, threadCount(), 1)

	before := openFiles()
	f, err := os.Create(filepath.Join(t.TempDir(), "held"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, openFiles(), before+1)
	require.NoError(t, f.Close())

	read, write := ioCounters()
	assert.GreaterOrEqual(t, read, int64(0))
	assert.GreaterOrEqual(t, write, int64(0))
}
