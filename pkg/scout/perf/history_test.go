package perf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryWrapsAround(t *testing.T) {
	h := NewHistory(3)
	base := time.Unix(1000, 0)

	for i := 0; i < 5; i++ {
		h.Add(Sample{Time: base.Add(time.Duration(i) * time.Second), MemoryMB: float64(i)})
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, 3, h.Cap())

	all := h.All()
	require.Len(t, all, 3)
	assert.Equal(t, []float64{2, 3, 4}, []float64{all[0].MemoryMB, all[1].MemoryMB, all[2].MemoryMB})

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, 4.0, latest.MemoryMB)

	since := h.Since(base.Add(3 * time.Second))
	assert.Len(t, since, 2)
}

func TestHistoryEmpty(t *testing.T) {
	h := NewHistory(0)
	assert.Equal(t, DefaultHistorySize, h.Cap())

	_, ok := h.Latest()
	assert.False(t, ok)
	assert.Empty(t, h.All())
}

func TestPeakAndAverage(t *testing.T) {
	samples := []Sample{
		{CPUPercent: 10, MemoryMB: 100, OpenFiles: 4, Threads: 2},
		{CPUPercent: 30, MemoryMB: 300, OpenFiles: 6, Threads: 4},
		{CPUPercent: 20, MemoryMB: 200, OpenFiles: 8, Threads: 6},
	}

	p, ok := peak(samples)
	require.True(t, ok)
	assert.Equal(t, 300.0, p.MemoryMB)

	avg, ok := average(samples)
	require.True(t, ok)
	assert.InDelta(t, 20.0, avg.CPUPercent, 1e-9)
	assert.InDelta(t, 200.0, avg.MemoryMB, 1e-9)
	assert.Equal(t, 6, avg.OpenFiles)
	assert.Equal(t, 4, avg.Threads)

	_, ok = peak(nil)
	assert.False(t, ok)
	_, ok = average(nil)
	assert.False(t, ok)
}
