package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/scout/pkg/scout/types"
)

func paths(events []types.ChangeEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Path
	}
	return out
}

func TestBufferLatestWins(t *testing.T) {
	b := NewBuffer(2*time.Second, 0)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	b.Add(types.ChangeEvent{Kind: types.Created, Path: "/r/x.md"}, t0)
	for i := 1; i <= 4; i++ {
		b.Add(types.ChangeEvent{Kind: types.Modified, Path: "/r/x.md"}, t0.Add(time.Duration(i)*300*time.Millisecond))
	}
	assert.Equal(t, 1, b.Pending())

	// Last touch at t0+1.2s; not ready until t0+3.2s.
	assert.Empty(t, b.Ready(t0.Add(3*time.Second)))

	ready := b.Ready(t0.Add(3200 * time.Millisecond))
	require.Len(t, ready, 1)
	assert.Equal(t, types.Modified, ready[0].Kind)
	assert.Equal(t, 0, b.Pending())
}

func TestBufferReadyOrder(t *testing.T) {
	b := NewBuffer(time.Second, 0)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	b.Add(types.ChangeEvent{Kind: types.Created, Path: "/r/c"}, t0.Add(200*time.Millisecond))
	b.Add(types.ChangeEvent{Kind: types.Created, Path: "/r/b"}, t0)
	b.Add(types.ChangeEvent{Kind: types.Created, Path: "/r/a"}, t0)
	b.Add(types.ChangeEvent{Kind: types.Created, Path: "/r/late"}, t0.Add(900*time.Millisecond))

	ready := b.Ready(t0.Add(1500 * time.Millisecond))
	assert.Equal(t, []string{"/r/a", "/r/b", "/r/c"}, paths(ready))
	assert.Equal(t, 1, b.Pending())
}

func TestBufferZeroWindow(t *testing.T) {
	b := NewBuffer(0, 0)
	now := time.Now()
	b.Add(types.ChangeEvent{Kind: types.Modified, Path: "/r/a"}, now)
	assert.Len(t, b.Ready(now), 1)
}

func TestBufferFlushAll(t *testing.T) {
	b := NewBuffer(time.Hour, 0)
	now := time.Now()
	b.Add(types.ChangeEvent{Kind: types.Modified, Path: "/r/b"}, now)
	b.Add(types.ChangeEvent{Kind: types.Deleted, Path: "/r/a"}, now)

	assert.Empty(t, b.Ready(now.Add(time.Minute)))
	assert.Equal(t, []string{"/r/a", "/r/b"}, paths(b.FlushAll()))
	assert.Equal(t, 0, b.Pending())
	assert.Empty(t, b.FlushAll())
}

func TestBufferMoves(t *testing.T) {
	now := time.Now()

	t.Run("move drops pending source", func(t *testing.T) {
		b := NewBuffer(0, 0)
		b.Add(types.ChangeEvent{Kind: types.Modified, Path: "/r/old"}, now)
		b.Add(types.ChangeEvent{Kind: types.Moved, Path: "/r/new", OldPath: "/r/old"}, now)

		ready := b.FlushAll()
		require.Len(t, ready, 1)
		assert.Equal(t, types.Moved, ready[0].Kind)
		assert.Equal(t, "/r/old", ready[0].OldPath)
	})

	t.Run("write after move keeps the move", func(t *testing.T) {
		b := NewBuffer(0, 0)
		b.Add(types.ChangeEvent{Kind: types.Moved, Path: "/r/new", OldPath: "/r/old"}, now)
		b.Add(types.ChangeEvent{Kind: types.Modified, Path: "/r/new"}, now)

		ready := b.FlushAll()
		require.Len(t, ready, 1)
		assert.Equal(t, types.Moved, ready[0].Kind)
		assert.Equal(t, "/r/old", ready[0].OldPath)
	})

	t.Run("delete after move retires both", func(t *testing.T) {
		b := NewBuffer(0, 0)
		b.Add(types.ChangeEvent{Kind: types.Moved, Path: "/r/new", OldPath: "/r/old"}, now)
		b.Add(types.ChangeEvent{Kind: types.Deleted, Path: "/r/new"}, now)

		ready := b.FlushAll()
		require.Len(t, ready, 2)
		assert.Equal(t, []string{"/r/new", "/r/old"}, paths(ready))
		for _, ev := range ready {
			assert.Equal(t, types.Deleted, ev.Kind)
		}
	})
}

func TestBufferWarnLimit(t *testing.T) {
	b := NewBuffer(0, 4)
	now := time.Now()
	for _, p := range []string{"/a", "/b", "/c", "/d"} {
		b.Add(types.ChangeEvent{Kind: types.Created, Path: p}, now)
	}
	assert.True(t, b.warned)

	b.FlushAll()
	assert.False(t, b.warned)
}
