// Package porttest holds the behavioural tests every indexer.Port
// implementation must pass.
package porttest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/scout/pkg/daemon/indexer"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

// Record returns a hashed record for rel.
func Record(rel, hash string) types.FileRecord {
	return types.FileRecord{
		Path:         "/project/" + rel,
		RelativePath: rel,
		Name:         rel,
		Extension:    "go",
		Size:         42,
		CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC),
		ModifiedAt:   time.Date(2026, 2, 3, 4, 5, 6, 7, time.UTC),
		ContentHash:  hash,
		Encoding:     "ascii",
		MimeType:     "text/x-go",
		Category:     "code",
		Language:     "go",
	}
}

// Run exercises newPort against the Port contract.
func Run(t *testing.T, newPort func(t *testing.T) indexer.Port) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing path returns nil", func(t *testing.T) {
		p := newPort(t)
		got, err := p.GetByPath(ctx, "root", "nope.go")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("create then get", func(t *testing.T) {
		p := newPort(t)
		rec := Record("main.go", "abc")

		created, err := p.Create(ctx, "root", rec)
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		assert.Equal(t, "root", created.RootID)

		got, err := p.GetByPath(ctx, "root", "main.go")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, created.ID, got.ID)
		assert.False(t, got.Retired)
		assert.Equal(t, rec.ContentHash, got.Record.ContentHash)
		assert.Equal(t, rec.Size, got.Record.Size)
		assert.True(t, rec.ModifiedAt.Equal(got.Record.ModifiedAt))
		assert.True(t, rec.CreatedAt.Equal(got.Record.CreatedAt))
		assert.Equal(t, rec.Language, got.Record.Language)
	})

	t.Run("roots are isolated", func(t *testing.T) {
		p := newPort(t)
		_, err := p.Create(ctx, "one", Record("a.go", "1"))
		require.NoError(t, err)

		got, err := p.GetByPath(ctx, "two", "a.go")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("update replaces record", func(t *testing.T) {
		p := newPort(t)
		created, err := p.Create(ctx, "root", Record("a.go", "old"))
		require.NoError(t, err)

		require.NoError(t, p.Update(ctx, created.ID, Record("a.go", "new")))

		got, err := p.GetByPath(ctx, "root", "a.go")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "new", got.Record.ContentHash)
	})

	t.Run("retire and revive", func(t *testing.T) {
		p := newPort(t)
		created, err := p.Create(ctx, "root", Record("a.go", "h"))
		require.NoError(t, err)

		require.NoError(t, p.MarkRetired(ctx, created.ID))
		got, err := p.GetByPath(ctx, "root", "a.go")
		require.NoError(t, err)
		require.NotNil(t, got, "retired rows are kept")
		assert.True(t, got.Retired)

		require.NoError(t, p.Update(ctx, created.ID, Record("a.go", "h2")))
		got, err = p.GetByPath(ctx, "root", "a.go")
		require.NoError(t, err)
		assert.False(t, got.Retired)
	})

	t.Run("unknown id", func(t *testing.T) {
		p := newPort(t)
		assert.ErrorIs(t, p.Update(ctx, "missing", Record("a.go", "h")), indexer.ErrNotFound)
		assert.ErrorIs(t, p.MarkRetired(ctx, "missing"), indexer.ErrNotFound)
	})

	t.Run("indexer rescan is idempotent", func(t *testing.T) {
		p := newPort(t)
		idx := indexer.New(p, "root")
		batch := []types.FileRecord{Record("a.go", "1"), Record("b.go", "2")}

		require.NoError(t, idx.IndexBatch(ctx, batch))
		require.NoError(t, idx.IndexBatch(ctx, batch))

		st := idx.Stats()
		assert.Equal(t, int64(2), st.Created)
		assert.Equal(t, int64(0), st.Updated)
		assert.Equal(t, int64(2), st.Unchanged)
	})

	t.Run("retire tree", func(t *testing.T) {
		p := newPort(t)
		if _, ok := p.(indexer.Lister); !ok {
			t.Skip("port does not list paths")
		}
		idx := indexer.New(p, "root")
		for _, rel := range []string{"docs/a.md", "docs/sub/b.md", "docs2/c.md", "main.go"} {
			_, err := idx.Upsert(ctx, Record(rel, rel))
			require.NoError(t, err)
		}

		paths, err := p.(indexer.Lister).ListPaths(ctx, "root", "docs")
		require.NoError(t, err)
		assert.Equal(t, []string{"docs/a.md", "docs/sub/b.md"}, paths)

		n, err := idx.RetireTree(ctx, "docs")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		paths, err = p.(indexer.Lister).ListPaths(ctx, "root", "docs")
		require.NoError(t, err)
		assert.Empty(t, paths)

		got, err := p.GetByPath(ctx, "root", "docs2/c.md")
		require.NoError(t, err)
		assert.False(t, got.Retired)
	})
}
