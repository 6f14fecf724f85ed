// Package indexer applies file records to a persistence backend.
//
// The Indexer decides between create, update and no-op for every record
// so that re-scanning an unchanged tree performs no writes. Backends
// implement Port; rows are never deleted, only retired.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/jamesainslie/scout/pkg/scout/logging"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

// ErrNotFound is returned by Port.Update and Port.MarkRetired for an unknown ID.
var ErrNotFound = errors.New("file not found")

// Port is the persistence contract for file records.
type Port interface {
	// GetByPath returns the stored file for a root-relative path, or nil
	// if none exists. Retired rows are returned too.
	GetByPath(ctx context.Context, rootID, rel string) (*types.StoredFile, error)

	// Create stores a new row for rec under rootID.
	Create(ctx context.Context, rootID string, rec types.FileRecord) (*types.StoredFile, error)

	// Update replaces the record of row id and clears its retired flag.
	Update(ctx context.Context, id string, rec types.FileRecord) error

	// MarkRetired flags row id as retired.
	MarkRetired(ctx context.Context, id string) error
}

// Lister is implemented by ports that can enumerate the live rows under
// a directory. The indexer uses it to retire whole subtrees.
type Lister interface {
	// ListPaths returns the relative paths of non-retired rows below dir.
	ListPaths(ctx context.Context, rootID, dir string) ([]string, error)
}

// RootID derives a stable identifier for a project root.
func RootID(root string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+root)).String()
}

// Stats counts the writes the indexer issued.
type Stats struct {
	Created   int64 `json:"created"`
	Updated   int64 `json:"updated"`
	Unchanged int64 `json:"unchanged"`
	Retired   int64 `json:"retired"`
	Failed    int64 `json:"failed"`
}

// Indexer applies records for one root to a Port.
type Indexer struct {
	port   Port
	rootID string
	log    *logging.Logger

	created   atomic.Int64
	updated   atomic.Int64
	unchanged atomic.Int64
	retired   atomic.Int64
	failed    atomic.Int64
}

// New creates an indexer writing rows for rootID.
func New(port Port, rootID string) *Indexer {
	return &Indexer{
		port:   port,
		rootID: rootID,
		log:    logging.Get("indexer"),
	}
}

// RootID returns the root identifier rows are written under.
func (idx *Indexer) RootID() string {
	return idx.rootID
}

// Upsert stores rec. A retired row for the same path is revived.
// It returns ActionNoop when the stored record is unchanged.
func (idx *Indexer) Upsert(ctx context.Context, rec types.FileRecord) (types.ChangeAction, error) {
	existing, err := idx.port.GetByPath(ctx, idx.rootID, rec.RelativePath)
	if err != nil {
		return idx.fail(rec.RelativePath, fmt.Errorf("looking up %s: %w", rec.RelativePath, err))
	}

	if existing == nil {
		if _, err := idx.port.Create(ctx, idx.rootID, rec); err != nil {
			return idx.fail(rec.RelativePath, fmt.Errorf("creating %s: %w", rec.RelativePath, err))
		}
		idx.created.Add(1)
		return types.ActionCreated, nil
	}

	if !existing.Retired && Unchanged(&existing.Record, &rec) {
		idx.unchanged.Add(1)
		return types.ActionNoop, nil
	}

	if err := idx.port.Update(ctx, existing.ID, rec); err != nil {
		return idx.fail(rec.RelativePath, fmt.Errorf("updating %s: %w", rec.RelativePath, err))
	}
	if existing.Retired {
		idx.created.Add(1)
		return types.ActionCreated, nil
	}
	idx.updated.Add(1)
	return types.ActionUpdated, nil
}

// Retire marks the row for rel as retired. A missing or already
// retired row is a no-op.
func (idx *Indexer) Retire(ctx context.Context, rel string) (types.ChangeAction, error) {
	existing, err := idx.port.GetByPath(ctx, idx.rootID, rel)
	if err != nil {
		return idx.fail(rel, fmt.Errorf("looking up %s: %w", rel, err))
	}
	if existing == nil || existing.Retired {
		return types.ActionNoop, nil
	}

	if err := idx.port.MarkRetired(ctx, existing.ID); err != nil {
		return idx.fail(rel, fmt.Errorf("retiring %s: %w", rel, err))
	}
	idx.retired.Add(1)
	return types.ActionRetired, nil
}

// Move retires oldRel and upserts rec at its new path.
func (idx *Indexer) Move(ctx context.Context, oldRel string, rec types.FileRecord) (types.ChangeAction, error) {
	if oldRel != rec.RelativePath {
		if _, err := idx.Retire(ctx, oldRel); err != nil {
			return types.ActionFailed, err
		}
	}
	if _, err := idx.Upsert(ctx, rec); err != nil {
		return types.ActionFailed, err
	}
	return types.ActionMoved, nil
}

// RetireTree retires every live row below the directory dir. Ports that
// do not implement Lister leave the subtree alone.
func (idx *Indexer) RetireTree(ctx context.Context, dir string) (int, error) {
	lister, ok := idx.port.(Lister)
	if !ok {
		idx.log.Debug("port cannot list paths, subtree left as is", "dir", dir)
		return 0, nil
	}

	paths, err := lister.ListPaths(ctx, idx.rootID, dir)
	if err != nil {
		idx.failed.Add(1)
		return 0, fmt.Errorf("listing %s: %w", dir, err)
	}

	var (
		retired int
		errs    []error
	)
	for _, rel := range paths {
		action, err := idx.Retire(ctx, rel)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if action == types.ActionRetired {
			retired++
		}
	}
	return retired, errors.Join(errs...)
}

// IndexBatch upserts every record in batch. It matches scanner.BatchFunc.
// Failures are logged and joined; the remaining records are still applied.
func (idx *Indexer) IndexBatch(ctx context.Context, batch []types.FileRecord) error {
	var errs []error
	for i := range batch {
		if _, err := idx.Upsert(ctx, batch[i]); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	idx.log.Debug("batch indexed", "size", len(batch))
	return nil
}

// Stats returns the write counters since the indexer was created.
func (idx *Indexer) Stats() Stats {
	return Stats{
		Created:   idx.created.Load(),
		Updated:   idx.updated.Load(),
		Unchanged: idx.unchanged.Load(),
		Retired:   idx.retired.Load(),
		Failed:    idx.failed.Load(),
	}
}

func (idx *Indexer) fail(rel string, err error) (types.ChangeAction, error) {
	idx.failed.Add(1)
	idx.log.Error("index write failed", "path", rel, "error", err)
	return types.ActionFailed, err
}

// Unchanged reports whether next carries nothing new compared to stored.
// Hashed records compare by content hash; others by size and mtime.
func Unchanged(stored, next *types.FileRecord) bool {
	if stored.Hashed() || next.Hashed() {
		return stored.ContentHash == next.ContentHash
	}
	return stored.Size == next.Size && stored.ModifiedAt.Equal(next.ModifiedAt)
}
