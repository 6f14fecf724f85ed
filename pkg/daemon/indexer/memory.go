package indexer

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/scout/pkg/scout/types"
)

// Memory is an in-process Port. It backs the "memory" store backend and
// counts writes so callers can assert idempotence.
type Memory struct {
	mu     sync.RWMutex
	byID   map[string]*types.StoredFile
	byPath map[string]string // rootID + "\x00" + rel -> id

	writes atomic.Int64
	now    func() time.Time
}

// NewMemory creates an empty in-memory Port.
func NewMemory() *Memory {
	return &Memory{
		byID:   make(map[string]*types.StoredFile),
		byPath: make(map[string]string),
		now:    time.Now,
	}
}

func pathKey(rootID, rel string) string {
	return rootID + "\x00" + rel
}

// GetByPath implements Port.
func (m *Memory) GetByPath(_ context.Context, rootID, rel string) (*types.StoredFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byPath[pathKey(rootID, rel)]
	if !ok {
		return nil, nil
	}
	f := *m.byID[id]
	return &f, nil
}

// Create implements Port.
func (m *Memory) Create(_ context.Context, rootID string, rec types.FileRecord) (*types.StoredFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	f := &types.StoredFile{
		ID:          uuid.NewString(),
		RootID:      rootID,
		Record:      rec,
		FirstSeenAt: now,
		UpdatedAt:   now,
	}
	m.byID[f.ID] = f
	m.byPath[pathKey(rootID, rec.RelativePath)] = f.ID
	m.writes.Add(1)

	out := *f
	return &out, nil
}

// Update implements Port.
func (m *Memory) Update(_ context.Context, id string, rec types.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if f.Record.RelativePath != rec.RelativePath {
		delete(m.byPath, pathKey(f.RootID, f.Record.RelativePath))
		m.byPath[pathKey(f.RootID, rec.RelativePath)] = id
	}
	f.Record = rec
	f.Retired = false
	f.UpdatedAt = m.now()
	m.writes.Add(1)
	return nil
}

// MarkRetired implements Port.
func (m *Memory) MarkRetired(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	f.Retired = true
	f.UpdatedAt = m.now()
	m.writes.Add(1)
	return nil
}

// Writes returns the number of Create, Update and MarkRetired calls applied.
func (m *Memory) Writes() int64 {
	return m.writes.Load()
}

// Files returns a copy of every row for rootID.
func (m *Memory) Files(rootID string) []types.StoredFile {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.StoredFile
	for _, f := range m.byID {
		if f.RootID == rootID {
			out = append(out, *f)
		}
	}
	return out
}

// ListPaths implements Lister.
func (m *Memory) ListPaths(_ context.Context, rootID, dir string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := dir + "/"
	var out []string
	for _, f := range m.byID {
		if f.RootID != rootID || f.Retired {
			continue
		}
		if strings.HasPrefix(f.Record.RelativePath, prefix) {
			out = append(out, f.Record.RelativePath)
		}
	}
	sort.Strings(out)
	return out, nil
}
