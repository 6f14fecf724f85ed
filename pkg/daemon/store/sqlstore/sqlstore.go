// Package sqlstore persists file records in a SQLite database.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jamesainslie/scout/pkg/daemon/indexer"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

var (
	_ indexer.Port   = (*Store)(nil)
	_ indexer.Lister = (*Store)(nil)
)

// Store manages SQLite persistence for file records.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path. The parent directory is
// created if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the files table if it doesn't exist
func (s *Store) migrate() error {
	createTableSQL := `
		CREATE TABLE IF NOT EXISTS files (
			id TEXT PRIMARY KEY,
			root_id TEXT NOT NULL,
			relative_path TEXT NOT NULL,
			path TEXT NOT NULL,
			name TEXT NOT NULL,
			extension TEXT NOT NULL,
			size INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			modified_at TEXT NOT NULL,
			content_hash TEXT NOT NULL DEFAULT '',
			encoding TEXT NOT NULL DEFAULT '',
			mime_type TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			language TEXT NOT NULL,
			retired INTEGER NOT NULL DEFAULT 0,
			first_seen_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(root_id, relative_path)
		);
	`
	if _, err := s.db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create files table: %w", err)
	}

	createIndexSQL := `
		CREATE INDEX IF NOT EXISTS idx_files_content_hash
		ON files(content_hash);
	`
	if _, err := s.db.Exec(createIndexSQL); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

const selectColumns = `
	SELECT id, root_id, relative_path, path, name, extension, size,
		created_at, modified_at, content_hash, encoding, mime_type,
		category, language, retired, first_seen_at, updated_at
	FROM files
`

// GetByPath implements indexer.Port.
func (s *Store) GetByPath(ctx context.Context, rootID, rel string) (*types.StoredFile, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+`WHERE root_id = ? AND relative_path = ?`, rootID, rel)

	f, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, nil
}

// Create implements indexer.Port.
func (s *Store) Create(ctx context.Context, rootID string, rec types.FileRecord) (*types.StoredFile, error) {
	now := s.now()
	f := &types.StoredFile{
		ID:          uuid.NewString(),
		RootID:      rootID,
		Record:      rec,
		FirstSeenAt: now,
		UpdatedAt:   now,
	}

	insertSQL := `
		INSERT INTO files (id, root_id, relative_path, path, name, extension, size,
			created_at, modified_at, content_hash, encoding, mime_type,
			category, language, retired, first_seen_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, insertSQL,
		f.ID, rootID, rec.RelativePath, rec.Path, rec.Name, rec.Extension, rec.Size,
		formatTime(rec.CreatedAt), formatTime(rec.ModifiedAt),
		rec.ContentHash, rec.Encoding, rec.MimeType, rec.Category, rec.Language,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert file: %w", err)
	}
	return f, nil
}

// Update implements indexer.Port.
func (s *Store) Update(ctx context.Context, id string, rec types.FileRecord) error {
	updateSQL := `
		UPDATE files SET
			relative_path = ?, path = ?, name = ?, extension = ?, size = ?,
			created_at = ?, modified_at = ?, content_hash = ?, encoding = ?,
			mime_type = ?, category = ?, language = ?, retired = 0, updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, updateSQL,
		rec.RelativePath, rec.Path, rec.Name, rec.Extension, rec.Size,
		formatTime(rec.CreatedAt), formatTime(rec.ModifiedAt), rec.ContentHash, rec.Encoding,
		rec.MimeType, rec.Category, rec.Language, formatTime(s.now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update file: %w", err)
	}
	return expectRow(res, id)
}

// MarkRetired implements indexer.Port.
func (s *Store) MarkRetired(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET retired = 1, updated_at = ? WHERE id = ?`, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("failed to retire file: %w", err)
	}
	return expectRow(res, id)
}

// Files returns every row stored for rootID, ordered by relative path.
func (s *Store) Files(ctx context.Context, rootID string) ([]types.StoredFile, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`WHERE root_id = ? ORDER BY relative_path`, rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []types.StoredFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		files = append(files, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return files, nil
}

// ListPaths implements indexer.Lister. Paths are matched by range so that
// LIKE wildcards in directory names need no escaping.
func (s *Store) ListPaths(ctx context.Context, rootID, dir string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT relative_path FROM files
		WHERE root_id = ? AND retired = 0 AND relative_path >= ? AND relative_path < ?
		ORDER BY relative_path`, rootID, dir+"/", dir+"0")
	if err != nil {
		return nil, fmt.Errorf("failed to query paths: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var paths []string
	for rows.Next() {
		var rel string
		if err := rows.Scan(&rel); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		paths = append(paths, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return paths, nil
}

// Count returns the number of active and retired rows for rootID.
func (s *Store) Count(ctx context.Context, rootID string) (active, retired int64, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN retired = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(retired), 0)
		FROM files WHERE root_id = ?`, rootID)
	if err := row.Scan(&active, &retired); err != nil {
		return 0, 0, fmt.Errorf("failed to count files: %w", err)
	}
	return active, retired, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*types.StoredFile, error) {
	var (
		f                      types.StoredFile
		retired                int
		createdAt, modifiedAt  string
		firstSeenAt, updatedAt string
	)
	err := row.Scan(
		&f.ID, &f.RootID, &f.Record.RelativePath, &f.Record.Path, &f.Record.Name,
		&f.Record.Extension, &f.Record.Size, &createdAt, &modifiedAt,
		&f.Record.ContentHash, &f.Record.Encoding, &f.Record.MimeType,
		&f.Record.Category, &f.Record.Language, &retired, &firstSeenAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.Retired = retired != 0
	for _, t := range []struct {
		dst *time.Time
		src string
	}{
		{&f.Record.CreatedAt, createdAt},
		{&f.Record.ModifiedAt, modifiedAt},
		{&f.FirstSeenAt, firstSeenAt},
		{&f.UpdatedAt, updatedAt},
	} {
		if *t.dst, err = time.Parse(time.RFC3339Nano, t.src); err != nil {
			return nil, fmt.Errorf("failed to parse timestamp %q: %w", t.src, err)
		}
	}
	return &f, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, indexer.ErrNotFound)
	}
	return nil
}
