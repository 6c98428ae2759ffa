package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	// Registers the pure-Go "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/oshokin/fw-release/internal/domain/release"
)

// Repository defines persistence operations for packaged releases.
type Repository interface {
	Add(ctx context.Context, res *release.Result) (*release.Record, error)
	List(ctx context.Context, program string, limit int) ([]release.Record, error)
}

// SQLiteRepository stores release records in a SQLite database.
type SQLiteRepository struct {
	db *sqlx.DB
}

// DefaultListLimit caps List when no positive limit is given.
const DefaultListLimit = 20

// ErrNotFound is returned when no release matches the query.
var ErrNotFound = errors.New("release not found")

const schema = `
CREATE TABLE IF NOT EXISTS releases (
	id TEXT PRIMARY KEY,
	program TEXT NOT NULL,
	version TEXT NOT NULL,
	archive_name TEXT NOT NULL,
	archive_path TEXT NOT NULL,
	size_bytes INTEGER NOT NULL,
	checksum TEXT NOT NULL,
	missing TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_releases_program_created ON releases(program, created_at);
`

// Open opens (and creates if needed) the ledger at path.
func Open(ctx context.Context, path string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create history schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Add stores a packaged archive under a fresh id.
func (r *SQLiteRepository) Add(ctx context.Context, res *release.Result) (*release.Record, error) {
	record := release.NewRecord(uuid.NewString(), res)

	const query = `
	INSERT INTO releases (
		id, program, version, archive_name, archive_path, size_bytes, checksum, missing, created_at
	) VALUES (
		:id, :program, :version, :archive_name, :archive_path, :size_bytes, :checksum, :missing, :created_at
	)`

	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return nil, fmt.Errorf("insert release: %w", err)
	}

	return record, nil
}

// List returns the newest releases first, optionally filtered by program.
func (r *SQLiteRepository) List(ctx context.Context, program string, limit int) ([]release.Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	const query = `
	SELECT id, program, version, archive_name, archive_path, size_bytes, checksum, missing, created_at
	FROM releases
	WHERE ? = '' OR program = ?
	ORDER BY created_at DESC, rowid DESC
	LIMIT ?`

	var records []release.Record
	if err := r.db.SelectContext(ctx, &records, query, program, program, limit); err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}

	return records, nil
}

// FindByVersion returns the newest release of program built from version.
func (r *SQLiteRepository) FindByVersion(ctx context.Context, program, version string) (*release.Record, error) {
	const query = `
	SELECT id, program, version, archive_name, archive_path, size_bytes, checksum, missing, created_at
	FROM releases
	WHERE program = ? AND version = ?
	ORDER BY created_at DESC, rowid DESC
	LIMIT 1`

	var records []release.Record
	if err := r.db.SelectContext(ctx, &records, query, program, version); err != nil {
		return nil, fmt.Errorf("find release: %w", err)
	}

	if len(records) == 0 {
		return nil, ErrNotFound
	}

	return &records[0], nil
}
