// Package store persists fetched collections and their enriched per-asset
// state between runs. Each space has one document per collection kind; a
// document is a whole JSON snapshot, overwritten on save.
//
// Snapshots live in a SQLite database (SQLCipher build, optionally
// encrypted via the ASSETSWEEP_PASSPHRASE env var). A save is a single
// transaction, so an interrupted run never leaves a half-written document —
// this is what makes every run resumable.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mutecomm/go-sqlcipher/v4"
)

// Collection kinds, one logical document each per space.
const (
	KindAssets       = "assets"
	KindAssetFolders = "asset_folders"
)

// Store is the durable snapshot store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the snapshot database at dir/snapshots.db. An
// empty passphrase opens the database unencrypted.
func Open(dir, passphrase string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	dbPath := filepath.Join(dir, "snapshots.db")
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", dbPath)
	if passphrase != "" {
		dsn = fmt.Sprintf("file:%s?_pragma_key=%s&_journal_mode=WAL&_synchronous=NORMAL", dbPath, passphrase)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("invalid passphrase or corrupted database: %w", err)
	}

	schema := `
CREATE TABLE IF NOT EXISTS snapshots (
    space_id    TEXT NOT NULL,
    kind        TEXT NOT NULL,
    data        TEXT NOT NULL,
    updated_at  TEXT NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY (space_id, kind)
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing snapshot schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads a snapshot into out. The boolean reports whether the document
// exists; a missing document is not an error.
func (s *Store) Load(ctx context.Context, spaceID, kind string, out interface{}) (bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM snapshots WHERE space_id = ? AND kind = ?`,
		spaceID, kind,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading %s snapshot: %w", kind, err)
	}

	if err := json.Unmarshal([]byte(data), out); err != nil {
		return false, fmt.Errorf("decoding %s snapshot: %w", kind, err)
	}
	return true, nil
}

// Save overwrites a snapshot. The write happens in one transaction; callers
// may treat it as an uninterruptible critical section.
func (s *Store) Save(ctx context.Context, spaceID, kind string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s snapshot: %w", kind, err)
	}

	// Deliberately not the request context: a snapshot save must run to
	// completion even while the run is being cancelled.
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("saving %s snapshot: %w", kind, err)
	}

	_, err = tx.Exec(`
		INSERT INTO snapshots (space_id, kind, data, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(space_id, kind) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, spaceID, kind, string(data))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("saving %s snapshot: %w", kind, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving %s snapshot: %w", kind, err)
	}
	return nil
}

// Clear drops all snapshots for a space. The next run refetches from the API.
func (s *Store) Clear(ctx context.Context, spaceID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE space_id = ?`, spaceID)
	if err != nil {
		return 0, fmt.Errorf("clearing snapshots: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// SnapshotInfo describes one stored document.
type SnapshotInfo struct {
	SpaceID   string
	Kind      string
	Size      int64
	UpdatedAt time.Time
}

// List returns the stored documents, most recently updated first.
func (s *Store) List(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT space_id, kind, length(data), updated_at
		FROM snapshots
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var infos []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var updatedAt string
		if err := rows.Scan(&info.SpaceID, &info.Kind, &info.Size, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		info.UpdatedAt, _ = time.Parse("2006-01-02 15:04:05", updatedAt)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
