package evidence

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"assetizer/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped on incompatible schema changes; a mismatched
// database must be rebuilt by re-running index.
const schemaVersion = 1

// Kind discriminates evidence sources.
const (
	KindTranscript = "transcript"
	KindOCRFrame   = "ocr_frame"
)

// Unit is one indexed evidence row. EndMs is nil for frame evidence.
type Unit struct {
	AssetID   string
	Kind      string
	SourceRef string
	StartMs   int64
	EndMs     *int64
	Text      string
}

// Store is the shared embedded evidence database.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to (or creates) the evidence database and verifies the
// schema version.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "evidence", "ensure database directory", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "evidence", "open database", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, services.Wrap(services.ErrConfiguration, "", "evidence",
				fmt.Sprintf("apply pragma %q", pragma), execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return services.Wrap(services.ErrDataIntegrity, "", "evidence", "check schema_version table", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return services.Wrap(services.ErrDataIntegrity, "", "evidence", "begin schema tx", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return services.Wrap(services.ErrDataIntegrity, "", "evidence", "create schema", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return services.Wrap(services.ErrDataIntegrity, "", "evidence", "read schema version", err)
	}
	if version != schemaVersion {
		return services.Wrap(services.ErrDataIntegrity, "", "evidence",
			fmt.Sprintf("database has schema version %d, expected %d (delete %s and re-run index)",
				version, schemaVersion, s.path), nil)
	}
	return nil
}

// UpsertAsset records or refreshes the asset row.
func (s *Store) UpsertAsset(ctx context.Context, assetID, sourceURL, title, fingerprint string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO assets (asset_id, source_url, title, fingerprint, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(asset_id) DO UPDATE SET
            source_url = excluded.source_url,
            title = excluded.title,
            fingerprint = excluded.fingerprint,
            updated_at = excluded.updated_at`,
		assetID, sourceURL, title, fingerprint, now, now,
	)
	if err != nil {
		return services.Wrap(services.ErrDataIntegrity, "", "evidence", "upsert asset", err)
	}
	return nil
}

// AssetRow is one row of the assets table.
type AssetRow struct {
	AssetID     string
	SourceURL   string
	Title       string
	Fingerprint string
}

// GetAsset loads one asset row.
func (s *Store) GetAsset(ctx context.Context, assetID string) (AssetRow, error) {
	var row AssetRow
	err := s.db.QueryRowContext(ctx,
		"SELECT asset_id, source_url, title, fingerprint FROM assets WHERE asset_id = ?", assetID,
	).Scan(&row.AssetID, &row.SourceURL, &row.Title, &row.Fingerprint)
	if err == sql.ErrNoRows {
		return row, services.Wrap(services.ErrNotFound, "", "evidence", "asset not ingested: "+assetID, nil)
	}
	if err != nil {
		return row, services.Wrap(services.ErrDataIntegrity, "", "evidence", "load asset", err)
	}
	return row, nil
}

// DeleteAsset removes the asset row and all its evidence. The FTS shadow
// rows go with them through the delete trigger.
func (s *Store) DeleteAsset(ctx context.Context, assetID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return services.Wrap(services.ErrDataIntegrity, "", "evidence", "begin delete tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM evidence WHERE asset_id = ?", assetID); err != nil {
		return services.Wrap(services.ErrDataIntegrity, "", "evidence", "delete evidence", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM assets WHERE asset_id = ?", assetID); err != nil {
		return services.Wrap(services.ErrDataIntegrity, "", "evidence", "delete asset", err)
	}
	return tx.Commit()
}

// CountUnits returns evidence counts per kind for one asset.
func (s *Store) CountUnits(ctx context.Context, assetID string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, COUNT(1) FROM evidence WHERE asset_id = ? GROUP BY kind", assetID)
	if err != nil {
		return nil, services.Wrap(services.ErrDataIntegrity, "", "evidence", "count units", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, services.Wrap(services.ErrDataIntegrity, "", "evidence", "scan count", err)
		}
		counts[kind] = count
	}
	return counts, rows.Err()
}
