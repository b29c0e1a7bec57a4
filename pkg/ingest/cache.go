package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/osbuild/ibmetrics/pkg/dataset"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS datasets (
	key       TEXT PRIMARY KEY,
	loaded_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	dataset_key          TEXT NOT NULL REFERENCES datasets(key) ON DELETE CASCADE,
	org_id               TEXT NOT NULL,
	account_number       TEXT NOT NULL,
	job_id               TEXT NOT NULL,
	created_at           TIMESTAMP,
	image_type           TEXT NOT NULL,
	packages             TEXT,
	filesystem           TEXT,
	payload_repositories TEXT
);
CREATE INDEX IF NOT EXISTS idx_records_dataset ON records(dataset_key);
`

// Cache stores parsed datasets in a SQLite database so repeated report runs
// skip the dump parsing. The default location is
// $XDG_CACHE_HOME/ibmetrics/cache.db.
type Cache struct {
	db *sql.DB
}

// DefaultCacheDir returns the cache directory honoring XDG_CACHE_HOME.
func DefaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "ibmetrics")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "ibmetrics")
	}
	return filepath.Join(home, ".cache", "ibmetrics")
}

// OpenCache opens (creating if needed) the cache database in dir.
func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir %s: %w", dir, err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, "cache.db"))
	if err != nil {
		return nil, fmt.Errorf("opening dataset cache: %w", err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing dataset cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached dataset for key. ok is false on a cache miss.
func (c *Cache) Get(ctx context.Context, key string) (ds dataset.Dataset, ok bool, err error) {
	var loadedAt time.Time
	err = c.db.QueryRowContext(ctx, "SELECT loaded_at FROM datasets WHERE key = ?", key).Scan(&loadedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("looking up cached dataset %q: %w", key, err)
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT org_id, account_number, job_id, created_at, image_type,
		       packages, filesystem, payload_repositories
		FROM records WHERE dataset_key = ?`, key)
	if err != nil {
		return nil, false, fmt.Errorf("reading cached dataset %q: %w", key, err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec dataset.BuildRecord
		var createdAt sql.NullTime
		var packages, filesystem, repos sql.NullString
		if err := rows.Scan(&rec.OrgID, &rec.AccountNumber, &rec.JobID, &createdAt,
			&rec.ImageType, &packages, &filesystem, &repos); err != nil {
			return nil, false, fmt.Errorf("scanning cached record: %w", err)
		}
		if createdAt.Valid {
			rec.CreatedAt = createdAt.Time.UTC()
		}
		rec.Packages = decodeList(packages)
		rec.Filesystem = decodeList(filesystem)
		rec.PayloadRepositories = decodeList(repos)
		ds = append(ds, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating cached records: %w", err)
	}
	return ds, true, nil
}

// Put stores a dataset under key, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, key string, ds dataset.Dataset) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("caching dataset %q: %w", key, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE dataset_key = ?", key); err != nil {
		return fmt.Errorf("evicting cached dataset %q: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO datasets (key, loaded_at) VALUES (?, ?)", key, time.Now().UTC()); err != nil {
		return fmt.Errorf("caching dataset %q: %w", key, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (dataset_key, org_id, account_number, job_id, created_at,
		                     image_type, packages, filesystem, payload_repositories)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("caching dataset %q: %w", key, err)
	}
	defer stmt.Close()

	for i := range ds {
		r := &ds[i]
		var createdAt interface{}
		if r.HasTimestamp() {
			createdAt = r.CreatedAt.UTC()
		}
		if _, err := stmt.ExecContext(ctx, key, r.OrgID, r.AccountNumber, r.JobID, createdAt,
			r.ImageType, encodeList(r.Packages), encodeList(r.Filesystem),
			encodeList(r.PayloadRepositories)); err != nil {
			return fmt.Errorf("caching record for dataset %q: %w", key, err)
		}
	}
	return tx.Commit()
}

func encodeList(list []string) interface{} {
	if len(list) == 0 {
		return nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil
	}
	return string(data)
}
