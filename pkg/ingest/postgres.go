package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/osbuild/ibmetrics/pkg/dataset"
)

// buildsQuery mirrors the columns of the composer jobs dump.
const buildsQuery = `
	SELECT org_id, account_number, job_id, created_at, image_type,
	       packages, filesystem, payload_repositories
	FROM builds
	ORDER BY created_at
`

// PostgresSource reads build records directly from a composer database
// instead of a dump file.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource connects to the database at the given URL.
func NewPostgresSource(url string) (*PostgresSource, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("opening postgres source: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres source: %w", err)
	}
	return &PostgresSource{db: db}, nil
}

// NewPostgresSourceDB wraps an existing connection, mainly for tests.
func NewPostgresSourceDB(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// Close releases the database connection.
func (s *PostgresSource) Close() error {
	return s.db.Close()
}

// Load reads all build records from the database.
func (s *PostgresSource) Load(ctx context.Context) (dataset.Dataset, error) {
	rows, err := s.db.QueryContext(ctx, buildsQuery)
	if err != nil {
		return nil, fmt.Errorf("querying builds: %w", err)
	}
	defer rows.Close()

	var ds dataset.Dataset
	for rows.Next() {
		var rec dataset.BuildRecord
		var createdAt sql.NullTime
		var packages, filesystem, repos sql.NullString
		if err := rows.Scan(
			&rec.OrgID,
			&rec.AccountNumber,
			&rec.JobID,
			&createdAt,
			&rec.ImageType,
			&packages,
			&filesystem,
			&repos,
		); err != nil {
			return nil, fmt.Errorf("scanning build row: %w", err)
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
		return nil, fmt.Errorf("iterating build rows: %w", err)
	}
	return ds, nil
}

func decodeList(v sql.NullString) []string {
	if !v.Valid || v.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(v.String), &out); err != nil {
		return nil
	}
	return out
}
