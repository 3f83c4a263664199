// Package store keeps the history of pipeline runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spigell/job-matcher/internal/pipeline"
)

const schemaVersion = 1

var ErrNotFound = errors.New("run not found")

// Run is one stored pipeline run.
type Run struct {
	ID        string
	CreatedAt time.Time
	Location  string
	JobType   string
	Keywords  string
	Model     string
	// Error is set for runs that failed after normalization.
	Error  string
	Output pipeline.Output
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at path and applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate brings the schema to the latest version tracked in user_version.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= schemaVersion {
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  created_at TEXT NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  job_type TEXT NOT NULL DEFAULT '',
  keywords TEXT NOT NULL DEFAULT '',
  model TEXT NOT NULL DEFAULT '',
  total_candidates INTEGER NOT NULL DEFAULT 0,
  total_after_dedup INTEGER NOT NULL DEFAULT 0,
  matches INTEGER NOT NULL DEFAULT 0,
  error TEXT NOT NULL DEFAULT '',
  output TEXT NOT NULL DEFAULT '{}'
);
`); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);`); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveRun inserts or replaces a run. A zero CreatedAt is set to now.
func (s *Store) SaveRun(ctx context.Context, r Run) error {
	if r.ID == "" {
		return errors.New("run id is required")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}

	output, err := json.Marshal(r.Output)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO runs
  (id, created_at, location, job_type, keywords, model, total_candidates, total_after_dedup, matches, error, output)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		r.ID,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
		r.Location, r.JobType, r.Keywords, r.Model,
		r.Output.Diagnostics.TotalCandidates,
		r.Output.Diagnostics.TotalAfterDedup,
		len(r.Output.Jobs),
		r.Error,
		string(output),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, created_at, location, job_type, keywords, model, error, output
FROM runs
ORDER BY created_at DESC, id ASC
LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, created_at, location, job_type, keywords, model, error, output
FROM runs WHERE id = ?;`, id)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r       Run
		created string
		output  string
	)
	if err := sc.Scan(&r.ID, &created, &r.Location, &r.JobType, &r.Keywords, &r.Model, &r.Error, &output); err != nil {
		return Run{}, err
	}

	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: bad created_at %q: %w", r.ID, created, err)
	}
	r.CreatedAt = t

	if err := json.Unmarshal([]byte(output), &r.Output); err != nil {
		return Run{}, fmt.Errorf("run %s: decode output: %w", r.ID, err)
	}
	return r, nil
}
