package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/deal-scout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	fingerprint TEXT NOT NULL DEFAULT '',
	summary     TEXT,
	error       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, kind model.RunKind, fingerprint string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, status, fingerprint, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(kind), string(model.RunStatusRunning), fingerprint, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:          id,
		Kind:        kind,
		Status:      model.RunStatusRunning,
		Fingerprint: fingerprint,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary any) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET summary = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(summaryJSON), string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, cause error) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET error = ?, status = ?, updated_at = ? WHERE id = ?`,
		errorText(cause), string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, status, fingerprint, summary, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, kind, status, fingerprint, summary, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, filter.limit())

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var kind, status string
	var summary sql.NullString

	err := row.Scan(&r.ID, &kind, &status, &r.Fingerprint, &summary, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "sqlite: get run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Kind = model.RunKind(kind)
	r.Status = model.RunStatus(status)
	if summary.Valid && summary.String != "" {
		r.Summary = []byte(summary.String)
	}
	return &r, nil
}
