package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/deal-scout/internal/model"
	"github.com/sells-group/deal-scout/internal/resilience"
)

// Pool is the subset of *pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool. The initial
// ping is retried while the server is still accepting connections.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	err = resilience.Do(ctx, resilience.DefaultBackoff(), "postgres ping", pool.Ping)
	if err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	kind        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	fingerprint TEXT NOT NULL DEFAULT '',
	summary     JSONB,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, kind model.RunKind, fingerprint string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, kind, status, fingerprint, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(kind), string(model.RunStatusRunning), fingerprint, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary any) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET summary = $1, status = $2, updated_at = $3 WHERE id = $4`,
		summaryJSON, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, cause error) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET error = $1, status = $2, updated_at = $3 WHERE id = $4`,
		errorText(cause), string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, kind, status, fingerprint, summary, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "postgres: get run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get run")
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, kind, status, fingerprint, summary, error, created_at, updated_at FROM runs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, argIdx)
		args = append(args, string(filter.Kind))
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if !filter.CreatedAfter.IsZero() {
		query += fmt.Sprintf(` AND created_at > $%d`, argIdx)
		args = append(args, filter.CreatedAfter)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, filter.limit())
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var kind, status string
	var summary []byte

	if err := row.Scan(&r.ID, &kind, &status, &r.Fingerprint, &summary, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Kind = model.RunKind(kind)
	r.Status = model.RunStatus(status)
	if len(summary) > 0 {
		r.Summary = summary
	}
	return &r, nil
}
