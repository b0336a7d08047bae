// Package store persists the training and precompute run ledger.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/deal-scout/internal/model"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind         model.RunKind   `json:"kind,omitempty"`
	Status       model.RunStatus `json:"status,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return 100
	}
	return f.Limit
}

// Store is the run ledger.
type Store interface {
	CreateRun(ctx context.Context, kind model.RunKind, fingerprint string) (*model.Run, error)
	// CompleteRun marks a run complete and attaches summary encoded as JSON.
	CompleteRun(ctx context.Context, runID string, summary any) error
	FailRun(ctx context.Context, runID string, cause error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver      string     `mapstructure:"driver"`
	Path        string     `mapstructure:"path"`
	DatabaseURL string     `mapstructure:"database_url"`
	Pool        PoolConfig `mapstructure:"pool"`
}

// Drivers lists the accepted Options.Driver values. "none" disables the ledger.
var Drivers = []string{"none", "sqlite", "postgres"}

// Open returns the configured store, migrated and ready. It returns nil, nil
// for the "none" driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(opts.Driver) {
	case "", "none":
		return nil, nil
	case "sqlite":
		s, err = NewSQLite(opts.Path)
	case "postgres":
		s, err = NewPostgres(ctx, opts.DatabaseURL, &opts.Pool)
	default:
		return nil, eris.Errorf("store: unknown driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
