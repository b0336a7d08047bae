// Package monitoring watches the run ledger and the published model set and
// raises webhook alerts when training or precompute start failing.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/deal-scout/internal/model"
	"github.com/sells-group/deal-scout/internal/scheduler"
	"github.com/sells-group/deal-scout/internal/store"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Ledger metrics (within lookback window).
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	RunFailRate  float64 `json:"run_fail_rate"`
	TrainFailed  int     `json:"train_failed"`

	// LastTrainAt is the most recent completed training run, at any age.
	LastTrainAt time.Time `json:"last_train_at"`

	// Live set.
	LiveSource      string `json:"live_source,omitempty"`
	LiveFingerprint string `json:"live_fingerprint,omitempty"`
	WorkerError     string `json:"worker_error,omitempty"`

	// Metadata.
	LedgerEnabled bool      `json:"ledger_enabled"`
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// StatusReporter abstracts the scheduler status needed by the collector.
type StatusReporter interface {
	Status() scheduler.Status
}

// Collector gathers metrics from the ledger and the scheduler. Either may
// be nil.
type Collector struct {
	store store.Store
	live  StatusReporter
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store, live StatusReporter) *Collector {
	return &Collector{store: st, live: live}
}

// Collect gathers a snapshot of system metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
		LedgerEnabled: c.store != nil,
	}

	if c.live != nil {
		st := c.live.Status()
		snap.LiveSource = st.Source
		snap.LiveFingerprint = st.Fingerprint
		snap.WorkerError = st.LastError
	}

	if c.store == nil {
		return snap, nil
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		CreatedAfter: cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
			if r.Kind == model.RunKindTrain {
				snap.TrainFailed++
			}
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
	}
	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}

	last, err := c.store.ListRuns(ctx, store.RunFilter{
		Kind:   model.RunKindTrain,
		Status: model.RunStatusComplete,
		Limit:  1,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: last training run")
	}
	if len(last) > 0 {
		snap.LastTrainAt = last[0].UpdatedAt
	}

	return snap, nil
}
