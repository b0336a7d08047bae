package training

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/deal-scout/internal/learn"
	"github.com/sells-group/deal-scout/internal/model"
	"github.com/sells-group/deal-scout/internal/store"
)

// CandidateReport describes one family's search and held-out evaluation.
// Skipped is non-empty when the family could not be trained.
type CandidateReport struct {
	Family   learn.Family       `json:"family"`
	Params   learn.Params       `json:"params"`
	CVScore  float64            `json:"cv_score"`
	HeldOut  learn.BinaryReport `json:"held_out"`
	Duration time.Duration      `json:"duration"`
	Skipped  string             `json:"skipped,omitempty"`
}

// Report summarizes a training run. It is also the ledger summary.
type Report struct {
	RunID       string                 `json:"run_id,omitempty"`
	Fingerprint string                 `json:"fingerprint"`
	Rows        int                    `json:"rows"`
	TrainRows   int                    `json:"train_rows"`
	TestRows    int                    `json:"test_rows"`
	CacheHit    bool                   `json:"cache_hit"`
	Candidates  []CandidateReport      `json:"candidates,omitempty"`
	Selected    learn.Family           `json:"selected"`
	Threshold   float64                `json:"threshold"`
	HeldOut     learn.BinaryReport     `json:"held_out"`
	Funding     learn.RegressionReport `json:"funding"`
	Valuation   learn.RegressionReport `json:"valuation"`
	Duration    time.Duration          `json:"duration"`
}

// startRun opens a ledger entry. It returns "" when there is no ledger or the
// insert fails; the run itself never depends on the ledger.
func startRun(ctx context.Context, ledger store.Store, kind model.RunKind, fp string) string {
	if ledger == nil {
		return ""
	}
	run, err := ledger.CreateRun(ctx, kind, fp)
	if err != nil {
		zap.L().Warn("training: failed to create ledger run", zap.String("kind", string(kind)), zap.Error(err))
		return ""
	}
	return run.ID
}

func finishRun(ctx context.Context, ledger store.Store, runID string, summary any, cause error) {
	if ledger == nil || runID == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	var err error
	if cause != nil {
		err = ledger.FailRun(ctx, runID, cause)
	} else {
		err = ledger.CompleteRun(ctx, runID, summary)
	}
	if err != nil {
		zap.L().Warn("training: failed to update ledger run", zap.String("run_id", runID), zap.Error(err))
	}
}
