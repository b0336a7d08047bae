package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-scout/internal/artifact"
	"github.com/sells-group/deal-scout/internal/dataset"
	"github.com/sells-group/deal-scout/internal/precompute"
	"github.com/sells-group/deal-scout/internal/scoring"
	"github.com/sells-group/deal-scout/internal/store"
	"github.com/sells-group/deal-scout/internal/training"
)

// initStore opens the configured run ledger. It returns nil when the ledger
// is disabled.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open run ledger")
	}
	return st, nil
}

// newLoader reads the configured dataset and falls back to synthetic data
// when the file is missing or unreadable.
func newLoader() dataset.Loader {
	return dataset.FallbackLoader{
		Primary:  dataset.LoaderFor(cfg.Data.Path),
		Fallback: dataset.SyntheticLoader{Rows: cfg.Data.SyntheticRows, Seed: cfg.Data.SyntheticSeed},
	}
}

func scoringOptions() []scoring.Option {
	return []scoring.Option{scoring.WithTempering(cfg.Tempering)}
}

func precomputeOptions() precompute.Options {
	return precompute.Options{MaxRows: cfg.Precompute.MaxRows, ForceRefresh: cfg.Precompute.ForceRefresh}
}

// trainedEnv is a trained set over the loaded dataset, for the one-shot
// commands.
type trainedEnv struct {
	Ledger  store.Store
	Models  *artifact.Manager
	Dataset *dataset.Dataset
	Set     *artifact.Set
	Report  *training.Report
}

// Close releases the ledger.
func (e *trainedEnv) Close() {
	if e.Ledger != nil {
		_ = e.Ledger.Close()
	}
}

// Scorer returns a scorer over the trained set.
func (e *trainedEnv) Scorer() *scoring.Scorer {
	return scoring.NewScorer(scoring.StaticSource{Set: e.Set}, scoringOptions()...)
}

// Precomputer returns a precomputer with persisted results for the dataset
// already loaded into its cache.
func (e *trainedEnv) Precomputer(ctx context.Context) *precompute.Precomputer {
	pc := precompute.New(e.Scorer(), nil, e.Models, e.Ledger, cfg.Precompute.Workers)
	if n := pc.Load(ctx, e.Dataset, e.Report.Fingerprint); n > 0 {
		zap.L().Info("reused persisted precompute results", zap.Int("rows", n))
	}
	return pc
}

// initTrained loads the dataset and trains or reuses the artifact set for it.
func initTrained(ctx context.Context) (*trainedEnv, error) {
	ledger, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &trainedEnv{Ledger: ledger, Models: artifact.NewManager(cfg.Cache.Dir)}

	ds, err := newLoader().Load(ctx)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "load dataset")
	}
	env.Dataset = ds

	set, rep, err := training.NewPipeline(cfg.Training, env.Models, ledger).Train(ctx, ds)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "train")
	}
	env.Set, env.Report = set, rep
	return env, nil
}
