// Package scheduler publishes the live artifact set: a quick bootstrap set at
// startup, then a fully trained set from a single background worker.
package scheduler

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-scout/internal/artifact"
	"github.com/sells-group/deal-scout/internal/dataset"
	"github.com/sells-group/deal-scout/internal/metrics"
	"github.com/sells-group/deal-scout/internal/model"
	"github.com/sells-group/deal-scout/internal/precompute"
	"github.com/sells-group/deal-scout/internal/scoring"
	"github.com/sells-group/deal-scout/internal/store"
	"github.com/sells-group/deal-scout/internal/training"
)

// Sources of a published Live.
const (
	SourceBootstrap = "bootstrap"
	SourceFull      = "full"
)

// Live is one published generation. It is never mutated once published,
// except for the dataset columns and result cache, which guard themselves.
type Live struct {
	Set         *artifact.Set
	Dataset     *dataset.Dataset
	Results     *precompute.Cache
	Fingerprint string
	Source      string
	Counts      model.TierCounts
	PublishedAt time.Time
}

// Options controls startup and the upgrade worker.
type Options struct {
	BootstrapRows    int                `mapstructure:"bootstrap_rows"`
	BootstrapSeed    uint64             `mapstructure:"bootstrap_seed"`
	PrecomputeEnable bool               `mapstructure:"precompute_enable"`
	Precompute       precompute.Options `mapstructure:"precompute"`
	Workers          int                `mapstructure:"workers"`

	// Scoring applies to precompute and to Scorer.
	Scoring []scoring.Option `mapstructure:"-"`
	// Ledger records upgrade precompute runs. May be nil.
	Ledger store.Store `mapstructure:"-"`
}

// Status reports the scheduler state.
type Status struct {
	Source       string           `json:"source"`
	Fingerprint  string           `json:"fingerprint"`
	PublishedAt  time.Time        `json:"published_at"`
	Rows         int              `json:"rows"`
	Counts       model.TierCounts `json:"counts"`
	WorkerActive bool             `json:"worker_active"`
	LastError    string           `json:"last_error,omitempty"`
	LastRunAt    time.Time        `json:"last_run_at"`
}

// Scheduler owns the live generation and the upgrade worker.
type Scheduler struct {
	opts     Options
	loader   dataset.Loader
	pipeline *training.Pipeline
	results  *artifact.Manager

	live    atomic.Pointer[Live]
	running atomic.Bool
	wg      sync.WaitGroup

	mu        sync.Mutex
	lastErr   error
	lastRunAt time.Time
}

// New creates a Scheduler. results may be nil to disable persisted precompute
// results.
func New(opts Options, loader dataset.Loader, pipeline *training.Pipeline, results *artifact.Manager) *Scheduler {
	if opts.BootstrapRows <= 0 {
		opts.BootstrapRows = training.DefaultBootstrapRows
	}
	return &Scheduler{opts: opts, loader: loader, pipeline: pipeline, results: results}
}

// Current returns the live generation, or nil before the first publish.
func (s *Scheduler) Current() *Live {
	return s.live.Load()
}

// CurrentSet implements scoring.SetSource.
func (s *Scheduler) CurrentSet() *artifact.Set {
	if l := s.live.Load(); l != nil {
		return l.Set
	}
	return nil
}

// Scorer returns a scorer that always reads the live set.
func (s *Scheduler) Scorer(opts ...scoring.Option) *scoring.Scorer {
	return scoring.NewScorer(s, append(slices.Clone(s.opts.Scoring), opts...)...)
}

// Bootstrap trains the synthetic bootstrap set, precomputes its sample and
// publishes it.
func (s *Scheduler) Bootstrap(ctx context.Context) error {
	set, ds, err := training.Bootstrap(ctx, s.opts.BootstrapRows, s.opts.BootstrapSeed)
	if err != nil {
		return eris.Wrap(err, "scheduler: bootstrap")
	}
	live := &Live{Set: set, Dataset: ds, Results: precompute.NewCache(), Fingerprint: set.Meta.Fingerprint, Source: SourceBootstrap}

	// Scores against the new set before it is published.
	scorer := scoring.NewScorer(scoring.StaticSource{Set: set}, s.opts.Scoring...)
	counts, err := precompute.New(scorer, live.Results, nil, nil, s.opts.Workers).Run(ctx, ds, precompute.Options{})
	if err != nil {
		return eris.Wrap(err, "scheduler: bootstrap precompute")
	}
	live.Counts = counts
	s.publish(live)
	return nil
}

// Kickoff starts the upgrade worker. It returns false without doing anything
// when a worker is already running. The worker ignores cancellation of ctx.
func (s *Scheduler) Kickoff(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)

		err := s.upgrade(context.WithoutCancel(ctx))
		s.mu.Lock()
		s.lastErr, s.lastRunAt = err, time.Now().UTC()
		s.mu.Unlock()
		if err != nil {
			zap.L().Error("scheduler: upgrade failed, keeping current set", zap.Error(err))
		}
	}()
	return true
}

// Wait blocks until the upgrade worker is idle.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) upgrade(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("scheduler: upgrade panicked: %v", r)
		}
	}()

	start := time.Now()
	ds, err := s.loader.Load(ctx)
	if err != nil {
		return eris.Wrap(err, "scheduler: load dataset")
	}

	set, rep, err := s.pipeline.Train(ctx, ds)
	if err != nil {
		return eris.Wrap(err, "scheduler: train")
	}

	live := &Live{Set: set, Dataset: ds, Results: precompute.NewCache(), Fingerprint: rep.Fingerprint, Source: SourceFull}
	scorer := scoring.NewScorer(scoring.StaticSource{Set: set}, s.opts.Scoring...)
	pc := precompute.New(scorer, live.Results, s.results, s.opts.Ledger, s.opts.Workers)
	pc.Load(ctx, ds, live.Fingerprint)

	if s.opts.PrecomputeEnable {
		counts, err := pc.Run(ctx, ds, s.opts.Precompute)
		if err != nil {
			return eris.Wrap(err, "scheduler: precompute")
		}
		live.Counts = counts
	}

	s.publish(live)
	zap.L().Info("scheduler: upgrade complete",
		zap.String("selected", string(rep.Selected)),
		zap.Bool("cache_hit", rep.CacheHit),
		zap.Int("rows", ds.Len()),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// publish installs live as the current generation in one store.
func (s *Scheduler) publish(live *Live) {
	live.PublishedAt = time.Now().UTC()
	if live.Results == nil {
		live.Results = precompute.NewCache()
	}
	s.live.Store(live)
	metrics.SetLive(live.Source)
	zap.L().Info("scheduler: published artifact set",
		zap.String("source", live.Source),
		zap.String("fingerprint", live.Fingerprint),
		zap.Int("rows", live.Dataset.Len()),
	)
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	st := Status{WorkerActive: s.running.Load()}
	if l := s.live.Load(); l != nil {
		st.Source = l.Source
		st.Fingerprint = l.Fingerprint
		st.PublishedAt = l.PublishedAt
		st.Rows = l.Dataset.Len()
		st.Counts = l.Counts
	}
	s.mu.Lock()
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	st.LastRunAt = s.lastRunAt
	s.mu.Unlock()
	return st
}
