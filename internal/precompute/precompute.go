// Package precompute scores a whole dataset in fast mode and keeps the
// resulting columns on the dataset, in an id-keyed cache and on disk.
package precompute

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/deal-scout/internal/artifact"
	"github.com/sells-group/deal-scout/internal/dataset"
	"github.com/sells-group/deal-scout/internal/metrics"
	"github.com/sells-group/deal-scout/internal/model"
	"github.com/sells-group/deal-scout/internal/scoring"
	"github.com/sells-group/deal-scout/internal/store"
)

// Options controls one precompute pass.
type Options struct {
	// MaxRows limits the pass to the first MaxRows records. Zero means all.
	MaxRows int `mapstructure:"max_rows" json:"max_rows"`
	// ForceRefresh rescores rows that already have a cached result.
	ForceRefresh bool `mapstructure:"force_refresh" json:"force_refresh"`
}

// Precomputer runs precompute passes. results and ledger are optional.
type Precomputer struct {
	scorer  *scoring.Scorer
	cache   *Cache
	results *artifact.Manager
	ledger  store.Store
	workers int
}

// New creates a Precomputer. workers <= 0 uses one worker per CPU.
func New(scorer *scoring.Scorer, cache *Cache, results *artifact.Manager, ledger store.Store, workers int) *Precomputer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if cache == nil {
		cache = NewCache()
	}
	return &Precomputer{scorer: scorer, cache: cache, results: results, ledger: ledger, workers: workers}
}

// Cache returns the result cache the precomputer fills.
func (p *Precomputer) Cache() *Cache { return p.cache }

// Run scores the targeted rows of ds and writes their columns back.
// Rows with a cached tier are reused unless opts.ForceRefresh is set. Counts
// include reused rows, so an unchanged dataset yields the same counts on
// every pass.
func (p *Precomputer) Run(ctx context.Context, ds *dataset.Dataset, opts Options) (model.TierCounts, error) {
	n := ds.Len()
	if opts.MaxRows > 0 && opts.MaxRows < n {
		n = opts.MaxRows
	}
	start := time.Now()
	fp := artifact.Fingerprint(ds)
	log := zap.L().With(zap.String("fingerprint", fp), zap.Int("rows", n), zap.Bool("force_refresh", opts.ForceRefresh))

	runID := p.startRun(ctx, fp)

	if opts.ForceRefresh {
		ids := make([]string, 0, n)
		for i := range n {
			ids = append(ids, ds.At(i).ID)
		}
		p.cache.Delete(ids...)
	}

	var invest, monitor, avoid, scored, reused, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i := range n {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					failed.Add(1)
					metrics.PrecomputeRowsTotal.WithLabelValues("failed").Inc()
					log.Error("precompute: row panicked", zap.Int("row", i), zap.String("panic", fmt.Sprint(r)))
				}
			}()
			if gctx.Err() != nil {
				return nil
			}

			rec := ds.At(i)
			if rec.ID == "" {
				skipped.Add(1)
				metrics.PrecomputeRowsTotal.WithLabelValues("skipped").Inc()
				return nil
			}

			res, ok := p.cache.Get(rec.ID)
			if ok && res.Tier != "" {
				reused.Add(1)
				metrics.PrecomputeRowsTotal.WithLabelValues("reused").Inc()
			} else {
				res = p.scorer.Score(rec, model.ModeFast)
				p.cache.Put(res)
				scored.Add(1)
				metrics.PrecomputeRowsTotal.WithLabelValues(res.TierKey).Inc()
			}
			ds.SetColumns(i, dataset.ColumnsFromResult(res))

			switch res.Tier {
			case model.TierInvest:
				invest.Add(1)
			case model.TierMonitor:
				monitor.Add(1)
			case model.TierAvoid:
				avoid.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	counts := model.TierCounts{
		Invest:  int(invest.Load()),
		Monitor: int(monitor.Load()),
		Avoid:   int(avoid.Load()),
	}
	counts.TotalScored = counts.Invest + counts.Monitor + counts.Avoid

	if err := ctx.Err(); err != nil {
		p.finishRun(ctx, runID, counts, err)
		return counts, eris.Wrap(err, "precompute: cancelled")
	}

	if gen := p.generation(); p.results != nil && gen != "" {
		if err := p.persist(ds, fp, gen, n); err != nil {
			log.Warn("precompute: failed to persist results", zap.Error(err))
		}
	}

	p.finishRun(ctx, runID, counts, nil)
	log.Info("precompute: complete",
		zap.Int("total_scored", counts.TotalScored),
		zap.Int("invest", counts.Invest),
		zap.Int("monitor", counts.Monitor),
		zap.Int("avoid", counts.Avoid),
		zap.Int64("scored", scored.Load()),
		zap.Int64("reused", reused.Load()),
		zap.Int64("skipped", skipped.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Duration("duration", time.Since(start)),
	)
	return counts, nil
}

// generation identifies the set the scorer reads. Results are only shared
// between passes of the same generation.
func (p *Precomputer) generation() string {
	if set := p.scorer.CurrentSet(); set != nil {
		return set.Meta.Generation()
	}
	return ""
}

func (p *Precomputer) persist(ds *dataset.Dataset, fp, gen string, n int) error {
	rows := make([]artifact.ResultRow, 0, n)
	for i := range n {
		id := ds.At(i).ID
		cols := ds.Columns(i)
		if id == "" || cols.Empty() {
			continue
		}
		rows = append(rows, artifact.ResultRow{CompanyID: id, Columns: cols})
	}
	return p.results.SaveResults(fp, gen, rows, p.cache.Snapshot())
}

// Load merges results persisted for fp onto ds and the cache. Results scored
// by a different set generation are ignored. It returns the number of dataset
// rows that received columns.
func (p *Precomputer) Load(ctx context.Context, ds *dataset.Dataset, fp string) int {
	gen := p.generation()
	if p.results == nil || gen == "" {
		return 0
	}
	rows, results, ok := p.results.LoadResults(fp, gen)
	if !ok {
		return 0
	}

	var merged int
	for _, row := range rows {
		if ctx.Err() != nil {
			break
		}
		i, ok := ds.Lookup(row.CompanyID)
		if !ok || row.Columns.Empty() {
			continue
		}
		ds.SetColumns(i, row.Columns)
		merged++
	}
	for id, r := range results {
		if _, ok := ds.Lookup(id); ok {
			p.cache.Put(r)
		}
	}
	zap.L().Info("precompute: loaded persisted results",
		zap.String("fingerprint", fp),
		zap.Int("merged", merged),
		zap.Int("cached", p.cache.Len()),
	)
	return merged
}

func (p *Precomputer) startRun(ctx context.Context, fp string) string {
	if p.ledger == nil {
		return ""
	}
	run, err := p.ledger.CreateRun(ctx, model.RunKindPrecompute, fp)
	if err != nil {
		zap.L().Warn("precompute: failed to create ledger run", zap.Error(err))
		return ""
	}
	return run.ID
}

func (p *Precomputer) finishRun(ctx context.Context, runID string, counts model.TierCounts, cause error) {
	if p.ledger == nil || runID == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	var err error
	if cause != nil {
		err = p.ledger.FailRun(ctx, runID, cause)
	} else {
		err = p.ledger.CompleteRun(ctx, runID, counts)
	}
	if err != nil {
		zap.L().Warn("precompute: failed to update ledger run", zap.String("run_id", runID), zap.Error(err))
	}
}
