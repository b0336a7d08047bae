// Package training fits, selects and caches the artifact set: the success
// classifier plus the funding and valuation regressors.
package training

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/deal-scout/internal/artifact"
	"github.com/sells-group/deal-scout/internal/dataset"
	"github.com/sells-group/deal-scout/internal/feature"
	"github.com/sells-group/deal-scout/internal/learn"
	"github.com/sells-group/deal-scout/internal/metrics"
	"github.com/sells-group/deal-scout/internal/model"
	"github.com/sells-group/deal-scout/internal/store"
)

var (
	// ErrNoCandidate is returned when every candidate family failed to train.
	ErrNoCandidate = eris.New("training: no candidate model trained")
	// ErrEmptyDataset is returned when there is nothing to train on.
	ErrEmptyDataset = eris.New("training: empty dataset")
)

// Options controls a training run.
type Options struct {
	CacheModels    bool           `mapstructure:"cache_models"`
	ForceRetrain   bool           `mapstructure:"force_retrain"`
	TestSize       float64        `mapstructure:"test_size"`
	Folds          int            `mapstructure:"folds"`
	Seed           uint64         `mapstructure:"seed"`
	TuneThreshold  bool           `mapstructure:"tune_threshold"`
	Families       []learn.Family `mapstructure:"families"`
	RegressorTrees int            `mapstructure:"regressor_trees"`
	RegressorDepth int            `mapstructure:"regressor_depth"`
}

// DefaultOptions matches the production configuration.
func DefaultOptions() Options {
	return Options{
		CacheModels:    true,
		TestSize:       0.2,
		Folds:          3,
		Seed:           42,
		TuneThreshold:  true,
		Families:       learn.Families,
		RegressorTrees: 100,
		RegressorDepth: 12,
	}
}

// Pipeline trains artifact sets. cache and ledger are optional.
type Pipeline struct {
	opts   Options
	cache  *artifact.Manager
	ledger store.Store
}

// NewPipeline creates a Pipeline.
func NewPipeline(opts Options, cache *artifact.Manager, ledger store.Store) *Pipeline {
	if len(opts.Families) == 0 {
		opts.Families = learn.Families
	}
	return &Pipeline{opts: opts, cache: cache, ledger: ledger}
}

// Train returns the artifact set for ds, from the cache when a matching set
// exists and retraining is not forced.
func (p *Pipeline) Train(ctx context.Context, ds *dataset.Dataset) (*artifact.Set, *Report, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, nil, ErrEmptyDataset
	}
	start := time.Now()
	fp := artifact.Fingerprint(ds)
	log := zap.L().With(zap.String("fingerprint", fp), zap.Int("rows", ds.Len()))

	runID := startRun(ctx, p.ledger, model.RunKindTrain, fp)

	if p.cache != nil && p.opts.CacheModels && !p.opts.ForceRetrain {
		if set, ok := p.cache.Load(fp); ok {
			rep := p.cachedReport(set, ds, fp)
			rep.RunID = runID
			rep.Duration = time.Since(start)
			log.Info("training: reusing cached artifact set",
				zap.String("family", set.Meta.Family),
				zap.Float64("held_out_accuracy", rep.HeldOut.Accuracy),
			)
			metrics.RecordTraining(string(model.RunKindTrain), true, rep.Duration)
			finishRun(ctx, p.ledger, runID, rep, nil)
			return set, rep, nil
		}
	}

	set, rep, err := p.train(ctx, ds, fp, log)
	if err != nil {
		finishRun(ctx, p.ledger, runID, nil, err)
		return nil, nil, err
	}
	rep.RunID = runID
	set.Meta.RunID = runID

	if p.cache != nil && p.opts.CacheModels {
		if err := p.cache.Save(fp, set); err != nil {
			log.Warn("training: failed to cache artifact set", zap.Error(err))
		}
	}

	rep.Duration = time.Since(start)
	metrics.RecordTraining(string(model.RunKindTrain), false, rep.Duration)
	finishRun(ctx, p.ledger, runID, rep, nil)
	log.Info("training: complete",
		zap.String("selected", string(rep.Selected)),
		zap.Float64("threshold", rep.Threshold),
		zap.Float64("held_out_accuracy", rep.HeldOut.Accuracy),
		zap.Duration("duration", rep.Duration),
	)
	return set, rep, nil
}

func (p *Pipeline) train(ctx context.Context, ds *dataset.Dataset, fp string, log *zap.Logger) (*artifact.Set, *Report, error) {
	bundle, X, err := feature.Build(ds.Records())
	if err != nil {
		return nil, nil, eris.Wrap(err, "training: build features")
	}
	y := ds.Labels()

	trainIdx, testIdx := learn.StratifiedSplit(y, p.opts.TestSize, p.opts.Seed)
	trX, trY := learn.Subset(X, y, trainIdx)
	teX, teY := learn.Subset(X, y, testIdx)

	rep := &Report{Fingerprint: fp, Rows: ds.Len(), TrainRows: len(trainIdx), TestRows: len(testIdx)}
	models := make([]learn.Classifier, len(p.opts.Families))
	rep.Candidates = make([]CandidateReport, len(p.opts.Families))

	g, gctx := errgroup.WithContext(ctx)
	for i, fam := range p.opts.Families {
		g.Go(func() error {
			rep.Candidates[i], models[i] = p.candidate(gctx, fam, trX, trY, teX, teY)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "training: cancelled")
	}

	best := -1
	for i, c := range rep.Candidates {
		if c.Skipped != "" {
			log.Warn("training: candidate skipped", zap.String("family", string(c.Family)), zap.String("reason", c.Skipped))
			continue
		}
		if best < 0 || c.HeldOut.Accuracy > rep.Candidates[best].HeldOut.Accuracy {
			best = i
		}
	}
	if best < 0 {
		return nil, nil, ErrNoCandidate
	}
	clf := models[best]
	rep.Selected = rep.Candidates[best].Family
	rep.HeldOut = rep.Candidates[best].HeldOut
	rep.Threshold = 0.5

	if p.opts.TuneThreshold && len(teX) > 0 {
		t, acc := learn.TuneThreshold(clf, teX, teY, learn.ThresholdGrid)
		if t != 0.5 {
			clf = &learn.Thresholded{Base: clf, Threshold: t}
			rep.Threshold = t
			rep.HeldOut = learn.Evaluate(teY, clf.Predict(teX))
			log.Info("training: tuned decision threshold", zap.Float64("threshold", t), zap.Float64("accuracy", acc))
		}
	}

	funding, valuation, err := p.regressors(ctx, ds, X, trainIdx, testIdx, rep)
	if err != nil {
		return nil, nil, err
	}

	set := &artifact.Set{
		Classifier: artifact.Bind(clf, bundle),
		Funding:    funding,
		Valuation:  valuation,
		Meta: artifact.Meta{
			Fingerprint:     fp,
			SchemaVersion:   artifact.SchemaVersion,
			Family:          string(rep.Selected),
			Threshold:       rep.Threshold,
			HeldOutAccuracy: rep.HeldOut.Accuracy,
			Source:          "full",
			TrainingRows:    len(trainIdx),
			CreatedAt:       time.Now().UTC(),
		},
	}
	return set, rep, nil
}

// candidate runs the parameter search and refit for one family. Errors and
// panics mark the candidate skipped rather than failing the run.
func (p *Pipeline) candidate(ctx context.Context, fam learn.Family, trX [][]float64, trY []int, teX [][]float64, teY []int) (cr CandidateReport, clf learn.Classifier) {
	start := time.Now()
	cr.Family = fam
	defer func() {
		if r := recover(); r != nil {
			cr.Skipped = fmt.Sprintf("panic: %v", r)
			clf = nil
		}
		cr.Duration = time.Since(start)
	}()

	if err := ctx.Err(); err != nil {
		cr.Skipped = err.Error()
		return cr, nil
	}

	search, err := learn.CrossValidate(fam, learn.DefaultGrid(fam), trX, trY, p.opts.Folds, p.opts.Seed)
	if err != nil {
		cr.Skipped = err.Error()
		return cr, nil
	}
	cr.Params = search.Params
	cr.CVScore = search.CVScore

	clf, err = learn.New(fam, search.Params, p.opts.Seed)
	if err != nil {
		cr.Skipped = err.Error()
		return cr, nil
	}
	if err := clf.Fit(trX, trY); err != nil {
		cr.Skipped = err.Error()
		return cr, nil
	}
	cr.HeldOut = learn.Evaluate(teY, clf.Predict(teX))
	return cr, clf
}

// regressors fits the funding and valuation forests concurrently on the
// training split and scores them on the held-out split.
func (p *Pipeline) regressors(ctx context.Context, ds *dataset.Dataset, X [][]float64, trainIdx, testIdx []int, rep *Report) (*learn.ForestRegressor, *learn.ForestRegressor, error) {
	targets := make([][]float64, 2)
	for _, c := range ds.Records() {
		targets[0] = append(targets[0], c.FundingAmountUSD)
		targets[1] = append(targets[1], c.ValuationUSD)
	}
	params := learn.Params{NTrees: p.opts.RegressorTrees, MaxDepth: p.opts.RegressorDepth}
	out := make([]*learn.ForestRegressor, 2)
	reports := make([]learn.RegressionReport, 2)

	g, _ := errgroup.WithContext(ctx)
	for i := range targets {
		g.Go(func() error {
			trX, trY := learn.Subset(X, targets[i], trainIdx)
			teX, teY := learn.Subset(X, targets[i], testIdx)
			r := learn.NewForestRegressor(params, p.opts.Seed+uint64(i))
			if err := r.Fit(trX, trY); err != nil {
				return eris.Wrapf(err, "training: fit regressor %d", i)
			}
			out[i] = r
			reports[i] = learn.EvaluateRegression(teY, r.Predict(teX))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	rep.Funding, rep.Valuation = reports[0], reports[1]
	return out[0], out[1], nil
}

// cachedReport re-scores a cached classifier on the same held-out split a
// fresh run would use.
func (p *Pipeline) cachedReport(set *artifact.Set, ds *dataset.Dataset, fp string) *Report {
	rep := &Report{
		Fingerprint: fp,
		Rows:        ds.Len(),
		CacheHit:    true,
		Selected:    learn.Family(set.Meta.Family),
		Threshold:   set.Meta.Threshold,
	}
	if rep.Threshold == 0 {
		rep.Threshold = 0.5
	}
	bundle := set.Classifier.Bundle()
	X := make([][]float64, ds.Len())
	for i, c := range ds.Records() {
		row, err := bundle.Encode(c)
		if err != nil {
			zap.L().Warn("training: re-evaluate cached set", zap.Error(err))
			rep.HeldOut.Accuracy = set.Meta.HeldOutAccuracy
			return rep
		}
		X[i] = row
	}
	y := ds.Labels()
	trainIdx, testIdx := learn.StratifiedSplit(y, p.opts.TestSize, p.opts.Seed)
	rep.TrainRows, rep.TestRows = len(trainIdx), len(testIdx)
	teX, teY := learn.Subset(X, y, testIdx)
	rep.HeldOut = learn.Evaluate(teY, set.Classifier.Model().Predict(teX))
	return rep
}
