package training

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-scout/internal/artifact"
	"github.com/sells-group/deal-scout/internal/dataset"
	"github.com/sells-group/deal-scout/internal/feature"
	"github.com/sells-group/deal-scout/internal/learn"
	"github.com/sells-group/deal-scout/internal/metrics"
	"github.com/sells-group/deal-scout/internal/model"
)

// DefaultBootstrapRows is the synthetic sample size used at startup.
const DefaultBootstrapRows = 200

// Bootstrap trains a quick set on a synthetic sample so scoring can start
// before the full pipeline finishes. It uses logistic regression without a
// search plus small forest regressors, and never reads or writes the cache.
// The generated sample is returned with the set.
func Bootstrap(ctx context.Context, sampleSize int, seed uint64) (*artifact.Set, *dataset.Dataset, error) {
	if sampleSize <= 0 {
		sampleSize = DefaultBootstrapRows
	}
	start := time.Now()
	ds := dataset.GenerateSynthetic(sampleSize, seed)

	bundle, X, err := feature.Build(ds.Records())
	if err != nil {
		return nil, nil, eris.Wrap(err, "training: bootstrap features")
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "training: bootstrap cancelled")
	}

	y := ds.Labels()
	clf := learn.NewLogistic(learn.Params{C: 1, MaxIter: 300})
	if err := clf.Fit(X, y); err != nil {
		return nil, nil, eris.Wrap(err, "training: bootstrap classifier")
	}

	params := learn.Params{NTrees: 20, MaxDepth: 8}
	funding := learn.NewForestRegressor(params, seed)
	valuation := learn.NewForestRegressor(params, seed+1)
	fy := make([]float64, ds.Len())
	vy := make([]float64, ds.Len())
	for i, c := range ds.Records() {
		fy[i], vy[i] = c.FundingAmountUSD, c.ValuationUSD
	}
	if err := funding.Fit(X, fy); err != nil {
		return nil, nil, eris.Wrap(err, "training: bootstrap funding regressor")
	}
	if err := valuation.Fit(X, vy); err != nil {
		return nil, nil, eris.Wrap(err, "training: bootstrap valuation regressor")
	}

	acc := learn.Accuracy(y, clf.Predict(X))
	set := &artifact.Set{
		Classifier: artifact.Bind(clf, bundle),
		Funding:    funding,
		Valuation:  valuation,
		Meta: artifact.Meta{
			Fingerprint:     artifact.Fingerprint(ds),
			SchemaVersion:   artifact.SchemaVersion,
			Family:          string(learn.FamilyLogistic),
			HeldOutAccuracy: acc,
			Source:          "bootstrap",
			TrainingRows:    ds.Len(),
			CreatedAt:       time.Now().UTC(),
		},
	}

	d := time.Since(start)
	metrics.RecordTraining(string(model.RunKindBootstrap), false, d)
	zap.L().Info("training: bootstrap set ready",
		zap.Int("rows", ds.Len()),
		zap.Float64("training_accuracy", acc),
		zap.Duration("duration", d),
	)
	return set, ds, nil
}
