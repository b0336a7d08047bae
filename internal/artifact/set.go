// Package artifact persists trained model sets and precompute results under a
// cache directory, keyed by a dataset fingerprint.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-scout/internal/dataset"
	"github.com/sells-group/deal-scout/internal/feature"
	"github.com/sells-group/deal-scout/internal/learn"
	"github.com/sells-group/deal-scout/internal/model"
)

// SchemaVersion invalidates every cached artifact and precompute file when it
// changes. Bump it with any change to encoding, scoring or tier policy.
const SchemaVersion = "deal-scout/4+" + feature.EncodingVersion

// Fingerprint is a stable digest of the dataset's shape and coarse content.
// It is pure: the same dataset always yields the same value.
func Fingerprint(ds *dataset.Dataset) string {
	var funding, valuation, revenue, team, investors float64
	var successes int
	for _, r := range ds.Records() {
		funding += r.FundingAmountUSD
		valuation += r.ValuationUSD
		revenue += r.RevenueUSD
		team += r.TeamSize
		investors += r.NumInvestors
		successes += r.IsSuccessful
	}
	key := fmt.Sprintf("%s|%d|%d|%.0f|%.0f|%.0f|%.0f|%.0f|%d",
		SchemaVersion, ds.Len(), ds.ColumnCount(),
		math.Round(funding), math.Round(valuation), math.Round(revenue),
		math.Round(team), math.Round(investors), successes,
	)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}

// BoundClassifier pairs a classifier with the bundle it was trained against so
// inference never looks up column lists elsewhere.
type BoundClassifier struct {
	model  learn.Classifier
	bundle *feature.Bundle
}

// Bind attaches a fitted classifier to its bundle.
func Bind(c learn.Classifier, b *feature.Bundle) *BoundClassifier {
	return &BoundClassifier{model: c, bundle: b}
}

// Bundle returns the feature bundle the classifier expects.
func (b *BoundClassifier) Bundle() *feature.Bundle { return b.bundle }

// Model returns the underlying classifier.
func (b *BoundClassifier) Model() learn.Classifier { return b.model }

// Probability returns P(success) for one record. An unscaled vector is logged
// and scored anyway.
func (b *BoundClassifier) Probability(c model.Company) (float64, error) {
	if b == nil || b.model == nil || b.bundle == nil {
		return 0, eris.New("artifact: classifier is not bound")
	}
	row, err := b.bundle.Transform(c)
	if err != nil {
		if !errors.Is(err, feature.ErrUnscaled) {
			return 0, eris.Wrap(err, "artifact: transform")
		}
		zap.L().Warn("artifact: scoring unscaled frame", zap.String("company_id", c.ID), zap.Error(err))
	}
	return b.model.PredictProba([][]float64{row})[0], nil
}

// Meta describes a saved set. It is written last so its presence marks a
// complete save.
type Meta struct {
	Fingerprint     string    `yaml:"fingerprint" json:"fingerprint"`
	SchemaVersion   string    `yaml:"schema_version" json:"schema_version"`
	Family          string    `yaml:"family" json:"family"`
	Threshold       float64   `yaml:"threshold" json:"threshold"`
	HeldOutAccuracy float64   `yaml:"held_out_accuracy" json:"held_out_accuracy"`
	RunID           string    `yaml:"run_id,omitempty" json:"run_id,omitempty"`
	Source          string    `yaml:"source" json:"source"`
	TrainingRows    int       `yaml:"training_rows" json:"training_rows"`
	CreatedAt       time.Time `yaml:"created_at" json:"created_at"`
}

// Generation identifies the trained set independently of the dataset. It is
// stable across cache hits and changes with every retrain. A set that was
// never stamped has no generation.
func (m Meta) Generation() string {
	if m.CreatedAt.IsZero() {
		return ""
	}
	return m.Family + "@" + m.CreatedAt.UTC().Format(time.RFC3339Nano)
}

// Set is everything inference needs: the bound classifier and the two
// regressors sharing its bundle.
type Set struct {
	Classifier *BoundClassifier
	Funding    *learn.ForestRegressor
	Valuation  *learn.ForestRegressor
	Meta       Meta
}

// Predictions returns predicted funding and valuation for one record. Missing
// regressors yield zeros.
func (s *Set) Predictions(c model.Company) (funding, valuation float64, err error) {
	if s.Funding == nil || s.Valuation == nil {
		return 0, 0, nil
	}
	row, err := s.Classifier.Bundle().Transform(c)
	if err != nil && !errors.Is(err, feature.ErrUnscaled) {
		return 0, 0, eris.Wrap(err, "artifact: transform for regressors")
	}
	x := [][]float64{row}
	return math.Max(0, s.Funding.Predict(x)[0]), math.Max(0, s.Valuation.Predict(x)[0]), nil
}
