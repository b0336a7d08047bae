package scoring

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-scout/internal/artifact"
	"github.com/sells-group/deal-scout/internal/coherence"
	"github.com/sells-group/deal-scout/internal/metrics"
	"github.com/sells-group/deal-scout/internal/model"
)

// SetSource supplies the artifact set to score against. The scheduler
// implements it so a newly published set is picked up on the next call.
type SetSource interface {
	CurrentSet() *artifact.Set
}

// StaticSource serves one fixed set.
type StaticSource struct {
	Set *artifact.Set
}

// CurrentSet implements SetSource.
func (s StaticSource) CurrentSet() *artifact.Set { return s.Set }

// ErrNoModel is returned internally when no set has been published yet.
var ErrNoModel = eris.New("scoring: no model set available")

// Scorer runs predict, temper, score and reconcile in that order.
type Scorer struct {
	source SetSource
	engine Engine
	temper Tempering
	policy coherence.Policy
}

// Option customizes a Scorer.
type Option func(*Scorer)

// WithEngine overrides the default engine.
func WithEngine(e Engine) Option { return func(s *Scorer) { s.engine = e } }

// WithTempering overrides the default tempering.
func WithTempering(t Tempering) Option { return func(s *Scorer) { s.temper = t } }

// WithPolicy overrides the default coherence policy.
func WithPolicy(p coherence.Policy) Option { return func(s *Scorer) { s.policy = p } }

// NewScorer builds a scorer reading sets from src.
func NewScorer(src SetSource, opts ...Option) *Scorer {
	s := &Scorer{
		source: src,
		engine: DefaultEngine(),
		temper: DefaultTempering(),
		policy: coherence.DefaultPolicy(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CurrentSet returns the set the scorer reads, or nil.
func (s *Scorer) CurrentSet() *artifact.Set {
	return s.source.CurrentSet()
}

// Score scores one company. It never fails: any error or panic yields a
// flagged fallback result.
func (s *Scorer) Score(c model.Company, mode model.ScoreMode) (res model.ScoredResult) {
	defer func() {
		if r := recover(); r != nil {
			res = s.fallback(c, mode, eris.Errorf("panic: %v", r))
		}
		metrics.RecordScore(string(res.Mode), string(res.Tier), res.Fallback, res.CoherenceAdjust)
	}()

	res, err := s.score(c, mode)
	if err != nil {
		return s.fallback(c, mode, err)
	}
	return res
}

func (s *Scorer) score(c model.Company, mode model.ScoreMode) (model.ScoredResult, error) {
	set := s.source.CurrentSet()
	if set == nil || set.Classifier == nil {
		return model.ScoredResult{}, ErrNoModel
	}

	raw, err := set.Classifier.Probability(c)
	if err != nil {
		return model.ScoredResult{}, err
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return model.ScoredResult{}, eris.Errorf("scoring: classifier returned %v", raw)
	}
	p := s.temper.Apply(raw)

	score := s.engine.Attractiveness(p, FundamentalsOf(c))
	label := s.engine.TierFromScore(score)
	rec := s.policy.Reconcile(p, score, string(label))

	res := model.ScoredResult{
		CompanyID:       c.ID,
		CompanyName:     c.Name,
		Score:           round(rec.Score, 2),
		Probability:     round(rec.Probability, 4),
		RawProbability:  round(raw, 4),
		Tier:            rec.Tier,
		TierKey:         rec.Tier.Key(),
		Band:            rec.Band,
		Recommendation:  Recommendation(rec.Tier),
		RiskLevel:       RiskFor(rec.Tier),
		Components:      Components(c, rec.Probability),
		Mode:            mode,
		CoherenceAdjust: rec.Adjusted,
	}

	if mode == model.ModeFull {
		fund, val, err := set.Predictions(c)
		if err != nil {
			zap.L().Warn("scoring: regressor prediction failed", zap.String("company_id", c.ID), zap.Error(err))
		}
		res.PredictedFund = math.Round(fund)
		res.PredictedValue = math.Round(val)
		res.Insights = Insights(c, rec.Probability, fund)
		res.Commentary = Commentary(c, res)
	}
	return res, nil
}

// RiskFor maps a final tier to its risk level.
func RiskFor(t model.Tier) model.RiskLevel {
	switch t {
	case model.TierInvest:
		return model.RiskLow
	case model.TierMonitor:
		return model.RiskMedium
	default:
		return model.RiskHigh
	}
}

// Recommendation is the headline text for a final tier.
func Recommendation(t model.Tier) string {
	switch t {
	case model.TierInvest:
		return "INVEST - High-conviction opportunity"
	case model.TierMonitor:
		return "MONITOR - Promising but requires observation"
	default:
		return "AVOID - Risk outweighs return"
	}
}

// Fallback returns the neutral result used when a company cannot be scored.
func Fallback(c model.Company, mode model.ScoreMode) model.ScoredResult {
	res := model.ScoredResult{
		CompanyID:      c.ID,
		CompanyName:    c.Name,
		Score:          50,
		Probability:    0.5,
		RawProbability: 0.5,
		Tier:           model.TierMonitor,
		TierKey:        model.TierMonitor.Key(),
		Band:           coherence.BandFor(0.5),
		Recommendation: "MONITOR - Analysis error, manual review required",
		RiskLevel:      model.RiskHigh,
		Components:     model.ComponentScores{Market: 25, Team: 25, Financial: 25, Growth: 25},
		Mode:           mode,
		Fallback:       true,
	}
	if mode == model.ModeFull {
		res.Insights = []string{"Analysis error occurred", "Manual review recommended", "Data validation needed"}
		res.Commentary = []string{"Automated analysis could not be completed for this company. Review the record manually before acting on it."}
	}
	return res
}

func (s *Scorer) fallback(c model.Company, mode model.ScoreMode, err error) model.ScoredResult {
	zap.L().Warn("scoring: returning fallback result",
		zap.String("company_id", c.ID),
		zap.String("mode", string(mode)),
		zap.Error(err),
	)
	return Fallback(c, mode)
}
