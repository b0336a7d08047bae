package scoring

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/deal-scout/internal/artifact"
	"github.com/sells-group/deal-scout/internal/dataset"
	"github.com/sells-group/deal-scout/internal/feature"
	"github.com/sells-group/deal-scout/internal/learn"
	"github.com/sells-group/deal-scout/internal/model"
)

// constClassifier always predicts the same probability.
type constClassifier struct {
	p    float64
	boom bool
}

func (c constClassifier) Family() learn.Family { return learn.FamilyLogistic }
func (c constClassifier) Fit([][]float64, []int) error { return nil }
func (c constClassifier) Predict(X [][]float64) []int { return make([]int, len(X)) }
func (c constClassifier) PredictProba(X [][]float64) []float64 {
	if c.boom {
		panic("boom")
	}
	out := make([]float64, len(X))
	for i := range out {
		out[i] = c.p
	}
	return out
}

func testBundle(t *testing.T) *feature.Bundle {
	t.Helper()
	ds := dataset.GenerateSynthetic(40, 1)
	b, _, err := feature.Build(ds.Records())
	require.NoError(t, err)
	return b
}

func constSet(t *testing.T, c learn.Classifier) *artifact.Set {
	t.Helper()
	return &artifact.Set{Classifier: artifact.Bind(c, testBundle(t))}
}

func scenario() model.Company {
	return model.Company{
		ID: "c1", Name: "Acme", Industry: "SaaS", Location: "Boston", FundingRound: model.RoundSeriesA,
		FundingAmountUSD: 5e6, ValuationUSD: 5e7, TeamSize: 3, YearsSinceFounding: 2,
		NumInvestors: 1, CompetitionLevel: 9, MarketSizeBillion: 5,
	}
}

func TestAttractiveness(t *testing.T) {
	e := DefaultEngine()

	tests := []struct {
		name string
		p    float64
		f    Fundamentals
		lo   float64
		hi   float64
	}{
		{"weak probability is capped at 49", 0.35, Fundamentals{100, 1, 500, 30}, 0, 49},
		{"middling probability is capped at 64", 0.45, Fundamentals{100, 1, 500, 30}, 0, 64},
		{"floor probability scores only fundamentals", 0.25, Fundamentals{0, 10, 0, 0}, 0, 1},
		{"strong everything is invest", 0.95, Fundamentals{100, 1, 500, 30}, 99, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := e.Attractiveness(tt.p, tt.f)
			assert.GreaterOrEqual(t, s, tt.lo)
			assert.LessOrEqual(t, s, tt.hi)
		})
	}
}

func TestAttractiveness_Bounded(t *testing.T) {
	e := DefaultEngine()
	for _, p := range []float64{-1, 0, 0.5, 1, 2, math.NaN()} {
		s := e.Attractiveness(p, Fundamentals{1e6, -5, 1e9, 1e9})
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 100.0)
	}
}

func TestTierFromScore(t *testing.T) {
	e := DefaultEngine()
	assert.Equal(t, model.TierInvest, e.TierFromScore(65))
	assert.Equal(t, model.TierMonitor, e.TierFromScore(64.99))
	assert.Equal(t, model.TierMonitor, e.TierFromScore(50))
	assert.Equal(t, model.TierAvoid, e.TierFromScore(49.99))
}

func TestTempering(t *testing.T) {
	d := DefaultTempering()
	assert.InDelta(t, 0.69, d.Apply(0.90), 0.005)
	assert.Less(t, d.Apply(0.99), 0.99)
	assert.Greater(t, d.Apply(0.05), 0.05)

	off := d
	off.Enabled = false
	assert.Equal(t, 0.9, off.Apply(0.9))

	weak := d
	weak.Strength = 0
	assert.Equal(t, 0.9, weak.Apply(0.9))

	for _, p := range []float64{0, 1, -3, 7} {
		v := d.Apply(p)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.Equal(t, 0.5, d.Apply(math.NaN()))
}

func TestComponents(t *testing.T) {
	c := Components(scenario(), 0.5)
	for _, v := range []float64{c.Market, c.Team, c.Financial, c.Growth} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
		assert.Equal(t, math.Round(v*10)/10, v)
	}
	assert.Less(t, c.Market, 10.0)

	zero := Components(model.Company{}, 0)
	assert.Equal(t, 0.0, zero.Team)
	assert.Equal(t, 0.0, zero.Financial)
}

func TestScore_HighProbabilityWeakFundamentalsIsMonitor(t *testing.T) {
	s := NewScorer(StaticSource{Set: constSet(t, constClassifier{p: 0.90})})

	res := s.Score(scenario(), model.ModeFast)
	require.False(t, res.Fallback)
	assert.Equal(t, model.TierMonitor, res.Tier)
	assert.Equal(t, "monitor", res.TierKey)
	assert.InDelta(t, 0.5999, res.Probability, 1e-9)
	assert.InDelta(t, 0.90, res.RawProbability, 1e-9)
	assert.GreaterOrEqual(t, res.Score, 50.0)
	assert.LessOrEqual(t, res.Score, 64.99)
	assert.True(t, res.CoherenceAdjust)
	assert.Equal(t, model.RiskMedium, res.RiskLevel)
	assert.Empty(t, res.Insights)
}

func TestScore_UntemperedScenarioStillCoherent(t *testing.T) {
	s := NewScorer(StaticSource{Set: constSet(t, constClassifier{p: 0.90})}, WithTempering(Tempering{}))

	res := s.Score(scenario(), model.ModeFast)
	// Without shrinkage 0.90 saturates the probability term; tier and
	// probability still agree.
	assert.Equal(t, model.TierInvest, res.Tier)
	assert.GreaterOrEqual(t, res.Probability, 0.60)
	assert.GreaterOrEqual(t, res.Score, 65.0)
}

func TestScore_EmptyRecordIsAvoid(t *testing.T) {
	s := NewScorer(StaticSource{Set: constSet(t, constClassifier{p: 0.2})})

	res := s.Score(model.Company{ID: "blank"}, model.ModeFull)
	require.False(t, res.Fallback)
	assert.Equal(t, model.TierAvoid, res.Tier)
	assert.Equal(t, model.RiskHigh, res.RiskLevel)
	assert.Less(t, res.Score, 50.0)
	assert.NotEmpty(t, res.Commentary)
	assert.LessOrEqual(t, len(res.Insights), 3)
}

func TestScore_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		src  SetSource
	}{
		{"no set", StaticSource{}},
		{"panicking classifier", StaticSource{Set: constSet(t, constClassifier{boom: true})}},
		{"nan probability", StaticSource{Set: constSet(t, constClassifier{p: math.NaN()})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewScorer(tt.src).Score(scenario(), model.ModeFull)
			assert.True(t, res.Fallback)
			assert.Equal(t, 50.0, res.Score)
			assert.Equal(t, model.TierMonitor, res.Tier)
			assert.Equal(t, model.RiskHigh, res.RiskLevel)
			assert.Equal(t, 0.5, res.Probability)
			assert.Equal(t, 25.0, res.Components.Market)
			assert.Len(t, res.Insights, 3)
			assert.Equal(t, "c1", res.CompanyID)
		})
	}
}

func TestScore_FullModeWithTrainedSet(t *testing.T) {
	ds := dataset.GenerateSynthetic(120, 3)
	bundle, X, err := feature.Build(ds.Records())
	require.NoError(t, err)

	clf := learn.NewLogistic(learn.Params{C: 1, MaxIter: 100})
	require.NoError(t, clf.Fit(X, ds.Labels()))
	fund := make([]float64, ds.Len())
	val := make([]float64, ds.Len())
	for i, r := range ds.Records() {
		fund[i], val[i] = r.FundingAmountUSD, r.ValuationUSD
	}
	fr := learn.NewForestRegressor(learn.Params{NTrees: 5, MaxDepth: 5}, 1)
	require.NoError(t, fr.Fit(X, fund))
	vr := learn.NewForestRegressor(learn.Params{NTrees: 5, MaxDepth: 5}, 2)
	require.NoError(t, vr.Fit(X, val))

	set := &artifact.Set{Classifier: artifact.Bind(clf, bundle), Funding: fr, Valuation: vr}
	s := NewScorer(StaticSource{Set: set})

	for _, c := range ds.Records()[:20] {
		res := s.Score(c, model.ModeFull)
		require.False(t, res.Fallback)
		assert.Positive(t, res.PredictedFund)
		assert.Positive(t, res.PredictedValue)
		assert.NotEmpty(t, res.Insights)
		assert.True(t, strings.HasPrefix(res.Commentary[len(res.Commentary)-1], "Recommendation: "+strings.ToUpper(res.TierKey)))
		assert.Equal(t, Recommendation(res.Tier), res.Recommendation)
	}
}

func TestInsights(t *testing.T) {
	c := scenario()
	c.TeamSize = 5

	got := Insights(c, 0.85, 2.5e6)
	require.Len(t, got, 3)
	assert.Contains(t, got[0], "Exceptional")
	assert.Contains(t, got[1], "overvalued")
	assert.Contains(t, got[2], "competitive")

	c.CompetitionLevel = 6
	c.MarketSizeBillion = 3
	got = Insights(c, 0.3, 0)
	require.Len(t, got, 3)
	assert.Contains(t, got[1], "in line")
	assert.Contains(t, got[2], "Lean team")
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$1.2B", money(1.2e9))
	assert.Equal(t, "$2.5M", money(2.5e6))
	assert.True(t, strings.HasPrefix(money(250000), "$"))
}
