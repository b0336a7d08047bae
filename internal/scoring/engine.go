// Package scoring turns a success probability and a few company fundamentals
// into a bounded attractiveness score, a tier and the narrative shown with it.
package scoring

import (
	"math"

	"github.com/sells-group/deal-scout/internal/model"
)

// Fundamentals are the non-model inputs to the attractiveness score.
type Fundamentals struct {
	MarketSizeBillion float64
	Competition       float64
	TeamSize          float64
	Investors         float64
}

// FundamentalsOf extracts the scoring inputs from a record.
func FundamentalsOf(c model.Company) Fundamentals {
	return Fundamentals{
		MarketSizeBillion: c.MarketSizeBillion,
		Competition:       c.CompetitionLevel,
		TeamSize:          c.TeamSize,
		Investors:         c.NumInvestors,
	}
}

// Engine holds the score weights, normalization anchors and gates.
type Engine struct {
	ProbabilityWeight float64
	MarketWeight      float64
	TeamWeight        float64
	InvestorWeight    float64

	// Probabilities at or below ProbFloor add nothing; at or above ProbCeil
	// they add the full ProbabilityWeight.
	ProbFloor float64
	ProbCeil  float64

	TeamSaturation     float64
	InvestorSaturation float64

	// Below AvoidGate the score is capped at AvoidCap; below MonitorGate at MonitorCap.
	AvoidGate   float64
	AvoidCap    float64
	MonitorGate float64
	MonitorCap  float64

	InvestScore  float64
	MonitorScore float64
}

// DefaultEngine returns the production weighting: probability 70, market,
// team and investors 10 each.
func DefaultEngine() Engine {
	return Engine{
		ProbabilityWeight:  70,
		MarketWeight:       10,
		TeamWeight:         10,
		InvestorWeight:     10,
		ProbFloor:          0.25,
		ProbCeil:           0.85,
		TeamSaturation:     200,
		InvestorSaturation: 15,
		AvoidGate:          0.40,
		AvoidCap:           49,
		MonitorGate:        0.50,
		MonitorCap:         64,
		InvestScore:        65,
		MonitorScore:       50,
	}
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

// logNorm maps v onto [0,1] with log1p(v)/log1p(sat), saturating at sat.
func logNorm(v, sat float64) float64 {
	if v <= 0 || sat <= 0 {
		return 0
	}
	return math.Min(1, math.Log1p(v)/math.Log1p(sat))
}

// MarketOpportunity is sigmoid((market - 2*competition)/5).
func MarketOpportunity(market, competition float64) float64 {
	return sigmoid((market - 2*competition) / 5)
}

// Attractiveness returns a score in [0,100].
func (e Engine) Attractiveness(p float64, f Fundamentals) float64 {
	p = clamp(p, 0, 1)
	probNorm := clamp((p-e.ProbFloor)/(e.ProbCeil-e.ProbFloor), 0, 1)

	score := e.ProbabilityWeight*probNorm +
		e.MarketWeight*MarketOpportunity(f.MarketSizeBillion, f.Competition) +
		e.TeamWeight*logNorm(f.TeamSize, e.TeamSaturation) +
		e.InvestorWeight*logNorm(f.Investors, e.InvestorSaturation)
	score = clamp(score, 0, 100)

	switch {
	case p < e.AvoidGate:
		score = math.Min(score, e.AvoidCap)
	case p < e.MonitorGate:
		score = math.Min(score, e.MonitorCap)
	}
	return score
}

// TierFromScore maps a score to a tier.
func (e Engine) TierFromScore(score float64) model.Tier {
	switch {
	case score >= e.InvestScore:
		return model.TierInvest
	case score >= e.MonitorScore:
		return model.TierMonitor
	default:
		return model.TierAvoid
	}
}

func round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

// Components computes the display-only breakdown. It never feeds the score.
func Components(c model.Company, p float64) model.ComponentScores {
	market := MarketOpportunity(c.MarketSizeBillion, c.CompetitionLevel)
	team := 0.6*logNorm(c.TeamSize, 200) + 0.4*logNorm(c.YearsSinceFounding, 10)
	financial := 0.5*logNorm(c.RevenueUSD, 5e6) +
		0.3*logNorm(c.FundingAmountUSD, 5e7) +
		0.2*logNorm(c.ValuationUSD, 5e8)

	efficiency := c.ValuationUSD / (c.FundingAmountUSD + 1)
	growth := 0.4*logNorm(c.NumInvestors, 15) +
		0.3*logNorm(efficiency, 25) +
		0.3*clamp(p, 0, 1)

	return model.ComponentScores{
		Market:    round(100*clamp(market, 0, 1), 1),
		Team:      round(100*clamp(team, 0, 1), 1),
		Financial: round(100*clamp(financial, 0, 1), 1),
		Growth:    round(100*clamp(growth, 0, 1), 1),
	}
}
