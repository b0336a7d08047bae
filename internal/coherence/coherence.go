// Package coherence forces a success probability, an attractiveness score and
// a tier label to tell the same story. Reconcile never produces a tier more
// optimistic than any of its inputs.
package coherence

import (
	"strings"

	"github.com/sells-group/deal-scout/internal/model"
)

// Version identifies the bounds below. It is folded into the artifact schema.
const Version = "coherence/2"

// Range is a closed interval.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

func (r Range) contains(v, tol float64) bool {
	return v >= r.Min-tol && v <= r.Max+tol
}

func (r Range) clamp(v float64) float64 {
	return min(max(v, r.Min), r.Max)
}

// Policy holds the per-tier score and probability bounds.
type Policy struct {
	Score       map[model.Tier]Range
	Probability map[model.Tier]Range
	Tolerance   float64
}

// DefaultPolicy returns the bounds that line up with the scoring gates.
func DefaultPolicy() Policy {
	return Policy{
		Score: map[model.Tier]Range{
			model.TierInvest:  {65, 100},
			model.TierMonitor: {50, 64.99},
			model.TierAvoid:   {0, 49.99},
		},
		Probability: map[model.Tier]Range{
			model.TierInvest:  {0.60, 1.0},
			model.TierMonitor: {0.40, 0.5999},
			model.TierAvoid:   {0, 0.3999},
		},
		Tolerance: 0.02,
	}
}

// Result is the reconciled triple.
type Result struct {
	Probability float64
	Score       float64
	Tier        model.Tier
	Band        model.Band
	Adjusted    bool
}

var (
	investLabels  = map[string]bool{"tier 1": true, "tier 2": true, "tier1": true, "tier2": true, "t1": true, "t2": true, "1": true, "2": true}
	monitorLabels = map[string]bool{"tier 3": true, "tier3": true, "t3": true, "3": true}
	avoidLabels   = map[string]bool{"tier 4": true, "tier4": true, "t4": true, "4": true}
)

// NormalizeTier maps a free-form label ("Strong Buy", "Tier 2", "hold") to
// "invest", "monitor" or "avoid". Unrecognized labels return "".
func NormalizeTier(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	switch {
	case s == "":
		return ""
	case strings.Contains(s, "avoid") || avoidLabels[s]:
		return "avoid"
	case strings.Contains(s, "invest") || strings.Contains(s, "buy") || investLabels[s]:
		return "invest"
	case strings.Contains(s, "monitor") || strings.Contains(s, "hold") || monitorLabels[s]:
		return "monitor"
	default:
		return ""
	}
}

// tierOrder runs from most optimistic to most conservative.
var tierOrder = []model.Tier{model.TierInvest, model.TierMonitor, model.TierAvoid}

// tierFor returns the most optimistic tier whose lower bound v reaches.
// Values in the gap between two ranges land in the lower tier.
func tierFor(bounds map[model.Tier]Range, v float64) model.Tier {
	for _, t := range tierOrder[:len(tierOrder)-1] {
		if v >= bounds[t].Min {
			return t
		}
	}
	return tierOrder[len(tierOrder)-1]
}

// BandFor labels a probability.
func BandFor(p float64) model.Band {
	switch {
	case p >= 0.60:
		return model.BandHigh
	case p >= 0.45:
		return model.BandModerate
	default:
		return model.BandLow
	}
}

// Reconcile picks the most conservative of the label, probability and score
// tiers, then pulls probability and score into that tier's bounds. The
// probability only moves when it is outside by more than the tolerance.
func (p Policy) Reconcile(prob, score float64, label string) Result {
	final := tierFor(p.Probability, prob)
	if st := tierFor(p.Score, score); st.Rank() > final.Rank() {
		final = st
	}
	if lt := model.TierFromKey(NormalizeTier(label)); lt != "" && lt.Rank() > final.Rank() {
		final = lt
	}

	res := Result{Probability: prob, Score: score, Tier: final}
	if pr := p.Probability[final]; !pr.contains(prob, p.Tolerance) {
		res.Probability = pr.clamp(prob)
		res.Adjusted = true
	}
	if sr := p.Score[final]; !sr.contains(score, 0) {
		res.Score = sr.clamp(score)
		res.Adjusted = true
	}
	res.Band = BandFor(res.Probability)
	return res
}

// Reconcile applies DefaultPolicy.
func Reconcile(prob, score float64, label string) Result {
	return DefaultPolicy().Reconcile(prob, score, label)
}
