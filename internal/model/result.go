package model

import "strings"

// Tier is the coarse three-way investment recommendation.
type Tier string

const (
	TierInvest  Tier = "Invest"
	TierMonitor Tier = "Monitor"
	TierAvoid   Tier = "Avoid"
)

// Key returns the normalized lowercase key for the tier ("invest", "monitor", "avoid").
func (t Tier) Key() string {
	return strings.ToLower(string(t))
}

// Rank orders tiers by risk. Higher is more conservative.
func (t Tier) Rank() int {
	switch t {
	case TierInvest:
		return 0
	case TierMonitor:
		return 1
	case TierAvoid:
		return 2
	default:
		return -1
	}
}

// TierFromKey maps a normalized key back to a Tier. Unknown keys return "".
func TierFromKey(key string) Tier {
	switch key {
	case "invest":
		return TierInvest
	case "monitor":
		return TierMonitor
	case "avoid":
		return TierAvoid
	default:
		return ""
	}
}

// RiskLevel is derived from the final tier.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Band is a qualitative label for a success probability, used for display only.
type Band string

const (
	BandHigh     Band = "High"
	BandModerate Band = "Moderate"
	BandLow      Band = "Low"
)

// ScoreMode selects how much work a single scoring call does.
type ScoreMode string

const (
	// ModeFast skips regression and narrative generation. Used by precompute.
	ModeFast ScoreMode = "fast"
	// ModeFull adds funding/valuation predictions, insights and commentary.
	ModeFull ScoreMode = "full"
)

// ComponentScores is the explanatory 0-100 breakdown shown next to a score.
// It never feeds back into the attractiveness score.
type ComponentScores struct {
	Market    float64 `json:"market_score"`
	Team      float64 `json:"team_score"`
	Financial float64 `json:"financial_score"`
	Growth    float64 `json:"growth_score"`
}

// ScoredResult is the surfaced outcome of scoring one company.
type ScoredResult struct {
	CompanyID       string          `json:"company_id"`
	CompanyName     string          `json:"company_name"`
	Score           float64         `json:"attractiveness_score"`
	Probability     float64         `json:"success_probability"`
	RawProbability  float64         `json:"raw_probability"`
	Tier            Tier            `json:"investment_tier"`
	TierKey         string          `json:"investment_tier_norm"`
	Band            Band            `json:"probability_band"`
	Recommendation  string          `json:"recommendation"`
	RiskLevel       RiskLevel       `json:"risk_level"`
	Components      ComponentScores `json:"component_scores"`
	Mode            ScoreMode       `json:"mode"`
	Fallback        bool            `json:"fallback,omitempty"`
	PredictedFund   float64         `json:"predicted_funding,omitempty"`
	PredictedValue  float64         `json:"predicted_valuation,omitempty"`
	Insights        []string        `json:"insights,omitempty"`
	Commentary      []string        `json:"investment_commentary,omitempty"`
	CoherenceAdjust bool            `json:"coherence_adjusted,omitempty"`
}

// TierCounts summarizes a precompute pass.
type TierCounts struct {
	TotalScored int `json:"total_scored"`
	Invest      int `json:"invest"`
	Monitor     int `json:"monitor"`
	Avoid       int `json:"avoid"`
}

// Add tallies one tier into the counts.
func (c *TierCounts) Add(t Tier) {
	c.TotalScored++
	switch t {
	case TierInvest:
		c.Invest++
	case TierMonitor:
		c.Monitor++
	case TierAvoid:
		c.Avoid++
	}
}
