package feature

import (
	"math"

	"github.com/sells-group/deal-scout/internal/model"
)

// NumericColumns is the ordered numeric feature set. These are the only
// columns the scaler touches.
var NumericColumns = []string{
	"funding_amount_usd",
	"valuation_usd",
	"team_size",
	"years_since_founding",
	"revenue_usd",
	"num_investors",
	"competition_level",
	"market_size_billion_usd",
	"funding_efficiency",
	"revenue_per_employee",
	"funding_per_employee",
	"market_penetration",
	"funding_amount_log",
	"valuation_log",
	"revenue_log",
	"has_revenue",
}

// CategoricalFields is the ordered set of one-hot encoded fields.
var CategoricalFields = []string{
	"industry",
	"location",
	"funding_round",
	"status",
	"age_category",
	"team_size_category",
	"competition_category",
}

// bucket is a right-closed interval (Low, High] with a label.
type bucket struct {
	Low, High float64
	Label     string
}

var (
	ageBuckets = []bucket{
		{0, 1, "Startup"},
		{1, 3, "Early"},
		{3, 5, "Growth"},
		{5, 10, "Mature"},
		{10, 100, "Established"},
	}
	teamBuckets = []bucket{
		{0, 10, "Small"},
		{10, 50, "Medium"},
		{50, 100, "Large"},
		{100, 500, "Very Large"},
		{500, 10000, "Enterprise"},
	}
	competitionBuckets = []bucket{
		{0, 3, "Low"},
		{3, 6, "Medium"},
		{6, 8, "High"},
		{8, 10, "Very High"},
	}
)

// bucketFields maps a derived categorical field to its declared label order.
var bucketFields = map[string][]bucket{
	"age_category":         ageBuckets,
	"team_size_category":   teamBuckets,
	"competition_category": competitionBuckets,
}

// bucketize uses explicit range checks so a single row always lands in the
// same bucket. Values outside every range return "".
func bucketize(v float64, buckets []bucket) string {
	for _, b := range buckets {
		if v > b.Low && v <= b.High {
			return b.Label
		}
	}
	return ""
}

func bucketLabels(buckets []bucket) []string {
	out := make([]string, len(buckets))
	for i, b := range buckets {
		out[i] = b.Label
	}
	return out
}

// AgeCategory returns the age bucket label for years since founding.
func AgeCategory(years float64) string { return bucketize(years, ageBuckets) }

// TeamSizeCategory returns the team size bucket label.
func TeamSizeCategory(team float64) string { return bucketize(team, teamBuckets) }

// CompetitionCategory returns the competition bucket label.
func CompetitionCategory(level float64) string { return bucketize(level, competitionBuckets) }

// encoded is one record's pre-alignment representation.
type encoded struct {
	numeric map[string]float64
	cats    []string // parallel to CategoricalFields, "" = no value
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func log1p(v float64) float64 {
	if v <= -1 {
		return 0
	}
	return math.Log1p(v)
}

// encode computes derived ratios, log transforms and bucket labels. When
// inference is true the operating status is pinned to Operating.
func encode(c model.Company, inference bool) encoded {
	funding := finite(c.FundingAmountUSD)
	valuation := finite(c.ValuationUSD)
	team := finite(c.TeamSize)
	revenue := finite(c.RevenueUSD)
	market := finite(c.MarketSizeBillion)

	hasRevenue := 0.0
	if revenue > 0 {
		hasRevenue = 1
	}

	num := map[string]float64{
		"funding_amount_usd":      funding,
		"valuation_usd":           valuation,
		"team_size":               team,
		"years_since_founding":    finite(c.YearsSinceFounding),
		"revenue_usd":             revenue,
		"num_investors":           finite(c.NumInvestors),
		"competition_level":       finite(c.CompetitionLevel),
		"market_size_billion_usd": market,
		"funding_efficiency":      finite(valuation / (funding + 1)),
		"revenue_per_employee":    finite(revenue / (team + 1)),
		"funding_per_employee":    finite(funding / (team + 1)),
		"market_penetration":      finite(revenue / (market*1e9 + 1)),
		"funding_amount_log":      log1p(funding),
		"valuation_log":           log1p(valuation),
		"revenue_log":             log1p(revenue),
		"has_revenue":             hasRevenue,
	}

	status := c.Status
	if inference {
		status = model.StatusOperating
	}

	return encoded{
		numeric: num,
		cats: []string{
			c.Industry,
			c.Location,
			c.FundingRound,
			status,
			AgeCategory(c.YearsSinceFounding),
			TeamSizeCategory(c.TeamSize),
			CompetitionCategory(c.CompetitionLevel),
		},
	}
}

func dummyColumn(field, value string) string {
	return field + "_" + value
}
