package model

// Funding rounds used by the synthetic generator and the stage heuristics.
const (
	RoundSeed    = "Seed"
	RoundSeriesA = "Series A"
	RoundSeriesB = "Series B"
	RoundSeriesC = "Series C"
	RoundSeriesD = "Series D+"
)

// Operating statuses. Only Acquired and IPO count as a successful exit.
const (
	StatusOperating = "Operating"
	StatusAcquired  = "Acquired"
	StatusIPO       = "IPO"
	StatusClosed    = "Closed"
)

// Company is a single ingested company record. Records are treated as
// immutable once loaded; IndustryGroup and Region are filled once at ingest.
type Company struct {
	ID                 string  `json:"company_id" csv:"company_id"`
	Name               string  `json:"company_name" csv:"company_name"`
	Industry           string  `json:"industry" csv:"industry"`
	Location           string  `json:"location" csv:"location"`
	FundingRound       string  `json:"funding_round" csv:"funding_round"`
	Status             string  `json:"status" csv:"status"`
	FundingAmountUSD   float64 `json:"funding_amount_usd" csv:"funding_amount_usd"`
	ValuationUSD       float64 `json:"valuation_usd" csv:"valuation_usd"`
	TeamSize           float64 `json:"team_size" csv:"team_size"`
	YearsSinceFounding float64 `json:"years_since_founding" csv:"years_since_founding"`
	RevenueUSD         float64 `json:"revenue_usd" csv:"revenue_usd"`
	NumInvestors       float64 `json:"num_investors" csv:"num_investors"`
	CompetitionLevel   float64 `json:"competition_level" csv:"competition_level"`
	MarketSizeBillion  float64 `json:"market_size_billion_usd" csv:"market_size_billion_usd"`
	IsSuccessful       int     `json:"is_successful" csv:"is_successful"`
	IndustryGroup      string  `json:"industry_group,omitempty" csv:"industry_group,omitempty"`
	Region             string  `json:"region,omitempty" csv:"region,omitempty"`
}

// Successful reports whether the record is labelled as a successful exit.
func (c Company) Successful() bool {
	return c.IsSuccessful == 1
}
