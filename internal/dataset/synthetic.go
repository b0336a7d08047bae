package dataset

import (
	"fmt"
	"math/rand/v2"

	"github.com/sells-group/deal-scout/internal/feature"
	"github.com/sells-group/deal-scout/internal/model"
)

// Industries and Locations are the raw labels the generator draws from.
var (
	Industries = []string{
		"Fintech", "Healthcare", "E-commerce", "SaaS", "AI/ML", "Biotech",
		"EdTech", "Gaming", "Cybersecurity", "IoT", "Blockchain", "Marketing",
	}
	Locations = []string{
		"San Francisco", "New York", "London", "Singapore", "Boston",
		"Los Angeles", "Seattle", "Austin", "Berlin", "Toronto", "Sydney", "Tel Aviv",
	}
	Rounds = []string{
		model.RoundSeed, model.RoundSeriesA, model.RoundSeriesB, model.RoundSeriesC, model.RoundSeriesD,
	}
)

type span struct{ lo, hi float64 }

// funding ranges in $M, team ranges as [lo, hi) head counts.
var (
	roundFunding = map[string]span{
		model.RoundSeed:    {0.1, 2},
		model.RoundSeriesA: {2, 15},
		model.RoundSeriesB: {10, 50},
		model.RoundSeriesC: {25, 100},
		model.RoundSeriesD: {50, 500},
	}
	roundTeam = map[string]span{
		model.RoundSeed:    {2, 15},
		model.RoundSeriesA: {10, 50},
		model.RoundSeriesB: {25, 100},
		model.RoundSeriesC: {50, 200},
		model.RoundSeriesD: {100, 500},
	}
)

// SyntheticColumnCount is the schema width of generated data.
const SyntheticColumnCount = 15

// GenerateSynthetic returns n plausible startup records. The same seed always
// yields the same records.
func GenerateSynthetic(n int, seed uint64) *Dataset {
	rng := rand.New(rand.NewPCG(seed, seed^0x5eed))
	uniform := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }
	intn := func(lo, hi int) int { return lo + rng.IntN(hi-lo) }

	records := make([]model.Company, 0, n)
	for i := range n {
		industry := Industries[rng.IntN(len(Industries))]
		location := Locations[rng.IntN(len(Locations))]
		round := Rounds[rng.IntN(len(Rounds))]

		fr := roundFunding[round]
		funding := uniform(fr.lo, fr.hi) * 1_000_000
		valuation := funding * uniform(8, 25)

		tr := roundTeam[round]
		team := intn(int(tr.lo), int(tr.hi))
		years := uniform(0.5, 10)

		var revenue float64
		if rng.Float64() < 0.7 {
			revenue = uniform(0.1, funding/500_000) * 1_000_000
		}
		investors := intn(1, 15)
		competition := intn(1, 11)
		market := uniform(0.5, 100)

		p := successOdds(industry, location, round, team, revenue, competition)
		status := model.StatusClosed
		if rng.Float64() < p {
			switch u := rng.Float64(); {
			case u < 0.6:
				status = model.StatusOperating
			case u < 0.9:
				status = model.StatusAcquired
			default:
				status = model.StatusIPO
			}
		} else if rng.Float64() < 0.3 {
			status = model.StatusOperating
		}

		c := model.Company{
			ID:                 fmt.Sprintf("startup_%04d", i+1),
			Name:               fmt.Sprintf("Company_%d", i+1),
			Industry:           industry,
			Location:           location,
			FundingRound:       round,
			Status:             status,
			FundingAmountUSD:   funding,
			ValuationUSD:       valuation,
			TeamSize:           float64(team),
			YearsSinceFounding: years,
			RevenueUSD:         revenue,
			NumInvestors:       float64(investors),
			CompetitionLevel:   float64(competition),
			MarketSizeBillion:  market,
		}
		if status == model.StatusAcquired || status == model.StatusIPO {
			c.IsSuccessful = 1
		}
		feature.Consolidate(&c)
		records = append(records, c)
	}
	return New(records, SyntheticColumnCount)
}

func successOdds(industry, location, round string, team int, revenue float64, competition int) float64 {
	p := 0.5
	switch industry {
	case "Fintech", "Healthcare", "AI/ML", "SaaS":
		p += 0.1
	}
	switch location {
	case "San Francisco", "New York", "Boston", "Seattle":
		p += 0.1
	}
	if team >= 20 {
		p += 0.1
	}
	if revenue > 1_000_000 {
		p += 0.2
	}
	switch round {
	case model.RoundSeriesB, model.RoundSeriesC, model.RoundSeriesD:
		p += 0.1
	}
	if competition <= 5 {
		p += 0.05
	}
	return min(max(p, 0.1), 0.9)
}
