package scoring

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/deal-scout/internal/model"
)

var printer = message.NewPrinter(language.English)

// money formats a USD amount as $1.2B, $3.4M or $250,000.
func money(v float64) string {
	switch a := math.Abs(v); {
	case a >= 1e9:
		return printer.Sprintf("$%.1fB", v/1e9)
	case a >= 1e6:
		return printer.Sprintf("$%.1fM", v/1e6)
	default:
		return printer.Sprintf("$%.0f", v)
	}
}

func pct(p float64) string {
	return printer.Sprintf("%.1f%%", p*100)
}

// Insights returns at most three short observations about a company.
func Insights(c model.Company, p, predictedFunding float64) []string {
	var out []string

	switch {
	case p > 0.8:
		out = append(out, "Exceptional success indicators with strong fundamentals across all metrics")
	case p > 0.6:
		out = append(out, "Above-average success probability on a solid business foundation")
	case p > 0.4:
		out = append(out, "Moderate success potential; plan for risk mitigation")
	default:
		out = append(out, "Below-average success indicators with significant risk factors")
	}

	ratio := 1.0
	if predictedFunding > 0 {
		ratio = c.FundingAmountUSD / predictedFunding
	}
	switch {
	case ratio > 1.2:
		out = append(out, "Funding raised exceeds the model estimate and may be overvalued")
	case ratio < 0.8:
		out = append(out, "Conservative funding relative to the model estimate, a possible value opportunity")
	default:
		out = append(out, "Funding raised is in line with the model estimate")
	}

	switch {
	case c.MarketSizeBillion > 10 && c.CompetitionLevel <= 5:
		out = append(out, "Large addressable market with manageable competition")
	case c.CompetitionLevel > 8:
		out = append(out, "Highly competitive market where differentiation is critical")
	}

	switch {
	case c.TeamSize < 10 && (c.FundingRound == model.RoundSeriesA || c.FundingRound == model.RoundSeriesB):
		out = append(out, "Lean team for its funding stage: efficient, or under-scaled")
	case c.TeamSize > 100 && c.FundingRound == model.RoundSeed:
		out = append(out, "Large team for a seed-stage company implies a high burn rate")
	}

	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

// Commentary explains a result in a few paragraphs. The closing
// recommendation follows the final tier.
func Commentary(c model.Company, r model.ScoredResult) []string {
	name := c.Name
	if name == "" {
		name = "The company"
	}
	comp := r.Components
	var out []string

	switch {
	case r.Score >= 75:
		out = append(out, printer.Sprintf("%s presents an exceptional opportunity with strong fundamentals across the key metrics.", name))
	case r.Score >= 65:
		out = append(out, printer.Sprintf("%s shows solid investment potential with several compelling strengths.", name))
	case r.Score >= 50:
		out = append(out, printer.Sprintf("%s is a moderate opportunity with mixed signals that need careful review.", name))
	default:
		out = append(out, printer.Sprintf("%s carries risks that outweigh the potential return at this time.", name))
	}

	market := printer.Sprintf("$%.1fB", c.MarketSizeBillion)
	competition := printer.Sprintf("%.0f/10", c.CompetitionLevel)
	switch {
	case comp.Market >= 70 && c.MarketSizeBillion >= 20:
		out = append(out, printer.Sprintf("Market: a large %s market with manageable competition (%s) leaves ample room to grow.", market, competition))
	case comp.Market >= 70:
		out = append(out, printer.Sprintf("Market: the %s market is smaller, but low competition (%s) favors share capture.", market, competition))
	case comp.Market >= 40:
		out = append(out, printer.Sprintf("Market: the %s market offers reasonable opportunity, though competition at %s may slow scaling.", market, competition))
	case c.CompetitionLevel >= 8:
		out = append(out, printer.Sprintf("Market: heavy competition (%s) in a %s market demands exceptional execution.", competition, market))
	default:
		out = append(out, printer.Sprintf("Market: a limited %s market constrains long-term growth.", market))
	}

	revenue, funding, valuation := money(c.RevenueUSD), money(c.FundingAmountUSD), money(c.ValuationUSD)
	switch {
	case comp.Financial >= 70 && c.RevenueUSD > 2e6:
		out = append(out, printer.Sprintf("Financials: %s revenue on %s raised shows proven traction.", revenue, funding))
	case comp.Financial >= 70:
		out = append(out, printer.Sprintf("Financials: %s raised gives runway; revenue of %s has room to accelerate.", funding, revenue))
	case comp.Financial >= 40 && c.RevenueUSD < 5e5:
		out = append(out, printer.Sprintf("Financials: limited revenue (%s) against %s raised points to early validation.", revenue, funding))
	case comp.Financial >= 40:
		out = append(out, printer.Sprintf("Financials: %s revenue and %s raised indicate steady progress.", revenue, funding))
	case c.ValuationUSD/math.Max(c.FundingAmountUSD, 1) < 5:
		out = append(out, printer.Sprintf("Financials: a %s valuation on %s raised suggests weak investor conviction.", valuation, funding))
	default:
		out = append(out, printer.Sprintf("Financials: %s revenue must improve to justify %s raised.", revenue, funding))
	}

	team := printer.Sprintf("%.0f", c.TeamSize)
	years := printer.Sprintf("%.1f", c.YearsSinceFounding)
	switch {
	case comp.Team >= 70 && c.TeamSize >= 50:
		out = append(out, printer.Sprintf("Team: %s people over %s years shows organizational maturity.", team, years))
	case comp.Team >= 70:
		out = append(out, printer.Sprintf("Team: a lean, experienced team of %s over %s years.", team, years))
	case comp.Team >= 40:
		out = append(out, printer.Sprintf("Team: %s people and %s years is adequate for the stage; scaling may be a challenge.", team, years))
	case c.TeamSize < 10:
		out = append(out, printer.Sprintf("Team: a team of %s may struggle to execute an ambitious plan.", team))
	default:
		out = append(out, printer.Sprintf("Team: %s people against %s years of history suggests premature scaling.", team, years))
	}

	investors := printer.Sprintf("%.0f", c.NumInvestors)
	switch {
	case comp.Growth >= 70:
		out = append(out, printer.Sprintf("Growth: %s investors back a strong %s position, with %s modeled success probability.", investors, c.Industry, pct(r.Probability)))
	case comp.Growth >= 40:
		out = append(out, printer.Sprintf("Growth: moderate potential in %s with %s investors; %s success probability leaves execution risk.", c.Industry, investors, pct(r.Probability)))
	case r.Probability < 0.3:
		out = append(out, printer.Sprintf("Growth: only %s modeled success probability despite %s investors.", pct(r.Probability), investors))
	default:
		out = append(out, printer.Sprintf("Growth: modest validation (%s investors) in %s calls for stronger differentiation.", investors, c.Industry))
	}

	if r.PredictedFund > 0 {
		ratio := c.FundingAmountUSD / math.Max(r.PredictedFund, 1)
		switch {
		case ratio > 1.3:
			out = append(out, printer.Sprintf("Funding: %s raised exceeds the modeled %s; capital efficiency could improve.", funding, money(r.PredictedFund)))
		case ratio < 0.7:
			out = append(out, printer.Sprintf("Funding: %s raised is conservative next to the modeled %s.", funding, money(r.PredictedFund)))
		}
	}

	switch r.Tier {
	case model.TierInvest:
		out = append(out, printer.Sprintf("Recommendation: INVEST. Positive factors align at %s success probability.", pct(r.Probability)))
	case model.TierMonitor:
		out = append(out, "Recommendation: MONITOR. Mixed signals warrant deeper diligence on execution and positioning.")
	default:
		out = append(out, printer.Sprintf("Recommendation: AVOID. Current risks and %s success probability do not justify investment.", pct(r.Probability)))
	}
	return out
}
