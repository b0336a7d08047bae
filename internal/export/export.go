// Package export writes the scored company table to CSV or XLSX.
package export

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/deal-scout/internal/dataset"
	"github.com/sells-group/deal-scout/internal/model"
)

// Row is one exported company with its precomputed columns.
type Row struct {
	ID                 string  `csv:"company_id"`
	Name               string  `csv:"company_name"`
	Industry           string  `csv:"industry"`
	IndustryGroup      string  `csv:"industry_group"`
	Location           string  `csv:"location"`
	Region             string  `csv:"region"`
	FundingRound       string  `csv:"funding_round"`
	Status             string  `csv:"status"`
	FundingAmountUSD   float64 `csv:"funding_amount_usd"`
	ValuationUSD       float64 `csv:"valuation_usd"`
	TeamSize           float64 `csv:"team_size"`
	YearsSinceFounding float64 `csv:"years_since_founding"`
	RevenueUSD         float64 `csv:"revenue_usd"`
	NumInvestors       float64 `csv:"num_investors"`
	CompetitionLevel   float64 `csv:"competition_level"`
	MarketSizeBillion  float64 `csv:"market_size_billion_usd"`
	IsSuccessful       int     `csv:"is_successful"`
	Score              float64 `csv:"attractiveness_score"`
	Tier               string  `csv:"investment_tier"`
	TierNorm           string  `csv:"investment_tier_norm"`
	Recommendation     string  `csv:"recommendation"`
	RiskLevel          string  `csv:"risk_level"`
}

func (r Row) values() []any {
	return []any{
		r.ID, r.Name, r.Industry, r.IndustryGroup, r.Location, r.Region, r.FundingRound, r.Status,
		r.FundingAmountUSD, r.ValuationUSD, r.TeamSize, r.YearsSinceFounding, r.RevenueUSD,
		r.NumInvestors, r.CompetitionLevel, r.MarketSizeBillion, r.IsSuccessful,
		r.Score, r.Tier, r.TierNorm, r.Recommendation, r.RiskLevel,
	}
}

// NewRow joins a record with its columns.
func NewRow(c model.Company, cols dataset.Columns) Row {
	return Row{
		ID:                 c.ID,
		Name:               c.Name,
		Industry:           c.Industry,
		IndustryGroup:      c.IndustryGroup,
		Location:           c.Location,
		Region:             c.Region,
		FundingRound:       c.FundingRound,
		Status:             c.Status,
		FundingAmountUSD:   c.FundingAmountUSD,
		ValuationUSD:       c.ValuationUSD,
		TeamSize:           c.TeamSize,
		YearsSinceFounding: c.YearsSinceFounding,
		RevenueUSD:         c.RevenueUSD,
		NumInvestors:       c.NumInvestors,
		CompetitionLevel:   c.CompetitionLevel,
		MarketSizeBillion:  c.MarketSizeBillion,
		IsSuccessful:       c.IsSuccessful,
		Score:              cols.Score,
		Tier:               string(cols.Tier),
		TierNorm:           cols.TierNorm,
		Recommendation:     cols.Recommendation,
		RiskLevel:          string(cols.RiskLevel),
	}
}

// Rows returns every record of ds. Rows never precomputed keep empty
// score columns.
func Rows(ds *dataset.Dataset) []Row {
	cols := ds.Snapshot()
	out := make([]Row, ds.Len())
	for i, c := range ds.Records() {
		out[i] = NewRow(c, cols[i])
	}
	return out
}

// SortByScore orders rows best first. Ties keep dataset order.
func SortByScore(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
}

// WriteCSV encodes rows with a header row.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if len(rows) == 0 {
		if err := enc.EncodeHeader(Row{}); err != nil {
			return eris.Wrap(err, "export: encode header")
		}
	}
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			return eris.Wrapf(err, "export: encode row %d", i+1)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// Sheet names written by WriteXLSX.
const (
	CompaniesSheet = "Companies"
	SummarySheet   = "Summary"
)

// WriteXLSX saves rows to a workbook at path with a Companies sheet and a
// Summary sheet of tier counts per industry group.
func WriteXLSX(path string, rows []Row) error {
	header, err := csvutil.Header(Row{}, "csv")
	if err != nil {
		return eris.Wrap(err, "export: build header")
	}

	f := xlsx.NewFile()
	companies, err := f.AddSheet(CompaniesSheet)
	if err != nil {
		return eris.Wrap(err, "export: add companies sheet")
	}
	addStrings(companies.AddRow(), header)
	for _, r := range rows {
		row := companies.AddRow()
		for _, v := range r.values() {
			cell := row.AddCell()
			switch v := v.(type) {
			case float64:
				cell.SetFloat(v)
			case int:
				cell.SetInt(v)
			case string:
				cell.SetString(v)
			}
		}
	}

	summary, err := f.AddSheet(SummarySheet)
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	addStrings(summary.AddRow(), []string{"industry_group", "total_scored", "invest", "monitor", "avoid"})
	for _, g := range Summarize(rows) {
		row := summary.AddRow()
		row.AddCell().SetString(g.Group)
		row.AddCell().SetInt(g.TotalScored)
		row.AddCell().SetInt(g.Invest)
		row.AddCell().SetInt(g.Monitor)
		row.AddCell().SetInt(g.Avoid)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "export: create output dir")
		}
	}
	return eris.Wrap(f.Save(path), "export: save xlsx")
}

func addStrings(row *xlsx.Row, cells []string) {
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}

// GroupCounts are the tier counts of one industry group.
type GroupCounts struct {
	Group string
	model.TierCounts
}

// AllGroups labels the totals line of Summarize.
const AllGroups = "All"

// Summarize counts scored rows by industry group, sorted by group name,
// followed by the totals. Rows without a tier are skipped.
func Summarize(rows []Row) []GroupCounts {
	byGroup := make(map[string]*model.TierCounts)
	var total model.TierCounts
	for _, r := range rows {
		if r.Tier == "" {
			continue
		}
		g := r.IndustryGroup
		if g == "" {
			g = "Other"
		}
		tc, ok := byGroup[g]
		if !ok {
			tc = &model.TierCounts{}
			byGroup[g] = tc
		}
		tc.Add(model.Tier(r.Tier))
		total.Add(model.Tier(r.Tier))
	}

	out := make([]GroupCounts, 0, len(byGroup)+1)
	for g, tc := range byGroup {
		out = append(out, GroupCounts{Group: g, TierCounts: *tc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return append(out, GroupCounts{Group: AllGroups, TierCounts: total})
}

// WriteFile writes rows to path, choosing XLSX or CSV by extension.
func WriteFile(path string, rows []Row) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return WriteXLSX(path, rows)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "export: create output dir")
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrap(f.Close(), "export: close csv")
}
