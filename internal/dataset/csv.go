package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-scout/internal/feature"
	"github.com/sells-group/deal-scout/internal/model"
)

// Data-quality defaults for missing cells.
const (
	DefaultCompetition = 5.0
	DefaultMarketSize  = 1.0
)

// Loader produces the training dataset.
type Loader interface {
	Load(ctx context.Context) (*Dataset, error)
}

// rawRow receives every cell as text so a blank or malformed number can be
// replaced by its default instead of failing the whole file.
type rawRow struct {
	ID          string `csv:"company_id"`
	Name        string `csv:"company_name"`
	Industry    string `csv:"industry"`
	Location    string `csv:"location"`
	Round       string `csv:"funding_round"`
	Status      string `csv:"status"`
	Funding     string `csv:"funding_amount_usd"`
	Valuation   string `csv:"valuation_usd"`
	Team        string `csv:"team_size"`
	Years       string `csv:"years_since_founding"`
	Revenue     string `csv:"revenue_usd"`
	Investors   string `csv:"num_investors"`
	Competition string `csv:"competition_level"`
	Market      string `csv:"market_size_billion_usd"`
	Successful  string `csv:"is_successful"`
}

func number(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

func (r rawRow) company() model.Company {
	c := model.Company{
		ID:                 strings.TrimSpace(r.ID),
		Name:               strings.TrimSpace(r.Name),
		Industry:           strings.TrimSpace(r.Industry),
		Location:           strings.TrimSpace(r.Location),
		FundingRound:       strings.TrimSpace(r.Round),
		Status:             strings.TrimSpace(r.Status),
		FundingAmountUSD:   number(r.Funding, 0),
		ValuationUSD:       number(r.Valuation, 0),
		TeamSize:           number(r.Team, 0),
		YearsSinceFounding: number(r.Years, 0),
		RevenueUSD:         number(r.Revenue, 0),
		NumInvestors:       number(r.Investors, 0),
		CompetitionLevel:   number(r.Competition, DefaultCompetition),
		MarketSizeBillion:  number(r.Market, DefaultMarketSize),
	}
	if number(r.Successful, 0) >= 1 {
		c.IsSuccessful = 1
	}
	feature.Consolidate(&c)
	return c
}

// ReadCSV decodes companies from r. Unknown columns are ignored and missing
// ones take their defaults.
func ReadCSV(r io.Reader) (*Dataset, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read csv header")
	}

	var records []model.Company
	for {
		var row rawRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, eris.Wrapf(err, "dataset: decode row %d", len(records)+1)
		}
		records = append(records, row.company())
	}
	if len(records) == 0 {
		return nil, eris.New("dataset: csv has no rows")
	}
	return New(records, len(dec.Header())), nil
}

// CSVLoader reads a dataset from a file on disk.
type CSVLoader struct {
	Path string
}

// Load implements Loader.
func (l CSVLoader) Load(_ context.Context) (*Dataset, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", l.Path)
	}
	defer f.Close() //nolint:errcheck

	ds, err := ReadCSV(f)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: load %s", l.Path)
	}
	return ds, nil
}

// SyntheticLoader generates a dataset instead of reading one.
type SyntheticLoader struct {
	Rows int
	Seed uint64
}

// Load implements Loader.
func (l SyntheticLoader) Load(_ context.Context) (*Dataset, error) {
	return GenerateSynthetic(l.Rows, l.Seed), nil
}

// FallbackLoader tries Primary and falls back to Fallback on any error.
type FallbackLoader struct {
	Primary  Loader
	Fallback Loader
}

// Load implements Loader.
func (l FallbackLoader) Load(ctx context.Context) (*Dataset, error) {
	if l.Primary != nil {
		ds, err := l.Primary.Load(ctx)
		if err == nil {
			return ds, nil
		}
		zap.L().Warn("dataset: primary source unavailable, using fallback", zap.Error(err))
	}
	if l.Fallback == nil {
		return nil, eris.New("dataset: no fallback source configured")
	}
	return l.Fallback.Load(ctx)
}

// WriteCSV encodes records with a header row.
func WriteCSV(w io.Writer, records []model.Company) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return eris.Wrapf(err, "dataset: encode row %d", i+1)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "dataset: flush csv")
}
