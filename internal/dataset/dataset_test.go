package dataset

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/deal-scout/internal/model"
)

func TestGenerateSynthetic(t *testing.T) {
	ds := GenerateSynthetic(300, 42)
	require.Equal(t, 300, ds.Len())
	assert.Equal(t, SyntheticColumnCount, ds.ColumnCount())

	first := ds.At(0)
	assert.Equal(t, "startup_0001", first.ID)
	assert.Equal(t, "Company_1", first.Name)

	var positives int
	for _, c := range ds.Records() {
		assert.Contains(t, Industries, c.Industry)
		assert.Contains(t, Locations, c.Location)
		assert.Contains(t, Rounds, c.FundingRound)
		assert.NotEmpty(t, c.IndustryGroup)
		assert.NotEmpty(t, c.Region)

		fr := roundFunding[c.FundingRound]
		assert.GreaterOrEqual(t, c.FundingAmountUSD, fr.lo*1e6)
		assert.LessOrEqual(t, c.FundingAmountUSD, fr.hi*1e6)
		assert.GreaterOrEqual(t, c.ValuationUSD, 8*c.FundingAmountUSD)

		assert.GreaterOrEqual(t, c.CompetitionLevel, 1.0)
		assert.LessOrEqual(t, c.CompetitionLevel, 10.0)
		assert.Equal(t, c.Status == model.StatusAcquired || c.Status == model.StatusIPO, c.Successful())
		positives += c.IsSuccessful
	}
	assert.Positive(t, positives)
	assert.Less(t, positives, 300)
}

func TestGenerateSynthetic_Deterministic(t *testing.T) {
	a := GenerateSynthetic(50, 7)
	b := GenerateSynthetic(50, 7)
	c := GenerateSynthetic(50, 8)
	assert.Equal(t, a.Records(), b.Records())
	assert.NotEqual(t, a.Records(), c.Records())
}

func TestSuccessOdds_Clipped(t *testing.T) {
	best := successOdds("Fintech", "Boston", model.RoundSeriesC, 50, 5e6, 2)
	assert.InDelta(t, 0.9, best, 1e-9)
	base := successOdds("Gaming", "Berlin", model.RoundSeed, 5, 0, 9)
	assert.InDelta(t, 0.5, base, 1e-9)
}

func TestDataset_ColumnsAndIndex(t *testing.T) {
	ds := New([]model.Company{{ID: "a"}, {ID: "b"}, {ID: ""}, {ID: "a"}}, 3)

	i, ok := ds.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, 0, i)
	_, ok = ds.Get("missing")
	assert.False(t, ok)

	assert.True(t, ds.Columns(1).Empty())
	ds.SetColumns(1, Columns{Score: 70, Tier: model.TierInvest, TierNorm: "invest"})
	assert.Equal(t, 70.0, ds.Columns(1).Score)

	snap := ds.Snapshot()
	snap[1].Score = 0
	assert.Equal(t, 70.0, ds.Columns(1).Score)
}

func TestReadCSV_Defaults(t *testing.T) {
	in := strings.Join([]string{
		"company_id,company_name,industry,location,funding_round,funding_amount_usd,competition_level,market_size_billion_usd,is_successful,extra",
		"c1,Acme,Payments,NYC,Series A,2000000,,,1,x",
		"c2,Beta,software,London,Seed,abc,7,12.5,0,y",
	}, "\n")

	ds, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, 10, ds.ColumnCount())

	c1 := ds.At(0)
	assert.Equal(t, 2_000_000.0, c1.FundingAmountUSD)
	assert.Equal(t, DefaultCompetition, c1.CompetitionLevel)
	assert.Equal(t, DefaultMarketSize, c1.MarketSizeBillion)
	assert.Equal(t, 1, c1.IsSuccessful)
	assert.Equal(t, "Fintech", c1.IndustryGroup)

	c2 := ds.At(1)
	assert.Zero(t, c2.FundingAmountUSD)
	assert.Equal(t, 7.0, c2.CompetitionLevel)
	assert.Equal(t, 12.5, c2.MarketSizeBillion)
	assert.Equal(t, "SaaS", c2.IndustryGroup)
	assert.Equal(t, "Europe", c2.Region)
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("company_id,company_name\n"))
	assert.Error(t, err)
}

func TestWriteCSV_ThenLoad(t *testing.T) {
	src := GenerateSynthetic(20, 3)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, src.Records()))

	path := filepath.Join(t.TempDir(), "companies.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	ds, err := CSVLoader{Path: path}.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 20, ds.Len())
	for i := range 20 {
		assert.Equal(t, src.At(i).ID, ds.At(i).ID)
		assert.InDelta(t, src.At(i).FundingAmountUSD, ds.At(i).FundingAmountUSD, 1e-6)
		assert.Equal(t, src.At(i).IsSuccessful, ds.At(i).IsSuccessful)
	}
}

func TestFallbackLoader(t *testing.T) {
	l := FallbackLoader{
		Primary:  CSVLoader{Path: filepath.Join(t.TempDir(), "nope.csv")},
		Fallback: SyntheticLoader{Rows: 10, Seed: 42},
	}
	ds, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, ds.Len())

	_, err = FallbackLoader{Primary: l.Primary}.Load(context.Background())
	assert.Error(t, err)
}
