package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/deal-scout/internal/artifact"
	"github.com/sells-group/deal-scout/internal/config"
	"github.com/sells-group/deal-scout/internal/dataset"
	"github.com/sells-group/deal-scout/internal/learn"
	"github.com/sells-group/deal-scout/internal/model"
	"github.com/sells-group/deal-scout/internal/monitoring"
	"github.com/sells-group/deal-scout/internal/precompute"
	"github.com/sells-group/deal-scout/internal/scheduler"
	"github.com/sells-group/deal-scout/internal/store"
	"github.com/sells-group/deal-scout/internal/training"
)

const bootstrapRows = 60

func newScheduler(t *testing.T, loader dataset.Loader) *scheduler.Scheduler {
	t.Helper()
	opts := training.DefaultOptions()
	opts.Families = []learn.Family{learn.FamilyLogistic}
	opts.RegressorTrees = 5
	opts.RegressorDepth = 5
	return scheduler.New(scheduler.Options{
		BootstrapRows:    bootstrapRows,
		BootstrapSeed:    42,
		PrecomputeEnable: true,
		Precompute:       precompute.Options{MaxRows: 20},
		Workers:          2,
	}, loader, training.NewPipeline(opts, nil, nil), nil)
}

func bootstrapped(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	s := newScheduler(t, dataset.SyntheticLoader{Rows: 80, Seed: 5})
	require.NoError(t, s.Bootstrap(context.Background()))
	return s
}

func newTestServer(t *testing.T, opts Options, deps Deps) http.Handler {
	t.Helper()
	if deps.Scheduler == nil {
		deps.Scheduler = bootstrapped(t)
	}
	if opts.Workers == 0 {
		opts.Workers = 2
	}
	return NewServer(opts, deps).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, Options{Version: "1.2.3"}, Deps{})

	rec := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
}

func TestNothingPublished(t *testing.T) {
	sched := newScheduler(t, dataset.SyntheticLoader{Rows: 80, Seed: 5})
	h := newTestServer(t, Options{}, Deps{Scheduler: sched})

	for _, target := range []string{"/api/companies", "/api/companies/startup_0001"} {
		rec := do(t, h, http.MethodGet, target, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
	}

	rec := do(t, h, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[statusResponse](t, rec).Source)
}

func TestListCompanies(t *testing.T) {
	h := newTestServer(t, Options{}, Deps{})

	rec := do(t, h, http.MethodGet, "/api/companies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[listResponse](t, rec)

	assert.Len(t, resp.Companies, defaultPerPage)
	assert.Equal(t, bootstrapRows, resp.Pagination.TotalCount)
	assert.Equal(t, 3, resp.Pagination.TotalPages)
	assert.Equal(t, "bootstrap", resp.DatasetInfo.Source)
	assert.Equal(t, bootstrapRows, resp.DatasetInfo.TotalCompanies)
	assert.NotEmpty(t, resp.Filters.Industries)
	assert.NotContains(t, resp.Filters.Regions, "Other")
	assert.False(t, resp.AppliedFilters.TierApplied)
	for _, c := range resp.Companies {
		assert.True(t, c.Precomputed)
		assert.NotEmpty(t, c.Tier)
		assert.NotEmpty(t, c.Region)
	}
}

func TestListCompanies_Pagination(t *testing.T) {
	h := newTestServer(t, Options{}, Deps{})

	resp := decode[listResponse](t, do(t, h, http.MethodGet, "/api/companies?page=3&per_page=25", ""))
	assert.Len(t, resp.Companies, bootstrapRows-50)

	resp = decode[listResponse](t, do(t, h, http.MethodGet, "/api/companies?page=9&per_page=25", ""))
	assert.Empty(t, resp.Companies)
	assert.Equal(t, bootstrapRows, resp.Pagination.TotalCount)

	resp = decode[listResponse](t, do(t, h, http.MethodGet, "/api/companies?per_page=0", ""))
	assert.Equal(t, 1, resp.Pagination.PerPage)
}

func TestListCompanies_HugePage(t *testing.T) {
	h := newTestServer(t, Options{}, Deps{})

	target := fmt.Sprintf("/api/companies?page=%d&per_page=200", math.MaxInt64/2)
	rec := do(t, h, http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[listResponse](t, rec)
	assert.Empty(t, resp.Companies)
	assert.Equal(t, bootstrapRows, resp.Pagination.TotalCount)
	assert.Equal(t, 1, resp.Pagination.TotalPages)
	assert.Equal(t, math.MaxInt64/2, resp.Pagination.Page)
}

func TestPageBounds(t *testing.T) {
	tests := []struct {
		name                 string
		page, perPage, total int
		start, end           int
	}{
		{"first page", 1, 25, 60, 0, 25},
		{"last partial page", 3, 25, 60, 50, 60},
		{"past the end", 4, 25, 60, 60, 60},
		{"exact boundary", 2, 30, 60, 30, 60},
		{"empty dataset", 1, 25, 0, 0, 0},
		{"huge page", math.MaxInt64 / 2, 200, 60, 60, 60},
		{"max page", math.MaxInt64, maxPerPage, 60, 60, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := pageBounds(tt.page, tt.perPage, tt.total)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestListCompanies_Search(t *testing.T) {
	h := newTestServer(t, Options{}, Deps{})

	// Company_1 and Company_10 through Company_19.
	resp := decode[listResponse](t, do(t, h, http.MethodGet, "/api/companies?search=COMPANY_1&per_page=50", ""))
	assert.Equal(t, 11, resp.Pagination.TotalCount)
	for _, c := range resp.Companies {
		assert.True(t, strings.HasPrefix(c.Name, "Company_1"))
	}
}

func TestListCompanies_TierFilter(t *testing.T) {
	h := newTestServer(t, Options{}, Deps{})

	total := 0
	for _, tier := range []string{"invest", "monitor", "avoid"} {
		resp := decode[listResponse](t, do(t, h, http.MethodGet, "/api/companies?per_page=200&tier="+tier, ""))
		assert.True(t, resp.AppliedFilters.TierApplied)
		assert.Equal(t, tier, resp.AppliedFilters.Tier)
		assert.Equal(t, bootstrapRows, resp.AppliedFilters.TierPreCount)
		for _, c := range resp.Companies {
			assert.Equal(t, tier, c.TierNorm)
		}
		total += resp.Pagination.TotalCount
	}
	assert.Equal(t, bootstrapRows, total)

	// Legacy labels normalize to the same bucket.
	invest := decode[listResponse](t, do(t, h, http.MethodGet, "/api/companies?tier=invest", ""))
	legacy := decode[listResponse](t, do(t, h, http.MethodGet, "/api/companies?tier=Strong%20Buy", ""))
	assert.Equal(t, invest.Pagination.TotalCount, legacy.Pagination.TotalCount)
	assert.Equal(t, "Strong Buy", legacy.AppliedFilters.TierRaw)

	rec := do(t, h, http.MethodGet, "/api/companies?tier=sideways", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListCompanies_ScoresRowsWithoutColumns(t *testing.T) {
	sched := bootstrapped(t)
	live := sched.Current()
	live.Dataset.SetColumns(0, dataset.Columns{})
	live.Results.Delete(live.Dataset.At(0).ID)
	h := newTestServer(t, Options{}, Deps{Scheduler: sched})

	resp := decode[listResponse](t, do(t, h, http.MethodGet, "/api/companies?per_page=1", ""))
	require.Len(t, resp.Companies, 1)
	assert.False(t, resp.Companies[0].Precomputed)
	assert.NotEmpty(t, resp.Companies[0].Tier)
	// The on-the-fly score is not written back.
	assert.True(t, live.Dataset.Columns(0).Empty())
}

func TestGetCompany(t *testing.T) {
	h := newTestServer(t, Options{}, Deps{})

	rec := do(t, h, http.MethodGet, "/api/companies/startup_0001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[companyDetail](t, rec)
	assert.Equal(t, "startup_0001", d.ID)
	require.NotNil(t, d.Analysis)
	assert.Equal(t, model.ModeFast, d.Analysis.Mode)
	assert.Positive(t, d.FundingEfficiency)
	assert.Positive(t, d.FundingPerEmployee)

	rec = do(t, h, http.MethodGet, "/api/companies/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeCompany(t *testing.T) {
	sched := bootstrapped(t)
	h := newTestServer(t, Options{}, Deps{Scheduler: sched})

	rec := do(t, h, http.MethodGet, "/api/companies/startup_0002/analyze", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[analyzeResponse](t, rec)
	assert.Equal(t, "startup_0002", resp.CompanyID)
	assert.Equal(t, model.ModeFull, resp.Analysis.Mode)
	assert.NotEmpty(t, resp.Analysis.Commentary)
	assert.NotEmpty(t, resp.Analysis.Insights)
	assert.GreaterOrEqual(t, resp.IndustryStats.TotalCompanies, 1)

	cached, ok := sched.Current().Results.Get("startup_0002")
	require.True(t, ok)
	assert.Equal(t, model.ModeFull, cached.Mode)

	rec = do(t, h, http.MethodGet, "/api/companies/nope/analyze", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeRateLimit(t *testing.T) {
	h := newTestServer(t, Options{AnalyzeRPS: 0.001, AnalyzeBurst: 1}, Deps{})

	rec := do(t, h, http.MethodGet, "/api/companies/startup_0001/analyze", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/companies/startup_0001/analyze", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Cached reads are not limited.
	rec = do(t, h, http.MethodGet, "/api/companies/startup_0001", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyzeBatch(t *testing.T) {
	h := newTestServer(t, Options{}, Deps{})

	rec := do(t, h, http.MethodPost, "/api/companies/analyze", `{"company_ids":["startup_0001","startup_0003","nope"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[batchResponse](t, rec)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, []string{"nope"}, resp.NotFound)
	assert.Equal(t, 2, resp.Summary.TotalAnalyzed)
	assert.Equal(t, 2, resp.Summary.TotalScored)
	assert.Equal(t, resp.Summary.Invest, resp.Summary.RecommendedCount)
	assert.Positive(t, resp.Summary.AvgAttractiveness)

	tests := []struct {
		name string
		body string
	}{
		{"empty ids", `{"company_ids":[]}`},
		{"malformed", `{"company_ids":`},
		{"too many", `{"company_ids":[` + strings.Repeat(`"x",`, maxBatchIDs) + `"x"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/companies/analyze", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCompare(t *testing.T) {
	h := newTestServer(t, Options{}, Deps{})

	rec := do(t, h, http.MethodPost, "/api/companies/compare", `{"company_ids":["startup_0001","startup_0002","missing"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[compareResponse](t, rec)
	assert.Len(t, resp.Companies, 2)
	assert.Equal(t, 2, resp.Metrics.TotalCompanies)
	assert.Positive(t, resp.Metrics.AvgFunding)
	assert.GreaterOrEqual(t, resp.Metrics.SuccessRate, 0.0)
	assert.LessOrEqual(t, resp.Metrics.SuccessRate, 1.0)
}

func TestAnalyzeRecord(t *testing.T) {
	h := newTestServer(t, Options{}, Deps{})

	body := `{"company_name":"Acme","industry":"Fintech","location":"London","funding_round":"Series A",
		"funding_amount_usd":5000000,"valuation_usd":50000000,"team_size":20,"years_since_founding":3,
		"revenue_usd":1000000,"num_investors":4,"competition_level":5,"market_size_billion_usd":20}`
	rec := do(t, h, http.MethodPost, "/api/analyze", body)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[model.ScoredResult](t, rec)
	assert.Equal(t, "Acme", res.CompanyName)
	assert.Equal(t, model.ModeFull, res.Mode)
	assert.NotEmpty(t, res.Commentary)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/analyze", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/analyze", `not json`).Code)
}

func newLedger(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func TestAdminPrecompute(t *testing.T) {
	ledger := newLedger(t)
	h := newTestServer(t, Options{}, Deps{
		Ledger: ledger,
		Models: artifact.NewManager(t.TempDir()),
	})

	rec := do(t, h, http.MethodPost, "/api/admin/precompute", `{"max_rows":10,"force_refresh":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[precomputeResponse](t, rec)
	assert.Equal(t, 10, resp.Counts.TotalScored)
	assert.Equal(t, 10, resp.Counts.Invest+resp.Counts.Monitor+resp.Counts.Avoid)
	assert.NotEmpty(t, resp.Fingerprint)

	// An empty body precomputes every row.
	rec = do(t, h, http.MethodPost, "/api/admin/precompute", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, bootstrapRows, decode[precomputeResponse](t, rec).Counts.TotalScored)

	rec = do(t, h, http.MethodPost, "/api/admin/precompute", `{"max_rows":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/admin/runs?kind=precompute", "")
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]model.Run](t, rec)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Equal(t, model.RunStatusComplete, r.Status)
	}
}

func TestAdminRuns_NoLedger(t *testing.T) {
	h := newTestServer(t, Options{}, Deps{})
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/admin/runs", "").Code)
}

func TestAdminMonitoring(t *testing.T) {
	sched := bootstrapped(t)
	ledger := newLedger(t)
	h := newTestServer(t, Options{}, Deps{
		Scheduler: sched,
		Ledger:    ledger,
		Monitor:   monitoring.NewCollector(ledger, sched),
	})

	rec := do(t, h, http.MethodGet, "/api/admin/monitoring?lookback_hours=6", "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[monitoring.MetricsSnapshot](t, rec)
	assert.Equal(t, "bootstrap", snap.LiveSource)
	assert.True(t, snap.LedgerEnabled)
	assert.Equal(t, 6, snap.LookbackHours)
}

func TestAdminHealth(t *testing.T) {
	h := newTestServer(t, Options{}, Deps{})
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/admin/health", "").Code)

	sched := bootstrapped(t)
	cfg := config.MonitoringConfig{LookbackWindowHours: 24}
	checker := monitoring.NewChecker(monitoring.NewCollector(nil, sched), monitoring.NewAlerter(cfg), cfg)
	h = newTestServer(t, Options{}, Deps{Scheduler: sched, Health: checker})
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/api/admin/health", "").Code)

	checker.Check(context.Background())
	rec := do(t, h, http.MethodGet, "/api/admin/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[monitoring.Health](t, rec)
	assert.Equal(t, monitoring.HealthOK, health.State)
	assert.Equal(t, "bootstrap", health.LiveSource)
}

func TestStatus(t *testing.T) {
	h := newTestServer(t, Options{}, Deps{Models: artifact.NewManager(t.TempDir())})

	rec := do(t, h, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[statusResponse](t, rec)
	assert.Equal(t, "bootstrap", resp.Source)
	assert.Equal(t, bootstrapRows, resp.Rows)
	assert.Equal(t, bootstrapRows, resp.ResultCacheSize)
	assert.Equal(t, bootstrapRows, resp.Counts.TotalScored)
	require.NotNil(t, resp.ModelCache)
}

func TestLazyKickoff(t *testing.T) {
	sched := bootstrapped(t)
	h := newTestServer(t, Options{LazyKickoff: true}, Deps{Scheduler: sched})

	// /health does not start the worker.
	do(t, h, http.MethodGet, "/health", "")
	sched.Wait()
	assert.Equal(t, scheduler.SourceBootstrap, sched.Status().Source)

	do(t, h, http.MethodGet, "/api/status", "")
	sched.Wait()
	st := sched.Status()
	assert.Equal(t, scheduler.SourceFull, st.Source)
	assert.Empty(t, st.LastError)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, Options{}, Deps{})
	do(t, h, http.MethodGet, "/api/companies/startup_0001", "")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dealscout_http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/api/companies/{id}"`)
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, Options{CORSOrigins: []string{"https://app.example.com"}}, Deps{})

	req := httptest.NewRequest(http.MethodOptions, "/api/companies", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
