package api

import (
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/deal-scout/internal/coherence"
	"github.com/sells-group/deal-scout/internal/dataset"
	"github.com/sells-group/deal-scout/internal/feature"
	"github.com/sells-group/deal-scout/internal/model"
	"github.com/sells-group/deal-scout/internal/scheduler"
)

const (
	defaultPerPage = 20
	maxPerPage     = 200
)

type companyRow struct {
	model.Company
	dataset.Columns
	Precomputed bool `json:"precomputed"`
}

type pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

type filterOptions struct {
	Industries     []string `json:"industries"`
	Locations      []string `json:"locations"`
	FundingRounds  []string `json:"funding_rounds"`
	Statuses       []string `json:"statuses"`
	IndustryGroups []string `json:"industry_groups"`
	Regions        []string `json:"regions"`
}

type datasetInfo struct {
	Source         string `json:"data_source"`
	Fingerprint    string `json:"fingerprint"`
	TotalCompanies int    `json:"total_companies"`
}

type appliedFilters struct {
	TierRaw       string `json:"tier_raw"`
	Tier          string `json:"tier"`
	TierApplied   bool   `json:"tier_filter_applied"`
	TierPreCount  int    `json:"tier_pre_count"`
	TierPostCount int    `json:"tier_post_count"`
}

type listResponse struct {
	Companies      []companyRow   `json:"companies"`
	Pagination     pagination     `json:"pagination"`
	Filters        filterOptions  `json:"filters"`
	DatasetInfo    datasetInfo    `json:"dataset_info"`
	AppliedFilters appliedFilters `json:"applied_filters"`
}

// companyFilter holds the non-tier list filters. Empty fields match anything.
type companyFilter struct {
	search        string
	industry      string
	industryGroup string
	location      string
	region        string
	fundingRound  string
	status        string
}

func parseFilter(r *http.Request) companyFilter {
	q := r.URL.Query()
	f := companyFilter{
		search:        strings.ToLower(strings.TrimSpace(q.Get("search"))),
		industry:      q.Get("industry"),
		industryGroup: q.Get("industry_group"),
		location:      q.Get("location"),
		region:        q.Get("region"),
		fundingRound:  q.Get("funding_round"),
		status:        q.Get("status"),
	}
	if f.region == "" {
		f.region = q.Get("continent")
	}
	return f
}

func (f companyFilter) match(c model.Company) bool {
	if f.search != "" && !strings.Contains(strings.ToLower(c.Name), f.search) {
		return false
	}
	if f.industry != "" && c.Industry != f.industry {
		return false
	}
	if f.industryGroup != "" && !strings.EqualFold(c.IndustryGroup, f.industryGroup) {
		return false
	}
	if f.location != "" && c.Location != f.location {
		return false
	}
	if f.region != "" && !strings.EqualFold(c.Region, f.region) {
		return false
	}
	if f.fundingRound != "" && c.FundingRound != f.fundingRound {
		return false
	}
	switch f.status {
	case "":
	case "successful":
		return c.Successful()
	case "unsuccessful":
		return !c.Successful()
	default:
		return strings.EqualFold(c.Status, f.status)
	}
	return true
}

func intParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

// pageBounds returns the slice bounds of a 1-based page. Pages past the end
// are empty.
func pageBounds(page, perPage, total int) (int, int) {
	if page < 1 || perPage < 1 || page-1 > total/perPage {
		return total, total
	}
	start := min((page-1)*perPage, total)
	return start, min(start+perPage, total)
}

// live returns the published generation or writes 503.
func (s *Server) live(w http.ResponseWriter) *scheduler.Live {
	l := s.deps.Scheduler.Current()
	if l == nil || l.Dataset == nil {
		writeError(w, http.StatusServiceUnavailable, "no company data available yet")
		return nil
	}
	return l
}

// columns returns the precomputed columns of row i, scoring the row in fast
// mode when precompute has not reached it. The on-the-fly result is not
// written back.
func (s *Server) columns(l *scheduler.Live, i int) (dataset.Columns, bool) {
	if cols := l.Dataset.Columns(i); !cols.Empty() {
		return cols, true
	}
	c := l.Dataset.At(i)
	if res, ok := l.Results.Get(c.ID); ok && res.Tier != "" {
		return dataset.ColumnsFromResult(res), true
	}
	return dataset.ColumnsFromResult(s.scorer.Score(c, model.ModeFast)), false
}

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	l := s.live(w)
	if l == nil {
		return
	}

	tierRaw := r.URL.Query().Get("tier")
	tier := coherence.NormalizeTier(tierRaw)
	if strings.TrimSpace(tierRaw) != "" && tier == "" {
		writeError(w, http.StatusBadRequest, "unrecognized tier "+strconv.Quote(tierRaw))
		return
	}

	page := max(intParam(r, "page", 1), 1)
	perPage := min(max(intParam(r, "per_page", defaultPerPage), 1), maxPerPage)
	filter := parseFilter(r)

	var idx []int
	for i, c := range l.Dataset.Records() {
		if filter.match(c) {
			idx = append(idx, i)
		}
	}

	applied := appliedFilters{TierRaw: tierRaw, Tier: tier, TierPreCount: len(idx)}
	resolved := make(map[int]companyRow)
	if tier != "" {
		kept := idx[:0]
		for _, i := range idx {
			cols, pre := s.columns(l, i)
			if cols.TierNorm != tier {
				continue
			}
			resolved[i] = companyRow{Company: l.Dataset.At(i), Columns: cols, Precomputed: pre}
			kept = append(kept, i)
		}
		idx = kept
		applied.TierApplied = true
		applied.TierPostCount = len(idx)
	}

	total := len(idx)
	start, end := pageBounds(page, perPage, total)

	rows := make([]companyRow, 0, end-start)
	for _, i := range idx[start:end] {
		row, ok := resolved[i]
		if !ok {
			cols, pre := s.columns(l, i)
			row = companyRow{Company: l.Dataset.At(i), Columns: cols, Precomputed: pre}
		}
		rows = append(rows, row)
	}

	writeJSON(w, http.StatusOK, listResponse{
		Companies: rows,
		Pagination: pagination{
			Page:       page,
			PerPage:    perPage,
			TotalCount: total,
			TotalPages: (total + perPage - 1) / perPage,
		},
		Filters: filterOptionsOf(l.Dataset),
		DatasetInfo: datasetInfo{
			Source:         l.Source,
			Fingerprint:    l.Fingerprint,
			TotalCompanies: l.Dataset.Len(),
		},
		AppliedFilters: applied,
	})
}

func distinct(records []model.Company, field func(model.Company) string) []string {
	seen := make(map[string]struct{})
	for _, c := range records {
		if v := field(c); v != "" {
			seen[v] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

func filterOptionsOf(ds *dataset.Dataset) filterOptions {
	recs := ds.Records()
	return filterOptions{
		Industries:     distinct(recs, func(c model.Company) string { return c.Industry }),
		Locations:      distinct(recs, func(c model.Company) string { return c.Location }),
		FundingRounds:  distinct(recs, func(c model.Company) string { return c.FundingRound }),
		Statuses:       distinct(recs, func(c model.Company) string { return c.Status }),
		IndustryGroups: slices.Clone(feature.IndustryGroups),
		Regions:        slices.DeleteFunc(slices.Clone(feature.Regions), func(r string) bool { return r == "Other" }),
	}
}

type companyDetail struct {
	model.Company
	FundingEfficiency  float64             `json:"funding_efficiency"`
	RevenuePerEmployee float64             `json:"revenue_per_employee"`
	FundingPerEmployee float64             `json:"funding_per_employee"`
	MarketPenetration  float64             `json:"market_penetration"`
	Analysis           *model.ScoredResult `json:"analysis,omitempty"`
}

func detailOf(c model.Company) companyDetail {
	team := max(c.TeamSize, 1)
	return companyDetail{
		Company:            c,
		FundingEfficiency:  c.ValuationUSD / max(c.FundingAmountUSD, 1),
		RevenuePerEmployee: c.RevenueUSD / team,
		FundingPerEmployee: c.FundingAmountUSD / team,
		MarketPenetration:  c.RevenueUSD / max(c.MarketSizeBillion*1e9, 1),
	}
}

func (s *Server) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	l := s.live(w)
	if l == nil {
		return
	}
	c, ok := l.Dataset.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "company not found")
		return
	}

	res, ok := l.Results.Get(c.ID)
	if !ok {
		res = s.scorer.Score(c, model.ModeFast)
	}
	d := detailOf(c)
	d.Analysis = &res
	writeJSON(w, http.StatusOK, d)
}

type compareRequest struct {
	CompanyIDs []string `json:"company_ids"`
}

// maxBatchIDs caps the ids accepted by the batch endpoints.
const maxBatchIDs = 50

func (req compareRequest) validate() string {
	switch {
	case len(req.CompanyIDs) == 0:
		return "no company IDs provided"
	case len(req.CompanyIDs) > maxBatchIDs:
		return "at most " + strconv.Itoa(maxBatchIDs) + " company IDs per request"
	}
	return ""
}

type comparisonMetrics struct {
	TotalCompanies int     `json:"total_companies"`
	AvgFunding     float64 `json:"avg_funding"`
	AvgValuation   float64 `json:"avg_valuation"`
	SuccessRate    float64 `json:"success_rate"`
}

type compareResponse struct {
	Companies []companyDetail   `json:"companies"`
	Metrics   comparisonMetrics `json:"comparison_metrics"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	l := s.live(w)
	if l == nil {
		return
	}

	resp := compareResponse{Companies: []companyDetail{}}
	var funding, valuation float64
	var successes int
	for _, id := range req.CompanyIDs {
		c, ok := l.Dataset.Get(id)
		if !ok {
			continue
		}
		resp.Companies = append(resp.Companies, detailOf(c))
		funding += c.FundingAmountUSD
		valuation += c.ValuationUSD
		successes += c.IsSuccessful
	}
	if n := len(resp.Companies); n > 0 {
		resp.Metrics = comparisonMetrics{
			TotalCompanies: n,
			AvgFunding:     funding / float64(n),
			AvgValuation:   valuation / float64(n),
			SuccessRate:    float64(successes) / float64(n),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
