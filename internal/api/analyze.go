package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/deal-scout/internal/feature"
	"github.com/sells-group/deal-scout/internal/model"
	"github.com/sells-group/deal-scout/internal/scheduler"
)

type companyInfo struct {
	Name         string `json:"name"`
	Industry     string `json:"industry"`
	Location     string `json:"location"`
	FundingRound string `json:"funding_round"`
	Status       string `json:"status"`
}

type industryStats struct {
	AvgFunding     float64 `json:"avg_funding"`
	AvgValuation   float64 `json:"avg_valuation"`
	AvgTeamSize    float64 `json:"avg_team_size"`
	AvgRevenue     float64 `json:"avg_revenue"`
	SuccessRate    float64 `json:"success_rate"`
	TotalCompanies int     `json:"total_companies"`
}

type analyzeResponse struct {
	CompanyID     string             `json:"company_id"`
	CompanyInfo   companyInfo        `json:"company_info"`
	Analysis      model.ScoredResult `json:"analysis"`
	IndustryStats industryStats      `json:"industry_stats"`
}

// analyze returns the full-mode result for c, reusing a cached full result
// from the live generation.
func (s *Server) analyze(l *scheduler.Live, c model.Company) model.ScoredResult {
	if res, ok := l.Results.Get(c.ID); ok && res.Mode == model.ModeFull {
		return res
	}
	res := s.scorer.Score(c, model.ModeFull)
	if !res.Fallback {
		l.Results.Put(res)
	}
	return res
}

func industryStatsOf(records []model.Company, industry string) industryStats {
	var st industryStats
	var successes int
	for _, c := range records {
		if c.Industry != industry {
			continue
		}
		st.TotalCompanies++
		st.AvgFunding += c.FundingAmountUSD
		st.AvgValuation += c.ValuationUSD
		st.AvgTeamSize += c.TeamSize
		st.AvgRevenue += c.RevenueUSD
		successes += c.IsSuccessful
	}
	if n := float64(st.TotalCompanies); n > 0 {
		st.AvgFunding /= n
		st.AvgValuation /= n
		st.AvgTeamSize /= n
		st.AvgRevenue /= n
		st.SuccessRate = float64(successes) / n
	}
	return st
}

func (s *Server) handleAnalyzeCompany(w http.ResponseWriter, r *http.Request) {
	l := s.live(w)
	if l == nil {
		return
	}
	c, ok := l.Dataset.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "company not found")
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		CompanyID: c.ID,
		CompanyInfo: companyInfo{
			Name:         c.Name,
			Industry:     c.Industry,
			Location:     c.Location,
			FundingRound: c.FundingRound,
			Status:       c.Status,
		},
		Analysis:      s.analyze(l, c),
		IndustryStats: industryStatsOf(l.Dataset.Records(), c.Industry),
	})
}

type batchSummary struct {
	TotalAnalyzed         int     `json:"total_analyzed"`
	AvgAttractiveness     float64 `json:"avg_attractiveness"`
	AvgSuccessProbability float64 `json:"avg_success_probability"`
	RecommendedCount      int     `json:"recommended_count"`
	model.TierCounts
}

type batchResponse struct {
	Results  []model.ScoredResult `json:"analysis_results"`
	NotFound []string             `json:"not_found,omitempty"`
	Summary  batchSummary         `json:"summary"`
}

func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
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

	resp := batchResponse{Results: []model.ScoredResult{}}
	for _, id := range req.CompanyIDs {
		c, ok := l.Dataset.Get(id)
		if !ok {
			resp.NotFound = append(resp.NotFound, id)
			continue
		}
		res := s.analyze(l, c)
		resp.Results = append(resp.Results, res)
		resp.Summary.AvgAttractiveness += res.Score
		resp.Summary.AvgSuccessProbability += res.Probability
		resp.Summary.Add(res.Tier)
	}
	if n := len(resp.Results); n > 0 {
		resp.Summary.TotalAnalyzed = n
		resp.Summary.AvgAttractiveness /= float64(n)
		resp.Summary.AvgSuccessProbability /= float64(n)
		resp.Summary.RecommendedCount = resp.Summary.Invest
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAnalyzeRecord scores a posted record that is not part of the dataset.
func (s *Server) handleAnalyzeRecord(w http.ResponseWriter, r *http.Request) {
	var c model.Company
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(c.Name) == "" && strings.TrimSpace(c.Industry) == "" {
		writeError(w, http.StatusBadRequest, "company_name or industry is required")
		return
	}
	feature.Consolidate(&c)
	writeJSON(w, http.StatusOK, s.scorer.Score(c, model.ModeFull))
}
