package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/deal-scout/internal/artifact"
	"github.com/sells-group/deal-scout/internal/model"
	"github.com/sells-group/deal-scout/internal/monitoring"
	"github.com/sells-group/deal-scout/internal/precompute"
	"github.com/sells-group/deal-scout/internal/scheduler"
	"github.com/sells-group/deal-scout/internal/scoring"
	"github.com/sells-group/deal-scout/internal/store"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Version:   s.opts.Version,
		Timestamp: time.Now().UTC(),
	})
}

type statusResponse struct {
	scheduler.Status
	ResultCacheSize int             `json:"result_cache_size"`
	ModelCache      *artifact.Stats `json:"model_cache,omitempty"`
	Uptime          string          `json:"uptime"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Status: s.deps.Scheduler.Status(),
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}
	if l := s.deps.Scheduler.Current(); l != nil {
		resp.ResultCacheSize = l.Results.Len()
	}
	if s.deps.Models != nil {
		st := s.deps.Models.Stats()
		resp.ModelCache = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

type precomputeResponse struct {
	Fingerprint string           `json:"fingerprint"`
	Counts      model.TierCounts `json:"counts"`
	Duration    string           `json:"duration"`
}

// handlePrecompute scores the live dataset synchronously. Only one admin
// precompute runs at a time.
func (s *Server) handlePrecompute(w http.ResponseWriter, r *http.Request) {
	var opts precompute.Options
	if err := decodeJSON(w, r, &opts); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if opts.MaxRows < 0 {
		writeError(w, http.StatusBadRequest, "max_rows must be >= 0")
		return
	}
	l := s.live(w)
	if l == nil {
		return
	}
	if !s.precompute.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "a precompute is already running")
		return
	}
	defer s.precompute.Store(false)

	start := time.Now()
	// Score against the generation being written, even if a newer one is
	// published meanwhile.
	scorer := scoring.NewScorer(scoring.StaticSource{Set: l.Set}, s.deps.Scoring...)
	pc := precompute.New(scorer, l.Results, s.deps.Models, s.deps.Ledger, s.opts.Workers)
	counts, err := pc.Run(context.WithoutCancel(r.Context()), l.Dataset, opts)
	if err != nil {
		zap.L().Error("api: precompute failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "precompute failed")
		return
	}
	writeJSON(w, http.StatusOK, precomputeResponse{
		Fingerprint: l.Fingerprint,
		Counts:      counts,
		Duration:    time.Since(start).Round(time.Millisecond).String(),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ledger == nil {
		writeError(w, http.StatusNotFound, "run ledger is disabled")
		return
	}
	q := r.URL.Query()
	runs, err := s.deps.Ledger.ListRuns(r.Context(), store.RunFilter{
		Kind:   model.RunKind(q.Get("kind")),
		Status: model.RunStatus(q.Get("status")),
		Limit:  intParam(r, "limit", 20),
		Offset: intParam(r, "offset", 0),
	})
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleMonitoring(w http.ResponseWriter, r *http.Request) {
	collector := s.deps.Monitor
	if collector == nil {
		collector = monitoring.NewCollector(s.deps.Ledger, s.deps.Scheduler)
	}
	snap, err := collector.Collect(r.Context(), max(intParam(r, "lookback_hours", 24), 1))
	if err != nil {
		zap.L().Error("api: collect monitoring snapshot", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to collect metrics")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Health == nil {
		writeError(w, http.StatusNotFound, "health checks are disabled")
		return
	}
	h := s.deps.Health.Last()
	if h == nil {
		writeError(w, http.StatusServiceUnavailable, "no health check has run yet")
		return
	}
	writeJSON(w, http.StatusOK, h)
}
