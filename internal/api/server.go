// Package api serves the scored company table and on-demand analysis over
// HTTP.
package api

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/sells-group/deal-scout/internal/artifact"
	"github.com/sells-group/deal-scout/internal/monitoring"
	"github.com/sells-group/deal-scout/internal/scheduler"
	"github.com/sells-group/deal-scout/internal/scoring"
	"github.com/sells-group/deal-scout/internal/store"
)

// Options configures the HTTP surface.
type Options struct {
	CORSOrigins []string
	// AnalyzeRPS and AnalyzeBurst bound the full-mode analyze endpoints.
	AnalyzeRPS   float64
	AnalyzeBurst int
	// LazyKickoff starts the upgrade worker on the first API request
	// instead of at startup.
	LazyKickoff bool
	Workers     int
	// Version is reported by /health.
	Version string
}

// Deps are the collaborators a Server reads from. Only Scheduler is
// required.
type Deps struct {
	Scheduler *scheduler.Scheduler
	Models    *artifact.Manager
	Ledger    store.Store
	Monitor   *monitoring.Collector
	Health    *monitoring.Checker
	Scoring   []scoring.Option
}

// Server holds the handlers and their shared state.
type Server struct {
	opts    Options
	deps    Deps
	scorer  *scoring.Scorer
	limiter *rate.Limiter

	kickoff    sync.Once
	precompute atomic.Bool
	started    time.Time
}

// NewServer creates a Server.
func NewServer(opts Options, deps Deps) *Server {
	if opts.AnalyzeRPS <= 0 {
		opts.AnalyzeRPS = 5
	}
	if opts.AnalyzeBurst <= 0 {
		opts.AnalyzeBurst = 10
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{
		opts:    opts,
		deps:    deps,
		scorer:  deps.Scheduler.Scorer(deps.Scoring...),
		limiter: rate.NewLimiter(rate.Limit(opts.AnalyzeRPS), opts.AnalyzeBurst),
		started: time.Now().UTC(),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.opts.LazyKickoff {
			r.Use(s.lazyKickoff)
		}

		r.Get("/status", s.handleStatus)
		r.Get("/companies", s.handleListCompanies)
		r.Post("/companies/compare", s.handleCompare)
		r.Get("/companies/{id}", s.handleGetCompany)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Get("/companies/{id}/analyze", s.handleAnalyzeCompany)
			r.Post("/companies/analyze", s.handleAnalyzeBatch)
			r.Post("/analyze", s.handleAnalyzeRecord)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/precompute", s.handlePrecompute)
			r.Get("/runs", s.handleListRuns)
			r.Get("/monitoring", s.handleMonitoring)
			r.Get("/health", s.handleHealth)
		})
	})

	return r
}

// lazyKickoff starts the upgrade worker once, on the first API request.
func (s *Server) lazyKickoff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.kickoff.Do(func() {
			s.deps.Scheduler.Kickoff(context.WithoutCancel(r.Context()))
		})
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "analysis rate limit exceeded, retry shortly")
			return
		}
		next.ServeHTTP(w, r)
	})
}
