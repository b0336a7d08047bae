package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/deal-scout/internal/api"
	"github.com/sells-group/deal-scout/internal/artifact"
	"github.com/sells-group/deal-scout/internal/monitoring"
	"github.com/sells-group/deal-scout/internal/scheduler"
	"github.com/sells-group/deal-scout/internal/store"
	"github.com/sells-group/deal-scout/internal/training"
)

var servePort int

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scoring API",
	Long:  "Publishes a bootstrap artifact set, trains the full set in the background and serves the company table and analysis endpoints.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ledger, err := initStore(ctx)
		if err != nil {
			return err
		}
		if ledger != nil {
			defer ledger.Close() //nolint:errcheck
		}

		models := artifact.NewManager(cfg.Cache.Dir)
		sched := newScheduler(ledger, models)
		if err := startScheduler(ctx, sched); err != nil {
			return err
		}

		collector := monitoring.NewCollector(ledger, sched)
		var checker *monitoring.Checker
		if cfg.Monitoring.Enabled {
			checker = monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}

		srv := api.NewServer(api.Options{
			CORSOrigins:  cfg.Server.CORSOrigins,
			AnalyzeRPS:   cfg.Server.AnalyzeRPS,
			AnalyzeBurst: cfg.Server.AnalyzeBurst,
			LazyKickoff:  cfg.Server.LazyBackgroundTrain,
			Workers:      cfg.Precompute.Workers,
			Version:      version,
		}, api.Deps{
			Scheduler: sched,
			Models:    models,
			Ledger:    ledger,
			Monitor:   collector,
			Health:    checker,
			Scoring:   scoringOptions(),
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		return listen(ctx, fmt.Sprintf(":%d", port), srv.Handler())
	},
}

func newScheduler(ledger store.Store, models *artifact.Manager) *scheduler.Scheduler {
	return scheduler.New(scheduler.Options{
		BootstrapRows:    cfg.Bootstrap.Rows,
		BootstrapSeed:    cfg.Bootstrap.Seed,
		PrecomputeEnable: !cfg.Precompute.Disable,
		Precompute:       precomputeOptions(),
		Workers:          cfg.Precompute.Workers,
		Scoring:          scoringOptions(),
		Ledger:           ledger,
	}, newLoader(), training.NewPipeline(cfg.Training, models, ledger), models)
}

// startScheduler publishes the first set. With fast bootstrap the synthetic
// set goes live immediately and the full pipeline runs in the background;
// otherwise startup blocks until the full set is published.
func startScheduler(ctx context.Context, sched *scheduler.Scheduler) error {
	if !cfg.Bootstrap.Fast {
		sched.Kickoff(ctx)
		sched.Wait()
		if sched.Current() == nil {
			return eris.Errorf("serve: initial training failed: %s", sched.Status().LastError)
		}
		return nil
	}

	if err := sched.Bootstrap(ctx); err != nil {
		return err
	}
	if !cfg.Server.LazyBackgroundTrain {
		sched.Kickoff(ctx)
	}
	return nil
}

// listen serves h on addr until ctx is cancelled, then drains in-flight
// requests.
func listen(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("starting server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
