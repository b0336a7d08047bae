package monitoring

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/deal-scout/internal/config"
)

// HealthState is the outcome of one model health check.
type HealthState string

const (
	HealthOK       HealthState = "ok"
	HealthDegraded HealthState = "degraded"
	// HealthUnknown means the snapshot could not be collected.
	HealthUnknown HealthState = "unknown"
)

// Health is the result of the most recent check.
type Health struct {
	State       HealthState `json:"state"`
	LiveSource  string      `json:"live_source,omitempty"`
	Fingerprint string      `json:"fingerprint,omitempty"`
	Alerts      []Alert     `json:"alerts"`
	Notified    int         `json:"notified"`
	Error       string      `json:"error,omitempty"`
	CheckedAt   time.Time   `json:"checked_at"`
}

// Checker watches the published model set and the run ledger, raising alerts
// when training or precompute degrade.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
	last      atomic.Pointer[Health]
}

func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{collector: collector, alerter: alerter, cfg: cfg}
}

// Run checks once immediately, then on every interval until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	log := zap.L().With(zap.String("component", "monitoring.health"))
	log.Info("monitoring: watching model health",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			log.Info("monitoring: health watch stopped")
			return
		}
		c.Check(ctx)

		select {
		case <-ctx.Done():
			log.Info("monitoring: health watch stopped")
			return
		case <-ticker.C:
		}
	}
}

// Check collects a snapshot, evaluates it, notifies the webhook of any
// alerts and records the result as the latest health.
func (c *Checker) Check(ctx context.Context) *Health {
	h := &Health{State: HealthOK, Alerts: []Alert{}, CheckedAt: time.Now().UTC()}
	defer c.last.Store(h)

	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		h.State, h.Error = HealthUnknown, err.Error()
		zap.L().Error("monitoring: model health unknown", zap.Error(err))
		return h
	}
	h.LiveSource, h.Fingerprint = snap.LiveSource, snap.LiveFingerprint

	if alerts := c.alerter.Evaluate(snap); len(alerts) > 0 {
		h.State, h.Alerts = HealthDegraded, alerts
		h.Notified = c.alerter.SendAlerts(ctx, alerts)
	}

	fields := []zap.Field{
		zap.String("state", string(h.State)),
		zap.String("live_source", h.LiveSource),
		zap.String("fingerprint", h.Fingerprint),
		zap.Int("alerts", len(h.Alerts)),
		zap.Int("notified", h.Notified),
	}
	if h.State == HealthOK {
		zap.L().Debug("monitoring: model health", fields...)
	} else {
		zap.L().Warn("monitoring: model health", fields...)
	}
	return h
}

// Last returns the latest health, or nil before the first check.
func (c *Checker) Last() *Health {
	return c.last.Load()
}
