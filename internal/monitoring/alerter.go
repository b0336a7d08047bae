package monitoring

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-scout/internal/config"
	"github.com/sells-group/deal-scout/internal/scheduler"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailureRate AlertType = "run_failure_rate"
	AlertUpgradeFailed  AlertType = "upgrade_failed"
	AlertStaleModel     AlertType = "stale_model"
)

// minFinishedRuns is the sample size below which the failure rate is ignored.
const minFinishedRuns = 3

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	finished := snap.RunsComplete + snap.RunsFailed
	if finished >= minFinishedRuns && snap.RunFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertRunFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Run failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.RunFailRate*100, a.cfg.FailureRateThreshold*100,
				snap.RunsFailed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.RunFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.RunsFailed,
				"train_failed": snap.TrainFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if snap.WorkerError != "" {
		severity := "medium"
		if snap.LiveSource == scheduler.SourceBootstrap {
			severity = "high"
		}
		alerts = append(alerts, Alert{
			Type:     AlertUpgradeFailed,
			Severity: severity,
			Message: fmt.Sprintf(
				"Background training failed; serving the %s set: %s",
				snap.LiveSource, snap.WorkerError,
			),
			Details: map[string]any{
				"live_source":      snap.LiveSource,
				"live_fingerprint": snap.LiveFingerprint,
			},
			Timestamp: now,
		})
	}

	if a.cfg.StaleModelHours > 0 && snap.LedgerEnabled {
		maxAge := time.Duration(a.cfg.StaleModelHours) * time.Hour
		if snap.LastTrainAt.IsZero() || snap.CollectedAt.Sub(snap.LastTrainAt) > maxAge {
			alerts = append(alerts, Alert{
				Type:     AlertStaleModel,
				Severity: "medium",
				Message:  fmt.Sprintf("No training run completed in the last %dh", a.cfg.StaleModelHours),
				Details: map[string]any{
					"last_train_at": snap.LastTrainAt,
					"max_age_hours": a.cfg.StaleModelHours,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
