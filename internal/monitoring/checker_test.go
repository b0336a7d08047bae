package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/deal-scout/internal/config"
	"github.com/sells-group/deal-scout/internal/model"
	"github.com/sells-group/deal-scout/internal/scheduler"
)

func TestChecker_RunChecksImmediatelyAndStops(t *testing.T) {
	cfg := config.MonitoringConfig{
		CheckIntervalSecs:    3600,
		LookbackWindowHours:  24,
		FailureRateThreshold: 0.10,
	}
	live := fakeStatus{scheduler.Status{Source: scheduler.SourceFull, Fingerprint: "fp1"}}
	checker := NewChecker(NewCollector(newLedger(t), live), NewAlerter(cfg), cfg)
	assert.Nil(t, checker.Last())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return checker.Last() != nil }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}

	h := checker.Last()
	assert.Equal(t, HealthOK, h.State)
	assert.Equal(t, "full", h.LiveSource)
	assert.Equal(t, "fp1", h.Fingerprint)
	assert.Empty(t, h.Alerts)
}

func TestChecker_RunCancelledBeforeStart(t *testing.T) {
	checker := NewChecker(NewCollector(nil, nil), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
	assert.Nil(t, checker.Last())
}

func TestChecker_CheckDegraded(t *testing.T) {
	st := newLedger(t)
	seedRuns(t, st, model.RunKindTrain, 1, 3, 0)

	cfg := config.MonitoringConfig{LookbackWindowHours: 24, FailureRateThreshold: 0.25}
	live := fakeStatus{scheduler.Status{Source: scheduler.SourceBootstrap, LastError: "train: no candidate"}}
	checker := NewChecker(NewCollector(st, live), NewAlerter(cfg), cfg)

	h := checker.Check(context.Background())
	assert.Equal(t, HealthDegraded, h.State)
	require.Len(t, h.Alerts, 2)
	assert.Equal(t, AlertRunFailureRate, h.Alerts[0].Type)
	assert.Equal(t, AlertUpgradeFailed, h.Alerts[1].Type)
	assert.Zero(t, h.Notified, "no webhook configured")
	assert.Same(t, h, checker.Last())
}

func TestChecker_CheckUnknownWhenCollectFails(t *testing.T) {
	st := newLedger(t)
	require.NoError(t, st.Close())

	cfg := config.MonitoringConfig{LookbackWindowHours: 24}
	h := NewChecker(NewCollector(st, nil), NewAlerter(cfg), cfg).Check(context.Background())
	assert.Equal(t, HealthUnknown, h.State)
	assert.NotEmpty(t, h.Error)
}
