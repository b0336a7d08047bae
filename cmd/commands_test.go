package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/deal-scout/internal/config"
	"github.com/sells-group/deal-scout/internal/dataset"
	"github.com/sells-group/deal-scout/internal/export"
	"github.com/sells-group/deal-scout/internal/learn"
	"github.com/sells-group/deal-scout/internal/model"
	"github.com/sells-group/deal-scout/internal/precompute"
	"github.com/sells-group/deal-scout/internal/training"
)

// useTestConfig points the package config at a small synthetic dataset and a
// temp cache, with the ledger disabled.
func useTestConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })

	c, err := config.Load()
	require.NoError(t, err)
	c.Store.Driver = "none"
	c.Cache.Dir = filepath.Join(dir, "cache")
	c.Data.Path = filepath.Join(dir, "missing.csv")
	c.Data.SyntheticRows = 80
	c.Data.SyntheticSeed = 5
	c.Training.Families = []learn.Family{learn.FamilyLogistic}
	c.Training.RegressorTrees = 5
	c.Training.RegressorDepth = 4
	c.Precompute.Workers = 2

	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func TestNewLoader_FallsBackToSynthetic(t *testing.T) {
	useTestConfig(t)

	ds, err := newLoader().Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 80, ds.Len())
}

func TestNewLoader_ReadsConfiguredFile(t *testing.T) {
	useTestConfig(t)
	path := filepath.Join(t.TempDir(), "data", "companies.csv")
	require.NoError(t, writeSynthetic(path, 25, 9))
	cfg.Data.Path = path

	ds, err := newLoader().Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, ds.Len())
	assert.Equal(t, dataset.GenerateSynthetic(25, 9).At(0).ID, ds.At(0).ID)
}

func TestInitTrained_ScoresAndPrecomputes(t *testing.T) {
	useTestConfig(t)
	ctx := context.Background()

	env, err := initTrained(ctx)
	require.NoError(t, err)
	defer env.Close()

	assert.Nil(t, env.Ledger)
	require.NotNil(t, env.Set)
	assert.Equal(t, learn.FamilyLogistic, env.Report.Selected)

	counts, err := env.Precomputer(ctx).Run(ctx, env.Dataset, precomputeOptions())
	require.NoError(t, err)
	assert.Equal(t, 80, counts.TotalScored)
	assert.Equal(t, 80, counts.Invest+counts.Monitor+counts.Avoid)

	// A second environment reuses the cached set and the persisted results.
	again, err := initTrained(ctx)
	require.NoError(t, err)
	defer again.Close()
	assert.True(t, again.Report.CacheHit)

	pc := precompute.New(again.Scorer(), nil, again.Models, nil, 1)
	assert.Equal(t, 80, pc.Load(ctx, again.Dataset, again.Report.Fingerprint))

	rows := export.Rows(again.Dataset)
	for _, r := range rows {
		assert.NotEmpty(t, r.Tier)
	}
}

func TestScoreTargets(t *testing.T) {
	ds := dataset.GenerateSynthetic(5, 1)
	first := ds.At(0)

	got, err := scoreTargets(ds.Get, []string{first.ID}, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, first.Name, got[0].Name)

	_, err = scoreTargets(ds.Get, []string{first.ID, "nope"}, "")
	assert.ErrorContains(t, err, "nope")

	got, err = scoreTargets(ds.Get, nil, `{"company_name":"Acme","industry":"Payments","location":"Berlin"}`)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Fintech", got[0].IndustryGroup)
	assert.Equal(t, "Europe", got[0].Region)

	_, err = scoreTargets(ds.Get, nil, `{"team_size":3}`)
	assert.Error(t, err)

	_, err = scoreTargets(ds.Get, nil, `{not json`)
	assert.Error(t, err)
}

func TestWriteSynthetic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "startup_data.csv")
	require.NoError(t, writeSynthetic(path, 12, 3))

	ds, err := dataset.CSVLoader{Path: path}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, ds.Len())
}

func TestFormatCounts(t *testing.T) {
	var buf bytes.Buffer
	formatCounts(&buf, "abc", model.TierCounts{TotalScored: 4, Invest: 1, Monitor: 1, Avoid: 2})

	output := buf.String()
	assert.Contains(t, output, "Fingerprint:")
	assert.Contains(t, output, "abc")
	assert.Contains(t, output, "25.0%")
	assert.Contains(t, output, "50.0%")

	buf.Reset()
	formatCounts(&buf, "abc", model.TierCounts{})
	assert.Contains(t, buf.String(), "-")
}

func TestFormatReport(t *testing.T) {
	rep := &training.Report{
		Fingerprint: "fp1",
		Rows:        100,
		TrainRows:   80,
		TestRows:    20,
		Selected:    learn.FamilyLogistic,
		Threshold:   0.42,
		HeldOut:     learn.BinaryReport{Accuracy: 0.8},
		Duration:    1500 * time.Millisecond,
		Candidates: []training.CandidateReport{
			{Family: learn.FamilyLogistic, CVScore: 0.7, HeldOut: learn.BinaryReport{Accuracy: 0.8}},
			{Family: learn.FamilyRandomForest, Skipped: "cancelled"},
		},
	}

	var buf bytes.Buffer
	formatReport(&buf, rep)

	output := buf.String()
	assert.Contains(t, output, "fp1")
	assert.Contains(t, output, "100 (train 80, test 20)")
	assert.Contains(t, output, "0.420")
	assert.Contains(t, output, "1.5s")
	assert.Contains(t, output, "selected")
	assert.Contains(t, output, "cancelled")
}

func TestListen_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listen(ctx, "127.0.0.1:0", nil) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listen did not return after cancel")
	}
}
