package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/deal-scout/internal/dataset"
	"github.com/sells-group/deal-scout/internal/learn"
	"github.com/sells-group/deal-scout/internal/model"
	"github.com/sells-group/deal-scout/internal/precompute"
	"github.com/sells-group/deal-scout/internal/training"
)

// gatedLoader blocks until release is closed.
type gatedLoader struct {
	release chan struct{}
	next    dataset.Loader
}

func (g gatedLoader) Load(ctx context.Context) (*dataset.Dataset, error) {
	<-g.release
	return g.next.Load(ctx)
}

type failingLoader struct{}

func (failingLoader) Load(context.Context) (*dataset.Dataset, error) {
	return nil, errors.New("disk on fire")
}

func testPipeline() *training.Pipeline {
	opts := training.DefaultOptions()
	opts.Families = []learn.Family{learn.FamilyLogistic}
	opts.RegressorTrees = 5
	opts.RegressorDepth = 5
	return training.NewPipeline(opts, nil, nil)
}

func testOptions() Options {
	return Options{
		BootstrapRows:    60,
		BootstrapSeed:    42,
		PrecomputeEnable: true,
		Precompute:       precompute.Options{MaxRows: 20},
		Workers:          2,
	}
}

func TestScheduler_NothingPublished(t *testing.T) {
	s := New(testOptions(), failingLoader{}, testPipeline(), nil)
	assert.Nil(t, s.Current())
	assert.Nil(t, s.CurrentSet())

	st := s.Status()
	assert.Empty(t, st.Source)
	assert.False(t, st.WorkerActive)

	res := s.Scorer().Score(model.Company{ID: "x"}, model.ModeFast)
	assert.True(t, res.Fallback)
}

func TestScheduler_Bootstrap(t *testing.T) {
	s := New(testOptions(), failingLoader{}, testPipeline(), nil)
	require.NoError(t, s.Bootstrap(context.Background()))

	live := s.Current()
	require.NotNil(t, live)
	assert.Equal(t, SourceBootstrap, live.Source)
	assert.Equal(t, 60, live.Dataset.Len())
	assert.Equal(t, 60, live.Counts.TotalScored)
	assert.Equal(t, 60, live.Results.Len())
	assert.False(t, live.PublishedAt.IsZero())
	assert.Same(t, live.Set, s.CurrentSet())

	res := s.Scorer().Score(live.Dataset.At(0), model.ModeFull)
	assert.False(t, res.Fallback)
}

func TestScheduler_KickoffUpgrades(t *testing.T) {
	gate := make(chan struct{})
	loader := gatedLoader{release: gate, next: dataset.SyntheticLoader{Rows: 120, Seed: 3}}
	s := New(testOptions(), loader, testPipeline(), nil)
	require.NoError(t, s.Bootstrap(context.Background()))
	boot := s.Current()

	require.True(t, s.Kickoff(context.Background()))
	assert.False(t, s.Kickoff(context.Background()), "second kickoff while running is a no-op")
	assert.True(t, s.Status().WorkerActive)
	assert.Same(t, boot, s.Current(), "bootstrap stays live while the worker runs")

	close(gate)
	s.Wait()

	live := s.Current()
	require.NotNil(t, live)
	assert.Equal(t, SourceFull, live.Source)
	assert.Equal(t, 120, live.Dataset.Len())
	assert.Equal(t, 20, live.Counts.TotalScored)
	assert.NotEqual(t, boot.Fingerprint, live.Fingerprint)

	st := s.Status()
	assert.False(t, st.WorkerActive)
	assert.Empty(t, st.LastError)
	assert.False(t, st.LastRunAt.IsZero())

	require.True(t, s.Kickoff(context.Background()), "an idle scheduler accepts a new kickoff")
	s.Wait()
}

func TestScheduler_KickoffIgnoresCancellation(t *testing.T) {
	opts := testOptions()
	opts.PrecomputeEnable = false
	s := New(opts, dataset.SyntheticLoader{Rows: 80, Seed: 5}, testPipeline(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.True(t, s.Kickoff(ctx))
	s.Wait()

	live := s.Current()
	require.NotNil(t, live)
	assert.Equal(t, SourceFull, live.Source)
	assert.Zero(t, live.Counts.TotalScored)
}

func TestScheduler_FailedUpgradeKeepsBootstrap(t *testing.T) {
	s := New(testOptions(), failingLoader{}, testPipeline(), nil)
	require.NoError(t, s.Bootstrap(context.Background()))

	require.True(t, s.Kickoff(context.Background()))
	s.Wait()

	assert.Equal(t, SourceBootstrap, s.Current().Source)
	assert.Contains(t, s.Status().LastError, "disk on fire")
}
