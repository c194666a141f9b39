package baseline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractal-lba/nlueval/internal/eval"
)

type failingStore struct{ Store }

func (failingStore) Get(context.Context, string) (*Record, error) {
	return nil, errors.New("connection refused")
}

func TestSourceByBuildIDAndLabel(t *testing.T) {
	store, err := NewMemoryStore("")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, record("build-1", "speech", 1), 0))

	snap, err := (&Source{Store: store, BuildID: "build-1"}).Baseline(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "build-1", snap.ID)

	snap, err = (&Source{Store: store, Label: "speech", Timeout: time.Second}).Baseline(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "build-1", snap.ID)

	snap, err = (&Source{Store: store, BuildID: "build-404"}).Baseline(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSourceWrapsStoreErrors(t *testing.T) {
	_, err := (&Source{Store: failingStore{}, BuildID: "x"}).Baseline(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestSaveRoundTripsThroughComparator(t *testing.T) {
	store, err := NewMemoryStore("")
	require.NoError(t, err)
	ctx := context.Background()

	stats := eval.NewStatistics()
	for i := 0; i < 9; i++ {
		stats.Accumulate(eval.ScopeOverall, eval.TruePositive)
	}
	stats.Accumulate(eval.ScopeOverall, eval.FalsePositive)

	result := &eval.RunResult{RunID: "build-9", TestLabel: "text", Statistics: stats.Results()}
	rec, err := Save(ctx, store, result, 0)
	require.NoError(t, err)
	assert.Equal(t, "build-9", rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	snap, err := (&Source{Store: store, Label: "text"}).Baseline(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)

	report := eval.CompareBaseline(result.Statistics, snap.Statistics, 0.05, nil)
	assert.True(t, report.BaselineAvailable)
	assert.Empty(t, report.Findings)
}
