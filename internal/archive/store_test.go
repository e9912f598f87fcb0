package archive

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distributed-mpe-rl/internal/buffer"
)

func TestRecordAndRecent(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "nested", "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	assert.True(t, filepath.IsAbs(store.DBPath))
	ctx := context.Background()

	for i, rewards := range [][]float64{{-1, -3}, {2, 4}, {0, 0}} {
		traj := buffer.Trajectory{
			ID:             []string{"a", "b", "c"}[i],
			WorkerID:       "w1",
			Scenario:       "simple_push",
			EpisodeID:      i + 1,
			Steps:          make([]buffer.Step, 25),
			EpisodeRewards: rewards,
			CreatedAtMs:    int64(1000 + i),
		}
		require.NoError(t, store.Record(ctx, traj))
	}
	// Duplicate ids are ignored.
	require.NoError(t, store.Record(ctx, buffer.Trajectory{ID: "a", Scenario: "simple_push", CreatedAtMs: 5000}))

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID)
	assert.Equal(t, "b", recent[1].ID)
	assert.Equal(t, []float64{2, 4}, recent[1].Returns)
	assert.Equal(t, 25, recent[1].Steps)
	assert.InDelta(t, 3.0, recent[1].MeanReturn, 1e-12)
	assert.Equal(t, int64(1001), recent[1].CreatedAt.UnixMilli())

	stats, err := store.Stats(ctx, "simple_push")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Episodes)
	assert.InDelta(t, 1.0/3.0, stats.MeanReturn, 1e-12)
	assert.InDelta(t, 3.0, stats.BestReturn, 1e-12)
}

func TestStatsForUnknownScenario(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	stats, err := store.Stats(context.Background(), "simple_tag")
	require.NoError(t, err)
	assert.Zero(t, stats.Episodes)
	assert.Zero(t, stats.MeanReturn)
}

func TestRecordWithoutIDKeepsEveryEpisode(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, store.Record(ctx, buffer.Trajectory{Scenario: "simple", EpisodeID: i, CreatedAtMs: int64(i)}))
	}
	recent, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.NotEqual(t, recent[0].ID, recent[1].ID)
	assert.NotEmpty(t, recent[2].ID)
}
