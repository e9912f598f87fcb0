package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distributed-mpe-rl/internal/archive"
	"distributed-mpe-rl/internal/buffer"
	"distributed-mpe-rl/internal/config"
	"distributed-mpe-rl/internal/logging"
)

func newTestServer(t *testing.T, capacity int, withArchive bool) *httptest.Server {
	t.Helper()
	replay, err := buffer.NewReplayBuffer(capacity, "fifo")
	require.NoError(t, err)
	var store *archive.Store
	if withArchive {
		store, err = archive.Open(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
	}
	srv := httptest.NewServer(newMux(replay, store, logging.Discard()))
	t.Cleanup(srv.Close)
	return srv
}

func enqueue(t *testing.T, url string, trajs ...buffer.Trajectory) int {
	t.Helper()
	body, err := json.Marshal(buffer.EnqueueRequest{Trajectories: trajs})
	require.NoError(t, err)
	resp, err := http.Post(url+"/enqueue", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func traj(id string, rewards ...float64) buffer.Trajectory {
	return buffer.Trajectory{
		ID:             id,
		WorkerID:       "w",
		Scenario:       "simple_spread",
		Agents:         []string{"agent_0", "agent_1"},
		EpisodeRewards: rewards,
	}
}

func TestEnqueueDequeue(t *testing.T) {
	srv := newTestServer(t, 2, false)

	assert.Equal(t, http.StatusAccepted, enqueue(t, srv.URL, traj("a", 1, 2)))
	assert.Equal(t, http.StatusTooManyRequests, enqueue(t, srv.URL, traj("b"), traj("c")))

	resp, err := http.Get(srv.URL + "/dequeue?batch_size=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out buffer.DequeueResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Trajectories, 2)
	assert.Equal(t, "a", out.Trajectories[0].ID)
	assert.Equal(t, []string{"agent_0", "agent_1"}, out.Trajectories[0].Agents)

	resp2, err := http.Get(srv.URL + "/dequeue")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp2.StatusCode)
}

func TestConfigEndpoint(t *testing.T) {
	srv := newTestServer(t, 4, false)

	resp, err := http.Post(srv.URL+"/config", "application/json", bytes.NewReader([]byte(`{"policy":"freshness"}`)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/config", "application/json", bytes.NewReader([]byte(`{"policy":"lifo"}`)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, "freshness", stats["policy"])
	assert.Equal(t, float64(4), stats["capacity"])
}

func TestEpisodesEndpoint(t *testing.T) {
	srv := newTestServer(t, 8, true)
	require.Equal(t, http.StatusAccepted, enqueue(t, srv.URL, traj("a", -1, -3), traj("b", 2, 2)))

	resp, err := http.Get(srv.URL + "/episodes?limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	var out struct {
		Episodes []archive.Episode `json:"episodes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Len(t, out.Episodes, 2)

	resp2, err := http.Get(srv.URL + "/episodes?scenario=simple_spread")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var stats archive.ScenarioStats
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&stats))
	assert.Equal(t, 2, stats.Episodes)
	assert.InDelta(t, 2.0, stats.BestReturn, 1e-12)

	noArchive := newTestServer(t, 8, false)
	resp3, err := http.Get(noArchive.URL + "/episodes")
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode)
}

func TestEnqueueAssignsMissingIDs(t *testing.T) {
	srv := newTestServer(t, 8, true)
	anon := []buffer.Trajectory{traj("", 1), traj("", 2), traj("", 3)}
	for i := range anon {
		anon[i].EpisodeID = i + 1
	}
	require.Equal(t, http.StatusAccepted, enqueue(t, srv.URL, anon...))

	resp, err := http.Get(srv.URL + "/episodes?limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	var out struct {
		Episodes []archive.Episode `json:"episodes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Episodes, 3)

	resp2, err := http.Get(srv.URL + "/dequeue?batch_size=3")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var queued buffer.DequeueResponse
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&queued))
	ids := map[string]bool{}
	for _, tr := range queued.Trajectories {
		assert.NotEmpty(t, tr.ID)
		ids[tr.ID] = true
	}
	assert.Len(t, ids, 3)
}

func TestServeReturnsListenErrorAndReleasesArchive(t *testing.T) {
	cfg := config.Default()
	cfg.Buffer.Port = "not-a-port"
	cfg.Buffer.ArchivePath = filepath.Join(t.TempDir(), "episodes.db")

	err := serve(cfg, logging.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-port")

	// The archive written by serve is intact and can be reopened.
	store, err := archive.Open(cfg.Buffer.ArchivePath)
	require.NoError(t, err)
	defer store.Close()
	_, err = store.Recent(context.Background(), 1)
	assert.NoError(t, err)
}
