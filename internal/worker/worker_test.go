package worker

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distributed-mpe-rl/internal/buffer"
	"distributed-mpe-rl/internal/logging"
)

func TestPolicyDiscreteActionsAreOneHot(t *testing.T) {
	obsDims, actDims := []int{4, 6}, []int{5, 3}
	policy := NewPolicy(DefaultWeights(obsDims, actDims), false)
	rng := rand.New(rand.NewSource(1))

	obs := [][]float64{{1, 2, 3, 4}, {0, 0, 1, 1, -1, 2}}
	actions, logProbs, values := policy.Act(obs, rng)
	require.Len(t, actions, 2)
	for i, a := range actions {
		require.Len(t, a, actDims[i])
		var ones int
		for _, v := range a {
			if v == 1 {
				ones++
			}
		}
		assert.Equal(t, 1, ones)
		assert.Less(t, logProbs[i], 0.0)
	}
	assert.Equal(t, []float64{0, 0}, values)
}

func TestPolicyContinuousActionsInRange(t *testing.T) {
	weights := DefaultWeights([]int{2}, []int{5})
	weights.Agents[0].LogStd = 1
	policy := NewPolicy(weights, true)
	rng := rand.New(rand.NewSource(2))

	for i := 0; i < 100; i++ {
		actions, _, _ := policy.Act([][]float64{{50, -50}}, rng)
		for _, v := range actions[0] {
			assert.GreaterOrEqual(t, v, -1.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestWeightsCheck(t *testing.T) {
	weights := DefaultWeights([]int{4, 4}, []int{5, 5})
	assert.NoError(t, weights.Check([]int{4, 4}, []int{5, 5}))
	assert.Error(t, weights.Check([]int{4}, []int{5}))
	assert.Error(t, weights.Check([]int{4, 3}, []int{5, 5}))
	assert.Error(t, weights.Check([]int{4, 4}, []int{5, 20}))
}

func TestSoftmaxSumsToOne(t *testing.T) {
	probs := softmax([]float64{1000, 1000, -1000})
	assert.InDelta(t, 0.5, probs[0], 1e-12)
	assert.InDelta(t, 0.5, probs[1], 1e-12)
	assert.InDelta(t, 0, probs[2], 1e-12)
}

func TestRunnerPostsTrajectories(t *testing.T) {
	batches := make(chan buffer.EnqueueRequest, 4)
	bufferSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/enqueue" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req buffer.EnqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		select {
		case batches <- req:
		default:
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer bufferSrv.Close()

	trainerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer trainerSrv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runner := &Runner{
		WorkerID:      "worker-test",
		Scenario:      "simple_spread",
		BufferURL:     bufferSrv.URL,
		TrainerURL:    trainerSrv.URL,
		BatchEpisodes: 2,
		Seed:          7,
		Backoff:       10 * time.Millisecond,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	var req buffer.EnqueueRequest
	select {
	case req = <-batches:
	case <-ctx.Done():
		t.Fatal("timeout waiting for trajectories")
	}
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	require.Len(t, req.Trajectories, 2)
	traj := req.Trajectories[0]
	assert.Equal(t, "worker-test", traj.WorkerID)
	assert.Equal(t, "simple_spread", traj.Scenario)
	assert.Equal(t, []string{"agent_0", "agent_1", "agent_2"}, traj.Agents)
	assert.NotEmpty(t, traj.ID)
	assert.Len(t, traj.Steps, 25)
	assert.Len(t, traj.EpisodeRewards, 3)
	assert.Equal(t, []bool{true, true, true}, traj.Steps[24].Dones)
	assert.Len(t, traj.Steps[0].Actions[0], 5)
	assert.Equal(t, 2, req.Trajectories[1].EpisodeID)
}

// biasedWeights fix every agent on action index choice regardless of
// observation.
func biasedWeights(agents, obsDim, actDim, choice int) PolicyWeights {
	weights := DefaultWeights(repeat(obsDim, agents), repeat(actDim, agents))
	for a := range weights.Agents {
		for i := range weights.Agents[a].W {
			weights.Agents[a].W[i] = make([]float64, obsDim)
		}
		weights.Agents[a].B[choice] = 100
	}
	return weights
}

func repeat(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func collectingBuffer(t *testing.T, status int) (*httptest.Server, chan buffer.EnqueueRequest) {
	t.Helper()
	batches := make(chan buffer.EnqueueRequest, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req buffer.EnqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		select {
		case batches <- req:
		default:
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, batches
}

func TestRunnerInstallsFetchedPolicyAndRejectsMismatched(t *testing.T) {
	var fetches atomic.Int32
	trainerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/policy" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		weights := biasedWeights(3, 18, 5, 2)
		if fetches.Add(1) > 1 {
			// Sized for two agents; simple_spread has three.
			weights = biasedWeights(2, 18, 5, 4)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(policyResponse{Weights: weights})
	}))
	defer trainerSrv.Close()
	bufferSrv, batches := collectingBuffer(t, http.StatusAccepted)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	runner := &Runner{
		WorkerID:      "worker-test",
		Scenario:      "simple_spread",
		BufferURL:     bufferSrv.URL,
		TrainerURL:    trainerSrv.URL,
		BatchEpisodes: 1,
		Seed:          3,
		Backoff:       10 * time.Millisecond,
		Logger:        logging.Discard(),
	}
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	var received []buffer.EnqueueRequest
	for len(received) < 2 {
		select {
		case req := <-batches:
			received = append(received, req)
		case <-ctx.Done():
			t.Fatal("timeout waiting for trajectories")
		}
	}
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.GreaterOrEqual(t, fetches.Load(), int32(2))

	// The first fetch is installed; the mismatched ones are ignored.
	for _, req := range received {
		require.Len(t, req.Trajectories, 1)
		for _, step := range req.Trajectories[0].Steps {
			for _, action := range step.Actions {
				assert.Equal(t, []float64{0, 0, 1, 0, 0}, action)
			}
		}
	}
}

func TestRunnerBacksOffWhenBufferFull(t *testing.T) {
	bufferSrv, batches := collectingBuffer(t, http.StatusTooManyRequests)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	backoff := 200 * time.Millisecond
	runner := &Runner{
		Scenario:      "simple",
		BufferURL:     bufferSrv.URL,
		BatchEpisodes: 1,
		Seed:          1,
		Backoff:       backoff,
		Logger:        logging.Discard(),
	}
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	var sentAt []int64
	for len(sentAt) < 2 {
		select {
		case req := <-batches:
			sentAt = append(sentAt, req.BatchSentAtMs)
		case <-ctx.Done():
			t.Fatal("timeout waiting for enqueue attempts")
		}
	}
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.GreaterOrEqual(t, sentAt[1]-sentAt[0], backoff.Milliseconds())
}

func TestRunnerRejectsBadConfig(t *testing.T) {
	err := (&Runner{Scenario: "simple"}).Run(context.Background())
	assert.Error(t, err)

	err = (&Runner{Scenario: "simple_xyz", BatchEpisodes: 1}).Run(context.Background())
	assert.Error(t, err)
}
