package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"

	"distributed-mpe-rl/internal/buffer"
	"distributed-mpe-rl/internal/maenv"
)

type Runner struct {
	WorkerID      string
	Scenario      string
	Continuous    bool
	BufferURL     string
	TrainerURL    string
	BatchEpisodes int
	PolicyRefresh time.Duration
	Seed          int64
	Backoff       time.Duration
	Client        *http.Client
	Logger        *slog.Logger
}

func (r *Runner) Run(ctx context.Context) error {
	if r.BatchEpisodes <= 0 {
		return errors.New("batch episodes must be > 0")
	}
	if r.Backoff <= 0 {
		r.Backoff = 500 * time.Millisecond
	}
	if r.WorkerID == "" {
		r.WorkerID = "worker-" + uuid.NewString()
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("worker_id", r.WorkerID, "scenario", r.Scenario)
	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	env, err := maenv.NewV2(r.Scenario, r.Continuous, maenv.WithSeed(r.Seed), maenv.WithLogger(logger))
	if err != nil {
		return err
	}
	obsDims, actDims := dims(env)
	rng := rand.New(rand.NewSource(r.Seed))
	policy := NewPolicy(DefaultWeights(obsDims, actDims), r.Continuous)
	lastPolicyPull := time.Time{}
	var episodeID int

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if r.TrainerURL != "" && (r.PolicyRefresh == 0 || time.Since(lastPolicyPull) >= r.PolicyRefresh) {
			weights, err := fetchPolicy(ctx, client, r.TrainerURL)
			if err == nil {
				err = weights.Check(obsDims, actDims)
			}
			if err != nil {
				logger.Warn("policy fetch failed", "error", err)
			} else {
				policy = NewPolicy(weights, r.Continuous)
				lastPolicyPull = time.Now()
			}
		}

		trajectories := make([]buffer.Trajectory, 0, r.BatchEpisodes)
		for i := 0; i < r.BatchEpisodes; i++ {
			episodeID++
			traj, err := r.runEpisode(env, policy, rng, episodeID)
			if err != nil {
				return fmt.Errorf("episode %d: %w", episodeID, err)
			}
			trajectories = append(trajectories, traj)
		}

		req := buffer.EnqueueRequest{
			BatchSentAtMs: time.Now().UnixMilli(),
			Trajectories:  trajectories,
		}

		status, err := postJSON(ctx, client, r.BufferURL+"/enqueue", req)
		if err != nil {
			logger.Warn("enqueue failed", "error", err)
			sleep(ctx, r.Backoff)
			continue
		}
		if status == http.StatusTooManyRequests {
			logger.Debug("buffer full, backing off", "backoff", r.Backoff)
			sleep(ctx, r.Backoff)
		}
	}
}

// runEpisode plays one episode to completion.
func (r *Runner) runEpisode(env *maenv.Wrapper, policy *Policy, rng *rand.Rand, episodeID int) (buffer.Trajectory, error) {
	obs := env.Reset(nil)
	returns := make([]float64, env.N())
	var steps []buffer.Step

	for {
		actions, logProbs, _ := policy.Act(obs, rng)
		nextObs, rewards, dones, _, err := env.Step(actions)
		if err != nil {
			return buffer.Trajectory{}, err
		}
		steps = append(steps, buffer.Step{
			Obs:      obs,
			Actions:  actions,
			Rewards:  rewards,
			Dones:    dones,
			LogProbs: logProbs,
		})
		for i, rew := range rewards {
			returns[i] += rew
		}
		obs = nextObs
		if allDone(dones) {
			break
		}
	}

	return buffer.Trajectory{
		ID:             uuid.NewString(),
		WorkerID:       r.WorkerID,
		Scenario:       r.Scenario,
		Continuous:     r.Continuous,
		Agents:         env.Agents(),
		EpisodeID:      episodeID,
		Steps:          steps,
		EpisodeRewards: returns,
		CreatedAtMs:    time.Now().UnixMilli(),
	}, nil
}

func dims(env *maenv.Wrapper) ([]int, []int) {
	obsDims := make([]int, env.N())
	actDims := make([]int, env.N())
	for i := range obsDims {
		obsDims[i] = env.ObsShapes[i].Size()
		actDims[i] = env.ActShapes[i].Size()
	}
	return obsDims, actDims
}

func allDone(dones []bool) bool {
	for _, d := range dones {
		if !d {
			return false
		}
	}
	return len(dones) > 0
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

type policyResponse struct {
	Weights PolicyWeights `json:"weights"`
}

func fetchPolicy(ctx context.Context, client *http.Client, trainerURL string) (PolicyWeights, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trainerURL+"/policy", nil)
	if err != nil {
		return PolicyWeights{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return PolicyWeights{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return PolicyWeights{}, errors.New("trainer returned non-200")
	}
	var payload policyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return PolicyWeights{}, err
	}
	return payload.Weights, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
