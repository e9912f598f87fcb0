package buffer

// Step is one tick of a multi-agent episode. Every slice is indexed by the
// agent order in Trajectory.Agents.
type Step struct {
	Obs      [][]float64 `json:"obs"`
	Actions  [][]float64 `json:"actions"`
	Rewards  []float64   `json:"rewards"`
	Dones    []bool      `json:"dones"`
	LogProbs []float64   `json:"log_probs"`
}

type Trajectory struct {
	ID             string    `json:"id"`
	WorkerID       string    `json:"worker_id"`
	Scenario       string    `json:"scenario"`
	Continuous     bool      `json:"continuous"`
	Agents         []string  `json:"agents"`
	EpisodeID      int       `json:"episode_id"`
	Steps          []Step    `json:"steps"`
	EpisodeRewards []float64 `json:"episode_rewards"`
	CreatedAtMs    int64     `json:"created_at_ms"`
}

// MeanReward averages the episode return over agents.
func (t Trajectory) MeanReward() float64 {
	if len(t.EpisodeRewards) == 0 {
		return 0
	}
	var total float64
	for _, r := range t.EpisodeRewards {
		total += r
	}
	return total / float64(len(t.EpisodeRewards))
}

type EnqueueRequest struct {
	BatchSentAtMs int64        `json:"batch_sent_at_ms"`
	Trajectories  []Trajectory `json:"trajectories"`
}

type DequeueResponse struct {
	Trajectories []Trajectory `json:"trajectories"`
}
