package parallel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distributed-mpe-rl/internal/particle"
	"distributed-mpe-rl/internal/spaces"
)

func newEnv(t *testing.T, name string, opts Options) *Env {
	t.Helper()
	sc, err := particle.Load(name, particle.Config{})
	require.NoError(t, err)
	env, err := New(sc, opts)
	require.NoError(t, err)
	return env
}

func noop(env *Env) map[string]Action {
	actions := make(map[string]Action)
	for _, name := range env.PossibleAgents() {
		actions[name] = Discrete(0)
	}
	return actions
}

func TestActionSpaces(t *testing.T) {
	env := newEnv(t, "simple_world_comm", Options{Seed: 1})
	assert.Equal(t, spaces.NewDiscrete(20), env.ActionSpace("leadadversary_0"))
	assert.Equal(t, spaces.NewDiscrete(5), env.ActionSpace("agent_0"))

	env = newEnv(t, "simple_world_comm", Options{Seed: 1, ContinuousActions: true})
	assert.Equal(t, spaces.NewBox(0, 1, 9), env.ActionSpace("leadadversary_0"))
	assert.Equal(t, spaces.NewBox(0, 1, 5), env.ActionSpace("adversary_0"))

	env = newEnv(t, "simple_speaker_listener", Options{Seed: 1})
	assert.Equal(t, spaces.NewDiscrete(3), env.ActionSpace("speaker_0"))
	assert.Equal(t, spaces.NewDiscrete(5), env.ActionSpace("listener_0"))
	assert.Len(t, env.ObservationSpaces(), 2)
	assert.Len(t, env.ActionSpaces(), 2)
}

func TestEpisodeEndsAfterMaxCycles(t *testing.T) {
	env := newEnv(t, "simple", Options{Seed: 1, MaxCycles: 3})
	env.Reset(nil)

	for i := 1; i <= 3; i++ {
		_, _, dones, infos, err := env.Step(noop(env))
		require.NoError(t, err)
		assert.Equal(t, i == 3, dones["agent_0"])
		assert.Equal(t, i, infos["agent_0"]["cycle"])
	}

	_, _, _, _, err := env.Step(noop(env))
	assert.ErrorIs(t, err, ErrEpisodeOver)

	env.Reset(nil)
	_, _, _, _, err = env.Step(noop(env))
	assert.NoError(t, err)
}

func TestStepRejectsBadActions(t *testing.T) {
	env := newEnv(t, "simple_push", Options{Seed: 1})
	env.Reset(nil)

	_, _, _, _, err := env.Step(map[string]Action{"adversary_0": Discrete(0)})
	assert.ErrorIs(t, err, ErrMissingAction)

	actions := noop(env)
	actions["ghost"] = Discrete(0)
	_, _, _, _, err = env.Step(actions)
	assert.ErrorIs(t, err, ErrUnknownAgent)

	actions = noop(env)
	actions["agent_0"] = Discrete(5)
	_, _, _, _, err = env.Step(actions)
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestDiscreteActionDecoding(t *testing.T) {
	env := newEnv(t, "simple_world_comm", Options{Seed: 1})
	env.Reset(nil)

	actions := noop(env)
	// movement 2 (+x) and comm symbol 3: 3*5 + 2
	actions["leadadversary_0"] = Discrete(17)
	_, _, _, _, err := env.Step(actions)
	require.NoError(t, err)

	leader := env.World().Agents[0]
	assert.Equal(t, []float64{3, 0}, leader.Action.U)
	assert.Equal(t, []float64{0, 0, 0, 1}, leader.Comm)
}

func TestContinuousActionDecoding(t *testing.T) {
	env := newEnv(t, "simple", Options{Seed: 1, ContinuousActions: true})
	env.Reset(nil)

	_, _, _, _, err := env.Step(map[string]Action{"agent_0": Continuous([]float64{0, 1, 0.5, 0, 0.25})})
	require.NoError(t, err)
	agent := env.World().Agents[0]
	assert.InDeltaSlice(t, []float64{2.5, -1.25}, agent.Action.U, 1e-12)

	_, _, _, _, err = env.Step(map[string]Action{"agent_0": Continuous([]float64{0, 1.5, 0, 0, 0})})
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestLocalRatioMixesRewards(t *testing.T) {
	ratio := 0.5
	env := newEnv(t, "simple_spread", Options{Seed: 4, LocalRatio: &ratio})
	env.Reset(nil)
	_, rewards, _, _, err := env.Step(noop(env))
	require.NoError(t, err)

	w := env.World()
	sc, _ := particle.Load("simple_spread", particle.Config{})
	global := sc.(particle.GlobalRewarder).GlobalReward(w)
	for _, agent := range w.Agents {
		want := global*0.5 + sc.Reward(agent, w)*0.5
		assert.InDelta(t, want, rewards[agent.Name], 1e-12)
	}

	sc, _ = particle.Load("simple", particle.Config{})
	_, err = New(sc, Options{LocalRatio: &ratio})
	assert.ErrorIs(t, err, ErrLocalRatio)
}

func TestResetWithSeedIsReproducible(t *testing.T) {
	env := newEnv(t, "simple_tag", Options{})
	seed := int64(42)
	first := env.Reset(&seed)
	env.Step(noop(env))
	second := env.Reset(&seed)
	assert.Equal(t, first, second)
}
