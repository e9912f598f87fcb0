package multiagent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distributed-mpe-rl/internal/particle"
	"distributed-mpe-rl/internal/spaces"
)

func newEnv(t *testing.T, name string) *Env {
	t.Helper()
	sc, err := particle.Load(name, particle.Config{})
	require.NoError(t, err)
	env, err := New(sc, 7)
	require.NoError(t, err)
	return env
}

func TestActionSpaces(t *testing.T) {
	env := newEnv(t, "simple_reference")
	require.Equal(t, 2, env.N())
	assert.Equal(t, spaces.NewMultiDiscrete([2]int{0, 4}, [2]int{0, 9}), env.ActionSpace[0])

	env = newEnv(t, "simple_speaker_listener")
	assert.Equal(t, spaces.NewDiscrete(3), env.ActionSpace[0])
	assert.Equal(t, spaces.NewDiscrete(5), env.ActionSpace[1])
	assert.True(t, env.SharedReward)

	env = newEnv(t, "simple_tag")
	assert.False(t, env.SharedReward)
}

func TestStepSplitsMultiDiscreteAction(t *testing.T) {
	env := newEnv(t, "simple_reference")
	env.Reset()

	move := []float64{0, 0, 0, 1, 0}
	say := make([]float64, 10)
	say[4] = 1
	actions := [][]float64{
		append(append([]float64(nil), move...), say...),
		make([]float64, 15),
	}
	obs, rewards, dones, infos, err := env.Step(actions)
	require.NoError(t, err)
	require.Len(t, obs, 2)

	first := env.World().Agents[0]
	assert.Equal(t, []float64{0, 5}, first.Action.U)
	assert.Equal(t, say, first.Comm)

	// Collaborative world: both agents receive the team total.
	assert.Equal(t, rewards[0], rewards[1])
	assert.Equal(t, []bool{false, false}, dones)
	assert.Equal(t, []Info{{}, {}}, infos)

	// The second agent hears the first agent's utterance in the last ten
	// components of its observation.
	assert.Equal(t, say, obs[1][len(obs[1])-10:])
}

func TestStepValidatesActions(t *testing.T) {
	env := newEnv(t, "simple_spread")
	env.Reset()

	_, _, _, _, err := env.Step([][]float64{make([]float64, 5)})
	assert.ErrorIs(t, err, ErrActionCount)

	_, _, _, _, err = env.Step([][]float64{make([]float64, 5), make([]float64, 5), make([]float64, 4)})
	assert.ErrorIs(t, err, ErrActionShape)
}

func TestResetObservations(t *testing.T) {
	env := newEnv(t, "simple_world_comm")
	obs := env.Reset()
	require.Len(t, obs, 6)
	for i, o := range obs {
		shape, err := spaces.ShapeOf(env.ObservationSpace[i])
		require.NoError(t, err)
		assert.Len(t, o, shape.Size())
	}
}
