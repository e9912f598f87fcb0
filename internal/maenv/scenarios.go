package maenv

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"distributed-mpe-rl/internal/particle"
)

var ErrInvalidScenario = errors.New("invalid scenario")

const maxCycles = 25

// V2Scenarios are the scenarios available through NewV2.
var V2Scenarios = []string{
	"simple",
	"simple_adversary",
	"simple_crypto",
	"simple_push",
	"simple_speaker_listener",
	"simple_spread",
	"simple_tag",
	"simple_world_comm",
}

// Scenarios are the scenarios available through New.
var Scenarios = []string{
	"simple",
	"simple_adversary",
	"simple_crypto",
	"simple_push",
	"simple_reference",
	"simple_speaker_listener",
	"simple_spread",
	"simple_tag",
	"simple_world_comm",
}

type v2Params struct {
	config     particle.Config
	localRatio *float64
}

func ratio(r float64) *float64 {
	return &r
}

var v2Table = map[string]v2Params{
	"simple":                  {},
	"simple_adversary":        {config: particle.Config{N: 2}},
	"simple_crypto":           {},
	"simple_push":             {},
	"simple_speaker_listener": {},
	"simple_spread":           {config: particle.Config{N: 3}, localRatio: ratio(0.5)},
	"simple_tag":              {config: particle.Config{NumGood: 1, NumAdversaries: 3, NumObstacles: 2}},
	"simple_world_comm": {config: particle.Config{
		NumGood:        2,
		NumAdversaries: 4,
		NumObstacles:   1,
		NumFood:        2,
		NumForests:     2,
	}},
}

func validate(name string, valid []string) error {
	if slices.Contains(valid, name) {
		return nil
	}
	return fmt.Errorf("%w: env %s not found (valid envs include [%s])", ErrInvalidScenario, name, strings.Join(valid, ", "))
}
