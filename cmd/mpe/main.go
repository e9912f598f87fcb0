package main

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"distributed-mpe-rl/internal/config"
	"distributed-mpe-rl/internal/logging"
	"distributed-mpe-rl/internal/maenv"
	"distributed-mpe-rl/internal/spaces"
)

func main() {
	config.LoadDotEnv(".env", "../../.env", "../../../.env")
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	rootCmd := &cobra.Command{
		Use:          "mpe",
		Short:        "Inspect and roll out multi-agent particle environments.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		scenariosCmd(),
		inspectCmd(&logLevel),
		rolloutCmd(&logLevel),
	)
	return rootCmd
}

func scenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the available scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "parallel: %s\n", strings.Join(maenv.V2Scenarios, " "))
			fmt.Fprintf(out, "legacy:   %s\n", strings.Join(maenv.Scenarios, " "))
			return nil
		},
	}
}

func inspectCmd(logLevel *string) *cobra.Command {
	var legacy, continuous bool
	cmd := &cobra.Command{
		Use:   "inspect <scenario>",
		Short: "Print the agent roster with observation and action spaces",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(logging.Config{Level: *logLevel, Output: cmd.ErrOrStderr(), Component: "mpe"})
			if err != nil {
				return err
			}

			var (
				names            []string
				obsSpace, actSpc []spaces.Space
				obsShape, actShp []spaces.Shape
			)
			if legacy {
				env, err := maenv.New(args[0], maenv.WithLogger(logger))
				if err != nil {
					return err
				}
				for _, agent := range env.World().Agents {
					names = append(names, agent.Name)
				}
				obsSpace, actSpc = env.ObservationSpace, env.ActionSpace
				obsShape, actShp = env.ObsShapes, env.ActShapes
			} else {
				env, err := maenv.NewV2(args[0], continuous, maenv.WithLogger(logger))
				if err != nil {
					return err
				}
				names = env.Agents()
				obsSpace, actSpc = env.ObservationSpace, env.ActionSpace
				obsShape, actShp = env.ObsShapes, env.ActShapes
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "AGENT\tOBS\tOBS SPACE\tACT\tACT SPACE")
			for i, name := range names {
				fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%v\n", name, obsShape[i], obsSpace[i], actShp[i], actSpc[i])
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&legacy, "legacy", false, "use the list-based legacy environment")
	cmd.Flags().BoolVar(&continuous, "continuous", false, "use continuous actions")
	return cmd
}

func rolloutCmd(logLevel *string) *cobra.Command {
	var (
		episodes   int
		seed       int64
		continuous bool
	)
	cmd := &cobra.Command{
		Use:   "rollout <scenario>",
		Short: "Run episodes with uniformly random actions and print per-agent returns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if episodes <= 0 {
				return fmt.Errorf("--episodes must be > 0, got %d", episodes)
			}
			logger, err := logging.New(logging.Config{Level: *logLevel, Output: cmd.ErrOrStderr(), Component: "mpe"})
			if err != nil {
				return err
			}
			env, err := maenv.NewV2(args[0], continuous, maenv.WithSeed(seed), maenv.WithLogger(logger))
			if err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seed))
			return rollout(cmd.OutOrStdout(), env, rng, episodes, seed)
		},
	}
	cmd.Flags().IntVar(&episodes, "episodes", 1, "number of episodes")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed for the environment and the action sampler")
	cmd.Flags().BoolVar(&continuous, "continuous", false, "use continuous actions")
	return cmd
}

func rollout(out io.Writer, env *maenv.Wrapper, rng *rand.Rand, episodes int, seed int64) error {
	agents := env.Agents()
	samplers := make([]spaces.Space, env.N())
	for i, space := range env.ActionSpace {
		samplers[i] = space
		if env.Continuous() {
			samplers[i] = spaces.NewBox(-1, 1, env.ActShapes[i].Size())
		}
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "EPISODE\tSTEPS\t%s\n", strings.Join(agents, "\t"))
	for ep := 0; ep < episodes; ep++ {
		epSeed := seed + int64(ep)
		env.Reset(&epSeed)

		returns := make([]float64, env.N())
		steps := 0
		for {
			actions := make([][]float64, env.N())
			for i, sampler := range samplers {
				actions[i] = sampler.Sample(rng)
			}
			_, rewards, dones, _, err := env.Step(actions)
			if err != nil {
				return fmt.Errorf("episode %d step %d: %w", ep, steps, err)
			}
			steps++
			for i, r := range rewards {
				returns[i] += r
			}
			if allDone(dones) {
				break
			}
		}

		cells := make([]string, len(returns))
		for i, r := range returns {
			cells[i] = fmt.Sprintf("%.3f", r)
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\n", ep, steps, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func allDone(dones []bool) bool {
	for _, d := range dones {
		if !d {
			return false
		}
	}
	return len(dones) > 0
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
