package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"distributed-mpe-rl/internal/config"
	"distributed-mpe-rl/internal/logging"
	"distributed-mpe-rl/internal/worker"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	flag.Parse()

	config.LoadDotEnv()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Component: "rollout-worker",
	})
	if err != nil {
		log.Fatal(err)
	}

	seed := cfg.Worker.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	runner := &worker.Runner{
		WorkerID:      cfg.Worker.ID,
		Scenario:      cfg.Worker.Scenario,
		Continuous:    cfg.Worker.Continuous,
		BufferURL:     cfg.Worker.BufferURL,
		TrainerURL:    cfg.Worker.TrainerURL,
		BatchEpisodes: cfg.Worker.BatchEpisodes,
		PolicyRefresh: cfg.Worker.PolicyRefresh,
		Seed:          seed,
		Backoff:       cfg.Worker.Backoff,
		Logger:        logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("rollout worker starting",
		"scenario", cfg.Worker.Scenario,
		"continuous", cfg.Worker.Continuous,
		"buffer_url", cfg.Worker.BufferURL,
		"seed", seed,
	)
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("rollout worker stopped", "error", err)
		os.Exit(1)
	}
}
