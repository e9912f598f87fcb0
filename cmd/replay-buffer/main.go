package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"distributed-mpe-rl/internal/archive"
	"distributed-mpe-rl/internal/buffer"
	"distributed-mpe-rl/internal/config"
	"distributed-mpe-rl/internal/logging"
)

const defaultEpisodeLimit = 20

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	config.LoadDotEnv()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Component: "replay-buffer",
	})
	if err != nil {
		log.Fatal(err)
	}

	if err := serve(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// serve runs the buffer service until the listener fails. The archive, if
// configured, is closed before serve returns.
func serve(cfg config.Config, logger *slog.Logger) error {
	replay, err := buffer.NewReplayBuffer(cfg.Buffer.Capacity, cfg.Buffer.Policy)
	if err != nil {
		return err
	}

	var store *archive.Store
	if cfg.Buffer.ArchivePath != "" {
		store, err = archive.Open(cfg.Buffer.ArchivePath)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				logger.Warn("archive close failed", "error", closeErr)
			}
		}()
		logger.Info("archive open", "path", store.DBPath)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Buffer.Port,
		Handler:           newMux(replay, store, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("replay buffer listening",
		"addr", server.Addr,
		"capacity", cfg.Buffer.Capacity,
		"policy", cfg.Buffer.Policy,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen %s: %w", server.Addr, err)
	}
	return nil
}

// newMux wires the buffer endpoints. store may be nil, in which case
// episodes are not archived and /episodes is unavailable.
func newMux(replay *buffer.ReplayBuffer, store *archive.Store, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, map[string]any{
			"queue_length": replay.Size(),
			"capacity":     replay.Capacity(),
			"policy":       replay.Policy(),
		})
	})
	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, map[string]any{
				"policy":   replay.Policy(),
				"capacity": replay.Capacity(),
			})
		case http.MethodPost:
			var payload map[string]any
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if value, ok := payload["policy"]; ok {
				policyValue, ok := value.(string)
				if !ok {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				if err := replay.SetPolicy(policyValue); err != nil {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				logger.Info("policy changed", "policy", policyValue)
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/enqueue", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req buffer.EnqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		now := time.Now()

		var dropped int
		for _, traj := range req.Trajectories {
			if traj.ID == "" {
				traj.ID = uuid.NewString()
			}
			item := buffer.Item{Trajectory: traj, EnqueuedAt: now}
			if err := replay.Enqueue(item); err != nil {
				dropped++
				continue
			}
			if store != nil {
				if err := store.Record(r.Context(), traj); err != nil {
					logger.Warn("archive failed", "trajectory", traj.ID, "error", err)
				}
			}
		}

		if dropped > 0 {
			logger.Debug("trajectories dropped", "dropped", dropped, "queue_length", replay.Size())
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/dequeue", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		batchSize := queryInt(r, "batch_size", 1)

		items := replay.DequeueBatch(batchSize)
		if len(items) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		response := buffer.DequeueResponse{Trajectories: make([]buffer.Trajectory, 0, len(items))}
		for _, item := range items {
			response.Trajectories = append(response.Trajectories, item.Trajectory)
		}
		writeJSON(w, response)
	})
	mux.HandleFunc("/episodes", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if store == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if scenario := r.URL.Query().Get("scenario"); scenario != "" {
			stats, err := store.Stats(r.Context(), scenario)
			if err != nil {
				logger.Error("episode stats failed", "error", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			writeJSON(w, stats)
			return
		}
		episodes, err := store.Recent(r.Context(), queryInt(r, "limit", defaultEpisodeLimit))
		if err != nil {
			logger.Error("episode query failed", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"episodes": episodes})
	})
	return mux
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}
