// Package archive keeps a durable SQLite record of every episode that passed
// through the replay buffer.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"distributed-mpe-rl/internal/buffer"
)

type Store struct {
	DBPath string
	db     *sql.DB
}

// Episode summarises one trajectory.
type Episode struct {
	ID         string    `json:"id"`
	WorkerID   string    `json:"worker_id"`
	Scenario   string    `json:"scenario"`
	EpisodeID  int       `json:"episode_id"`
	Steps      int       `json:"steps"`
	Returns    []float64 `json:"returns"`
	MeanReturn float64   `json:"mean_return"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScenarioStats aggregates episodes of one scenario.
type ScenarioStats struct {
	Scenario   string  `json:"scenario"`
	Episodes   int     `json:"episodes"`
	MeanReturn float64 `json:"mean_return"`
	BestReturn float64 `json:"best_return"`
}

// Open opens or creates the archive database. ":memory:" keeps it in memory.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve archive path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return nil, fmt.Errorf("ensure archive dir: %w", err)
		}
		dsn = absPath
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	store := &Store{DBPath: dsn, db: db}
	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS episodes (
	id TEXT PRIMARY KEY,
	worker_id TEXT NOT NULL,
	scenario TEXT NOT NULL,
	episode_id INTEGER NOT NULL,
	steps INTEGER NOT NULL,
	returns_json TEXT NOT NULL,
	mean_return REAL NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_episodes_scenario ON episodes(scenario);
CREATE INDEX IF NOT EXISTS idx_episodes_created_at ON episodes(created_at);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("ensure archive schema: %w", err)
	}
	return nil
}

// Record stores a summary of the trajectory. Recording the same trajectory
// twice keeps the first copy. A trajectory without an ID is stored under a
// fresh one.
func (s *Store) Record(ctx context.Context, traj buffer.Trajectory) error {
	if traj.ID == "" {
		traj.ID = uuid.NewString()
	}
	returns, err := json.Marshal(traj.EpisodeRewards)
	if err != nil {
		return fmt.Errorf("encode returns: %w", err)
	}
	createdAt := traj.CreatedAtMs
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}
	_, err = s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO episodes (id, worker_id, scenario, episode_id, steps, returns_json, mean_return, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		traj.ID, traj.WorkerID, traj.Scenario, traj.EpisodeID, len(traj.Steps), string(returns), traj.MeanReward(), createdAt)
	if err != nil {
		return fmt.Errorf("record episode %s: %w", traj.ID, err)
	}
	return nil
}

// Recent returns up to limit episodes, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Episode, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, worker_id, scenario, episode_id, steps, returns_json, mean_return, created_at
FROM episodes
ORDER BY created_at DESC, rowid DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		var (
			ep        Episode
			returns   string
			createdAt int64
		)
		if err := rows.Scan(&ep.ID, &ep.WorkerID, &ep.Scenario, &ep.EpisodeID, &ep.Steps, &returns, &ep.MeanReturn, &createdAt); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		if err := json.Unmarshal([]byte(returns), &ep.Returns); err != nil {
			return nil, fmt.Errorf("decode returns of %s: %w", ep.ID, err)
		}
		ep.CreatedAt = time.UnixMilli(createdAt)
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

// Stats aggregates archived episodes of a scenario.
func (s *Store) Stats(ctx context.Context, scenario string) (ScenarioStats, error) {
	stats := ScenarioStats{Scenario: scenario}
	var mean, best sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*), AVG(mean_return), MAX(mean_return)
FROM episodes
WHERE scenario = ?`, scenario).Scan(&stats.Episodes, &mean, &best)
	if err != nil {
		return stats, fmt.Errorf("episode stats: %w", err)
	}
	stats.MeanReturn = mean.Float64
	stats.BestReturn = best.Float64
	return stats, nil
}
