// Package config loads service configuration from an optional YAML file,
// a .env file and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Worker  WorkerConfig `yaml:"worker"`
	Buffer  BufferConfig `yaml:"buffer"`
	Logging LogConfig    `yaml:"logging"`
}

type WorkerConfig struct {
	ID            string        `yaml:"id"`
	Scenario      string        `yaml:"scenario"`
	Continuous    bool          `yaml:"continuous"`
	BufferURL     string        `yaml:"buffer_url"`
	TrainerURL    string        `yaml:"trainer_url"`
	BatchEpisodes int           `yaml:"batch_episodes"`
	PolicyRefresh time.Duration `yaml:"policy_refresh"`
	Seed          int64         `yaml:"seed"`
	Backoff       time.Duration `yaml:"backoff"`
}

type BufferConfig struct {
	Capacity    int    `yaml:"capacity"`
	Policy      string `yaml:"policy"`
	Port        string `yaml:"port"`
	ArchivePath string `yaml:"archive_path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		Worker: WorkerConfig{
			Scenario:      "simple_spread",
			BufferURL:     "http://localhost:9001",
			TrainerURL:    "http://localhost:9002",
			BatchEpisodes: 8,
			PolicyRefresh: 5 * time.Second,
			Backoff:       500 * time.Millisecond,
		},
		Buffer: BufferConfig{
			Capacity: 2048,
			Policy:   "fifo",
			Port:     "9001",
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadDotEnv loads the first .env file found among paths. Missing files are
// not an error.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env", "../../.env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment
// overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Worker.ID = getenv("WORKER_ID", c.Worker.ID)
	c.Worker.Scenario = getenv("SCENARIO", c.Worker.Scenario)
	c.Worker.Continuous = getenvBool("CONTINUOUS_ACTIONS", c.Worker.Continuous)
	c.Worker.BufferURL = getenv("BUFFER_URL", c.Worker.BufferURL)
	c.Worker.TrainerURL = getenv("TRAINER_URL", c.Worker.TrainerURL)
	c.Worker.BatchEpisodes = getenvInt("BATCH_EPISODES", c.Worker.BatchEpisodes)
	c.Worker.PolicyRefresh = getenvDuration("POLICY_REFRESH_SEC", time.Second, c.Worker.PolicyRefresh)
	c.Worker.Seed = getenvInt64("SEED", c.Worker.Seed)
	c.Worker.Backoff = getenvDuration("BACKOFF_MS", time.Millisecond, c.Worker.Backoff)

	c.Buffer.Capacity = getenvInt("BUFFER_CAPACITY", c.Buffer.Capacity)
	c.Buffer.Policy = getenv("BUFFER_POLICY", c.Buffer.Policy)
	c.Buffer.Port = getenv("PORT", c.Buffer.Port)
	c.Buffer.ArchivePath = getenv("ARCHIVE_PATH", c.Buffer.ArchivePath)

	c.Logging.Level = getenv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getenv("LOG_FORMAT", c.Logging.Format)
}

func (c Config) Validate() error {
	var errs []error
	if c.Worker.Scenario == "" {
		errs = append(errs, errors.New("worker.scenario is required"))
	}
	if c.Worker.BatchEpisodes <= 0 {
		errs = append(errs, errors.New("worker.batch_episodes must be > 0"))
	}
	if c.Buffer.Capacity <= 0 {
		errs = append(errs, errors.New("buffer.capacity must be > 0"))
	}
	if c.Buffer.Port == "" {
		errs = append(errs, errors.New("buffer.port is required"))
	}
	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// getenvDuration reads an integer count of unit. The fallback is returned
// untouched when the variable is unset or malformed.
func getenvDuration(key string, unit, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return time.Duration(parsed) * unit
}

func getenvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
