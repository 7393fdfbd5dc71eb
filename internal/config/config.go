package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/promptsearch/internal/optimization"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Storage struct {
		Driver string `env:"STORAGE_DRIVER" envDefault:"memory"`
		DSN    string `env:"STORAGE_DSN"`
	}
	Evaluator struct {
		// URL of the remote scoring service. Empty selects the static
		// weighted evaluator carried in each request.
		URL     string        `env:"EVALUATOR_URL"`
		Timeout time.Duration `env:"EVALUATOR_TIMEOUT" envDefault:"60s"`
	}
	Optimization struct {
		WorkerCount              int           `env:"OPT_WORKER_COUNT" envDefault:"4"`
		MaxRetries               int           `env:"OPT_MAX_RETRIES" envDefault:"4"`
		InitialBackoff           time.Duration `env:"OPT_INITIAL_BACKOFF" envDefault:"2s"`
		MaxBackoff               time.Duration `env:"OPT_MAX_BACKOFF" envDefault:"30s"`
		MaxDuration              time.Duration `env:"OPT_MAX_DURATION" envDefault:"0s"`
		RandomSeed               int64         `env:"OPT_RANDOM_SEED" envDefault:"0"`
		MaxAcquisitionCandidates int           `env:"OPT_MAX_ACQUISITION_CANDIDATES" envDefault:"4096"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Logging.Level == "" {
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		} else {
			cfg.Logging.Level = "info"
		}
	}

	// Set default storage DSN based on driver
	if cfg.Storage.DSN == "" && cfg.Storage.Driver == "sqlite" {
		// Ensure the data directory exists
		if err := os.MkdirAll("data", 0o755); err != nil {
			return nil, err
		}
		cfg.Storage.DSN = filepath.Join("data", "promptsearch.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env parsing cannot.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite":
	default:
		return optimization.InvalidParameter("config", "unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Optimization.WorkerCount < 1 {
		return optimization.InvalidParameter("config", "OPT_WORKER_COUNT must be >= 1, got %d", c.Optimization.WorkerCount)
	}
	if c.Optimization.MaxAcquisitionCandidates < 1 {
		return optimization.InvalidParameter("config", "OPT_MAX_ACQUISITION_CANDIDATES must be >= 1, got %d",
			c.Optimization.MaxAcquisitionCandidates)
	}
	return c.RunConfig().Validate()
}

// RetryPolicy returns the evaluator retry policy.
func (c *Config) RetryPolicy() optimization.RetryPolicy {
	return optimization.RetryPolicy{
		MaxRetries:     c.Optimization.MaxRetries,
		InitialBackoff: c.Optimization.InitialBackoff,
		MaxBackoff:     c.Optimization.MaxBackoff,
		Multiplier:     2.0,
	}
}

// RunConfig returns the shared strategy settings. Template, Logger, Recorder
// and OnTrial are filled in per job.
func (c *Config) RunConfig() optimization.RunConfig {
	return optimization.RunConfig{
		Retry:       c.RetryPolicy(),
		Workers:     c.Optimization.WorkerCount,
		MaxDuration: c.Optimization.MaxDuration,
		RandomSeed:  c.Optimization.RandomSeed,
	}
}
