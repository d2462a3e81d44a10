// Package config loads the process configuration from the environment.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"SSO_ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimization struct {
		// Workers is the number of workers a run is split across. Zero means
		// one per CPU.
		Workers int `env:"SSO_WORKERS" envDefault:"0"`
		// Seed is the base seed of the per-worker generators. Zero seeds
		// from the wall clock.
		Seed int64 `env:"SSO_SEED" envDefault:"0"`
		// Reduction is "tree" or "gather".
		Reduction string `env:"SSO_REDUCTION" envDefault:"tree"`
		// MaxElements bounds a single matrix allocation.
		MaxElements int `env:"SSO_MAX_ELEMENTS" envDefault:"268435456"`
		// GradientStep is the central difference increment.
		GradientStep float64 `env:"SSO_GRADIENT_STEP" envDefault:"1e-6"`
		// MaxRuns bounds the number of runs the HTTP server keeps.
		MaxRuns int `env:"SSO_MAX_RUNS" envDefault:"100"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.Optimization.Workers == 0 {
		cfg.Optimization.Workers = runtime.NumCPU()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env.Parse cannot check on its own.
func (c *Config) Validate() error {
	switch {
	case c.Optimization.Workers < 1:
		return fmt.Errorf("SSO_WORKERS must be positive, got %d", c.Optimization.Workers)
	case c.Optimization.Reduction != "tree" && c.Optimization.Reduction != "gather":
		return fmt.Errorf("SSO_REDUCTION must be tree or gather, got %q", c.Optimization.Reduction)
	case c.Optimization.MaxElements < 1:
		return fmt.Errorf("SSO_MAX_ELEMENTS must be positive, got %d", c.Optimization.MaxElements)
	case c.Optimization.GradientStep <= 0:
		return fmt.Errorf("SSO_GRADIENT_STEP must be positive, got %v", c.Optimization.GradientStep)
	case c.HTTP.Port < 0 || c.HTTP.Port > 65535:
		return fmt.Errorf("HTTP_PORT out of range: %d", c.HTTP.Port)
	}
	return nil
}
