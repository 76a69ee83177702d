package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
		// RequestTimeout cancels the request context. Grid searches and SQP
		// runs stop at their next context check; fits and integrals are
		// bounded by the Numerics limits instead.
		RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"60s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Numerics struct {
		// MonteCarloSeed is used when a request does not carry its own seed.
		MonteCarloSeed uint64 `env:"MC_SEED" envDefault:"1000"`
		// GridMaxPoints caps the Cartesian product a grid request may ask for.
		GridMaxPoints int `env:"GRID_MAX_POINTS" envDefault:"1000000"`
		// FitMaxSamples caps the sample count of a fit request.
		FitMaxSamples int `env:"FIT_MAX_SAMPLES" envDefault:"100000"`
		// FitMaxDegree caps the polynomial degree of a fit request.
		FitMaxDegree int `env:"FIT_MAX_DEGREE" envDefault:"50"`
		// MonteCarloMaxSamples caps the sum of the counts of a monte_carlo
		// request.
		MonteCarloMaxSamples int `env:"MC_MAX_SAMPLES" envDefault:"10000000"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

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

	for name, v := range map[string]int{
		"GRID_MAX_POINTS": cfg.Numerics.GridMaxPoints,
		"FIT_MAX_SAMPLES": cfg.Numerics.FitMaxSamples,
		"MC_MAX_SAMPLES":  cfg.Numerics.MonteCarloMaxSamples,
	} {
		if v < 1 {
			return nil, fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if cfg.Numerics.FitMaxDegree < 0 {
		return nil, fmt.Errorf("FIT_MAX_DEGREE must not be negative, got %d", cfg.Numerics.FitMaxDegree)
	}

	return cfg, nil
}
