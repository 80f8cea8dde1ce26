// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config aggregates every tunable of the service.  All timeout policy
// constants are externally configurable without a code change.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	SoftTimeout   time.Duration `env:"SOFT_TIMEOUT" envDefault:"20m"`
	GracePeriod   time.Duration `env:"GRACE_PERIOD" envDefault:"60m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"60s"`

	// EscalationPhrasesFile points at a YAML file with the trigger phrase
	// set.  When empty the built-in defaults are used.
	EscalationPhrasesFile string `env:"ESCALATION_PHRASES_FILE"`

	// NotifyChannel is the Postgres NOTIFY channel for urgent alerts.
	NotifyChannel string `env:"POSTGRES_NOTIFY_CHANNEL" envDefault:"urgent_sessions"`

	OpenAIAPIKey  string   `env:"OPENAI_API_KEY"`
	SummaryModels []string `env:"OPENAI_SUMMARY_MODELS" envSeparator:","`
}

// Load reads an optional .env file, then parses the environment.
func Load() (*Config, error) {
	// Missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SoftTimeout <= 0 || cfg.GracePeriod <= 0 || cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("timeout configuration must be positive: soft=%s grace=%s sweep=%s",
			cfg.SoftTimeout, cfg.GracePeriod, cfg.SweepInterval)
	}
	return &cfg, nil
}
