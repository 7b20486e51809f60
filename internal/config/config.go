package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr   string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath     string     `env:"DB_PATH" envDefault:"data/escaperoom.db"`
	StagesFile string     `env:"STAGES_FILE"`
	AttemptLog string     `env:"ATTEMPT_LOG" envDefault:"data/attempts.jsonl"`
	LogLevel   slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// Platform REST client.
	PlatformBaseURL string `env:"PLATFORM_BASE_URL" envDefault:"http://localhost:9090"`
	PlatformToken   string `env:"PLATFORM_TOKEN"`

	// bcrypt hash of the operator bearer token.
	AdminTokenHash string `env:"ADMIN_TOKEN_HASH"`

	// Permission sync timings. Tests override these with zero values.
	RetryDelay  time.Duration `env:"RETRY_DELAY" envDefault:"30s"`
	SettleDelay time.Duration `env:"SETTLE_DELAY" envDefault:"10s"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
