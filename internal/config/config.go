package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	APIURL      string        `env:"TOLKUCHKA_API_URL" env-default:"http://localhost:8080"`
	WSURL       string        `env:"TOLKUCHKA_WS_URL" env-default:"ws://localhost:8080"`
	HTTPTimeout time.Duration `env:"TOLKUCHKA_HTTP_TIMEOUT" env-default:"10s"`
	PreviewTTL  time.Duration `env:"TOLKUCHKA_PREVIEW_TTL" env-default:"30s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("TOLKUCHKA_API_URL is required")
	}

	if c.WSURL == "" {
		return fmt.Errorf("TOLKUCHKA_WS_URL is required")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("TOLKUCHKA_HTTP_TIMEOUT must be greater than 0")
	}

	if c.PreviewTTL <= 0 {
		return fmt.Errorf("TOLKUCHKA_PREVIEW_TTL must be greater than 0")
	}

	return nil
}
