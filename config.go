package snapstate

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the store settings that may come from the environment.
type Config struct {
	Name     string        `env:"SNAPSTATE_NAME"`
	Debounce time.Duration `env:"SNAPSTATE_DEBOUNCE" envDefault:"1ms"`
}

// LoadConfig reads Config from the process environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("snapstate: parse env: %w", err)
	}
	return cfg, nil
}

// WithConfig applies cfg. Options given after it still win.
func WithConfig(cfg Config) Option {
	return func(c *storeConfig) {
		WithName(cfg.Name)(c)
		WithDebounce(cfg.Debounce)(c)
	}
}
