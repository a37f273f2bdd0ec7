package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const minRetentionHours = 48

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if FOCUSFLOW_CONFIG is set
//  3. env (prefix FOCUSFLOW_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("FOCUSFLOW_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: FOCUSFLOW_ADDR, FOCUSFLOW_QUEUE_SIZE, ...
	// mapped to the flat koanf keys on the struct.
	envProvider := env.Provider("FOCUSFLOW_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "focusflow_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	if c.HeartbeatIntervalMS < 1 {
		return fmt.Errorf("%w: heartbeat_interval_ms must be positive", ErrInvalidConfig)
	}
	if c.RetentionHours < minRetentionHours {
		// A shorter retention would drop a day's board while trailing
		// timezones are still living that day. Clamp instead of fail.
		c.RetentionHours = minRetentionHours
	}
	return nil
}
