package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/lilybot/pkg/log"
)

type ToolsConfig struct {
	SearchEndpoint   string        `env:"LILY_SEARCH_ENDPOINT" envDefault:"https://html.duckduckgo.com/html/"`
	SearchMaxResults int           `env:"LILY_SEARCH_MAX_RESULTS" envDefault:"5"`
	SearchTimeout    time.Duration `env:"LILY_SEARCH_TIMEOUT" envDefault:"15s"`
	// Timezone used by get_current_time; empty means the host zone.
	Timezone string `env:"LILY_TIMEZONE"`
}

func LoadToolsConfig() (*ToolsConfig, error) {
	c := &ToolsConfig{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse tools config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return nil, err
	}
	return c, nil
}

func NewToolsConfig(ctx context.Context) *ToolsConfig {
	c, err := LoadToolsConfig()
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse tools config")
	}
	return c
}

func (c *ToolsConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid LILY_TIMEZONE: %w", err)
	}
	return loc, nil
}
