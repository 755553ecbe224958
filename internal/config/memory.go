package config

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/lilybot/pkg/log"
)

type MemoryConfig struct {
	// Minimum cosine similarity for a fact to count as relevant to a query.
	RelevanceThreshold float32 `env:"LILY_MEMORY_RELEVANCE" envDefault:"0.75"`
	// Cosine similarity at or above which a new fact is rejected as a duplicate.
	DuplicateThreshold float32 `env:"LILY_MEMORY_DUPLICATE" envDefault:"0.92"`
	PrefetchLimit      int     `env:"LILY_MEMORY_PREFETCH_LIMIT" envDefault:"3"`
}

func LoadMemoryConfig() (*MemoryConfig, error) {
	c := &MemoryConfig{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse memory config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func NewMemoryConfig(ctx context.Context) *MemoryConfig {
	c, err := LoadMemoryConfig()
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse memory config")
	}
	return c
}

func (c *MemoryConfig) Validate() error {
	if c.RelevanceThreshold <= 0 || c.RelevanceThreshold > 1 {
		return fmt.Errorf("relevance threshold must be in (0,1], got %v", c.RelevanceThreshold)
	}
	if c.DuplicateThreshold <= c.RelevanceThreshold || c.DuplicateThreshold > 1 {
		return fmt.Errorf("duplicate threshold must be in (relevance,1], got %v", c.DuplicateThreshold)
	}
	if c.PrefetchLimit < 1 {
		return fmt.Errorf("prefetch limit must be at least 1")
	}
	return nil
}
