package config

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/lilybot/pkg/log"
)

const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderCustom     = "custom"
)

type LLMConfig struct {
	Provider string `env:"LILY_LLM_PROVIDER" envDefault:"openai"`
	Model    string `env:"LILY_LLM_MODEL" envDefault:"gpt-4o-mini"`
	// APIKeys is the credential pool; requests rotate through it round-robin.
	APIKeys   []string `env:"LILY_LLM_API_KEYS" envSeparator:","`
	BaseURL   string   `env:"LILY_LLM_BASE_URL"`
	MaxTokens int      `env:"LILY_LLM_MAX_TOKENS" envDefault:"1024"`
}

func LoadLLMConfig() (*LLMConfig, error) {
	c := &LLMConfig{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse llm config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func NewLLMConfig(ctx context.Context) *LLMConfig {
	c, err := LoadLLMConfig()
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse LLM config")
	}
	return c
}

func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderOpenRouter:
		if len(c.APIKeys) == 0 {
			return fmt.Errorf("provider %s needs at least one key in LILY_LLM_API_KEYS", c.Provider)
		}
	case ProviderOllama:
	case ProviderCustom:
		if c.BaseURL == "" {
			return fmt.Errorf("provider custom needs LILY_LLM_BASE_URL")
		}
	default:
		return fmt.Errorf("unknown llm provider: %s", c.Provider)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("LILY_LLM_MAX_TOKENS must be positive")
	}
	return nil
}
