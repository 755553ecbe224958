package llm

import (
	"context"
	"fmt"

	"github.com/sandevgo/lilybot/internal/config"
	"github.com/sandevgo/lilybot/internal/core"
	"github.com/sandevgo/lilybot/pkg/log"
)

const (
	openAIBaseURL     = "https://api.openai.com"
	openRouterBaseURL = "https://openrouter.ai/api"
	ollamaBaseURL     = "http://localhost:11434"
	repositoryURL     = "https://github.com/sandevgo/lilybot"
)

// NewProvider builds a provider bound to a single credential.
func NewProvider(cfg *config.LLMConfig, apiKey string) (core.ChatProvider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL:    firstNonEmpty(cfg.BaseURL, openAIBaseURL),
			APIKey:     apiKey,
			Model:      cfg.Model,
			AuthHeader: "Authorization",
			AuthPrefix: "Bearer ",
			JSONMode:   true,
		}), nil
	case config.ProviderOpenRouter:
		return NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL:    firstNonEmpty(cfg.BaseURL, openRouterBaseURL),
			APIKey:     apiKey,
			Model:      cfg.Model,
			AuthHeader: "Authorization",
			AuthPrefix: "Bearer ",
			ExtraHeaders: map[string]string{
				"HTTP-Referer": repositoryURL,
				"X-Title":      core.AppName,
			},
			JSONMode: true,
		}), nil
	case config.ProviderOllama:
		return NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL:    firstNonEmpty(cfg.BaseURL, ollamaBaseURL),
			APIKey:     apiKey,
			Model:      cfg.Model,
			AuthHeader: "Authorization",
			AuthPrefix: "Bearer ",
			JSONMode:   true,
		}), nil
	case config.ProviderCustom:
		return NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     apiKey,
			Model:      cfg.Model,
			AuthHeader: "Authorization",
			AuthPrefix: "Bearer ",
		}), nil
	case config.ProviderAnthropic:
		return NewAnthropic(apiKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

// NewPoolFromConfig creates one provider per configured key. Keyless
// backends (local ollama, custom gateways) get a single provider.
func NewPoolFromConfig(ctx context.Context, cfg *config.LLMConfig) (*KeyPool, error) {
	keys := cfg.APIKeys
	if len(keys) == 0 {
		keys = []string{""}
	}

	providers := make([]core.ChatProvider, 0, len(keys))
	for _, key := range keys {
		p, err := NewProvider(cfg, key)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	log.FromCtx(ctx).Info().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Int("credentials", len(providers)).
		Msg("starting llm provider")

	return NewKeyPool(providers...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
