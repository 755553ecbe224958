package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/lilybot/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"LILY_RUNTIME_PATH" envDefault:".lily"`

	EnableTelegram bool   `env:"LILY_ENABLE_TELEGRAM" envDefault:"false"`
	MetricsAddr    string `env:"LILY_METRICS_ADDR" envDefault:":9464"`

	// Token budget for the prompt history; the stored transcript is never cut.
	ContextWindowTokens int `env:"LILY_CONTEXT_WINDOW_TOKENS" envDefault:"6000"`
}

func LoadAppConfig() (*AppConfig, error) {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse app config: %w", err)
	}
	c.RuntimePath = resolveRuntimePath(c.RuntimePath)
	return c, nil
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c, err := LoadAppConfig()
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "lily.db")
}

func (c AppConfig) GetProfilesPath() string {
	return filepath.Join(c.RuntimePath, "profiles.yaml")
}

func (c AppConfig) GetMCPConfigPath() string {
	return filepath.Join(c.RuntimePath, "mcp.json")
}

func (c AppConfig) GetWorkspacePath() string {
	return filepath.Join(c.RuntimePath, "workspace")
}
