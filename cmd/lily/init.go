package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sandevgo/lilybot/internal/config"
	"github.com/sandevgo/lilybot/internal/providers/mcp"
	"github.com/sandevgo/lilybot/internal/service/ui"
	"github.com/sandevgo/lilybot/pkg/env"
	"github.com/sandevgo/lilybot/pkg/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	initLLM      config.LLMConfig
	initTelegram config.TelegramConfig
	initForce    bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the runtime directory with .env, profiles.yaml and mcp.json",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()
		logger := log.FromCtx(ctx)

		if err := initLLM.Validate(); err != nil {
			return err
		}

		runtime := config.GetRuntimePath()
		if err := os.MkdirAll(filepath.Join(runtime, "workspace"), 0o755); err != nil {
			return fmt.Errorf("failed to create runtime directory: %w", err)
		}

		appCfg := &config.AppConfig{EnableTelegram: initTelegram.Token != ""}
		dotenv, err := env.MarshalEnv(appCfg, &initLLM, &initTelegram)
		if err != nil {
			return err
		}

		profiles, err := yaml.Marshal(config.DefaultProfilesConfig())
		if err != nil {
			return err
		}
		servers, err := json.MarshalIndent(mcp.Config{MCPServers: map[string]mcp.ServerConfig{}}, "", "  ")
		if err != nil {
			return err
		}

		files := []struct {
			name string
			data []byte
			perm os.FileMode
		}{
			{".env", []byte(dotenv), 0o600},
			{"profiles.yaml", profiles, 0o644},
			{"mcp.json", servers, 0o644},
		}
		for _, f := range files {
			path := filepath.Join(runtime, f.name)
			written, err := writeFile(path, f.data, f.perm, initForce)
			if err != nil {
				return err
			}
			if !written {
				logger.Warn().Str("path", path).Msg("file exists, kept (use --force to overwrite)")
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.UsageStyle.Render("wrote "+path))
		}
		return nil
	},
}

func writeFile(path string, data []byte, perm os.FileMode, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return false, err
		}
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return false, err
	}
	return true, nil
}

func init() {
	f := initCmd.Flags()
	f.StringVar(&initLLM.Provider, "provider", config.ProviderOpenAI, "llm provider: openai, anthropic, openrouter, ollama, custom")
	f.StringVar(&initLLM.Model, "model", "gpt-4o-mini", "model name")
	f.StringSliceVar(&initLLM.APIKeys, "api-key", nil, "api key, repeat for a rotating pool")
	f.StringVar(&initLLM.BaseURL, "base-url", "", "base url for custom or ollama providers")
	f.IntVar(&initLLM.MaxTokens, "max-tokens", 1024, "max tokens per completion")
	f.StringVar(&initTelegram.Token, "telegram-token", "", "telegram bot token, enables the telegram transport")
	f.Int64Var(&initTelegram.MasterID, "master-id", 0, "telegram user id of the master")
	f.BoolVar(&initForce, "force", false, "overwrite existing files")
	rootCmd.AddCommand(initCmd)
}
