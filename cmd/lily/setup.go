package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sandevgo/lilybot/internal/config"
	"github.com/sandevgo/lilybot/internal/core"
	"github.com/sandevgo/lilybot/internal/history"
	"github.com/sandevgo/lilybot/internal/providers/builtin"
	"github.com/sandevgo/lilybot/internal/providers/llm"
	"github.com/sandevgo/lilybot/internal/providers/mcp"
	"github.com/sandevgo/lilybot/internal/providers/rag"
	"github.com/sandevgo/lilybot/internal/service/agent"
	"github.com/sandevgo/lilybot/internal/service/command"
	"github.com/sandevgo/lilybot/internal/service/memory"
	"github.com/sandevgo/lilybot/internal/service/tools"
	"github.com/sandevgo/lilybot/internal/storage/sqlite"
	"github.com/sandevgo/lilybot/internal/telemetry"
	"github.com/sandevgo/lilybot/internal/transport/telegram"
	"github.com/sandevgo/lilybot/pkg/log"
	"github.com/sandevgo/lilybot/pkg/srv"
)

// app holds everything the subcommands share. Fields are filled in stages so
// that operator commands do not need an LLM key.
type app struct {
	appCfg   *config.AppConfig
	memCfg   *config.MemoryConfig
	profiles *config.ProfilesConfig

	db       *sql.DB
	store    *memory.Store
	sessions *history.Sessions

	registry *tools.Registry
	bridge   *mcp.Bridge
	executor *tools.Executor
	client   *llm.Client
}

func NewServices(ctx context.Context) ([]srv.Service, error) {
	a, err := newApp(ctx)
	if err != nil {
		return nil, err
	}
	services := []srv.Service{
		srv.NewCleanup("storage", a.db.Close),
		srv.NewCleanup("mcp", a.bridge.Close),
		telemetry.NewServer(a.appCfg.MetricsAddr),
	}

	transports, err := initTransports(ctx, a)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return append(services, transports...), nil
}

// newApp wires the full pipeline.
func newApp(ctx context.Context) (*app, error) {
	a, err := newStorageApp(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.initCatalog(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	llmCfg := config.NewLLMConfig(ctx)
	pool, err := llm.NewPoolFromConfig(ctx, llmCfg)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("llm: %w", err)
	}
	a.client = llm.NewClient(pool, llmCfg.MaxTokens)

	if err := a.initExecutor(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// newStorageApp opens the database and the fact store only.
func newStorageApp(ctx context.Context) (*app, error) {
	if err := initEnv(ctx); err != nil {
		return nil, err
	}

	appCfg := config.NewAppConfig(ctx)
	if err := os.MkdirAll(appCfg.GetRuntimePath(), 0o755); err != nil {
		return nil, fmt.Errorf("create runtime dir: %w", err)
	}

	profiles, err := config.LoadProfiles(appCfg.GetProfilesPath())
	if err != nil {
		return nil, err
	}

	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	memCfg := config.NewMemoryConfig(ctx)
	embCfg := config.NewEmbeddingConfig(ctx)
	facts, err := sqlite.NewFactsRepo(ctx, db, embCfg.Dimensions)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}

	return &app{
		appCfg:   appCfg,
		memCfg:   memCfg,
		profiles: profiles,
		db:       db,
		store:    memory.NewStore(facts, rag.NewEmbedder(embCfg), memCfg),
		sessions: history.NewSessions(sqlite.NewTurnsRepo(db)),
	}, nil
}

// initCatalog builds the tool registry from the built-in tools plus whatever
// the configured MCP servers offer.
func (a *app) initCatalog(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	mcpCfg, err := mcp.LoadConfig(a.appCfg.GetMCPConfigPath())
	if err != nil {
		return err
	}
	a.bridge, err = mcp.Connect(ctx, mcpCfg)
	if err != nil {
		return fmt.Errorf("mcp: %w", err)
	}

	defs := tools.BuiltinCatalog()
	a.registry, err = tools.NewRegistry(append(defs, a.bridge.Definitions()...)...)
	if err != nil {
		logger.Warn().Err(err).Msg("mcp tools rejected, using built-in tools only")
		a.registry, err = tools.NewRegistry(defs...)
	}
	return err
}

func (a *app) initExecutor(ctx context.Context) error {
	toolsCfg := config.NewToolsConfig(ctx)
	loc, err := toolsCfg.Location()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(a.appCfg.GetWorkspacePath(), 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	handlers := tools.BuiltinHandlers(
		builtin.NewClock(loc),
		builtin.NewFilesystem(a.appCfg.GetWorkspacePath()),
		builtin.NewWebSearch(toolsCfg.SearchEndpoint, toolsCfg.SearchMaxResults, toolsCfg.SearchTimeout, nil),
		a.store,
	)
	handlers[core.KindMCP] = tools.RemoteHandler(a.bridge)

	a.executor, err = tools.NewExecutor(a.registry, handlers, a.client)
	return err
}

func (a *app) orchestrator(profile agent.Profile) (*agent.Orchestrator, error) {
	return agent.New(agent.Deps{
		LLM:     a.client,
		Tools:   a.executor,
		Catalog: a.registry,
		Facts:   a.store,
	}, profile, agent.Options{
		PrefetchLimit: a.memCfg.PrefetchLimit,
		WindowTokens:  a.appCfg.ContextWindowTokens,
	})
}

func (a *app) runner(orch *agent.Orchestrator) *agent.Runner {
	commands := command.New(command.NewCommands(a.sessions, a.store, orch)...)
	return agent.NewRunner(orch, a.sessions, commands)
}

func (a *app) Close() error {
	var errs []error
	if a.bridge != nil {
		errs = append(errs, a.bridge.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

func initTransports(ctx context.Context, a *app) ([]srv.Service, error) {
	var services []srv.Service

	if a.appCfg.EnableTelegram {
		orch, err := a.orchestrator(agent.ChannelProfile(a.profiles.Channel))
		if err != nil {
			return nil, err
		}
		bot, err := telegram.NewBot(ctx, config.NewTelegramConfig(ctx), a.runner(orch))
		if err != nil {
			return nil, err
		}
		services = append(services, bot)
	} else {
		log.FromCtx(ctx).Warn().Msg("no transport enabled, set LILY_ENABLE_TELEGRAM=true or use `lily chat`")
	}

	return services, nil
}

func initEnv(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	envFile := config.GetEnvPath()

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
