package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/sandevgo/lilybot/internal/core"
	"github.com/sandevgo/lilybot/pkg/log"
	"golang.org/x/sync/errgroup"
)

const (
	connectTimeout = 30 * time.Second
	callTimeout    = 2 * time.Minute
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

type toolClient interface {
	ListTools(ctx context.Context, req mcpproto.ListToolsRequest) (*mcpproto.ListToolsResult, error)
	CallTool(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error)
	Close() error
}

type dialFunc func(ctx context.Context, cfg ServerConfig) (toolClient, error)

type route struct {
	server string
	tool   string
}

// Bridge exposes the tools of remote MCP servers as catalog entries of kind
// mcp. The set of tools is fixed once Connect returns.
type Bridge struct {
	mu      sync.Mutex
	clients map[string]toolClient
	routes  map[string]route
	defs    []core.ToolDefinition
}

// Connect dials every configured server in parallel. Servers that fail to
// start are logged and left out.
func Connect(ctx context.Context, cfg *Config) (*Bridge, error) {
	return connectWith(ctx, cfg, dial)
}

func connectWith(ctx context.Context, cfg *Config, dialer dialFunc) (*Bridge, error) {
	logger := log.FromCtx(ctx)
	b := &Bridge{
		clients: make(map[string]toolClient),
		routes:  make(map[string]route),
	}

	type listed struct {
		server string
		client toolClient
		tools  []mcpproto.Tool
	}

	var (
		mu      sync.Mutex
		results []listed
	)
	g, gctx := errgroup.WithContext(ctx)
	for name, srv := range cfg.MCPServers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, connectTimeout)
			defer cancel()

			cli, err := dialer(cctx, srv)
			if err != nil {
				logger.Error().Err(err).Str("server", name).Msg("mcp server unavailable")
				return nil
			}
			resp, err := cli.ListTools(cctx, mcpproto.ListToolsRequest{})
			if err != nil {
				logger.Error().Err(err).Str("server", name).Msg("failed to list tools")
				_ = cli.Close()
				return nil
			}

			mu.Lock()
			results = append(results, listed{server: name, client: cli, tools: resp.Tools})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Deterministic catalog order regardless of connect timing.
	sort.Slice(results, func(i, j int) bool { return results[i].server < results[j].server })

	for _, r := range results {
		b.clients[r.server] = r.client
		for _, t := range r.tools {
			name := toolName(r.server, t.Name)
			if _, dup := b.routes[name]; dup {
				logger.Warn().Str("tool", name).Msg("duplicate mcp tool name, skipping")
				continue
			}
			schema, err := json.Marshal(t.InputSchema)
			if err != nil {
				logger.Warn().Err(err).Str("tool", name).Msg("unusable tool schema, skipping")
				continue
			}
			b.routes[name] = route{server: r.server, tool: t.Name}
			b.defs = append(b.defs, core.ToolDefinition{
				Name:        name,
				Description: t.Description,
				Schema:      schema,
				Kind:        core.KindMCP,
			})
		}
		logger.Info().Str("server", r.server).Int("tools", len(r.tools)).Msg("mcp server connected")
	}
	return b, nil
}

func (b *Bridge) Definitions() []core.ToolDefinition {
	return append([]core.ToolDefinition(nil), b.defs...)
}

// Call invokes a catalog tool on its server and joins the text content.
func (b *Bridge) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	b.mu.Lock()
	r, ok := b.routes[name]
	cli := b.clients[r.server]
	b.mu.Unlock()
	if !ok || cli == nil {
		return "", fmt.Errorf("%w: %s", core.ErrUnknownTool, name)
	}

	var argsMap map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argsMap); err != nil {
			return "", fmt.Errorf("%w: %w", core.ErrInvalidArguments, err)
		}
	}

	req := mcpproto.CallToolRequest{}
	req.Params.Name = r.tool
	req.Params.Arguments = argsMap

	tctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	res, err := cli.CallTool(tctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: mcp server %s: %w", core.ErrCapabilityUnavailable, r.server, err)
	}

	var parts []string
	for _, content := range res.Content {
		switch c := content.(type) {
		case mcpproto.TextContent:
			parts = append(parts, c.Text)
		case *mcpproto.TextContent:
			parts = append(parts, c.Text)
		}
	}
	out := strings.Join(parts, "\n")

	if res.IsError {
		return "", fmt.Errorf("tool reported an error: %s", out)
	}
	return out, nil
}

func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for name, cli := range b.clients {
		if err := cli.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	b.clients = map[string]toolClient{}
	return errors.Join(errs...)
}

func toolName(server, tool string) string {
	return strings.Trim(unsafeName.ReplaceAllString(server+"_"+tool, "_"), "_")
}
