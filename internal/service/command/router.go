package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sandevgo/lilybot/internal/core"
)

type Router struct {
	commands map[string]core.Command
}

func New(commands ...core.Command) *Router {
	r := &Router{
		commands: make(map[string]core.Command, len(commands)+1),
	}
	for _, cmd := range commands {
		r.commands[cmd.Name()] = cmd
	}
	r.commands["help"] = &helpCommand{router: r, formatter: NewResponseFormatter()}
	return r
}

// Execute runs input when it is a slash command. Telegram style "/cmd@bot"
// suffixes are ignored.
func (r *Router) Execute(ctx context.Context, sessionID, input string) (string, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return "", false
	}

	parts := strings.Fields(input)
	name := strings.TrimPrefix(parts[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	args := parts[1:]

	cmd, ok := r.commands[name]
	if !ok {
		return fmt.Sprintf("Unknown command: /%s. Try /help.", name), true
	}

	result, err := cmd.Execute(ctx, sessionID, args)
	if err != nil {
		return NewResponseFormatter().Error(err), true
	}
	return result, true
}

// ListCommands returns the commands sorted by name.
func (r *Router) ListCommands() []core.Command {
	res := make([]core.Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		res = append(res, cmd)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name() < res[j].Name() })
	return res
}

type helpCommand struct {
	router    *Router
	formatter *ResponseFormatter
}

func (c *helpCommand) Name() string        { return "help" }
func (c *helpCommand) Description() string { return "List available commands" }
func (c *helpCommand) Usage() string       { return "/help" }

func (c *helpCommand) Execute(context.Context, string, []string) (string, error) {
	var items []string
	for _, cmd := range c.router.ListCommands() {
		items = append(items, fmt.Sprintf("`%s` %s", cmd.Usage(), cmd.Description()))
	}
	return c.formatter.Combine(c.formatter.Info("Commands"), c.formatter.List(items)), nil
}
