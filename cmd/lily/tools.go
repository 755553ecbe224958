package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/sandevgo/lilybot/internal/core"
	"github.com/sandevgo/lilybot/internal/service/agent"
	"github.com/sandevgo/lilybot/internal/service/ui"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tool catalog and which profile may use each tool",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		a, err := newStorageApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.initCatalog(ctx); err != nil {
			return err
		}

		profiles := []agent.Profile{
			agent.ChatboxProfile(a.profiles.Chatbox),
			agent.ChannelProfile(a.profiles.Channel),
		}
		permitted := make([]map[string]bool, len(profiles))
		for i, p := range profiles {
			defs, err := a.registry.Subset(p.Allowlist, nil)
			if err != nil {
				return fmt.Errorf("profile %s: %w", p.Name, err)
			}
			permitted[i] = names(defs)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOOL\tKIND\tCHATBOX\tCHANNEL\tDESCRIPTION")
		for _, d := range a.registry.Definitions() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				d.Name, d.Kind, mark(permitted[0][d.Name]), mark(permitted[1][d.Name]), ui.DescStyle.Render(d.Description))
		}
		return w.Flush()
	},
}

func names(defs []core.ToolDefinition) map[string]bool {
	out := make(map[string]bool, len(defs))
	for _, d := range defs {
		out[d.Name] = true
	}
	return out
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return "-"
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
