package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/lilybot/internal/service/ui"
	"github.com/spf13/cobra"
)

var memoryLimit int

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and edit long-term memory",
}

var memorySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Show facts relevant to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: withStore(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		facts, err := a.store.SimilaritySearch(ctx, strings.Join(args, " "), memoryLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(facts) == 0 {
			fmt.Fprintln(out, ui.DescStyle.Render("no relevant facts"))
			return nil
		}
		for _, f := range facts {
			fmt.Fprintf(out, "%s  %s  %s\n", ui.FlagStyle.Render(fmt.Sprintf("%.3f", f.Score)), f.ID, f.Content)
		}
		return nil
	}),
}

var memoryAddCmd = &cobra.Command{
	Use:   "add <fact>",
	Short: "Store a fact",
	Args:  cobra.MinimumNArgs(1),
	RunE: withStore(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		id, err := a.store.AddFact(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.UsageStyle.Render("saved "+id))
		return nil
	}),
}

var memoryForgetCmd = &cobra.Command{
	Use:   "forget <id>",
	Short: "Delete a fact by id",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		if err := a.store.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.UsageStyle.Render("deleted "+args[0]))
		return nil
	}),
}

// withStore runs fn with logging and an open fact store.
func withStore(fn func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		a, err := newStorageApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(ctx, cmd, a, args)
	}
}

func init() {
	memorySearchCmd.Flags().IntVarP(&memoryLimit, "limit", "n", 10, "maximum number of facts")
	memoryCmd.AddCommand(memorySearchCmd, memoryAddCmd, memoryForgetCmd)
	rootCmd.AddCommand(memoryCmd)
}
