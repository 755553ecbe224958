package main

import (
	"os"
	"os/signal"

	"github.com/sandevgo/lilybot/internal/core"
	"github.com/sandevgo/lilybot/internal/service/agent"
	"github.com/sandevgo/lilybot/internal/transport/cli"
	"github.com/sandevgo/lilybot/pkg/log"
	"github.com/spf13/cobra"
)

var chatSession string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to Lily in the terminal",
	Long:  `Interactive session using the chatbox profile. /reset clears the conversation, /exit or Ctrl-C quits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Ctrl-C at the prompt is read by readline; this covers a running interaction.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				log.FromCtx(ctx).Warn().Err(err).Msg("close failed")
			}
		}()

		orch, err := a.orchestrator(agent.ChatboxProfile(a.profiles.Chatbox))
		if err != nil {
			return err
		}

		req := core.Requester{ID: "local", Name: os.Getenv("USER"), IsMaster: true}
		repl, err := cli.NewReadLine(a.runner(orch), a.appCfg, chatSession, req)
		if err != nil {
			return err
		}
		defer repl.Shutdown(ctx)

		return repl.Start(ctx)
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "terminal", "conversation to resume")
	rootCmd.AddCommand(chatCmd)
}
