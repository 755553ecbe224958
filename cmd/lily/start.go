package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sandevgo/lilybot/pkg/log"
	"github.com/sandevgo/lilybot/pkg/srv"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the configured transports and the metrics endpoint",
	Long:  `Starts Telegram (when enabled) and the Prometheus endpoint, and runs until SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting lily")

		services, err := NewServices(ctx)
		if err != nil {
			return err
		}

		srv.StartServices(ctx, services, stop)
		srv.ShutdownServices(ctx, services)
		logger.Info().Msg("lily has been shut down gracefully")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
