package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"songtldr/pkg/channel/telegram"
	"songtldr/pkg/config"
	"songtldr/pkg/gateway"
	"songtldr/pkg/logger"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"gateway"},
	Short:   "Run the Telegram bot",
	Long:    "Runs songtldr as a Telegram bot with health, readiness and metrics endpoints.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging, logger.Secrets(cfg)...)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.serve")

		transport, err := newTransport(cfg, appLogger)
		if err != nil {
			log.Error("Gateway configuration invalid", "error", err)
			return
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := gateway.NewService(cfg, transport, appLogger)
		if err != nil {
			log.Error("Failed to initialize gateway service", "error", err)
			return
		}

		log.Info("Gateway started",
			"version", Version,
			"channel", transport.Name(),
			"lyrics", cfg.Lyrics.Provider,
			"summarizer", cfg.Summarizer.Provider,
			"model", cfg.Summarizer.Model,
			"admins", len(cfg.Telegram.AdminChatIDs),
		)
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Gateway runtime failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func newTransport(cfg *config.Config, log *slog.Logger) (gateway.Transport, error) {
	if !cfg.Telegram.Enabled {
		return nil, errors.New("telegram channel is disabled")
	}

	adapter, err := telegram.NewAdapter(cfg.Telegram, log)
	if err != nil {
		return nil, fmt.Errorf("configure telegram channel: %w", err)
	}

	return adapter, nil
}
