/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"songtldr/pkg/bus"
	"songtldr/pkg/channel"
	"songtldr/pkg/channel/console"
	"songtldr/pkg/commands"
	"songtldr/pkg/config"
	"songtldr/pkg/gateway"
	"songtldr/pkg/logger"
	"songtldr/pkg/lyrics"
	"songtldr/pkg/pipeline"
	"songtldr/pkg/summarizer"
	"songtldr/pkg/ui/chat"

	"github.com/spf13/cobra"
)

var (
	queryText string
	plainMode bool
)

// summarizeCmd represents the summarize command
var summarizeCmd = &cobra.Command{
	Use:   "summarize [song]",
	Short: "Summarise one song or start the console",
	Long:  "Loads songtldr configuration, summarises one song, or starts an interactive console that runs the same pipeline as the bot.",
	Run: func(cmd *cobra.Command, args []string) {
		query := resolveQuery(args)

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		provider, err := gateway.NewLyricsProvider(cfg.Lyrics)
		if err != nil {
			fmt.Printf("failed to initialize lyrics provider: %v\n", err)
			return
		}

		client, err := summarizer.New(cfg.Summarizer)
		if err != nil {
			fmt.Printf("failed to initialize summarizer: %v\n", err)
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := client.Health(ctx); err != nil {
			fmt.Printf("summarizer health check failed: %v\n", err)
			return
		}

		if plainMode {
			if query == "" {
				fmt.Println("a song name is required with --plain")
				return
			}

			log, err := logger.New(cfg.Logging, logger.Secrets(cfg)...)
			if err != nil {
				fmt.Printf("failed to initialize logger: %v\n", err)
				return
			}

			result := runPlain(ctx, os.Stdout, provider, client, cfg, log, query)
			if result.Kind != pipeline.KindSucceeded {
				os.Exit(1)
			}
			return
		}

		// Logs would draw over the terminal UI.
		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		messenger := chat.NewMessenger()
		handle := consoleHandler(newPipeline(provider, client, messenger, cfg, quiet), commands.NewHandler(messenger, quiet))
		info := chat.RuntimeInfo{
			LyricsProvider:     cfg.Lyrics.Provider,
			SummarizerProvider: cfg.Summarizer.Provider,
			Model:              cfg.Summarizer.Model,
		}

		if query != "" {
			err = chat.RunOneShot(ctx, messenger, handle, query, info)
		} else {
			err = chat.RunInteractive(ctx, messenger, handle, info)
		}
		if err != nil {
			fmt.Printf("console failed: %v\n", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
	summarizeCmd.Flags().StringVarP(&queryText, "song", "s", "", "song to summarise")
	summarizeCmd.Flags().BoolVar(&plainMode, "plain", false, "print the reply without the terminal UI")
}

func resolveQuery(args []string) string {
	if value := strings.TrimSpace(queryText); value != "" {
		return value
	}

	return strings.TrimSpace(strings.Join(args, " "))
}

func newPipeline(provider lyrics.Provider, client summarizer.Summarizer, messenger channel.Messenger, cfg *config.Config, log *slog.Logger) *pipeline.Pipeline {
	return pipeline.New(provider, client, messenger, pipeline.Options{
		Timeout: time.Duration(cfg.Summarizer.SummaryTimeoutMS()) * time.Millisecond,
		Logger:  log,
	})
}

// runPlain runs one query and prints every reply to out.
func runPlain(ctx context.Context, out io.Writer, provider lyrics.Provider, client summarizer.Summarizer, cfg *config.Config, log *slog.Logger, query string) pipeline.Result {
	p := newPipeline(provider, client, console.New(out), cfg, log)
	return p.Handle(ctx, consoleMessage(query))
}

// consoleHandler answers slash commands locally and sends everything else
// through the pipeline.
func consoleHandler(p *pipeline.Pipeline, handler *commands.Handler) chat.HandleFunc {
	return func(ctx context.Context, msg bus.InboundMessage) pipeline.Result {
		handled, err := handler.Handle(ctx, msg)
		if handled {
			return pipeline.Result{Kind: pipeline.KindIgnored, Err: err}
		}

		return p.Handle(ctx, msg)
	}
}

func consoleMessage(query string) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:     "console",
		ChatID:      1,
		SenderID:    1,
		DisplayName: "console",
		MessageID:   1,
		Text:        query,
		SessionKey:  "console:1",
	}
}
