// Command telefetchd runs the telefetch bot: a user-session Telegram
// client that re-delivers message ranges from channels where forwarding
// is disabled, driven by commands sent to a companion bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gotd/td/tg"

	"github.com/telefetch-io/telefetch/internal/bot"
	"github.com/telefetch-io/telefetch/internal/config"
	"github.com/telefetch-io/telefetch/internal/fetch"
	"github.com/telefetch-io/telefetch/internal/journal"
	"github.com/telefetch-io/telefetch/internal/logbuf"
	"github.com/telefetch-io/telefetch/internal/sweep"
	"github.com/telefetch-io/telefetch/internal/telegram"
)

func main() {
	configPath := flag.String("config", "", "Path to config JSON file")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	// Set up logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logBuf := logbuf.New(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, logBuf))

	// Load config (file or env)
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("telefetchd starting", "operator", cfg.Bot.Operator)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data dir", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	store, err := journal.NewSQLiteStore(filepath.Join(cfg.DataDir, "journal.db"))
	if err != nil {
		logger.Error("failed to open journal", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := telegram.Options{
		APIID:       cfg.Telegram.APIID,
		APIHash:     cfg.Telegram.APIHash,
		Phone:       cfg.Telegram.Phone,
		Password:    cfg.Telegram.Password,
		SessionFile: cfg.Telegram.SessionFile,
		Logger:      logger.With("component", "telegram"),
	}

	err = telegram.Run(ctx, opts, func(ctx context.Context, client *telegram.Client, self *tg.User) error {
		front, err := bot.New(bot.Config{
			Token:      cfg.Bot.Token,
			Operator:   cfg.Bot.Operator,
			BatchSize:  cfg.Batch.Size,
			BatchDelay: time.Duration(cfg.Batch.DelaySeconds) * time.Second,
		}, bot.Deps{
			Client:  client,
			Fetcher: newFetcher(client, cfg, logger),
			Sender:  fetch.NewSender(client, logger.With("component", "sender")),
			Journal: store,
			Logs:    logBuf,
		}, logger.With("component", "bot"))
		if err != nil {
			return err
		}

		sweeper := sweep.New(store, time.Duration(cfg.Retention)*24*time.Hour, logger.With("component", "sweep"))
		go sweeper.Start(ctx)

		startup := fmt.Sprintf("Bot is now active.\nLogged in as %s (id %d).\nSend /help to see commands.",
			self.FirstName, self.ID)
		if err := client.SendText(ctx, startup, cfg.Bot.Operator); err != nil {
			logger.Warn("startup notification failed", "error", err)
		}

		return front.Start(ctx)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("telefetchd exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("telefetchd stopped")
}

func newFetcher(client fetch.Client, cfg *config.Config, logger *slog.Logger) *fetch.Fetcher {
	f := fetch.NewFetcher(client, logger.With("component", "fetcher"))
	f.MaxMessages = cfg.Batch.MaxFetch
	return f
}
