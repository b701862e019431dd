package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"jobscout_bot/internal/bot"
	"jobscout_bot/internal/config"
	"jobscout_bot/internal/digest"
	"jobscout_bot/internal/fx"
	"jobscout_bot/internal/scraper"
	"jobscout_bot/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	store, err := storage.NewFileStore(cfg.StorePath, log)
	if err != nil {
		log.Error("open store", "path", cfg.StorePath, "error", err)
		os.Exit(1)
	}

	svc := scraper.NewService(scraper.NewClient(http.DefaultClient, cfg.ScraperURL))
	fxCache := fx.NewCache(fx.NewClient(http.DefaultClient, cfg.FXRateURL), log)

	b, err := bot.New(cfg.TelegramBotToken, store, svc, fxCache, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	sched := digest.New(store, svc, b, bot.FormatDigestJob, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting bot")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Run(ctx)
		return nil
	})
	g.Go(func() error {
		b.Run(ctx)
		return nil
	})
	_ = g.Wait()

	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
