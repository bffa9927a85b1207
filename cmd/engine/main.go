package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/just-nilux/trade-engine/internal/book"
	"github.com/just-nilux/trade-engine/internal/event"
	"github.com/just-nilux/trade-engine/internal/feed"
	"github.com/just-nilux/trade-engine/internal/infra"
	"github.com/just-nilux/trade-engine/internal/portfolio"
	"github.com/just-nilux/trade-engine/internal/storage"
)

func main() {
	defer infra.Recover()

	configPath := flag.String("config", "config.yaml", "path to the engine config file")
	flag.Parse()

	// 1. Configuration & Logging
	cfg, err := infra.LoadConfig(*configPath)
	if err != nil {
		slog.Error("❌ Config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.SetDefault(infra.NewLogger(cfg.Logging.Level))

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Event Dispatcher (the synchronous core)
	bus := event.NewDispatcher()

	// 4. History Store
	store, err := storage.NewHistoryStore(cfg.Storage.Path)
	if err != nil {
		slog.Error("❌ History store open failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()
	store.Attach(bus, cfg.Engine.MinQuantity)
	slog.InfoContext(ctx, "✅ History store attached", slog.String("path", cfg.Storage.Path))

	// 5. Portfolio & Order Book
	pf := portfolio.New()
	pf.Attach(bus)

	ob := book.New(bus, cfg.Engine.MinQuantity, cfg.Engine.Slippage)
	ob.Attach()
	slog.InfoContext(ctx, "✅ Order book attached",
		slog.Float64("min_quantity", cfg.Engine.MinQuantity),
		slog.Float64("slippage", cfg.Engine.Slippage))

	// 6. Market Data Feed (Gateway)
	qf := feed.New(bus, cfg.Feed.WSURL,
		time.Duration(cfg.Feed.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.Feed.PingIntervalSec)*time.Second)
	qf.Attach()
	qf.Start(ctx)
	defer qf.Stop()
	slog.InfoContext(ctx, "✅ Quote feed started", slog.String("url", cfg.Feed.WSURL))

	<-ctx.Done()
	slog.Info("Shutting down", slog.Int("open_assets", len(pf.Assets())))
}
