package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stronghold-labs/epochwatch/internal/config"
	"github.com/stronghold-labs/epochwatch/internal/dedup"
	"github.com/stronghold-labs/epochwatch/internal/discord"
	"github.com/stronghold-labs/epochwatch/internal/handler"
	"github.com/stronghold-labs/epochwatch/internal/ledger"
	"github.com/stronghold-labs/epochwatch/internal/middleware"
	"github.com/stronghold-labs/epochwatch/internal/publish"
	"github.com/stronghold-labs/epochwatch/internal/store"
	"github.com/stronghold-labs/epochwatch/internal/watch"
	"github.com/stronghold-labs/epochwatch/internal/watch/sources"
	"golang.org/x/time/rate"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected and migrated")

	// Discord
	client := discord.NewClient(cfg.DiscordToken, logger)
	meCtx, meCancel := context.WithTimeout(ctx, 10*time.Second)
	me, err := client.Me(meCtx)
	meCancel()
	if err != nil {
		logger.Error("discord token rejected", "error", err)
		os.Exit(1)
	}
	logger.Info("discord bot authenticated", "user", me)

	// Redis dedup (retry up to 30s for ExternalSecret to sync)
	var dd *dedup.Deduplicator
	for i := 0; i < 6; i++ {
		dd, err = dedup.New(cfg.RedisURL, cfg.RedisPassword, logger)
		if err == nil {
			break
		}
		logger.Warn("redis not ready, retrying...", "attempt", i+1, "error", err)
		time.Sleep(5 * time.Second)
	}
	if err != nil {
		logger.Error("failed to connect to redis after retries", "error", err)
		os.Exit(1)
	}
	defer dd.Close()
	logger.Info("redis connected for announce dedup")

	// Epoch watcher
	wallets := make([]sources.Wallet, 0, len(cfg.Wallets))
	for _, w := range cfg.Wallets {
		wallets = append(wallets, sources.Wallet{Address: w.Address, Label: w.Label})
	}

	epochs := sources.NewRPCClient(cfg.RPCURL)
	aggregator := watch.NewAggregator(logger,
		sources.NewAPYClient(cfg.APYURL, cfg.TokenMint, logger),
		sources.NewExtractClient(cfg.ExtractURL, cfg.ExtractToken, logger),
		sources.NewWalletFeed(cfg.WalletFeedURL, wallets, logger),
		sources.NewDashboard(cfg.DashboardURL, logger),
	)
	reportSink := discord.NewChannelNotifier(client, cfg.DiscordChannelID, cfg.Mention)
	publisher := publish.NewPublisher(reportSink, cfg.TokenSymbol, logger)
	watcher := watch.NewWatcher(epochs, aggregator, publisher, dd, logger, watch.WithInterval(cfg.CheckInterval))

	// Ledger (expense embeds carry no mention, they are routine)
	ledgerSink := discord.NewChannelNotifier(client, cfg.LedgerChannelID, "")
	ledgerWriter := ledger.NewWriter(db, ledgerSink, logger)

	// Gateway connection keeps the bot presence online
	gateway := discord.NewGateway(cfg.DiscordToken, logger)

	// Start background goroutines
	go gateway.Run(ctx)
	go watcher.Run(ctx)

	// HTTP routes
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.CORSOrigin))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handler.Health())
	r.Get("/readyz", handler.Ready(db))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", handler.Status(watcher))
		r.Post("/report", handler.TriggerReport(watcher, rate.NewLimiter(rate.Every(time.Minute), 1)))
		r.Get("/ledger", handler.ListLedgerEntries(db))
		r.Post("/ledger", handler.SubmitLedgerEntry(ledgerWriter))
		r.Get("/ledger/categories", handler.ListCategories())
	})

	srv := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// A forced report collects from every source before responding.
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
