package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/lockstep/escaperoom/internal/badges"
	"github.com/lockstep/escaperoom/internal/config"
	"github.com/lockstep/escaperoom/internal/database"
	"github.com/lockstep/escaperoom/internal/migrations"
	"github.com/lockstep/escaperoom/internal/platform"
	"github.com/lockstep/escaperoom/internal/room"
	"github.com/lockstep/escaperoom/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	// --- Attempt log ---
	attemptFile, err := os.OpenFile(cfg.AttemptLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening attempt log: %w", err)
	}
	defer attemptFile.Close()
	attemptLog := room.NewAttemptLogger(attemptFile, logger)

	// --- Room engine ---
	client := platform.NewRESTClient(cfg.PlatformBaseURL, cfg.PlatformToken)

	rm := room.New(room.Options{
		Store:       room.NewSQLiteDocStore(db),
		Platform:    client,
		Logger:      logger,
		RetryDelay:  cfg.RetryDelay,
		SettleDelay: cfg.SettleDelay,
		OnAttempt:   attemptLog.Record,
	})
	if err := rm.Restore(ctx); err != nil {
		return fmt.Errorf("restoring room state: %w", err)
	}
	if cfg.StagesFile != "" {
		if err := rm.SeedStages(ctx, cfg.StagesFile); err != nil {
			return fmt.Errorf("seeding stages: %w", err)
		}
	}

	// --- Badges ---
	badgeCache := badges.NewCache(badges.NewStore(db))
	if err := badgeCache.Populate(ctx); err != nil {
		logger.Warn("badge cache populate failed, will retry on first read", "error", err)
	}

	// --- HTTP Server ---
	srv := server.New(server.Options{
		Addr:           cfg.HTTPAddr,
		Logger:         logger,
		Room:           rm,
		Badges:         badgeCache,
		Broker:         server.NewBroker(),
		DB:             db,
		PlatformToken:  cfg.PlatformToken,
		AdminTokenHash: cfg.AdminTokenHash,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}
