package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/alphabot-ai/voicethreads/internal/bot"
	"github.com/alphabot-ai/voicethreads/internal/config"
	"github.com/alphabot-ai/voicethreads/internal/gateway"
	"github.com/alphabot-ai/voicethreads/internal/notify"
	"github.com/alphabot-ai/voicethreads/internal/pending"
	"github.com/alphabot-ai/voicethreads/internal/ratelimit"
	"github.com/alphabot-ai/voicethreads/internal/store"
)

const (
	sweepInterval   = time.Minute
	cleanupInterval = 5 * time.Minute
	shutdownTimeout = 30 * time.Second
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the chat gateway and bot",
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			return serve(c.Context, cfg, logger)
		},
	}
}

func serve(parent context.Context, cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	pend := pending.NewStore(cfg.Bot.PendingTTL)
	pend.StartSweeper(ctx, sweepInterval)

	limiter := ratelimit.NewMemoryLimiter(cfg.RateLimit.InboundLimit, cfg.RateLimit.InboundWindow)
	limiter.StartCleanup(ctx, cleanupInterval)

	hub := gateway.NewHub(ratelimit.NewThrottle(cfg.RateLimit.OutboundRate, cfg.RateLimit.OutboundBurst), logger)
	deliverer := notify.NewDeliverer(hub, st, logger)

	dispatcher, stopDispatcher, err := startDispatcher(ctx, cfg, deliverer, logger)
	if err != nil {
		return err
	}
	defer stopDispatcher()

	fanout := notify.NewFanout(st, dispatcher, logger)
	svc := bot.NewService(st, fanout, logger)
	engine := bot.NewEngine(svc, st, pend, hub, bot.Options{
		ListenPageSize:       cfg.Bot.ListenPageSize,
		NotificationPageSize: cfg.Bot.NotificationPageSize,
		ListPageSize:         cfg.Bot.ListPageSize,
		LinkHosts:            cfg.Bot.LinkHosts,
	}, logger)

	server := gateway.NewServer(cfg.Server.Addr(), hub, engine, limiter, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info().
		Str("addr", cfg.Server.Addr()).
		Str("database", cfg.Database.Driver).
		Str("dispatcher", cfg.Notify.Dispatcher).
		Msg("voicethreads started")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("gateway: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("gateway forced to shut down")
	}

	logger.Info().Msg("stopped")
	return nil
}

func openStore(ctx context.Context, db config.DatabaseConfig) (*store.SQLStore, error) {
	switch db.Driver {
	case "postgres":
		return store.NewPostgresStore(ctx, db.DSN)
	case "sqlite":
		return store.NewSQLiteStore(db.Path)
	}
	return nil, fmt.Errorf("unknown database driver %q", db.Driver)
}

// startDispatcher builds the configured delivery dispatcher and returns a
// function that drains and stops it.
func startDispatcher(ctx context.Context, cfg *config.Config, handler notify.DeliveryHandler, logger zerolog.Logger) (notify.Dispatcher, func(), error) {
	if cfg.Notify.Dispatcher != "river" {
		pool := notify.NewPool(handler, cfg.Notify.Workers, cfg.Notify.QueueSize, cfg.Notify.DeliveryTimeout, logger)
		pool.Start(context.WithoutCancel(ctx))
		return pool, pool.Stop, nil
	}

	pgPool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := notify.MigrateRiver(ctx, pgPool); err != nil {
		pgPool.Close()
		return nil, nil, err
	}
	rd, err := notify.NewRiverDispatcher(pgPool, handler, cfg.Notify.Workers, cfg.Notify.DeliveryTimeout, logger)
	if err != nil {
		pgPool.Close()
		return nil, nil, err
	}
	if err := rd.Start(context.WithoutCancel(ctx)); err != nil {
		pgPool.Close()
		return nil, nil, fmt.Errorf("start river: %w", err)
	}

	stopFn := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := rd.Stop(stopCtx); err != nil {
			logger.Warn().Err(err).Msg("river stop")
		}
		pgPool.Close()
	}
	return rd, stopFn, nil
}
