package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/scythe504/botornot-backend/internal/config"
	"github.com/scythe504/botornot-backend/internal/database"
	"github.com/scythe504/botornot-backend/internal/game"
	"github.com/scythe504/botornot-backend/internal/generation"
	"github.com/scythe504/botornot-backend/internal/ledger"
	"github.com/scythe504/botornot-backend/internal/server"
	"github.com/scythe504/botornot-backend/internal/websocket"
)

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if cfg.AppEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func gracefulShutdown(apiServer *http.Server, logger zerolog.Logger) error {
	logger.Info().Msg("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
		return err
	}
	return nil
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	db, err := database.New(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, staked hand-offs will fail until it is back")
	}
	books := ledger.New(rdb, logger)

	bus := game.NewBus()
	manager := game.NewManager(game.Settings{
		CohortSize:           cfg.Game.CohortSize,
		MaxRounds:            cfg.Game.MaxRounds,
		ConversationDuration: cfg.Game.ConversationDuration,
		VotingDuration:       cfg.Game.VotingDuration,
		MaxMessageLength:     cfg.Game.MaxMessageLength,
		ArchiveTimeout:       cfg.Game.ArchiveTimeout,
		AuditTimeout:         cfg.Game.AuditTimeout,
		OpenerChance:         cfg.Synthetic.OpenerChance,
		OpenerMin:            cfg.Synthetic.OpenerMin,
		OpenerMax:            cfg.Synthetic.OpenerMax,
	}, bus,
		game.WithArchiver(db),
		game.WithSettler(books),
		game.WithAuditor(books),
		game.WithLogger(logger),
	)

	driver := game.NewSyntheticDriver(manager,
		generation.New(cfg.Generation.URL, cfg.Generation.Timeout, logger),
		game.DriverSettings{
			PollInterval:   cfg.Synthetic.PollInterval,
			RequestTimeout: cfg.Generation.Timeout,
			Concurrency:    cfg.Synthetic.Concurrency,
		}, logger, nil)

	hub := websocket.NewHub(manager, logger)
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	apiServer := server.NewServer(server.New(server.Deps{
		Port:    cfg.Port,
		Manager: manager,
		Hub:     hub,
		DB:      db,
		Checks: map[string]server.HealthChecker{
			"redis": server.HealthFunc(func() map[string]string {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				return books.Health(ctx)
			}),
		},
		Logger: logger,
	}))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx, events) })
	g.Go(func() error { return driver.Run(gctx) })
	g.Go(func() error {
		logger.Info().Int("port", cfg.Port).Msg("http server listening")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return gracefulShutdown(apiServer, logger)
	})

	err = g.Wait()

	// Live rooms are dropped; finished ones still get archived.
	manager.Shutdown()
	bus.Close()
	logger.Info().Msg("graceful shutdown complete")
	return err
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("invalid configuration")
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
