package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndemidov/tubecast/internal/app"
	"github.com/ndemidov/tubecast/internal/platform/config"
	"github.com/ndemidov/tubecast/internal/storage"
)

func main() {
	mode := flag.String("mode", "", "Service mode (ingest, process, schedule, post, bot, cleanup)")
	once := flag.Bool("once", false, "Run a single pass and exit")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolOpts := storage.PoolOptions{
		MaxConns:          cfg.DBMaxConns,
		MinConns:          cfg.DBMinConns,
		MaxConnIdleTime:   cfg.DBMaxConnIdle,
		MaxConnLifetime:   cfg.DBMaxConnLife,
		HealthCheckPeriod: cfg.DBHealthPeriod,
	}

	database, err := storage.NewWithOptions(ctx, cfg.PostgresDSN, poolOpts, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	application := app.New(cfg, database, &logger)

	go func() {
		if err := application.StartHealthServer(ctx); err != nil {
			logger.Error().Err(err).Msg("health check server error")
		}
	}()

	if err := runMode(ctx, application, *mode, *once); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("application stopped")
			return
		}

		logger.Fatal().Err(err).Msg("application error")
	}
}

func newLogger(appEnv string) zerolog.Logger {
	if appEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func runMode(ctx context.Context, application *app.App, mode string, once bool) error {
	switch mode {
	case "ingest":
		return application.RunIngest(ctx, once)
	case "process":
		return application.RunProcess(ctx, once)
	case "schedule":
		return application.RunSchedule(ctx)
	case "post":
		return application.RunPost(ctx, once)
	case "bot":
		return application.RunBot(ctx)
	case "cleanup":
		return application.RunCleanup(ctx, once)
	default:
		log.Fatalf("Usage: %s --mode=[ingest|process|schedule|post|bot|cleanup]", os.Args[0])

		return nil
	}
}
