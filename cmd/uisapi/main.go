package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/uis-platform/uisapi/internal/config"
	"github.com/uis-platform/uisapi/internal/database"
	"github.com/uis-platform/uisapi/internal/logger"
	"github.com/uis-platform/uisapi/internal/reqlog"
	"github.com/uis-platform/uisapi/internal/repository"
	"github.com/uis-platform/uisapi/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "uisapi: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set UIS_* directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Primary.Env, cfg.Log.Level)

	recorder, err := reqlog.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("request log: %w", err)
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			log.Error().Err(err).Msg("close request log")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, cfg.Database.URL(), log); err != nil {
		return err
	}

	nrApp, err := newRelic(cfg.Observability, log)
	if err != nil {
		return err
	}
	if nrApp != nil {
		defer nrApp.Shutdown(5 * time.Second)
	}

	pool, err := database.NewPool(ctx, cfg.Database, database.QueryTracer(log, nrApp != nil))
	if err != nil {
		return err
	}
	defer pool.Close()

	srv := server.New(cfg, server.Deps{
		Store:    repository.NewRole2FileTypeRepository(pool),
		Recorder: recorder,
		Logger:   log,
		NewRelic: nrApp,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	g.Go(func() error { return rotateOnHangup(gctx, recorder, log) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

func newRelic(cfg config.ObservabilityConfig, log zerolog.Logger) (*newrelic.Application, error) {
	if cfg.NewRelicLicenseKey == "" {
		return nil, nil
	}
	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.ServiceName),
		newrelic.ConfigLicense(cfg.NewRelicLicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
	)
	if err != nil {
		return nil, fmt.Errorf("new relic: %w", err)
	}
	log.Info().Str("service", cfg.ServiceName).Msg("new relic enabled")
	return app, nil
}

// rotateOnHangup forces a request log rotation on every SIGHUP.
func rotateOnHangup(ctx context.Context, recorder *reqlog.Recorder, log zerolog.Logger) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			if err := recorder.Rotate(); err != nil {
				log.Error().Err(err).Msg("rotate request log")
				continue
			}
			log.Info().Msg("request log rotated")
		}
	}
}
