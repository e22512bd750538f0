// Package database opens the Postgres pool and applies the embedded schema.
package database

import (
	"context"
	"fmt"

	zerologadapter "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/newrelic/go-agent/v3/integrations/nrpgx5"
	"github.com/rs/zerolog"

	"github.com/uis-platform/uisapi/internal/config"
)

// QueryTracer picks the pgx tracer: New Relic segments when APM is on,
// otherwise query logging through zerolog at debug level.
func QueryTracer(log zerolog.Logger, apm bool) pgx.QueryTracer {
	if apm {
		return nrpgx5.NewTracer()
	}
	return &tracelog.TraceLog{
		Logger:   zerologadapter.NewLogger(log.With().Str("component", "pgx").Logger()),
		LogLevel: tracelog.LogLevelDebug,
	}
}

// NewPool connects to the database described by cfg and pings it.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, tracer pgx.QueryTracer) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pcfg.MaxConns = int32(cfg.MaxConns)
	pcfg.MinConns = int32(cfg.MinConns)
	pcfg.ConnConfig.Tracer = tracer

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
