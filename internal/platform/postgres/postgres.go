// Package postgres opens the shared database handle and applies schema migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

const (
	DriverPQ  = "postgres"
	DriverPGX = "pgx"

	uniqueViolation = "23505"
)

// Config selects the driver and pool limits.
type Config struct {
	URL          string
	Driver       string
	MaxOpenConns int
}

// Open returns a *sql.DB for cfg and waits until the server answers a ping.
// The "pgx" driver is backed by a pgxpool; anything else uses lib/pq.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, errors.New("database url is required")
	}
	maxConns := cfg.MaxOpenConns
	if maxConns <= 0 {
		maxConns = 10
	}

	var db *sql.DB
	switch cfg.Driver {
	case DriverPGX:
		poolCfg, err := pgxpool.ParseConfig(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse database url: %w", err)
		}
		poolCfg.MaxConns = int32(maxConns)
		poolCfg.HealthCheckPeriod = 30 * time.Second
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("create pgx pool: %w", err)
		}
		db = stdlib.OpenDBFromPool(pool)
	default:
		var err error
		db, err = sql.Open(DriverPQ, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns / 2)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := ping(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping retries while the database is starting up, e.g. under docker compose.
func ping(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	err := retry.Do(
		func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			return db.PingContext(pingCtx)
		},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(500*time.Millisecond),
		retry.MaxJitter(250*time.Millisecond),
		retry.OnRetry(func(n uint, err error) {
			logger.WarnContext(ctx, "database not ready, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a unique constraint violation from either driver.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}
