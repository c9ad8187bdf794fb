package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stemsi/tutoria-backend/internal/config"
)

const applicationName = "tutoria-backend"

// NewPostgresPool creates and validates a PostgreSQL connection pool.
//
// Every reservation transaction holds a connection while it waits on its
// class row lock, so MaxConns bounds how many bookers can queue on one class
// and lock_timeout bounds how long each of them waits.
func NewPostgresPool(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Fail at boot, not on the first reservation, when migrations are behind.
	if _, err := pool.Exec(ctx, `SELECT id, version FROM scheduled_classes LIMIT 0`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("check schema (run cmd/migrate up): %w", err)
	}

	log.Info().
		Int32("max_conns", poolCfg.MaxConns).
		Dur("lock_timeout", cfg.DBLockTimeout).
		Msg("PostgreSQL connected")

	return pool, nil
}

func poolConfig(cfg *config.Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if cfg.MaxDBConns > 0 {
		poolCfg.MaxConns = cfg.MaxDBConns
	}
	poolCfg.MinConns = min(poolCfg.MaxConns, 2)
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	params := poolCfg.ConnConfig.RuntimeParams
	if _, ok := params["application_name"]; !ok {
		params["application_name"] = applicationName
	}
	if cfg.DBLockTimeout > 0 {
		params["lock_timeout"] = strconv.FormatInt(cfg.DBLockTimeout.Milliseconds(), 10)
	}
	return poolCfg, nil
}
