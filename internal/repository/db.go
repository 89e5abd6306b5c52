// Package repository persists finished games in Postgres.
package repository

import (
	"context"
	"fmt"

	"github.com/bluffhouse/coup-server/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DB wraps the connection pool.
type DB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS game_results (
		game_id           TEXT PRIMARY KEY,
		winner            TEXT NOT NULL,
		winner_index      INTEGER NOT NULL,
		players           TEXT[] NOT NULL,
		elimination_order TEXT[] NOT NULL,
		turns             INTEGER NOT NULL,
		seed              BIGINT NOT NULL,
		started_at        TIMESTAMPTZ NOT NULL,
		finished_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS game_results_finished_at_idx ON game_results (finished_at DESC)`,
	`CREATE INDEX IF NOT EXISTS game_results_winner_idx ON game_results (winner)`,
}

func poolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	return poolCfg, nil
}

// NewDB connects and pings the database.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("database connected",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns),
	)
	return &DB{pool: pool, logger: logger}, nil
}

// Close releases every connection.
func (db *DB) Close() {
	db.pool.Close()
}

// Stats reports pool usage.
func (db *DB) Stats() *pgxpool.Stat {
	return db.pool.Stat()
}

// Migrate creates the schema if it does not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	db.logger.Info("database schema ready", zap.Int("statements", len(schema)))
	return nil
}
