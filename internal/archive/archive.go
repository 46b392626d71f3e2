// Package archive implements the optional raw-message archival sink
// (SPEC_FULL.md §17.2, supplemental): every ingested raw SHDR line or raw
// MQTT payload is, when enabled, written to a Postgres audit table in
// batches. This is an audit trail, not the live buffer — the circular
// buffer and checkpoints are never reloaded from this table on startup
// (spec.md's "persistence across restarts" non-goal still holds).
// Grounded on the teacher's internal/database package (pool setup, schema
// bootstrap) and internal/ingest/pipeline.go's archiveRaw/rawBatcher
// pattern.
package archive

import (
	"context"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB owns a Postgres connection pool used solely for raw-message archival.
type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// Connect opens and pings a connection pool, grounded on the teacher's
// database.Connect (internal/database/database.go).
func Connect(ctx context.Context, databaseURL string, log zerolog.Logger) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().Str("url", maskDSN(databaseURL)).Msg("archive database connected")
	return &DB{Pool: pool, log: log}, nil
}

func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		if _, hasPass := u.User.Password(); hasPass {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}

func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.Pool.Ping(ctx)
}

func (db *DB) Close() {
	db.log.Info().Msg("closing archive database pool")
	db.Pool.Close()
}
