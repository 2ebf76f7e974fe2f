package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/taskbot/core/logger"
)

// ConnectPostgres opens the pool, waits up to wait for the server to accept
// connections and configures the pool size.
func ConnectPostgres(ctx context.Context, cfg Config, wait time.Duration) (*sqlx.DB, error) {
	start := time.Now()
	attrs := []slog.Attr{
		slog.String("driver", DriverPostgres),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
	}

	db, err := sqlx.Open(DriverPostgres, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := waitForPing(ctx, db, wait); err != nil {
		_ = db.Close()
		logger.LogEvent(ctx, logger.DB, slog.LevelError, "db.connect",
			append(attrs, slog.Duration("duration", logger.Took(start)), slog.String("err", err.Error()))...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
		db.SetMaxIdleConns(cfg.MaxConnections)
	}
	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "db.connect",
		append(attrs, slog.Int("pool_open", cfg.MaxConnections), slog.Duration("duration", logger.Took(start)))...)
	return db, nil
}

// OpenSQLite opens the database file at path. SQLite serialises writers, so the pool holds one connection.
func OpenSQLite(ctx context.Context, path string) (*sqlx.DB, error) {
	start := time.Now()
	db, err := sqlx.Open(DriverSQLite, SQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		logger.LogEvent(ctx, logger.DB, slog.LevelError, "db.connect",
			slog.String("driver", DriverSQLite),
			slog.String("db", path),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("db ping: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "db.connect",
		slog.String("driver", DriverSQLite),
		slog.String("db", path),
		slog.Duration("duration", logger.Took(start)),
	)
	return db, nil
}

// waitForPing pings db until it answers, ctx ends or wait elapses.
func waitForPing(ctx context.Context, db *sqlx.DB, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout reached waiting for database: %w", err)
		}
		logger.LogEvent(ctx, logger.DB, slog.LevelDebug, "db.wait", slog.String("err", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}
