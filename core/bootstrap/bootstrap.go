// Package bootstrap prepares shared infrastructure: logging and the storage backend.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/taskbot/core/config"
	"github.com/m3rciful/taskbot/core/database"
	"github.com/m3rciful/taskbot/core/logger"
	"github.com/m3rciful/taskbot/core/storage"
	"github.com/m3rciful/taskbot/core/storage/memstore"
	"github.com/m3rciful/taskbot/core/storage/sqlstore"
)

// dbWait bounds how long startup waits for PostgreSQL to accept connections.
const dbWait = 30 * time.Second

// Options control the bootstrap pipeline.
type Options struct {
	Config *config.Config

	LoggerInit  func(*config.Config) error
	OpenStorage func(context.Context, *config.Config) (storage.Storage, error)
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	Storage storage.Storage
}

// Run initializes the logger and opens the migrated storage backend.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	open := opts.OpenStorage
	if open == nil {
		open = OpenStorage
	}
	st, err := open(ctx, opts.Config)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: storage initialization failed: %w", err)
	}
	return &Result{Storage: st}, nil
}

// OpenStorage opens the backend selected by cfg.Storage.Type and applies pending migrations.
func OpenStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	if cfg.Storage.Type == config.StorageMemory {
		logger.Warn(ctx, "app", "storage.memory", slog.String("note", "data is lost on restart"))
		return memstore.New(), nil
	}
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	return sqlstore.New(db), nil
}

// OpenDB connects to the configured SQL backend without migrating it.
func OpenDB(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	switch cfg.Storage.Type {
	case config.StoragePostgres:
		pg := cfg.Storage.Postgres
		return database.ConnectPostgres(ctx, database.Config{
			Host:           pg.Host,
			Port:           pg.Port,
			User:           pg.User,
			Password:       pg.Password,
			Name:           pg.Name,
			SSLMode:        pg.SSLMode,
			MaxConnections: pg.MaxConnections,
		}, dbWait)
	case config.StorageSQLite:
		return database.OpenSQLite(ctx, cfg.Storage.SQLite.Path)
	}
	return nil, fmt.Errorf("storage type %q has no database", cfg.Storage.Type)
}

// Migrate applies pending migrations for the configured SQL backend and closes the connection.
func Migrate(ctx context.Context, cfg *config.Config) error {
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return database.RunMigrations(db)
}
