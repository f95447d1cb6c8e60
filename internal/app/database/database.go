// Package database opens the relational store selected by a connection URL.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/launchpad/internal/app/migrate"
	"github.com/splax/launchpad/internal/repository"
	"github.com/splax/launchpad/internal/repository/postgres"
	"github.com/splax/launchpad/internal/repository/sqlite"
)

const sqliteScheme = "sqlite://"

// Options tune how Open prepares the store.
type Options struct {
	MigrationsDir string
	AutoMigrate   bool
}

// Open connects to dsn. URLs prefixed with sqlite:// open an embedded SQLite
// database whose schema is created in place; anything else is treated as a
// PostgreSQL connection string and migrated with goose when requested.
func Open(ctx context.Context, dsn string, opts Options, log *slog.Logger) (repository.Store, error) {
	if path, ok := strings.CutPrefix(dsn, sqliteScheme); ok {
		if path == "" {
			path = ":memory:"
		}
		log.Info("using sqlite store", "path", path)
		return sqlite.Open(path)
	}

	if opts.AutoMigrate {
		runner, err := migrate.New(dsn, opts.MigrationsDir, log)
		if err != nil {
			return nil, fmt.Errorf("configure migrations: %w", err)
		}
		if err := runner.Ensure(ctx); err != nil {
			return nil, err
		}
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return postgres.New(pool), nil
}
