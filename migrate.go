package main

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// schemaDialect pairs a database/sql driver with its migration directory.
type schemaDialect struct {
	dir      string
	instance func(*sql.DB) (database.Driver, error)
}

var schemaDialects = map[string]schemaDialect{
	"sqlite3": {
		dir: "migrations/sqlite",
		instance: func(db *sql.DB) (database.Driver, error) {
			return sqlite3.WithInstance(db, &sqlite3.Config{})
		},
	},
	"postgres": {
		dir: "migrations/postgres",
		instance: func(db *sql.DB) (database.Driver, error) {
			return postgres.WithInstance(db, &postgres.Config{})
		},
	},
}

// runMigrations brings the kv schema up to date and returns its version.
func runMigrations(db *sql.DB, driver string) (uint, error) {
	dialect, ok := schemaDialects[driver]
	if !ok {
		return 0, fmt.Errorf("no schema for driver %q", driver)
	}

	src, err := iofs.New(migrationsFS, dialect.dir)
	if err != nil {
		return 0, fmt.Errorf("schema source %s: %w", dialect.dir, err)
	}
	target, err := dialect.instance(db)
	if err != nil {
		return 0, fmt.Errorf("schema target %s: %w", driver, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		return 0, fmt.Errorf("schema migrator: %w", err)
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
	case err != nil:
		return 0, fmt.Errorf("schema up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	slog.Debug("schema ready", "driver", driver, "version", version)
	return version, nil
}
