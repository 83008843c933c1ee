package database

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationsTable keeps the ledger schema version apart from other tools
// sharing the database
const migrationsTable = "economy_schema_migrations"

// migrationDatabaseURL reads the environment directly so the migrate
// subcommand works without a Discord token configured
func migrationDatabaseURL() (string, error) {
	url := ConstructDatabaseURL(os.Getenv("DATABASE_URL"), os.Getenv("DATABASE_NAME"))
	if url == "" {
		return "", errors.New("DATABASE_URL is required to run migrations")
	}
	return url, nil
}

// withMigrator opens a migrator over the embedded migrations, runs fn and
// closes both the source and the database handle
func withMigrator(databaseURL string, fn func(m *migrate.Migrate) error) error {
	m, err := newMigrator(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.WithFields(log.Fields{
				"sourceError":   srcErr,
				"databaseError": dbErr,
			}).Warn("Failed to close migrator")
		}
	}()
	return fn(m)
}

func withEnvMigrator(fn func(m *migrate.Migrate) error) error {
	url, err := migrationDatabaseURL()
	if err != nil {
		return err
	}
	return withMigrator(url, fn)
}

// MigrateUp applies every pending migration
func MigrateUp() error {
	return withEnvMigrator(func(m *migrate.Migrate) error {
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("Schema is up to date")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		logVersion(m, "Migrated schema")
		return nil
	})
}

// MigrateDown rolls back steps migrations
func MigrateDown(steps string) error {
	n, err := strconv.Atoi(steps)
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid steps value %q: must be a positive integer", steps)
	}

	return withEnvMigrator(func(m *migrate.Migrate) error {
		err := m.Steps(-n)
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("No migrations to roll back")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to roll back migrations: %w", err)
		}
		logVersion(m, "Rolled back schema")
		return nil
	})
}

// MigrateStatus logs the applied schema version
func MigrateStatus() error {
	return withEnvMigrator(func(m *migrate.Migrate) error {
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("No migrations have been applied yet")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get migration version: %w", err)
		}
		log.WithFields(log.Fields{
			"version": version,
			"dirty":   dirty,
		}).Info("Current schema version")
		return nil
	})
}

// RunMigrationsWithURL applies pending migrations against databaseURL. Used at
// startup and by the testcontainers helper.
func RunMigrationsWithURL(databaseURL string) error {
	return withMigrator(databaseURL, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		return nil
	})
}

func logVersion(m *migrate.Migrate, msg string) {
	version, dirty, err := m.Version()
	if err != nil {
		log.WithError(err).Info(msg)
		return
	}
	log.WithFields(log.Fields{
		"version": version,
		"dirty":   dirty,
	}).Info(msg)
}

func newMigrator(databaseURL string) (*migrate.Migrate, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	driver, err := postgres.WithInstance(stdlib.OpenDB(*cfg.ConnConfig), &postgres.Config{
		MigrationsTable: migrationsTable,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	return migrate.NewWithInstance("iofs", source, "postgres", driver)
}
