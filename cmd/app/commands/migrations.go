package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations applies all pending migrations from migrationsDir for the given driver.
// Returns nil if there is nothing to apply.
func RunMigrations(logger *slog.Logger, migrationsDir, driver, connectionString string) error {
	logger.Info("running database migrations",
		slog.String("driver", driver),
	)

	sourceURL, databaseURL, err := migrationURLs(migrationsDir, driver, connectionString)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("migrations completed successfully")
	return nil
}

// migrationURLs maps a DB_DRIVER and DB_CONNECTION_STRING to golang-migrate URLs. MySQL and
// SQLite connection strings are DSNs for database/sql and need a scheme prefix.
func migrationURLs(migrationsDir, driver, connectionString string) (string, string, error) {
	switch driver {
	case "postgres":
		return "file://" + migrationsDir + "/postgresql", connectionString, nil
	case "mysql":
		return "file://" + migrationsDir + "/mysql", withScheme("mysql://", connectionString), nil
	case "sqlite":
		return "file://" + migrationsDir + "/sqlite", withScheme("sqlite://", connectionString), nil
	default:
		return "", "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func withScheme(scheme, dsn string) string {
	if strings.HasPrefix(dsn, scheme) {
		return dsn
	}
	return scheme + dsn
}
