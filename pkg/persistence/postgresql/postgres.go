// Package postgresql provides the PostgreSQL persistence backend.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/ontask/engine/pkg/persistence/sqlbase"
	"github.com/ontask/engine/pkg/persistence/sqlstore"
	"github.com/ontask/engine/pkg/table"
)

// NewPersistence connects to PostgreSQL, runs the migrations, and returns the
// store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*sqlstore.Store, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	dialect := table.Postgres{}

	migrationManager := sqlbase.NewMigrationManager(logger, database, dialect, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return sqlstore.New(database, dialect, logger), nil
}
