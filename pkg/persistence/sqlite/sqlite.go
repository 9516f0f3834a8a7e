// Package sqlite provides the embedded SQLite persistence backend, used for
// single-user deployments and hermetic tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/ontask/engine/pkg/persistence/sqlbase"
	"github.com/ontask/engine/pkg/persistence/sqlstore"
	"github.com/ontask/engine/pkg/table"
)

// NewPersistence opens (or creates) the SQLite database, runs the migrations,
// and returns the store.
func NewPersistence(ctx context.Context, logger *slog.Logger, path string) (*sqlstore.Store, error) {
	database, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite serializes writers; a single connection avoids busy errors.
	database.SetMaxOpenConns(1)

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	dialect := table.SQLite{}

	migrationManager := sqlbase.NewMigrationManager(logger, database, dialect, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return sqlstore.New(database, dialect, logger), nil
}
