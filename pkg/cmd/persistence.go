// Package cmd provides shared construction helpers for the command binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ontask/engine/pkg/persistence"
	"github.com/ontask/engine/pkg/persistence/postgresql"
	"github.com/ontask/engine/pkg/persistence/sqlite"
)

// NewPersistence selects the persistence backend from the database URL
// scheme. Anything that is not PostgreSQL is treated as a SQLite file path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		path := strings.TrimPrefix(databaseURL, "sqlite://")

		return sqlite.NewPersistence(ctx, logger, path)
	}
}

func parseProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "sqlite"
	}

	return scheme
}
