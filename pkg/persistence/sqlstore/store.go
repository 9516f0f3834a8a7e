// Package sqlstore implements workflow persistence over database/sql, shared
// by the PostgreSQL and SQLite backends.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/ontask/engine/pkg/models"
	"github.com/ontask/engine/pkg/table"
)

// Store implements persistence.Persistence on top of a database handle and a
// dialect. Backend packages construct it after running their migrations.
type Store struct {
	db           *sql.DB
	dialect      table.Dialect
	logger       *slog.Logger
	workflowRepo *WorkflowRepository
}

// New creates a store over an already migrated database.
func New(db *sql.DB, dialect table.Dialect, logger *slog.Logger) *Store {
	return &Store{
		db:           db,
		dialect:      dialect,
		logger:       logger,
		workflowRepo: NewWorkflowRepository(db, dialect, logger),
	}
}

// Close closes the database connection.
func (s *Store) Close(ctx context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// DB returns the shared database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the backend dialect.
func (s *Store) Dialect() table.Dialect {
	return s.dialect
}

// Workflows returns the workflows owned by the given user.
func (s *Store) Workflows(ctx context.Context, owner string) ([]*models.Workflow, error) {
	return s.workflowRepo.GetAll(ctx, owner)
}

// WorkflowByID returns a workflow by its ID.
func (s *Store) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	return s.workflowRepo.GetByID(ctx, id)
}

// WorkflowByName returns a workflow by its per-owner unique name.
func (s *Store) WorkflowByName(ctx context.Context, owner, name string) (*models.Workflow, error) {
	return s.workflowRepo.GetByName(ctx, owner, name)
}

// SaveWorkflow saves a workflow to the database.
func (s *Store) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return s.workflowRepo.Save(ctx, workflow)
}

// DeleteWorkflow soft deletes a workflow by setting deleted_at timestamp.
func (s *Store) DeleteWorkflow(ctx context.Context, id string) error {
	return s.workflowRepo.Delete(ctx, id)
}

// LockWorkflow acquires the advisory edit lock for the given session.
func (s *Store) LockWorkflow(ctx context.Context, id, sessionKey string) error {
	return s.workflowRepo.Lock(ctx, id, sessionKey)
}

// UnlockWorkflow releases the advisory edit lock held by the given session.
func (s *Store) UnlockWorkflow(ctx context.Context, id, sessionKey string) error {
	return s.workflowRepo.Unlock(ctx, id, sessionKey)
}
