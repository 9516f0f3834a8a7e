// Package persistence provides data storage abstraction for workflows, their
// actions, and their views. The row data itself lives in per-workflow tables
// managed by pkg/table on the same database handle.
package persistence

import (
	"context"
	"database/sql"

	"github.com/ontask/engine/pkg/models"
	"github.com/ontask/engine/pkg/table"
)

type Persistence interface {
	// Workflows returns the workflows owned by the given user, newest
	// first. An empty owner matches every workflow.
	Workflows(ctx context.Context, owner string) ([]*models.Workflow, error)
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)

	// WorkflowByName resolves a workflow by its per-owner unique name.
	WorkflowByName(ctx context.Context, owner, name string) (*models.Workflow, error)

	// SaveWorkflow upserts the workflow with its actions and views. A live
	// workflow with the same owner and name but a different ID yields
	// models.ErrNameCollision.
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error

	// LockWorkflow acquires the advisory edit lock for the given session,
	// failing with models.ErrLockHeld when another session holds it.
	// Acquiring a lock already held by the same session is a no-op.
	LockWorkflow(ctx context.Context, id, sessionKey string) error
	UnlockWorkflow(ctx context.Context, id, sessionKey string) error

	HealthCheck(ctx context.Context) error

	// DB exposes the underlying handle so data tables share the same
	// database as the workflow metadata.
	DB() *sql.DB
	Dialect() table.Dialect

	Close(ctx context.Context) error
}
