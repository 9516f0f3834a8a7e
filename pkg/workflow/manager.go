// Package workflow orchestrates the engine's building blocks: it ties a
// workflow's persisted metadata to its data table, routes structural edits
// through propagation, and fronts bundle import and export.
package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/ontask/engine/pkg/bundle"
	"github.com/ontask/engine/pkg/models"
	"github.com/ontask/engine/pkg/persistence"
	"github.com/ontask/engine/pkg/propagation"
	"github.com/ontask/engine/pkg/table"
)

// Manager coordinates workflow metadata, the per-workflow data table, and the
// propagation of edits between them.
type Manager struct {
	persistence persistence.Persistence
	logger      *slog.Logger
	validate    *validator.Validate
}

// NewManager creates a manager over the given persistence layer.
func NewManager(p persistence.Persistence, logger *slog.Logger) *Manager {
	return &Manager{
		persistence: p,
		logger:      logger,
		validate:    validator.New(),
	}
}

// Table returns the handle on the workflow's data table. The table shares the
// database with the workflow metadata.
func (m *Manager) Table(w *models.Workflow) *table.Table {
	return table.New(m.persistence.DB(), m.persistence.Dialect(), w.ID, m.logger)
}

func (m *Manager) propagator(w *models.Workflow) *propagation.Propagator {
	return propagation.New(m.Table(w), m.logger)
}

// Create validates and persists a new workflow shell without data.
func (m *Manager) Create(ctx context.Context, w *models.Workflow) error {
	if err := m.validate.Struct(w); err != nil {
		return models.NewWorkflowError("Create", w.ID,
			fmt.Errorf("%w: %v", models.ErrInvalidValue, err))
	}

	if err := m.persistence.SaveWorkflow(ctx, w); err != nil {
		return models.NewWorkflowError("Create", w.ID, err)
	}

	m.logger.InfoContext(ctx, "Workflow created", "workflow_id", w.ID, "name", w.Name)

	return nil
}

// Import reads a workflow bundle and installs it for the given owner. With
// replace set, an existing workflow of the same name is overwritten in place,
// keeping its identity; otherwise a name clash fails with ErrNameCollision.
func (m *Manager) Import(ctx context.Context, owner, name string, replace bool, in io.Reader) (*models.Workflow, error) {
	w, frame, err := bundle.Import(ctx, in)
	if err != nil {
		return nil, err
	}

	if name != "" {
		w.Name = name
	}

	w.Owner = owner

	if err := m.validate.Struct(w); err != nil {
		return nil, models.NewWorkflowError("Import", w.ID,
			fmt.Errorf("%w: %v", models.ErrImportSchema, err))
	}

	existing, err := m.persistence.WorkflowByName(ctx, owner, w.Name)
	if err != nil {
		return nil, models.NewWorkflowError("Import", w.ID, err)
	}

	if existing != nil {
		if !replace {
			return nil, models.NewWorkflowError("Import", w.ID,
				fmt.Errorf("%w: workflow %q already exists for owner %q",
					models.ErrNameCollision, w.Name, owner))
		}

		w.ID = existing.ID
		w.CreatedAt = existing.CreatedAt
	}

	t := m.Table(w)

	if err := t.Store(ctx, frame, w.Columns); err != nil {
		return nil, models.NewWorkflowError("Import", w.ID, err)
	}

	if err := m.persistence.SaveWorkflow(ctx, w); err != nil {
		// Best effort: don't leave an orphaned data table behind.
		if dropErr := t.Drop(ctx); dropErr != nil {
			m.logger.ErrorContext(ctx, "failed to drop table after import failure",
				"workflow_id", w.ID, "error", dropErr)
		}

		return nil, models.NewWorkflowError("Import", w.ID, err)
	}

	m.logger.InfoContext(ctx, "Workflow imported",
		"workflow_id", w.ID, "name", w.Name, "owner", owner,
		"nrows", w.NRows, "ncols", w.NCols)

	return w, nil
}

// Export writes the workflow as a bundle.
func (m *Manager) Export(ctx context.Context, w *models.Workflow, out io.Writer) error {
	return bundle.Export(ctx, w, m.Table(w), out)
}

// ExportView writes the subset of the workflow selected by the named view.
func (m *Manager) ExportView(ctx context.Context, w *models.Workflow, viewName string, out io.Writer) error {
	view := w.ViewByName(viewName)
	if view == nil {
		return models.NewWorkflowError("ExportView", w.ID,
			fmt.Errorf("%w: view %q", models.ErrMissingResource, viewName))
	}

	return bundle.ExportView(ctx, w, view, m.Table(w), out)
}

// Delete removes the workflow metadata and drops its data table.
func (m *Manager) Delete(ctx context.Context, w *models.Workflow) error {
	if err := m.Table(w).Drop(ctx); err != nil {
		return models.NewWorkflowError("Delete", w.ID, err)
	}

	if err := m.persistence.DeleteWorkflow(ctx, w.ID); err != nil {
		return models.NewWorkflowError("Delete", w.ID, err)
	}

	m.logger.InfoContext(ctx, "Workflow deleted", "workflow_id", w.ID)

	return nil
}

// ReplaceData swaps the workflow's table content for the given frame and
// invalidates every cached count.
func (m *Manager) ReplaceData(ctx context.Context, w *models.Workflow, frame *table.Frame) error {
	if err := m.Table(w).Store(ctx, frame, w.Columns); err != nil {
		return models.NewWorkflowError("ReplaceData", w.ID, err)
	}

	w.NRows = frame.NRows()
	w.NCols = frame.NCols()

	m.propagator(w).DataChanged(ctx, w)

	if err := m.persistence.SaveWorkflow(ctx, w); err != nil {
		return models.NewWorkflowError("ReplaceData", w.ID, err)
	}

	return nil
}

// AddColumn extends the workflow and its table with a new column, backfilling
// existing rows with the default value.
func (m *Manager) AddColumn(ctx context.Context, w *models.Workflow, col *models.Column, defaultValue any) error {
	if err := w.AddColumn(col); err != nil {
		return models.NewWorkflowError("AddColumn", w.ID, err)
	}

	t := m.Table(w)

	exists, err := t.Exists(ctx)
	if err != nil {
		return models.NewWorkflowError("AddColumn", w.ID, err)
	}

	if exists {
		if err := t.AddColumn(ctx, col, defaultValue); err != nil {
			return models.NewWorkflowError("AddColumn", w.ID, err)
		}
	}

	if err := m.persistence.SaveWorkflow(ctx, w); err != nil {
		return models.NewWorkflowError("AddColumn", w.ID, err)
	}

	return nil
}

// DeleteColumn removes a column from the table and cascades over everything
// that referenced it.
func (m *Manager) DeleteColumn(ctx context.Context, w *models.Workflow, name string) error {
	if w.ColumnByName(name) == nil {
		return models.NewWorkflowError("DeleteColumn", w.ID,
			fmt.Errorf("%w: column %q", models.ErrMissingResource, name))
	}

	t := m.Table(w)

	exists, err := t.Exists(ctx)
	if err != nil {
		return models.NewWorkflowError("DeleteColumn", w.ID, err)
	}

	if exists {
		if err := t.DropColumn(ctx, name); err != nil {
			return models.NewWorkflowError("DeleteColumn", w.ID, err)
		}
	}

	m.propagator(w).ColumnDeleted(ctx, w, name)

	if err := w.RemoveColumn(name); err != nil {
		return models.NewWorkflowError("DeleteColumn", w.ID, err)
	}

	if err := m.persistence.SaveWorkflow(ctx, w); err != nil {
		return models.NewWorkflowError("DeleteColumn", w.ID, err)
	}

	return nil
}

// RenameColumn renames a column everywhere: table, metadata, formulas,
// templates, and attributes.
func (m *Manager) RenameColumn(ctx context.Context, w *models.Workflow, oldName, newName string) error {
	if err := m.propagator(w).RenameColumn(ctx, w, oldName, newName); err != nil {
		return err
	}

	if err := m.persistence.SaveWorkflow(ctx, w); err != nil {
		return models.NewWorkflowError("RenameColumn", w.ID, err)
	}

	return nil
}

// Lock acquires the advisory edit lock for a session and mirrors the key on
// the in-memory workflow.
func (m *Manager) Lock(ctx context.Context, w *models.Workflow, sessionKey string) error {
	if err := m.persistence.LockWorkflow(ctx, w.ID, sessionKey); err != nil {
		return err
	}

	w.SessionKey = sessionKey

	return nil
}

// Unlock releases the advisory edit lock held by the session.
func (m *Manager) Unlock(ctx context.Context, w *models.Workflow, sessionKey string) error {
	if err := m.persistence.UnlockWorkflow(ctx, w.ID, sessionKey); err != nil {
		return err
	}

	w.SessionKey = ""

	return nil
}
