package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ontask/engine/pkg/formula"
	"github.com/ontask/engine/pkg/models"
	"github.com/ontask/engine/pkg/table"
)

// WorkflowRepository handles workflow-related database operations. Queries are
// written with `?` placeholders and rebound per dialect, so the same
// repository serves PostgreSQL and SQLite.
type WorkflowRepository struct {
	db      *sql.DB
	dialect table.Dialect
	logger  *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, dialect table.Dialect, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, dialect: dialect, logger: logger}
}

const workflowColumns = `
	id
  , name
  , description
  , owner
  , attributes
  , columns
  , nrows
  , ncols
  , session_key
  , last_email_hash
  , created_at
  , updated_at
`

// GetAll returns the workflows owned by the given user, newest first. An
// empty owner matches every workflow, for administrative audits.
func (r *WorkflowRepository) GetAll(ctx context.Context, owner string) ([]*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE deleted_at IS NULL
	`

	args := make([]any, 0, 1)

	if owner != "" {
		query += " AND owner = ?"

		args = append(args, owner)
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := r.scanWorkflowBase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		err = r.loadActionsAndViews(ctx, workflow)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow actions and views: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := r.dialect.Rebind(`
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE id = ? AND deleted_at IS NULL
	`)

	return r.getOne(ctx, query, id)
}

// GetByName resolves a workflow by its per-owner unique name.
func (r *WorkflowRepository) GetByName(ctx context.Context, owner, name string) (*models.Workflow, error) {
	query := r.dialect.Rebind(`
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE owner = ? AND name = ? AND deleted_at IS NULL
	`)

	return r.getOne(ctx, query, owner, name)
}

func (r *WorkflowRepository) getOne(ctx context.Context, query string, args ...any) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, query, args...)

	workflow, err := r.scanWorkflowBase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	if err := r.loadActionsAndViews(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to load workflow actions and views: %w", err)
	}

	return workflow, nil
}

// Save upserts the workflow with its actions and views in one transaction.
// The (owner, name) pair must be unique among live workflows.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	if err := r.checkNameCollision(ctx, workflow); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	attributesJSON, err := json.Marshal(workflow.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}

	columnsJSON, err := json.Marshal(workflow.Columns)
	if err != nil {
		return fmt.Errorf("failed to marshal columns: %w", err)
	}

	workflowQuery := r.dialect.Rebind(`
		INSERT INTO workflows (id, name, description, owner, attributes, columns,
			nrows, ncols, session_key, last_email_hash, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			owner = excluded.owner,
			attributes = excluded.attributes,
			columns = excluded.columns,
			nrows = excluded.nrows,
			ncols = excluded.ncols,
			session_key = excluded.session_key,
			last_email_hash = excluded.last_email_hash,
			updated_at = excluded.updated_at
	`)

	_, err = tx.ExecContext(ctx, workflowQuery,
		workflow.ID,
		workflow.Name,
		workflow.Description,
		workflow.Owner,
		attributesJSON,
		columnsJSON,
		workflow.NRows,
		workflow.NCols,
		workflow.SessionKey,
		workflow.LastEmailHash,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow base: %w", err)
	}

	// Delete existing actions and views (for updates)
	_, err = tx.ExecContext(ctx, r.dialect.Rebind("DELETE FROM workflow_actions WHERE workflow_id = ?"), workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing actions: %w", err)
	}

	_, err = tx.ExecContext(ctx, r.dialect.Rebind("DELETE FROM workflow_views WHERE workflow_id = ?"), workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing views: %w", err)
	}

	if err = r.saveActions(ctx, tx, workflow); err != nil {
		return fmt.Errorf("failed to save workflow actions: %w", err)
	}

	if err = r.saveViews(ctx, tx, workflow); err != nil {
		return fmt.Errorf("failed to save workflow views: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// checkNameCollision rejects a save that would reuse the name of another live
// workflow with the same owner. The partial unique index backs this up at the
// database level.
func (r *WorkflowRepository) checkNameCollision(ctx context.Context, workflow *models.Workflow) error {
	query := r.dialect.Rebind(`
		SELECT id FROM workflows
		WHERE owner = ? AND name = ? AND id <> ? AND deleted_at IS NULL
	`)

	var existing string

	err := r.db.QueryRowContext(ctx, query, workflow.Owner, workflow.Name, workflow.ID).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to check workflow name: %w", err)
	}

	return fmt.Errorf("%w: workflow %q already exists for owner %q",
		models.ErrNameCollision, workflow.Name, workflow.Owner)
}

// Delete soft deletes a workflow by setting the deleted_at timestamp. The data
// table is dropped separately by the caller.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	query := r.dialect.Rebind(`
		UPDATE workflows SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`)

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Workflow doesn't exist or already deleted - this is not an error
		return nil
	}

	return nil
}

// Lock acquires the advisory edit lock for the given session key. Re-locking
// with the same key is a no-op.
func (r *WorkflowRepository) Lock(ctx context.Context, id, sessionKey string) error {
	query := r.dialect.Rebind(`
		UPDATE workflows SET session_key = ?
		WHERE id = ? AND deleted_at IS NULL AND (session_key = '' OR session_key = ?)
	`)

	result, err := r.db.ExecContext(ctx, query, sessionKey, id, sessionKey)
	if err != nil {
		return fmt.Errorf("failed to lock workflow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 1 {
		return nil
	}

	workflow, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if workflow == nil {
		return fmt.Errorf("%w: workflow %s", models.ErrWorkflowNotFound, id)
	}

	return fmt.Errorf("%w: workflow %s is locked by another session", models.ErrLockHeld, id)
}

// Unlock releases the advisory lock, verifying the caller holds it.
func (r *WorkflowRepository) Unlock(ctx context.Context, id, sessionKey string) error {
	query := r.dialect.Rebind(`
		UPDATE workflows SET session_key = ''
		WHERE id = ? AND deleted_at IS NULL AND session_key = ?
	`)

	result, err := r.db.ExecContext(ctx, query, id, sessionKey)
	if err != nil {
		return fmt.Errorf("failed to unlock workflow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 1 {
		return nil
	}

	workflow, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if workflow == nil {
		return fmt.Errorf("%w: workflow %s", models.ErrWorkflowNotFound, id)
	}

	if workflow.SessionKey == "" {
		// Already unlocked
		return nil
	}

	return fmt.Errorf("%w: workflow %s is locked by another session", models.ErrLockHeld, id)
}

func (r *WorkflowRepository) loadActionsAndViews(ctx context.Context, workflow *models.Workflow) error {
	actionsQuery := r.dialect.Rebind(`
		SELECT id, name, description, action_type, text_content, target_url,
			serve_enabled, shuffle, active_from, active_to,
			filter, conditions, column_condition_pairs, rubric_cells, rows_all_false
		FROM workflow_actions
		WHERE workflow_id = ?
		ORDER BY name
	`)

	rows, err := r.db.QueryContext(ctx, actionsQuery, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow actions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	var actions []*models.Action

	for rows.Next() {
		action, err := r.scanAction(rows)
		if err != nil {
			return err
		}

		actions = append(actions, action)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating actions: %w", err)
	}

	workflow.Actions = actions

	viewsQuery := r.dialect.Rebind(`
		SELECT name, description, columns, formula
		FROM workflow_views
		WHERE workflow_id = ?
		ORDER BY name
	`)

	rows, err = r.db.QueryContext(ctx, viewsQuery, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow views: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	var views []*models.View

	for rows.Next() {
		var (
			view                     models.View
			columnsJSON, formulaJSON []byte
		)

		err := rows.Scan(&view.Name, &view.Description, &columnsJSON, &formulaJSON)
		if err != nil {
			return fmt.Errorf("failed to scan view: %w", err)
		}

		if columnsJSON != nil {
			if err := json.Unmarshal(columnsJSON, &view.Columns); err != nil {
				return fmt.Errorf("failed to unmarshal view columns: %w", err)
			}
		}

		if formulaJSON != nil {
			if err := json.Unmarshal(formulaJSON, &view.Formula); err != nil {
				return fmt.Errorf("failed to unmarshal view formula: %w", err)
			}
		}

		views = append(views, &view)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating views: %w", err)
	}

	workflow.Views = views

	return nil
}

func (r *WorkflowRepository) scanAction(rows *sql.Rows) (*models.Action, error) {
	var (
		action               models.Action
		activeFrom, activeTo sql.NullTime
		filterJSON           []byte
		conditionsJSON       []byte
		triplesJSON          []byte
		rubricJSON           []byte
		allFalseJSON         []byte
	)

	err := rows.Scan(
		&action.ID,
		&action.Name,
		&action.Description,
		&action.Type,
		&action.TextContent,
		&action.TargetURL,
		&action.ServeEnabled,
		&action.Shuffle,
		&activeFrom,
		&activeTo,
		&filterJSON,
		&conditionsJSON,
		&triplesJSON,
		&rubricJSON,
		&allFalseJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan action: %w", err)
	}

	if activeFrom.Valid {
		t := activeFrom.Time.UTC()
		action.ActiveFrom = &t
	}

	if activeTo.Valid {
		t := activeTo.Time.UTC()
		action.ActiveTo = &t
	}

	for _, field := range []struct {
		raw  []byte
		dest any
	}{
		{filterJSON, &action.Filter},
		{conditionsJSON, &action.Conditions},
		{triplesJSON, &action.Triples},
		{rubricJSON, &action.RubricCells},
		{allFalseJSON, &action.RowsAllFalse},
	} {
		if field.raw == nil {
			continue
		}

		if err := json.Unmarshal(field.raw, field.dest); err != nil {
			return nil, fmt.Errorf("failed to unmarshal action field: %w", err)
		}
	}

	return &action, nil
}

// saveActions saves the actions of a workflow.
func (r *WorkflowRepository) saveActions(ctx context.Context, tx *sql.Tx, workflow *models.Workflow) error {
	query := r.dialect.Rebind(`
		INSERT INTO workflow_actions (workflow_id, id, name, description, action_type,
			text_content, target_url, serve_enabled, shuffle, active_from, active_to,
			filter, conditions, column_condition_pairs, rubric_cells, rows_all_false)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	for _, action := range workflow.Actions {
		if action.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("failed to generate action ID: %w", err)
			}

			action.ID = id.String()
		}

		filterJSON, err := marshalNullable(action.Filter)
		if err != nil {
			return fmt.Errorf("failed to marshal filter: %w", err)
		}

		conditionsJSON, err := json.Marshal(action.Conditions)
		if err != nil {
			return fmt.Errorf("failed to marshal conditions: %w", err)
		}

		triplesJSON, err := json.Marshal(action.Triples)
		if err != nil {
			return fmt.Errorf("failed to marshal column condition pairs: %w", err)
		}

		rubricJSON, err := json.Marshal(action.RubricCells)
		if err != nil {
			return fmt.Errorf("failed to marshal rubric cells: %w", err)
		}

		allFalseJSON, err := marshalNullable(action.RowsAllFalse)
		if err != nil {
			return fmt.Errorf("failed to marshal all-false rows: %w", err)
		}

		_, err = tx.ExecContext(ctx, query,
			workflow.ID,
			action.ID,
			action.Name,
			action.Description,
			action.Type,
			action.TextContent,
			action.TargetURL,
			action.ServeEnabled,
			action.Shuffle,
			nullableTime(action.ActiveFrom),
			nullableTime(action.ActiveTo),
			filterJSON,
			conditionsJSON,
			triplesJSON,
			rubricJSON,
			allFalseJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to save action %q: %w", action.Name, err)
		}
	}

	return nil
}

// saveViews saves the views of a workflow.
func (r *WorkflowRepository) saveViews(ctx context.Context, tx *sql.Tx, workflow *models.Workflow) error {
	query := r.dialect.Rebind(`
		INSERT INTO workflow_views (workflow_id, name, description, columns, formula)
		VALUES (?, ?, ?, ?, ?)
	`)

	for _, view := range workflow.Views {
		columnsJSON, err := json.Marshal(view.Columns)
		if err != nil {
			return fmt.Errorf("failed to marshal view columns: %w", err)
		}

		formulaJSON, err := marshalNullable(view.Formula)
		if err != nil {
			return fmt.Errorf("failed to marshal view formula: %w", err)
		}

		_, err = tx.ExecContext(ctx, query,
			workflow.ID,
			view.Name,
			view.Description,
			columnsJSON,
			formulaJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to save view %q: %w", view.Name, err)
		}
	}

	return nil
}

func (r *WorkflowRepository) scanWorkflowBase(scanner interface {
	Scan(dest ...any) error
}) (*models.Workflow, error) {
	var (
		workflow                    models.Workflow
		attributesJSON, columnsJSON []byte
	)

	err := scanner.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Description,
		&workflow.Owner,
		&attributesJSON,
		&columnsJSON,
		&workflow.NRows,
		&workflow.NCols,
		&workflow.SessionKey,
		&workflow.LastEmailHash,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if attributesJSON != nil {
		err := json.Unmarshal(attributesJSON, &workflow.Attributes)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
		}
	}

	if workflow.Attributes == nil {
		workflow.Attributes = make(map[string]string)
	}

	if columnsJSON != nil {
		err := json.Unmarshal(columnsJSON, &workflow.Columns)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal columns: %w", err)
		}
	}

	return &workflow, nil
}

// marshalNullable encodes a pointer or slice field, mapping nil to SQL NULL so
// "not set" round-trips distinctly from an empty value.
func marshalNullable(v any) (any, error) {
	switch value := v.(type) {
	case *models.Filter:
		if value == nil {
			return nil, nil
		}
	case *formula.Node:
		if value == nil {
			return nil, nil
		}
	case []int64:
		if value == nil {
			return nil, nil
		}
	default:
		if v == nil {
			return nil, nil
		}
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return raw, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}

	return t.UTC()
}
