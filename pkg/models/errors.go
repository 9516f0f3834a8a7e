// Package models defines the core domain models for the personalization engine.
package models

import (
	"errors"
	"fmt"

	"github.com/ontask/engine/pkg/formula"
)

// Standard error kinds surfaced to callers. All user-facing failures wrap one
// of these sentinels so callers can classify with errors.Is.
var (
	// ErrInvalidValue indicates a literal cannot be parsed for the declared column type.
	ErrInvalidValue = errors.New("invalid value")

	// ErrInvalidFormula indicates an operator applied to an incompatible type or a
	// leaf referencing an unknown column. It is owned by the formula package so
	// the evaluators can classify without importing the models.
	ErrInvalidFormula = formula.ErrInvalidFormula

	// ErrNameCollision indicates a condition name equals a column or attribute name,
	// a duplicate workflow name, or two rewritten template names colliding.
	ErrNameCollision = errors.New("name collision")

	// ErrKeyViolation indicates no column satisfies the unique-and-non-null property.
	ErrKeyViolation = errors.New("key violation")

	// ErrTemplateSyntax indicates the template cannot be parsed after variable rewrite.
	ErrTemplateSyntax = errors.New("template syntax error")

	// ErrMissingResource indicates a referenced condition, column, or rubric cell
	// has been deleted.
	ErrMissingResource = errors.New("missing resource")

	// ErrLockHeld indicates another session holds the workflow lock.
	ErrLockHeld = errors.New("workflow lock held")

	// ErrImportSchema indicates an unrecognized bundle version or a data frame
	// disagreeing with the column list.
	ErrImportSchema = errors.New("import schema mismatch")

	// ErrConditionReferenced indicates a condition cannot be deleted while the
	// action template still references it.
	ErrConditionReferenced = errors.New("condition referenced by template")

	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")
)

// WorkflowError wraps workflow-related errors with operation context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "RenameColumn", "Import")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// ActionError wraps action-related errors with operation context.
type ActionError struct {
	Op         string
	WorkflowID string
	ActionName string
	Err        error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s operation failed for action %s in workflow %s: %v", e.Op, e.ActionName, e.WorkflowID, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

func (e *ActionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewActionError creates a new action error with context.
func NewActionError(op, workflowID, actionName string, err error) *ActionError {
	return &ActionError{
		Op:         op,
		WorkflowID: workflowID,
		ActionName: actionName,
		Err:        err,
	}
}

// IsLockHeld checks if an error indicates the workflow lock is held elsewhere.
func IsLockHeld(err error) bool {
	return errors.Is(err, ErrLockHeld)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}
