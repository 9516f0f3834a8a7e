package workflow

import (
	"context"
	"fmt"

	"github.com/ontask/engine/pkg/table"
)

// TableStatus is one line of the data table audit.
type TableStatus struct {
	WorkflowID   string
	WorkflowName string
	TableName    string
	Exists       bool
	Rows         int
	ExpectedRows int
}

func (s TableStatus) String() string {
	if !s.Exists {
		return fmt.Sprintf("%s (%s): table %s is MISSING", s.WorkflowName, s.WorkflowID, s.TableName)
	}

	if s.Rows != s.ExpectedRows {
		return fmt.Sprintf("%s (%s): table %s has %d rows, metadata says %d",
			s.WorkflowName, s.WorkflowID, s.TableName, s.Rows, s.ExpectedRows)
	}

	return fmt.Sprintf("%s (%s): table %s ok (%d rows)", s.WorkflowName, s.WorkflowID, s.TableName, s.Rows)
}

// OK reports whether the audited table matches its workflow metadata.
func (s TableStatus) OK() bool {
	return s.Exists && s.Rows == s.ExpectedRows
}

// AuditTables checks that every workflow of the owner (all workflows when the
// owner is empty) has its canonically named data table, and that the row
// counts agree with the metadata.
func (m *Manager) AuditTables(ctx context.Context, owner string) ([]TableStatus, error) {
	workflows, err := m.persistence.Workflows(ctx, owner)
	if err != nil {
		return nil, err
	}

	statuses := make([]TableStatus, 0, len(workflows))

	for _, w := range workflows {
		status := TableStatus{
			WorkflowID:   w.ID,
			WorkflowName: w.Name,
			TableName:    table.DataTableName(w.ID),
			ExpectedRows: w.NRows,
		}

		t := m.Table(w)

		exists, err := t.Exists(ctx)
		if err != nil {
			return statuses, err
		}

		status.Exists = exists

		if exists {
			rows, err := t.NumRows(ctx, nil)
			if err != nil {
				return statuses, err
			}

			status.Rows = rows
		}

		statuses = append(statuses, status)
	}

	return statuses, nil
}
