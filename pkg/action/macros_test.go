package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontask/engine/pkg/models"
	"github.com/ontask/engine/pkg/table"
	"github.com/ontask/engine/pkg/testutil"
)

func TestColumnListMacro(t *testing.T) {
	a := testutil.CreateTestAction(
		testutil.WithFilter(testutil.LeafFormula("enrolled", "boolean", "equal", true)),
	)
	a.TextContent = `Scores so far: {% ot_insert_column_list "score" %}`

	w := testutil.CreateTestWorkflow(testutil.WithAction(a))

	results, err := newEvaluator(t, w).Evaluate(context.Background(), w, a, Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// The list covers the filtered rows and is identical for every row.
	assert.Equal(t, "Scores so far: 82, 45", results[0].Body)
	assert.Equal(t, results[0].Body, results[1].Body)
}

func TestColumnListMacro_UnknownColumn(t *testing.T) {
	a := testutil.CreateTestAction()
	a.TextContent = `{% ot_insert_column_list "ghost" %}`

	w := testutil.CreateTestWorkflow(testutil.WithAction(a))

	_, err := newEvaluator(t, w).Evaluate(context.Background(), w, a, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrMissingResource)
}

func TestReportMacro(t *testing.T) {
	a := testutil.CreateTestAction()
	a.Type = models.ActionEmailReport
	a.TextContent = "{% ot_insert_report %}"
	a.Triples = []*models.ColumnCondition{
		{Column: "name"},
		{Column: "score"},
	}

	w := testutil.CreateTestWorkflow(testutil.WithAction(a))

	results, err := newEvaluator(t, w).Evaluate(context.Background(), w, a, Options{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "name: Alice, Bob, Carol\nscore: 82, 45, 67\n", results[0].Body)
}

func TestRubricFeedbackMacro(t *testing.T) {
	a := testutil.CreateTestAction()
	a.Type = models.ActionRubricText
	a.TextContent = "{% ot_insert_rubric_feedback %}"
	a.Triples = []*models.ColumnCondition{{Column: "grade"}}
	a.SetRubricCell(&models.RubricCell{Column: "grade", LOAPosition: 0, FeedbackText: "work on the basics"})
	a.SetRubricCell(&models.RubricCell{Column: "grade", LOAPosition: 1, FeedbackText: "great work"})

	w := testutil.CreateTestWorkflow(
		testutil.WithColumns(
			&models.Column{Name: "email", DataType: models.TypeString, IsKey: true, Position: 1},
			&models.Column{
				Name:       "grade",
				DataType:   models.TypeString,
				Position:   2,
				Categories: []any{"low", "high"},
			},
		),
		testutil.WithAction(a),
	)

	frame := &table.Frame{
		Columns: []string{"email", "grade"},
		Rows: [][]any{
			{"alice@example.org", "high"},
			{"bob@example.org", "low"},
			{"carol@example.org", "unrated"},
		},
	}

	evaluator := NewEvaluator(setupTable(t, w, frame), discardLogger())

	results, err := evaluator.Evaluate(context.Background(), w, a, Options{})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "great work", results[0].Body)
	assert.Equal(t, "work on the basics", results[1].Body)

	// Values outside the categories contribute no feedback.
	assert.Equal(t, "", results[2].Body)
}
