package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleWorkflow() *Workflow {
	return &Workflow{
		ID:    "wf-1",
		Name:  "Engineering 101",
		Owner: "instructor@example.org",
		Attributes: map[string]string{
			"course": "Engineering 101",
		},
		Columns: []*Column{
			{Name: "email", DataType: TypeString, IsKey: true, Position: 1},
			{Name: "score", DataType: TypeInteger, Position: 2},
		},
		NCols: 2,
	}
}

func TestWorkflowLookups(t *testing.T) {
	w := sampleWorkflow()

	require.NotNil(t, w.ColumnByName("score"))
	assert.Nil(t, w.ColumnByName("missing"))

	keys := w.KeyColumns()
	require.Len(t, keys, 1)
	assert.Equal(t, "email", keys[0].Name)

	assert.Equal(t, []string{"email", "score"}, w.ColumnNames())
	assert.Equal(t, map[string]string{"email": "string", "score": "integer"}, w.Schema())
}

func TestCheckConditionName(t *testing.T) {
	w := sampleWorkflow()

	require.NoError(t, w.CheckConditionName("passed"))

	err := w.CheckConditionName("score")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNameCollision)

	err = w.CheckConditionName("course")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNameCollision)
}

func TestAddColumn(t *testing.T) {
	w := sampleWorkflow()

	require.NoError(t, w.AddColumn(&Column{Name: "enrolled", DataType: TypeBoolean}))
	assert.Equal(t, 3, w.NCols)
	assert.Equal(t, 3, w.ColumnByName("enrolled").Position)

	err := w.AddColumn(&Column{Name: "score", DataType: TypeInteger})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNameCollision)

	err = w.AddColumn(&Column{Name: "", DataType: TypeString})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestAddColumn_OutOfRangePositionAppends(t *testing.T) {
	w := sampleWorkflow()

	require.NoError(t, w.AddColumn(&Column{Name: "late", DataType: TypeString, Position: 99}))
	assert.Equal(t, 3, w.ColumnByName("late").Position)
}

func TestRemoveColumn(t *testing.T) {
	w := sampleWorkflow()

	require.NoError(t, w.RemoveColumn("email"))
	assert.Equal(t, 1, w.NCols)
	assert.Equal(t, 1, w.ColumnByName("score").Position)

	err := w.RemoveColumn("email")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingResource)
}
