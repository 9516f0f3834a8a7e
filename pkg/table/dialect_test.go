package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontask/engine/pkg/models"
)

func TestPostgresRebind(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"no placeholders", "SELECT 1", "SELECT 1"},
		{"numbered in order", "a = ? AND b = ?", "a = $1 AND b = $2"},
		{
			"quoted question marks untouched",
			`a = ? AND b = '?' AND "c?" = ?`,
			`a = $1 AND b = '?' AND "c?" = $2`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Postgres{}.Rebind(tt.query))
		})
	}
}

func TestSQLiteRebindIsIdentity(t *testing.T) {
	query := "a = ? AND b = ?"
	assert.Equal(t, query, SQLite{}.Rebind(query))
}

func TestColumnTypes(t *testing.T) {
	pg, err := Postgres{}.ColumnType(models.TypeDatetime)
	require.NoError(t, err)
	assert.Equal(t, "TIMESTAMPTZ", pg)

	lite, err := SQLite{}.ColumnType(models.TypeDouble)
	require.NoError(t, err)
	assert.Equal(t, "REAL", lite)

	_, err = Postgres{}.ColumnType(models.DataType("decimal"))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidValue)
}

func TestDialectFor(t *testing.T) {
	for _, name := range []string{"postgres", "postgresql"} {
		d, err := DialectFor(name)
		require.NoError(t, err)
		assert.Equal(t, "postgres", d.Name())
	}

	for _, name := range []string{"sqlite", "sqlite3"} {
		d, err := DialectFor(name)
		require.NoError(t, err)
		assert.Equal(t, "sqlite", d.Name())
	}

	_, err := DialectFor("mysql")
	require.Error(t, err)
}
