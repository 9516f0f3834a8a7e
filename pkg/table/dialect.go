// Package table stores a workflow's rows in a relational table with typed,
// key-aware columns, and pushes compiled formulas down into its queries.
package table

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ontask/engine/pkg/models"
)

// Dialect abstracts over the two supported SQL backends: PostgreSQL for
// production and SQLite for embedded use and hermetic tests.
type Dialect interface {
	// Name identifies the dialect ("postgres" or "sqlite").
	Name() string

	// Rebind converts `?` placeholders into the backend's positional form.
	Rebind(query string) string

	// ColumnType maps an engine data type to the backend column type.
	ColumnType(dt models.DataType) (string, error)

	// RowIndexDDL declares the hidden monotonically increasing row column
	// providing the table's natural order.
	RowIndexDDL() string
}

// Postgres is the production dialect over lib/pq.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

// Rebind rewrites `?` placeholders to `$n`, skipping quoted regions so
// identifiers or literals containing question marks are left alone.
func (Postgres) Rebind(query string) string {
	var out strings.Builder

	arg := 0
	inSingle := false
	inDouble := false

	for _, r := range query {
		switch {
		case r == '\'' && !inDouble:
			inSingle = !inSingle
		case r == '"' && !inSingle:
			inDouble = !inDouble
		case r == '?' && !inSingle && !inDouble:
			arg++
			out.WriteByte('$')
			out.WriteString(strconv.Itoa(arg))

			continue
		}

		out.WriteRune(r)
	}

	return out.String()
}

func (Postgres) ColumnType(dt models.DataType) (string, error) {
	switch dt {
	case models.TypeString:
		return "TEXT", nil
	case models.TypeInteger:
		return "BIGINT", nil
	case models.TypeDouble:
		return "DOUBLE PRECISION", nil
	case models.TypeBoolean:
		return "BOOLEAN", nil
	case models.TypeDatetime:
		return "TIMESTAMPTZ", nil
	default:
		return "", fmt.Errorf("%w: no column type for %q", models.ErrInvalidValue, dt)
	}
}

func (Postgres) RowIndexDDL() string {
	return rowIndexColumn + " BIGSERIAL PRIMARY KEY"
}

// SQLite is the embedded dialect over mattn/go-sqlite3. The driver converts
// declared BOOLEAN and TIMESTAMP columns to Go bool and time.Time on scan.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

// Rebind is the identity for SQLite, which accepts `?` placeholders.
func (SQLite) Rebind(query string) string { return query }

func (SQLite) ColumnType(dt models.DataType) (string, error) {
	switch dt {
	case models.TypeString:
		return "TEXT", nil
	case models.TypeInteger:
		return "INTEGER", nil
	case models.TypeDouble:
		return "REAL", nil
	case models.TypeBoolean:
		return "BOOLEAN", nil
	case models.TypeDatetime:
		return "TIMESTAMP", nil
	default:
		return "", fmt.Errorf("%w: no column type for %q", models.ErrInvalidValue, dt)
	}
}

func (SQLite) RowIndexDDL() string {
	return rowIndexColumn + " INTEGER PRIMARY KEY AUTOINCREMENT"
}

// DialectFor returns the dialect matching a database URL scheme or driver
// name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case "postgres", "postgresql":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unsupported database dialect %q", name)
	}
}
