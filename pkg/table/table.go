package table

import (
	"context"
	"crypto/md5" //nolint:gosec // change-detection hash, not a credential
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ontask/engine/pkg/formula"
	"github.com/ontask/engine/pkg/models"
)

// rowIndexColumn is the hidden column giving every row a stable position in
// the table's natural order.
const rowIndexColumn = "_ot_row"

// tablePrefix prefixes every workflow data table name.
const tablePrefix = "ot_data_"

// Table gives typed, key-aware access to one workflow's data table.
type Table struct {
	db      *sql.DB
	dialect Dialect
	name    string
	logger  *slog.Logger
}

// DataTableName derives the canonical table name for a workflow id.
func DataTableName(workflowID string) string {
	return tablePrefix + strings.ReplaceAll(workflowID, "-", "")
}

// New returns a handle on the data table of the given workflow.
func New(db *sql.DB, dialect Dialect, workflowID string, logger *slog.Logger) *Table {
	return &Table{
		db:      db,
		dialect: dialect,
		name:    DataTableName(workflowID),
		logger:  logger,
	}
}

// Name returns the underlying table name.
func (t *Table) Name() string { return t.name }

func (t *Table) quotedName() string { return formula.QuoteIdent(t.name) }

// predicate compiles the optional formula into a WHERE clause.
func predicate(f *formula.Node) (string, []any, error) {
	fragment, args, err := formula.EvalSQL(f)
	if err != nil {
		return "", nil, err
	}

	if fragment == "" {
		return "", nil, nil
	}

	return " WHERE " + fragment, args, nil
}

// Exists reports whether the data table is present in the backend.
func (t *Table) Exists(ctx context.Context) (bool, error) {
	var query string

	switch t.dialect.Name() {
	case "postgres":
		query = "SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?"
	default:
		query = "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
	}

	var count int

	err := t.db.QueryRowContext(ctx, t.dialect.Rebind(query), t.name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to probe table %s: %w", t.name, err)
	}

	return count > 0, nil
}

// Create creates the data table with the given typed columns and the hidden
// row-index column.
func (t *Table) Create(ctx context.Context, columns []*models.Column) error {
	query, err := t.createDDL(columns)
	if err != nil {
		return err
	}

	_, err = t.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", t.name, err)
	}

	return nil
}

func (t *Table) createDDL(columns []*models.Column) (string, error) {
	defs := make([]string, 0, len(columns)+1)
	defs = append(defs, t.dialect.RowIndexDDL())

	for _, col := range columns {
		if err := col.Validate(); err != nil {
			return "", err
		}

		columnType, err := t.dialect.ColumnType(col.DataType)
		if err != nil {
			return "", err
		}

		defs = append(defs, formula.QuoteIdent(col.Name)+" "+columnType)
	}

	return "CREATE TABLE " + t.quotedName() + " (" + strings.Join(defs, ", ") + ")", nil
}

// Drop removes the data table if it exists.
func (t *Table) Drop(ctx context.Context) error {
	_, err := t.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+t.quotedName())
	if err != nil {
		return fmt.Errorf("failed to drop table %s: %w", t.name, err)
	}

	return nil
}

// Store atomically replaces the table contents with the frame. Column names
// longer than the backend limit are rejected, and the result must contain at
// least one unique, non-null column or the whole operation rolls back with a
// key violation.
func (t *Table) Store(ctx context.Context, frame *Frame, columns []*models.Column) error {
	if err := frame.CheckAgainst(columns); err != nil {
		return err
	}

	byName := make(map[string]*models.Column, len(columns))
	for _, col := range columns {
		byName[col.Name] = col
	}

	// Both backends support transactional DDL, so the drop and recreate
	// roll back together with the inserts on failure.
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+t.quotedName())
	if err != nil {
		return fmt.Errorf("failed to drop table %s: %w", t.name, err)
	}

	createDDL, err := t.createDDL(columns)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, createDDL)
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", t.name, err)
	}

	err = t.insertFrame(ctx, tx, frame, byName)
	if err != nil {
		return err
	}

	ok, err := t.hasUniqueColumn(ctx, tx, frame, columns)
	if err != nil {
		return err
	}

	if !ok {
		err = fmt.Errorf("%w: no column is unique and non-null", models.ErrKeyViolation)

		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit table store: %w", err)
	}

	return nil
}

func (t *Table) insertFrame(ctx context.Context, tx *sql.Tx, frame *Frame, byName map[string]*models.Column) error {
	if frame.NRows() == 0 {
		return nil
	}

	quoted := make([]string, len(frame.Columns))
	placeholders := make([]string, len(frame.Columns))

	for i, name := range frame.Columns {
		quoted[i] = formula.QuoteIdent(name)
		placeholders[i] = "?"
	}

	query := t.dialect.Rebind(fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		t.quotedName(), strings.Join(quoted, ", "), strings.Join(placeholders, ", "),
	))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare row insert: %w", err)
	}

	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			t.logger.ErrorContext(ctx, "failed to close statement", "error", cerr)
		}
	}()

	for _, row := range frame.Rows {
		args := make([]any, len(row))

		for i, value := range row {
			coerced, err := CoerceValue(byName[frame.Columns[i]].DataType, value)
			if err != nil {
				return err
			}

			args[i] = coerced
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}
	}

	return nil
}

func (t *Table) hasUniqueColumn(ctx context.Context, tx *sql.Tx, frame *Frame, columns []*models.Column) (bool, error) {
	// Key-flagged columns are checked first; with no flags any column may
	// serve as the key.
	candidates := make([]string, 0, len(columns))

	for _, col := range columns {
		if col.IsKey {
			candidates = append(candidates, col.Name)
		}
	}

	if len(candidates) == 0 {
		candidates = frame.Columns
	}

	for _, name := range candidates {
		quoted := formula.QuoteIdent(name)
		query := fmt.Sprintf(
			"SELECT COUNT(*), COUNT(DISTINCT %s), COUNT(%s) FROM %s",
			quoted, quoted, t.quotedName(),
		)

		var total, distinct, nonNull int

		if err := tx.QueryRowContext(ctx, query).Scan(&total, &distinct, &nonNull); err != nil {
			return false, fmt.Errorf("failed to check uniqueness of %q: %w", name, err)
		}

		if total == distinct && total == nonNull {
			return true, nil
		}
	}

	return false, nil
}

// NumRows counts the rows satisfying the optional filter formula.
func (t *Table) NumRows(ctx context.Context, f *formula.Node) (int, error) {
	where, args, err := predicate(f)
	if err != nil {
		return 0, err
	}

	query := t.dialect.Rebind("SELECT COUNT(*) FROM " + t.quotedName() + where)

	var count int

	err = t.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}

	return count, nil
}

// Load returns the rows satisfying the optional filter, in natural order,
// projected onto the given columns.
func (t *Table) Load(ctx context.Context, f *formula.Node, columns []*models.Column) ([]Row, error) {
	where, args, err := predicate(f)
	if err != nil {
		return nil, err
	}

	query := t.dialect.Rebind(
		"SELECT " + selectList(columns) + " FROM " + t.quotedName() + where +
			" ORDER BY " + rowIndexColumn,
	)

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load rows: %w", err)
	}

	defer t.closeRows(ctx, rows)

	result := make([]Row, 0)

	for rows.Next() {
		row, err := scanRow(rows, columns)
		if err != nil {
			return nil, err
		}

		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// GetRow returns the single row whose key column holds the given value, or
// nil when absent.
func (t *Table) GetRow(ctx context.Context, keyColumn string, keyValue any, columns []*models.Column) (Row, error) {
	query := t.dialect.Rebind(
		"SELECT " + selectList(columns) + " FROM " + t.quotedName() +
			" WHERE " + formula.QuoteIdent(keyColumn) + " = ? LIMIT 1",
	)

	rows, err := t.db.QueryContext(ctx, query, keyValue)
	if err != nil {
		return nil, fmt.Errorf("failed to get row: %w", err)
	}

	defer t.closeRows(ctx, rows)

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error reading row: %w", err)
		}

		return nil, nil
	}

	return scanRow(rows, columns)
}

// GetRowByIndex returns the i-th row (1-based) under the optional filter, in
// the table's stable natural order, or nil when out of range.
func (t *Table) GetRowByIndex(ctx context.Context, f *formula.Node, columns []*models.Column, index int) (Row, error) {
	if index < 1 {
		return nil, nil
	}

	where, args, err := predicate(f)
	if err != nil {
		return nil, err
	}

	query := t.dialect.Rebind(fmt.Sprintf(
		"SELECT %s FROM %s%s ORDER BY %s LIMIT 1 OFFSET %d",
		selectList(columns), t.quotedName(), where, rowIndexColumn, index-1,
	))

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get row by index: %w", err)
	}

	defer t.closeRows(ctx, rows)

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error reading row: %w", err)
		}

		return nil, nil
	}

	return scanRow(rows, columns)
}

// MatchingIndexes returns the 1-based positions, under the full table's
// natural order, of the rows satisfying the formula.
func (t *Table) MatchingIndexes(ctx context.Context, f *formula.Node) ([]int64, error) {
	fragment, args, err := formula.EvalSQL(f)
	if err != nil {
		return nil, err
	}

	if fragment == "" {
		fragment = "TRUE"
	}

	query := t.dialect.Rebind(fmt.Sprintf(
		"SELECT idx FROM (SELECT ROW_NUMBER() OVER (ORDER BY %s) AS idx, * FROM %s) AS numbered WHERE %s ORDER BY idx",
		rowIndexColumn, t.quotedName(), fragment,
	))

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select matching indexes: %w", err)
	}

	defer t.closeRows(ctx, rows)

	indexes := make([]int64, 0)

	for rows.Next() {
		var idx int64

		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}

		indexes = append(indexes, idx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating indexes: %w", err)
	}

	return indexes, nil
}

// DistinctValues returns the distinct non-null values of a column in
// ascending order.
func (t *Table) DistinctValues(ctx context.Context, col *models.Column) ([]any, error) {
	quoted := formula.QuoteIdent(col.Name)
	query := "SELECT DISTINCT " + quoted + " FROM " + t.quotedName() +
		" WHERE " + quoted + " IS NOT NULL ORDER BY 1"

	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select distinct values: %w", err)
	}

	defer t.closeRows(ctx, rows)

	values := make([]any, 0)

	for rows.Next() {
		value, err := scanValue(rows, col.DataType)
		if err != nil {
			return nil, err
		}

		values = append(values, value)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating distinct values: %w", err)
	}

	return values, nil
}

// IsUnique reports whether the column's values are distinct and non-null
// across all rows.
func (t *Table) IsUnique(ctx context.Context, name string) (bool, error) {
	quoted := formula.QuoteIdent(name)
	query := fmt.Sprintf(
		"SELECT COUNT(*), COUNT(DISTINCT %s), COUNT(%s) FROM %s",
		quoted, quoted, t.quotedName(),
	)

	var total, distinct, nonNull int

	err := t.db.QueryRowContext(ctx, query).Scan(&total, &distinct, &nonNull)
	if err != nil {
		return false, fmt.Errorf("failed to check uniqueness of %q: %w", name, err)
	}

	return total == distinct && total == nonNull, nil
}

// ColumnHash returns the MD5 digest of the column's concatenated textual
// values in natural order, used to detect changes to designated columns. The
// digest is computed engine-side so both backends produce identical hashes.
func (t *Table) ColumnHash(ctx context.Context, name string) (string, error) {
	quoted := formula.QuoteIdent(name)
	query := "SELECT " + quoted + " FROM " + t.quotedName() + " ORDER BY " + rowIndexColumn

	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to read column %q: %w", name, err)
	}

	defer t.closeRows(ctx, rows)

	digest := md5.New() //nolint:gosec // change-detection hash, not a credential

	for rows.Next() {
		var value sql.NullString

		if err := rows.Scan(&value); err != nil {
			return "", fmt.Errorf("failed to scan column value: %w", err)
		}

		if value.Valid {
			digest.Write([]byte(value.String))
		}
	}

	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("error iterating column values: %w", err)
	}

	return hex.EncodeToString(digest.Sum(nil)), nil
}

// AddColumn adds a typed column, optionally backfilling a default value.
func (t *Table) AddColumn(ctx context.Context, col *models.Column, defaultValue any) error {
	if err := col.Validate(); err != nil {
		return err
	}

	columnType, err := t.dialect.ColumnType(col.DataType)
	if err != nil {
		return err
	}

	query := "ALTER TABLE " + t.quotedName() + " ADD COLUMN " + formula.QuoteIdent(col.Name) + " " + columnType

	if _, err := t.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to add column %q: %w", col.Name, err)
	}

	if defaultValue == nil {
		return nil
	}

	coerced, err := CoerceValue(col.DataType, defaultValue)
	if err != nil {
		return err
	}

	update := t.dialect.Rebind("UPDATE " + t.quotedName() + " SET " + formula.QuoteIdent(col.Name) + " = ?")

	if _, err := t.db.ExecContext(ctx, update, coerced); err != nil {
		return fmt.Errorf("failed to backfill column %q: %w", col.Name, err)
	}

	return nil
}

// DropColumn removes a column from the data table.
func (t *Table) DropColumn(ctx context.Context, name string) error {
	query := "ALTER TABLE " + t.quotedName() + " DROP COLUMN " + formula.QuoteIdent(name)

	if _, err := t.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to drop column %q: %w", name, err)
	}

	return nil
}

// RenameColumn renames a column in the data table.
func (t *Table) RenameColumn(ctx context.Context, oldName, newName string) error {
	query := "ALTER TABLE " + t.quotedName() +
		" RENAME COLUMN " + formula.QuoteIdent(oldName) + " TO " + formula.QuoteIdent(newName)

	if _, err := t.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to rename column %q: %w", oldName, err)
	}

	return nil
}

// CopyColumn adds a new column holding a copy of the source column's values.
func (t *Table) CopyColumn(ctx context.Context, src *models.Column, dstName string) error {
	dst := *src
	dst.Name = dstName

	if err := t.AddColumn(ctx, &dst, nil); err != nil {
		return err
	}

	query := "UPDATE " + t.quotedName() + " SET " + formula.QuoteIdent(dstName) + " = " + formula.QuoteIdent(src.Name)

	if _, err := t.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to copy column %q: %w", src.Name, err)
	}

	return nil
}

// UpdateRow writes the given column values into the row identified by the
// key column.
func (t *Table) UpdateRow(ctx context.Context, keyColumn string, keyValue any, changes map[string]any, columns []*models.Column) error {
	if len(changes) == 0 {
		return nil
	}

	byName := make(map[string]*models.Column, len(columns))
	for _, col := range columns {
		byName[col.Name] = col
	}

	assignments := make([]string, 0, len(changes))
	args := make([]any, 0, len(changes)+1)

	// Deterministic assignment order keeps the generated SQL stable.
	for _, col := range columns {
		value, ok := changes[col.Name]
		if !ok {
			continue
		}

		coerced, err := CoerceValue(col.DataType, value)
		if err != nil {
			return err
		}

		assignments = append(assignments, formula.QuoteIdent(col.Name)+" = ?")
		args = append(args, coerced)
	}

	if len(assignments) != len(changes) {
		return fmt.Errorf("%w: update references an unknown column", models.ErrMissingResource)
	}

	args = append(args, keyValue)
	query := t.dialect.Rebind(
		"UPDATE " + t.quotedName() + " SET " + strings.Join(assignments, ", ") +
			" WHERE " + formula.QuoteIdent(keyColumn) + " = ?",
	)

	result, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update row: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("%w: no row with %s = %v", models.ErrMissingResource, keyColumn, keyValue)
	}

	return nil
}

// InsertRow appends a single row at the end of the natural order.
func (t *Table) InsertRow(ctx context.Context, values map[string]any, columns []*models.Column) error {
	quoted := make([]string, 0, len(values))
	placeholders := make([]string, 0, len(values))
	args := make([]any, 0, len(values))

	for _, col := range columns {
		value, ok := values[col.Name]
		if !ok {
			continue
		}

		coerced, err := CoerceValue(col.DataType, value)
		if err != nil {
			return err
		}

		quoted = append(quoted, formula.QuoteIdent(col.Name))
		placeholders = append(placeholders, "?")
		args = append(args, coerced)
	}

	query := t.dialect.Rebind(fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		t.quotedName(), strings.Join(quoted, ", "), strings.Join(placeholders, ", "),
	))

	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert row: %w", err)
	}

	return nil
}

// IncreaseRowInteger atomically increments an integer column of one row, used
// for read-tracking counters.
func (t *Table) IncreaseRowInteger(ctx context.Context, column, keyColumn string, keyValue any) error {
	quoted := formula.QuoteIdent(column)
	query := t.dialect.Rebind(
		"UPDATE " + t.quotedName() + " SET " + quoted + " = COALESCE(" + quoted + ", 0) + 1" +
			" WHERE " + formula.QuoteIdent(keyColumn) + " = ?",
	)

	if _, err := t.db.ExecContext(ctx, query, keyValue); err != nil {
		return fmt.Errorf("failed to increase counter %q: %w", column, err)
	}

	return nil
}

// Snapshot materializes the full table (under an optional formula) as a
// frame, preserving natural order.
func (t *Table) Snapshot(ctx context.Context, f *formula.Node, columns []*models.Column) (*Frame, error) {
	rows, err := t.Load(ctx, f, columns)
	if err != nil {
		return nil, err
	}

	frame := &Frame{
		Columns: make([]string, len(columns)),
		Rows:    make([][]any, len(rows)),
	}

	for i, col := range columns {
		frame.Columns[i] = col.Name
	}

	for i, row := range rows {
		values := make([]any, len(columns))
		for j, col := range columns {
			values[j] = row[col.Name]
		}

		frame.Rows[i] = values
	}

	return frame, nil
}

func (t *Table) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		t.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

func selectList(columns []*models.Column) string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = formula.QuoteIdent(col.Name)
	}

	return strings.Join(quoted, ", ")
}

// scanRow scans the current result row into a typed Row keyed by column name.
func scanRow(rows *sql.Rows, columns []*models.Column) (Row, error) {
	targets := make([]any, len(columns))

	for i, col := range columns {
		targets[i] = scanTarget(col.DataType)
	}

	if err := rows.Scan(targets...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	row := make(Row, len(columns))

	for i, col := range columns {
		row[col.Name] = extractValue(targets[i])
	}

	return row, nil
}

func scanValue(rows *sql.Rows, dt models.DataType) (any, error) {
	target := scanTarget(dt)

	if err := rows.Scan(target); err != nil {
		return nil, fmt.Errorf("failed to scan value: %w", err)
	}

	return extractValue(target), nil
}

func scanTarget(dt models.DataType) any {
	switch dt {
	case models.TypeInteger:
		return &sql.NullInt64{}
	case models.TypeDouble:
		return &sql.NullFloat64{}
	case models.TypeBoolean:
		return &sql.NullBool{}
	case models.TypeDatetime:
		return &sql.NullTime{}
	default:
		return &sql.NullString{}
	}
}

func extractValue(target any) any {
	switch v := target.(type) {
	case *sql.NullInt64:
		if v.Valid {
			return v.Int64
		}
	case *sql.NullFloat64:
		if v.Valid {
			return v.Float64
		}
	case *sql.NullBool:
		if v.Valid {
			return v.Bool
		}
	case *sql.NullTime:
		if v.Valid {
			return v.Time
		}
	case *sql.NullString:
		if v.Valid {
			return v.String
		}
	}

	return nil
}

// CoerceValue converts a loosely typed value (for instance one decoded from
// JSON) into the Go representation stored for the column type. Nil passes
// through as SQL NULL.
func CoerceValue(dt models.DataType, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch dt {
	case models.TypeString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a string", models.ErrInvalidValue, value)
		}

		return s, nil
	case models.TypeInteger:
		switch n := value.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n != float64(int64(n)) {
				return nil, fmt.Errorf("%w: %v is not an integer", models.ErrInvalidValue, n)
			}

			return int64(n), nil
		default:
			return nil, fmt.Errorf("%w: %T is not an integer", models.ErrInvalidValue, value)
		}
	case models.TypeDouble:
		switch n := value.(type) {
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case float64:
			return n, nil
		default:
			return nil, fmt.Errorf("%w: %T is not a double", models.ErrInvalidValue, value)
		}
	case models.TypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a boolean", models.ErrInvalidValue, value)
		}

		return b, nil
	case models.TypeDatetime:
		switch ts := value.(type) {
		case time.Time:
			return ts, nil
		case string:
			parsed, err := models.ParseValue(models.TypeDatetime, ts)
			if err != nil {
				return nil, err
			}

			return parsed, nil
		default:
			return nil, fmt.Errorf("%w: %T is not a datetime", models.ErrInvalidValue, value)
		}
	default:
		return nil, fmt.Errorf("%w: unknown data type %q", models.ErrInvalidValue, dt)
	}
}
