package rowpager

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spf13/cast"
	"gorm.io/gorm"
)

// Row is a single result record keyed by column name.
type Row = map[string]any

// Mapper converts a Row into a caller type.
type Mapper[T any] func(Row) (T, error)

// Query is a base SQL query with positional "?" parameters. The base query
// must not contain ORDER BY or LIMIT clauses: paginators add their own.
type Query struct {
	SQL  string
	Args []any
}

// NewQuery is a shorthand for Query{SQL: sql, Args: args}.
func NewQuery(sql string, args ...any) Query {
	return Query{SQL: sql, Args: args}
}

// derivedTable wraps the base query as "(<sql>) AS alias" so that predicates
// and orderings apply to its output columns.
func (q Query) derivedTable(db *gorm.DB, alias string) *gorm.DB {
	return db.Table(fmt.Sprintf("(?) AS %s", alias), gorm.Expr(q.SQL, q.Args...))
}

// fetchRows executes db and scans every returned record.
func fetchRows(db *gorm.DB) ([]Row, error) {
	rows, err := db.Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows)
}

// scanRows reads all records from rows. Byte slices are converted to strings
// so that rows are safe to keep after the driver reuses its buffers.
func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("cannot read result columns: %w", err)
	}

	var ret []Row
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err = rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("cannot scan row: %w", err)
		}

		row := make(Row, len(columns))
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				row[column] = string(b)
				continue
			}
			row[column] = values[i]
		}
		ret = append(ret, row)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return ret, nil
}

// MapItems applies mapper to every row, preserving order.
func MapItems[T any](rows []Row, mapper Mapper[T]) ([]T, error) {
	ret := make([]T, 0, len(rows))
	for i, row := range rows {
		item, err := mapper(row)
		if err != nil {
			return nil, fmt.Errorf("cannot map row %d: %w", i, err)
		}
		ret = append(ret, item)
	}

	return ret, nil
}

// rowString reads column as a string. Missing or NULL values are errors.
func rowString(row Row, column string) (string, error) {
	v, ok := row[column]
	if !ok || v == nil {
		return "", fmt.Errorf("column '%s' is missing in row", column)
	}

	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("column '%s': %w", column, err)
	}

	return s, nil
}

// rowTime reads column as a timestamp normalized to UTC. Drivers return
// time.Time, text, or unix seconds depending on the dialect.
func rowTime(row Row, column string) (time.Time, error) {
	v, ok := row[column]
	if !ok || v == nil {
		return time.Time{}, fmt.Errorf("column '%s' is missing in row", column)
	}

	t, err := cast.ToTimeE(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("column '%s': %w", column, err)
	}

	return t.UTC(), nil
}
