package merge

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Row is one table row keyed by column name. Values carry whatever the
// driver produced: int64, float64, string, []byte, time.Time or nil.
type Row map[string]any

// ID returns the store-local row id.
func (r Row) ID() int64 {
	v, _ := toInt64(r["id"])
	return v
}

// Clone returns a shallow copy, so foreign-key remapping never mutates the
// row as scanned from the source.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// readTable reads id plus the given columns for every row of table, ordered
// by id for deterministic traversal.
func readTable(db *sql.DB, table string, cols []string) ([]Row, error) {
	query := fmt.Sprintf("SELECT id, %s FROM %s ORDER BY id", strings.Join(cols, ", "), table)
	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	defer rows.Close()

	all := append([]string{"id"}, cols...)
	var out []Row
	for rows.Next() {
		row, err := scanRow(rows, all)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error for %s: %w", table, err)
	}

	return out, nil
}

// readRowByID reads a single row of table by id.
func readRowByID(db *sql.DB, table string, cols []string, id int64) (Row, error) {
	query := fmt.Sprintf("SELECT id, %s FROM %s WHERE id = ?", strings.Join(cols, ", "), table)
	rows, err := db.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s row %d: %w", table, id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}

	return scanRow(rows, append([]string{"id"}, cols...))
}

func scanRow(rows *sql.Rows, cols []string) (Row, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := make(Row, len(cols))
	for i, col := range cols {
		row[col] = canonValue(values[i])
	}
	return row, nil
}

// canonValue collapses driver representations so values compare cleanly.
func canonValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// valuesEqual reports whether two column values are the same after
// canonicalization. Numeric values compare across int64/float64.
func valuesEqual(a, b any) bool {
	a, b = canonValue(a), canonValue(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
	}

	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return x == y
		case float64:
			return float64(x) == y
		}
	case float64:
		switch y := b.(type) {
		case int64:
			return x == float64(y)
		case float64:
			return x == y
		}
	}

	return a == b
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	}
	return 0, false
}

func toString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	}
	return "", false
}

// toTime extracts a timestamp column value; zero time when null or unparsable.
func toTime(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, x); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
