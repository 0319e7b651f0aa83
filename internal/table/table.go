// Package table defines the in-memory row/column model exchanged with the
// tabular stores, plus its CSV and Parquet encodings.
package table

import (
	"errors"
	"fmt"
)

// ErrNoColumn is returned when a named column is not part of a table.
var ErrNoColumn = errors.New("column not found")

// Table is a set of named string columns with ordered rows. Every row has
// exactly len(Columns) values.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New creates an empty table with the given column names.
func New(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Append adds a row. The number of values must match the number of columns.
func (t *Table) Append(values ...string) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.Columns))
	}
	row := make([]string, len(values))
	copy(row, values)
	t.Rows = append(t.Rows, row)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table holds no rows.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns the values of the named column in row order.
func (t *Table) Column(name string) ([]string, error) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoColumn, name)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// SameColumns reports whether both tables carry the same column names,
// irrespective of order. Duplicate names are counted.
func (t *Table) SameColumns(other *Table) bool {
	if len(t.Columns) != len(other.Columns) {
		return false
	}
	counts := make(map[string]int, len(t.Columns))
	for _, c := range t.Columns {
		counts[c]++
	}
	for _, c := range other.Columns {
		counts[c]--
		if counts[c] < 0 {
			return false
		}
	}
	return true
}

// Concat returns a new table with the rows of t followed by the rows of
// other. Columns of other are matched by name, so only the column set has
// to agree.
func (t *Table) Concat(other *Table) (*Table, error) {
	if !t.SameColumns(other) {
		return nil, fmt.Errorf("cannot concat tables with columns %v and %v", t.Columns, other.Columns)
	}
	out := New(t.Columns...)
	out.Rows = make([][]string, 0, len(t.Rows)+len(other.Rows))
	for _, row := range t.Rows {
		out.Rows = append(out.Rows, append([]string(nil), row...))
	}

	perm := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		perm[i] = other.Index(c)
	}
	for _, row := range other.Rows {
		r := make([]string, len(perm))
		for i, j := range perm {
			r[i] = row[j]
		}
		out.Rows = append(out.Rows, r)
	}
	return out, nil
}

// Select projects the table onto the given columns, in the given order.
func (t *Table) Select(columns ...string) (*Table, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		idx[i] = t.Index(c)
		if idx[i] < 0 {
			return nil, fmt.Errorf("%w: %q", ErrNoColumn, c)
		}
	}
	out := New(columns...)
	out.Rows = make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		r := make([]string, len(idx))
		for i, j := range idx {
			r[i] = row[j]
		}
		out.Rows = append(out.Rows, r)
	}
	return out, nil
}

// Filter returns a table holding only the rows for which keep returns true.
func (t *Table) Filter(keep func(row []string) bool) *Table {
	out := New(t.Columns...)
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, append([]string(nil), row...))
		}
	}
	return out
}
