// Package schema has models, enums and shared constants for all parts of pra.
package schema

import (
	"fmt"
	"slices"
)

// CatalogEntry is one metric of the metric catalog.
// Order is the zero-based line index and defines column order.
type CatalogEntry struct {
	ID          string
	Domain      string
	Key         string
	Type        MetricType
	RawType     string // Upstream type text before mapping onto MetricType
	Description string
	Order       int
}

// Column describes a single table column.
type Column struct {
	Name string     `json:"name" yaml:"name"`
	Type ColumnType `json:"type" yaml:"type"`
}

// Row is an ordered tuple of scalar values. A nil element is a null value.
// Non-null elements are int64, float64, bool, time.Time or string.
type Row []any

// Table is an ordered sequence of rows plus a typed header.
type Table struct {
	Columns []Column
	Rows    []Row
}

// NewTable creates an empty table with the given columns.
func NewTable(columns []Column) *Table {
	return &Table{Columns: slices.Clone(columns)}
}

// Header returns the column names in order.
func (t *Table) Header() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Append adds a row, enforcing that its width matches the header.
func (t *Table) Append(row Row) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d values but table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Dataset is one configured data subdirectory and its column schema.
type Dataset struct {
	Name    string      `json:"name" yaml:"name"`
	Dir     string      `json:"dir" yaml:"dir"`
	Kind    DatasetKind `json:"kind" yaml:"kind"`
	Columns []Column    `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// ColumnTypes returns the dataset schema as a name to type lookup.
func (d Dataset) ColumnTypes() map[string]ColumnType {
	types := make(map[string]ColumnType, len(d.Columns))
	for _, c := range d.Columns {
		types[c.Name] = c.Type
	}
	return types
}
