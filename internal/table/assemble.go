package table

import (
	"fmt"

	"github.com/huangsam/pra/internal/catalog"
	"github.com/huangsam/pra/schema"
)

// Record is one flat record before assembly: values for the leading columns in
// caller order plus raw metric values keyed by metric key.
type Record struct {
	Leading []any
	Metrics map[string]any
}

// Assemble combines records and a catalog into a typed table. The extra
// columns come first, then one column per catalog metric in catalog order.
// Metric values are coerced independently; metrics missing from a record (or
// from every record) are null, so the schema is fixed across projects.
func Assemble(records []Record, cat *catalog.Catalog, extra []schema.Column) (*schema.Table, error) {
	columns := append(append([]schema.Column{}, extra...), cat.Columns()...)
	t := schema.NewTable(columns)
	entries := cat.Entries()

	for i, rec := range records {
		if len(rec.Leading) != len(extra) {
			return nil, fmt.Errorf("record %d has %d leading values, expected %d", i, len(rec.Leading), len(extra))
		}
		row := make(schema.Row, 0, len(columns))
		row = append(row, rec.Leading...)
		for _, e := range entries {
			row = append(row, Coerce(rec.Metrics[e.Key], e.Type))
		}
		if err := t.Append(row); err != nil {
			return nil, err
		}
	}
	return t, nil
}
