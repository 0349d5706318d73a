package parquet

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/huangsam/pra/schema"
	"github.com/parquet-go/parquet-go"
)

var (
	int64Type   = reflect.TypeFor[int64]()
	float64Type = reflect.TypeFor[float64]()
	boolType    = reflect.TypeFor[bool]()
	timeType    = reflect.TypeFor[time.Time]()
	stringType  = reflect.TypeFor[string]()
)

// columnField maps a table column onto an optional struct field whose tag
// carries the column name.
func columnField(i int, c schema.Column) reflect.StructField {
	typ, tag := stringType, c.Name+",optional"
	switch c.Type {
	case schema.IntColumn:
		typ = int64Type
	case schema.FloatColumn:
		typ = float64Type
	case schema.BoolColumn:
		typ = boolType
	case schema.TimestampColumn:
		typ, tag = timeType, tag+",timestamp(millisecond)"
	}
	return reflect.StructField{
		Name: fmt.Sprintf("C%d", i),
		Type: typ,
		Tag:  reflect.StructTag(fmt.Sprintf("parquet:%q", tag)),
	}
}

// TableSchema builds the Parquet schema for a typed table. Every column is
// optional because any cell may be null. Fields keep the column order.
func TableSchema(name string, columns []schema.Column) (*parquet.Schema, error) {
	seen := make(map[string]bool, len(columns))
	fields := make([]reflect.StructField, len(columns))
	for i, c := range columns {
		if c.Name == "" || strings.Contains(c.Name, ",") {
			return nil, fmt.Errorf("invalid column name %q", c.Name)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true
		fields[i] = columnField(i, c)
	}
	model := reflect.New(reflect.StructOf(fields)).Interface()
	return parquet.NewSchema(name, parquet.SchemaOf(model)), nil
}

// WriteTable writes t to outputPath as a Parquet file, creating parent
// directories as needed.
func WriteTable(outputPath string, t *schema.Table) error {
	sch, err := TableSchema("table", t.Columns)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewWriter(file, sch, parquet.Compression(&parquet.Snappy))
	rows := make([]parquet.Row, 0, len(t.Rows))
	for r, row := range t.Rows {
		out := make(parquet.Row, len(row))
		for i, v := range row {
			val, err := toValue(v, t.Columns[i].Type)
			if err != nil {
				_ = writer.Close()
				return fmt.Errorf("row %d column %s: %w", r, t.Columns[i].Name, err)
			}
			def := 1
			if val.IsNull() {
				def = 0
			}
			out[i] = val.Level(0, def, i)
		}
		rows = append(rows, out)
	}

	if _, err := writer.WriteRows(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

func toValue(v any, colType schema.ColumnType) (parquet.Value, error) {
	if v == nil {
		return parquet.NullValue(), nil
	}
	switch colType {
	case schema.IntColumn:
		if n, ok := v.(int64); ok {
			return parquet.Int64Value(n), nil
		}
	case schema.FloatColumn:
		if f, ok := v.(float64); ok {
			return parquet.DoubleValue(f), nil
		}
	case schema.BoolColumn:
		if b, ok := v.(bool); ok {
			return parquet.BooleanValue(b), nil
		}
	case schema.TimestampColumn:
		if ts, ok := v.(time.Time); ok {
			return parquet.Int64Value(ts.UnixMilli()), nil
		}
	default:
		if s, ok := v.(string); ok {
			return parquet.ByteArrayValue([]byte(s)), nil
		}
	}
	return parquet.Value{}, fmt.Errorf("value %v (%T) does not match column type %s", v, v, colType)
}
