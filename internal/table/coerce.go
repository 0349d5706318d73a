// Package table has value coercion, table assembly and typed CSV I/O.
package table

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/pra/schema"
)

// Coerce converts a raw upstream value into the scalar for its declared type.
// It never fails: unparsable values become nil and a warning is logged, so a
// single malformed field cannot abort a batch.
func Coerce(raw any, declared schema.MetricType) any {
	if raw == nil {
		return nil
	}
	text := rawText(raw)

	switch declared {
	case schema.MetricInt, schema.MetricWorkDur:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			warnCast(text, declared)
			return nil
		}
		return n

	case schema.MetricFloat, schema.MetricPercent, schema.MetricRating:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			warnCast(text, declared)
			return nil
		}
		return f

	case schema.MetricBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			warnCast(text, declared)
			return nil
		}
		return b

	case schema.MetricMillisec:
		ms, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			warnCast(text, declared)
			return nil
		}
		return time.UnixMilli(ms).UTC()

	default:
		if s, ok := raw.(string); ok {
			return s
		}
		if s, ok := raw.(fmt.Stringer); ok {
			return s.String()
		}
		switch raw.(type) {
		case int, int64, float64, bool:
			return text
		}
		slog.Error("error casting value to string", "type", declared, "value", fmt.Sprintf("%#v", raw))
		return nil
	}
}

// rawText renders JSON-decoded scalars without losing integer precision.
func rawText(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func warnCast(value string, declared schema.MetricType) {
	slog.Warn("exception casting value", "value", value, "type", declared)
}

// timestampLayouts are accepted when parsing timestamp cells. Cells are always
// written with the first one.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// FormatValue renders a scalar as a CSV cell. Nil renders as an empty cell.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

// ParseValue parses a CSV cell under a column type. An empty cell is null.
func ParseValue(cell string, colType schema.ColumnType) (any, error) {
	if cell == "" {
		return nil, nil
	}
	switch colType {
	case schema.IntColumn:
		n, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			// Integer columns written by float-typed producers carry a ".0" suffix.
			f, ferr := strconv.ParseFloat(cell, 64)
			if ferr != nil || f != float64(int64(f)) {
				return nil, fmt.Errorf("invalid int %q", cell)
			}
			return int64(f), nil
		}
		return n, nil
	case schema.FloatColumn:
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q", cell)
		}
		return f, nil
	case schema.BoolColumn:
		b, err := strconv.ParseBool(cell)
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q", cell)
		}
		return b, nil
	case schema.TimestampColumn:
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, cell); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, fmt.Errorf("invalid timestamp %q", cell)
	default:
		return cell, nil
	}
}
