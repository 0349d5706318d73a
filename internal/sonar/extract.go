package sonar

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/huangsam/pra/internal/catalog"
	"github.com/huangsam/pra/internal/table"
	"github.com/huangsam/pra/schema"
)

// LeadingColumns precede the catalog columns in every measures table.
var LeadingColumns = []schema.Column{
	{Name: "project", Type: schema.StringColumn},
	{Name: "version", Type: schema.StringColumn},
	{Name: "date", Type: schema.TimestampColumn},
	{Name: "revision", Type: schema.StringColumn},
}

// Columns returns the full measures table schema for a catalog.
func Columns(cat *catalog.Catalog) []schema.Column {
	return append(slices.Clone(LeadingColumns), cat.Columns()...)
}

var timeLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
}

// ParseTime parses an upstream timestamp such as 2020-01-01T10:00:00+0100 and
// normalizes it to UTC.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FetchMeasures requests the catalog metrics of a project in batches of
// schema.MeasuresBatchSize and returns them sorted by catalog order.
func FetchMeasures(ctx context.Context, src Source, projectKey string, cat *catalog.Catalog) ([]Measure, error) {
	keys := cat.Keys()
	var measures []Measure
	for batch := range slices.Chunk(keys, schema.MeasuresBatchSize) {
		page, err := src.Measures(ctx, projectKey, batch)
		if err != nil {
			return nil, err
		}
		measures = append(measures, page...)
	}

	order := func(m Measure) int {
		if e, ok := cat.Lookup(m.Metric); ok {
			return e.Order
		}
		return cat.Len()
	}
	slices.SortStableFunc(measures, func(a, b Measure) int {
		return cmp.Compare(order(a), order(b))
	})
	return measures, nil
}

// Records builds one record per analysis. The leading values are project,
// version, date and revision; each metric value is the history point whose
// date equals the analysis date, or null.
func Records(projectKey string, analyses []Analysis, measures []Measure) []table.Record {
	byDate := make(map[string]map[string]any, len(analyses))
	for _, m := range measures {
		for _, h := range m.History {
			if h.Date == nil {
				continue
			}
			ts, err := ParseTime(*h.Date)
			if err != nil {
				slog.Warn("skipping history point", "project", projectKey, "metric", m.Metric, "err", err)
				continue
			}
			key := ts.Format(time.RFC3339Nano)
			values, ok := byDate[key]
			if !ok {
				values = make(map[string]any)
				byDate[key] = values
			}
			if h.Value != nil {
				values[m.Metric] = *h.Value
			}
		}
	}

	records := make([]table.Record, 0, len(analyses))
	for _, a := range analyses {
		var date any
		metrics := map[string]any{}
		if a.Date != nil {
			ts, err := ParseTime(*a.Date)
			if err != nil {
				slog.Warn("invalid analysis date", "project", projectKey, "err", err)
			} else {
				date = ts
				if values, ok := byDate[ts.Format(time.RFC3339Nano)]; ok {
					metrics = values
				}
			}
		}
		records = append(records, table.Record{
			Leading: []any{projectKey, optional(a.ProjectVersion), date, optional(a.Revision)},
			Metrics: metrics,
		})
	}
	return records
}

func optional(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
