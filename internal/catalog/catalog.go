// Package catalog loads and writes the ordered metric catalog that fixes
// column order and value types for metric tables.
package catalog

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/huangsam/pra/schema"
)

// Separator delimits the five fields of a catalog line.
const Separator = " - "

// fieldCount is the number of fields per line: id, domain, key, type, description.
const fieldCount = 5

// LoadError is a fatal problem reading the catalog.
type LoadError struct {
	Path string
	Line int // 1-based, 0 when the error is not tied to a line
	Err  error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("catalog %s line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("catalog %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Catalog is an insertion-ordered metric lookup.
type Catalog struct {
	entries []schema.CatalogEntry
	index   map[string]int
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("path does not exist")}
		}
		return nil, &LoadError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	return Parse(f, path)
}

// Parse reads catalog lines from r. name is used in error messages only.
func Parse(r io.Reader, name string) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		parts := strings.SplitN(line, Separator, fieldCount)
		if len(parts) != fieldCount {
			return nil, &LoadError{Path: name, Line: lineNo, Err: fmt.Errorf("expected %d fields, got %d", fieldCount, len(parts))}
		}

		key := strings.TrimSpace(parts[2])
		if key == "" {
			return nil, &LoadError{Path: name, Line: lineNo, Err: fmt.Errorf("empty metric key")}
		}
		if _, dup := c.index[key]; dup {
			return nil, &LoadError{Path: name, Line: lineNo, Err: fmt.Errorf("duplicate metric key %q", key)}
		}

		rawType := strings.TrimSpace(parts[3])
		entry := schema.CatalogEntry{
			ID:          strings.TrimSpace(parts[0]),
			Domain:      strings.TrimSpace(parts[1]),
			Key:         key,
			Type:        schema.ParseMetricType(rawType),
			RawType:     rawType,
			Description: strings.TrimSpace(parts[4]),
			Order:       len(c.entries),
		}
		c.index[key] = len(c.entries)
		c.entries = append(c.entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, &LoadError{Path: name, Err: err}
	}
	return c, nil
}

// New builds a catalog from entries, renumbering Order by position.
func New(entries []schema.CatalogEntry) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		if _, dup := c.index[e.Key]; dup {
			return nil, fmt.Errorf("duplicate metric key %q", e.Key)
		}
		e.Order = len(c.entries)
		c.index[e.Key] = e.Order
		c.entries = append(c.entries, e)
	}
	return c, nil
}

// Len returns the number of metrics.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entries returns the metrics in column order.
func (c *Catalog) Entries() []schema.CatalogEntry {
	return slices.Clone(c.entries)
}

// Keys returns the metric keys in column order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.entries))
	for i, e := range c.entries {
		keys[i] = e.Key
	}
	return keys
}

// Lookup returns the entry for a metric key.
func (c *Catalog) Lookup(key string) (schema.CatalogEntry, bool) {
	i, ok := c.index[key]
	if !ok {
		return schema.CatalogEntry{}, false
	}
	return c.entries[i], true
}

// Columns returns the typed table columns for all metrics in order.
func (c *Catalog) Columns() []schema.Column {
	cols := make([]schema.Column, len(c.entries))
	for i, e := range c.entries {
		cols[i] = schema.Column{Name: e.Key, Type: e.Type.ColumnType()}
	}
	return cols
}

// Metric is one element of the upstream metric listing. Absent fields are nil.
type Metric struct {
	ID          *string `json:"id"`
	Domain      *string `json:"domain"`
	Key         *string `json:"key"`
	Type        *string `json:"type"`
	Description *string `json:"description"`
}

// Write stores metrics as a catalog file sorted by (domain, numeric id).
// Missing fields are written as placeholders so every line keeps five fields.
func Write(path string, metrics []Metric) error {
	sorted := slices.Clone(metrics)
	slices.SortStableFunc(sorted, func(a, b Metric) int {
		if c := cmp.Compare(valueOr(a.Domain, "None"), valueOr(b.Domain, "None")); c != 0 {
			return c
		}
		return cmp.Compare(numericID(a.ID), numericID(b.ID))
	})

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create catalog file: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, m := range sorted {
		fields := []string{
			valueOr(m.ID, "No ID"),
			valueOr(m.Domain, "No Domain"),
			valueOr(m.Key, "No Key"),
			valueOr(m.Type, "No Type"),
			oneLine(valueOr(m.Description, "No Description")),
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, Separator)); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write catalog line: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to flush catalog file: %w", err)
	}
	return f.Close()
}

func valueOr(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}

// numericID sorts unparsable ids last.
func numericID(p *string) int64 {
	if p == nil {
		return int64(^uint64(0) >> 1)
	}
	n, err := strconv.ParseInt(*p, 10, 64)
	if err != nil {
		return int64(^uint64(0) >> 1)
	}
	return n
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
