package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/huangsam/pra/schema"
)

// ErrNoHeader is returned when a CSV file has no header row.
var ErrNoHeader = errors.New("missing header row")

// WriteCSV writes the header and all rows of t.
func WriteCSV(w io.Writer, t *schema.Table) error {
	csvWriter := csv.NewWriter(w)

	if err := csvWriter.Write(t.Header()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = FormatValue(v)
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// ReadCSV reads a table, parsing each column under its declared type.
// Columns absent from types are read as strings.
func ReadCSV(r io.Reader, types map[string]schema.ColumnType) (*schema.Table, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make([]schema.Column, len(header))
	for i, name := range header {
		colType, ok := types[name]
		if !ok {
			colType = schema.StringColumn
		}
		columns[i] = schema.Column{Name: name, Type: colType}
	}
	t := schema.NewTable(columns)

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}

		row := make(schema.Row, len(columns))
		for i, cell := range record {
			v, err := ParseValue(cell, columns[i].Type)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, columns[i].Name, err)
			}
			row[i] = v
		}
		if err := t.Append(row); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	return t, nil
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string, types map[string]schema.ColumnType) (*schema.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	t, err := ReadCSV(f, types)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// WriteCSVFile replaces path with the table. The data is written to a temporary
// file in the same directory and renamed, so readers never see a partial file.
func WriteCSVFile(path string, t *schema.Table) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := WriteCSV(tmp, t); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// CountCSVRows returns the number of data rows (header excluded).
func CountCSVRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true
	count := -1
	for {
		_, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("%s: %w", path, err)
		}
		count++
	}
	return max(count, 0), nil
}
