// Package csvutil reads header-addressed CSV files.
package csvutil

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ProcessorOptions configures CSV processing behavior.
type ProcessorOptions struct {
	// RequiredColumns must all be present in the header.
	RequiredColumns []string

	// SkipInvalid controls whether to skip invalid records or return an error.
	SkipInvalid bool
}

// Record is one CSV row addressed by header name.
type Record struct {
	Line    int
	columns map[string]int
	fields  []string
}

// Get returns the trimmed value of column, or "" if the column is absent.
func (r Record) Get(column string) string {
	i, ok := r.columns[strings.ToLower(column)]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// ProcessCSVFile opens filename and processes it with ProcessCSV.
func ProcessCSVFile[T any](filename string, parser func(Record) (T, error), opts ProcessorOptions) ([]T, error) {
	csvFile, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = csvFile.Close() }()

	if fi, err := csvFile.Stat(); err != nil || fi.Size() == 0 {
		return nil, fmt.Errorf("CSV file is empty or cannot be read")
	}
	return ProcessCSV(csvFile, parser, opts)
}

// ProcessCSV reads a header row and parses each following record into type T.
// Header names are matched case-insensitively. Rows may have fewer fields
// than the header.
func ProcessCSV[T any](r io.Reader, parser func(Record) (T, error), opts ProcessorOptions) ([]T, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range opts.RequiredColumns {
		if _, ok := columns[strings.ToLower(required)]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var items []T
	line := 1
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			slog.Warn("Error reading record", "line", line, "error", err)
			continue
		}

		item, err := parser(Record{Line: line, columns: columns, fields: fields})
		if err != nil {
			if opts.SkipInvalid {
				slog.Warn("Skipping invalid record", "line", line, "error", err)
				continue
			}
			return nil, fmt.Errorf("invalid record on line %d: %w", line, err)
		}

		items = append(items, item)
	}

	return items, nil
}
