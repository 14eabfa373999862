package library

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/bibsync/internal/csvutil"
	"github.com/lepinkainen/bibsync/internal/identifier"
)

// importPrefixes maps the identifier columns ImportCSV understands to the
// prefix identifier.Parse expects. Only the id column is required.
var importPrefixes = []struct {
	column string
	prefix string
}{
	{"doi", "doi:"},
	{"arxiv", "arxiv:"},
	{"bibcode", "bibcode:"},
	{"pmid", "pmid:"},
	{"semanticscholar", "s2:"},
	{"openalex", "openalex:"},
}

type importRow struct {
	id  string
	ids identifier.Map
}

func parseImportRow(r csvutil.Record) (importRow, error) {
	id := r.Get("id")
	if id == "" {
		return importRow{}, fmt.Errorf("missing id")
	}

	var raw []string
	for _, col := range importPrefixes {
		if v := r.Get(col.column); v != "" {
			raw = append(raw, col.prefix+v)
		}
	}
	ids := identifier.ParseAll(raw...)
	if ids.IsEmpty() {
		return importRow{}, fmt.Errorf("publication %s has no usable identifier", id)
	}
	return importRow{id: id, ids: ids}, nil
}

// ImportCSV adds every valid row of a CSV file to the library. Rows without
// an ID or a usable identifier are skipped. Returns the number imported.
func (s *Store) ImportCSV(ctx context.Context, filename string) (int, error) {
	rows, err := csvutil.ProcessCSVFile(filename, parseImportRow, csvutil.ProcessorOptions{
		RequiredColumns: []string{"id"},
		SkipInvalid:     true,
	})
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, row := range rows {
		if _, err := s.AddPublication(ctx, row.id, row.ids); err != nil {
			return imported, fmt.Errorf("failed to import %s: %w", row.id, err)
		}
		imported++
	}
	slog.Info("Imported publications", "file", filename, "count", imported)
	return imported, nil
}
