package cache

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/lepinkainen/bibsync/internal/config"
)

// InvalidateCacheCmd represents the cache invalidate subcommand
type InvalidateCacheCmd struct {
	Source string `arg:"" help:"Cache source to invalidate: semanticscholar, openalex or all" required:""`
}

func (i *InvalidateCacheCmd) Run() error {
	tables, err := tablesFor(i.Source)
	if err != nil {
		return err
	}

	slog.Info("Invalidating cache", "source", i.Source, "database", config.CacheDBFile)

	cacheDB, err := Open(config.CacheDBFile)
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}
	defer func() { _ = cacheDB.Close() }()

	var total int64
	for _, table := range tables {
		rows, err := cacheDB.InvalidateSource(table)
		if err != nil {
			return fmt.Errorf("failed to invalidate cache: %w", err)
		}
		total += rows
	}

	slog.Info("Cache invalidated", "source", i.Source, "rows_deleted", total)
	return nil
}

func tablesFor(source string) ([]string, error) {
	if source == "all" {
		return []string{SemanticScholarTable, OpenAlexTable}, nil
	}
	table, ok := TableForSource(source)
	if !ok {
		return nil, fmt.Errorf("invalid cache source '%s'; valid sources are: %s, all", source, strings.Join(sourceNames(), ", "))
	}
	return []string{table}, nil
}

func sourceNames() []string {
	return []string{
		strings.TrimSuffix(SemanticScholarTable, "_cache"),
		strings.TrimSuffix(OpenAlexTable, "_cache"),
	}
}
