package datastore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lepinkainen/bibsync/internal/identifier"
	"github.com/lepinkainen/bibsync/internal/library"
)

// PublicationsTable is the export table name.
const PublicationsTable = "publications"

// PublicationsSchema is the local export table.
const PublicationsSchema = `
CREATE TABLE IF NOT EXISTS publications (
	id TEXT PRIMARY KEY,
	doi TEXT,
	arxiv TEXT,
	bibcode TEXT,
	pmid TEXT,
	semanticscholar TEXT,
	openalex TEXT,
	citation_count INTEGER,
	reference_count INTEGER,
	venue TEXT,
	open_access TEXT,
	pdf_urls TEXT,
	abstract TEXT,
	source TEXT,
	enriched_at TEXT,
	added_at TEXT
);
`

// PublicationRow is the flat export shape of one publication.
type PublicationRow struct {
	ID              string
	DOI             string
	ArXiv           string
	Bibcode         string
	PMID            string
	SemanticScholar string
	OpenAlex        string
	CitationCount   *int
	ReferenceCount  *int
	Venue           *string
	OpenAccess      string
	PDFURLs         []string
	Abstract        *string
	Source          string
	EnrichedAt      *time.Time
	AddedAt         time.Time
}

var rowOptions = RowOptions{
	JoinStringSlices: true,
	KeyOverrides: map[string]string{
		"ArXiv":           "arxiv",
		"SemanticScholar": "semanticscholar",
		"OpenAlex":        "openalex",
		"PDFURLs":         "pdf_urls",
	},
}

// NewPublicationRow flattens a library publication.
func NewPublicationRow(p library.Publication) PublicationRow {
	row := PublicationRow{
		ID:              p.ID,
		DOI:             p.Identifiers.Get(identifier.DOI),
		ArXiv:           p.Identifiers.Get(identifier.ArXiv),
		Bibcode:         p.Identifiers.Get(identifier.Bibcode),
		PMID:            p.Identifiers.Get(identifier.PubMed),
		SemanticScholar: p.Identifiers.Get(identifier.SemanticScholar),
		OpenAlex:        p.Identifiers.Get(identifier.OpenAlex),
		EnrichedAt:      p.EnrichedAt,
		AddedAt:         p.AddedAt,
	}
	if d := p.Enrichment; d != nil {
		row.CitationCount = d.CitationCount
		row.ReferenceCount = d.ReferenceCount
		row.Venue = d.Venue
		row.PDFURLs = d.PDFURLs
		row.Abstract = d.Abstract
		row.Source = d.Source
		if d.OpenAccess != nil {
			row.OpenAccess = string(*d.OpenAccess)
		}
	}
	return row
}

// PublicationRecords converts publications into export records.
func PublicationRecords(pubs []library.Publication) []map[string]any {
	records := make([]map[string]any, 0, len(pubs))
	for _, p := range pubs {
		records = append(records, StructToRow(NewPublicationRow(p), rowOptions))
	}
	return records
}

// ExportPublications writes pubs to store and closes it. It returns the
// number of rows written.
func ExportPublications(ctx context.Context, store Store, database string, pubs []library.Publication) (n int, err error) {
	if err := store.Connect(); err != nil {
		return 0, err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close datastore: %w", cerr))
		}
	}()

	if err := store.CreateTable(PublicationsSchema); err != nil {
		return 0, err
	}

	records := PublicationRecords(pubs)
	if err := store.BatchInsert(ctx, database, PublicationsTable, records); err != nil {
		return 0, err
	}
	slog.Info("Exported publications", "count", len(records), "table", PublicationsTable)
	return len(records), nil
}
