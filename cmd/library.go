package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/viper"

	"github.com/lepinkainen/bibsync/internal/datastore"
	"github.com/lepinkainen/bibsync/internal/identifier"
	"github.com/lepinkainen/bibsync/internal/library"
	"github.com/lepinkainen/bibsync/internal/queue"
)

// LibraryCmd groups the library subcommands.
type LibraryCmd struct {
	Add    LibraryAddCmd    `cmd:"" help:"Add a publication or merge identifiers into it"`
	Import LibraryImportCmd `cmd:"" help:"Import publications from a CSV file"`
	List   LibraryListCmd   `cmd:"" help:"List publications"`
	Show   LibraryShowCmd   `cmd:"" help:"Show one publication with its enrichment"`
	Remove LibraryRemoveCmd `cmd:"" help:"Remove a publication"`
	Export LibraryExportCmd `cmd:"" help:"Export publications to a SQLite file or a Datasette instance"`
}

// LibraryAddCmd adds one publication.
type LibraryAddCmd struct {
	ID          string   `arg:"" help:"Publication ID"`
	Identifiers []string `arg:"" help:"Identifiers such as 10.1000/xyz or arXiv:2106.15928"`
	Enrich      bool     `help:"Enrich the publication right away"`
}

func (l *LibraryAddCmd) Run() error {
	ids := identifier.ParseAll(l.Identifiers...)
	if ids.IsEmpty() {
		return fmt.Errorf("no recognisable identifiers in %v", l.Identifiers)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := context.Background()
	pub, err := a.library.AddPublication(ctx, l.ID, ids)
	if err != nil {
		return err
	}
	slog.Info("Publication saved", "publication", pub.ID, "identifiers", pub.Identifiers.String())

	if !l.Enrich {
		return nil
	}
	a.service.QueueForEnrichment(pub.ID, pub.Identifiers, queue.UserTriggered)
	out, _ := a.service.ProcessNextQueued(ctx)
	return out.Err
}

// LibraryImportCmd imports a CSV file.
type LibraryImportCmd struct {
	File string `arg:"" type:"existingfile" help:"CSV file with an id column and any of: doi, arxiv, bibcode, pmid, semanticscholar, openalex"`
}

func (l *LibraryImportCmd) Run() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	n, err := a.library.ImportCSV(context.Background(), l.File)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "Imported %d publications\n", n)
	return err
}

// LibraryListCmd lists publications.
type LibraryListCmd struct {
	Format string `short:"F" help:"Output format" enum:"table,yaml,json" default:"table"`
}

func (l *LibraryListCmd) Run() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	pubs, err := a.library.List(context.Background())
	if err != nil {
		return err
	}
	if l.Format != "table" {
		return printValue(stdout, pubs, l.Format)
	}
	return printPublicationTable(pubs)
}

func printPublicationTable(pubs []library.Publication) error {
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tIDENTIFIERS\tCITATIONS\tSOURCE\tENRICHED")
	for _, p := range pubs {
		citations, source, enriched := "-", "-", "never"
		if p.Enrichment != nil {
			source = p.Enrichment.Source
			if p.Enrichment.CitationCount != nil {
				citations = strconv.Itoa(*p.Enrichment.CitationCount)
			}
		}
		if p.EnrichedAt != nil {
			enriched = p.EnrichedAt.Local().Format(time.DateOnly)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Identifiers.String(), citations, source, enriched)
	}
	return tw.Flush()
}

// LibraryShowCmd prints one publication.
type LibraryShowCmd struct {
	ID     string `arg:"" help:"Publication ID"`
	Format string `short:"F" help:"Output format" enum:"yaml,json" default:"yaml"`
}

func (l *LibraryShowCmd) Run() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	pub, err := a.library.Publication(context.Background(), l.ID)
	if err != nil {
		return err
	}
	return printValue(stdout, pub, l.Format)
}

// LibraryRemoveCmd deletes one publication.
type LibraryRemoveCmd struct {
	ID string `arg:"" help:"Publication ID"`
}

func (l *LibraryRemoveCmd) Run() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.library.Remove(context.Background(), l.ID); err != nil {
		return err
	}
	a.tracker.ClearFailure(l.ID)
	slog.Info("Publication removed", "publication", l.ID)
	return nil
}

// LibraryExportCmd writes a flat publications table.
type LibraryExportCmd struct {
	DBFile   string `name:"db" help:"SQLite file to export to (default export.dbfile from config)"`
	Remote   bool   `help:"Export to the Datasette instance at datasette.url instead"`
	URL      string `help:"Datasette base URL (default datasette.url from config)"`
	Token    string `help:"Datasette API token (default datasette.token or DATASETTE_TOKEN)"`
	Database string `help:"Datasette database name (default export.database from config)"`
}

// newExportStore picks the export destination.
func (l *LibraryExportCmd) newExportStore() (datastore.Store, error) {
	if !l.Remote {
		path := l.DBFile
		if path == "" {
			path = viper.GetString("export.dbfile")
		}
		return datastore.NewSQLiteStore(path), nil
	}

	url := l.URL
	if url == "" {
		url = viper.GetString("datasette.url")
	}
	if url == "" {
		return nil, fmt.Errorf("datasette URL is required (provide via --url flag or datasette.url in config)")
	}
	token := l.Token
	if token == "" {
		token = viper.GetString("datasette.token")
	}
	return datastore.NewDatasetteClient(url, token), nil
}

func (l *LibraryExportCmd) Run() error {
	store, err := l.newExportStore()
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := context.Background()
	pubs, err := a.library.List(ctx)
	if err != nil {
		return err
	}

	database := l.Database
	if database == "" {
		database = viper.GetString("export.database")
	}
	n, err := datastore.ExportPublications(ctx, store, database, pubs)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "Exported %d publications\n", n)
	return err
}
