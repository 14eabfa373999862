package cmd

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"

	bibsyncerrors "github.com/lepinkainen/bibsync/internal/errors"
	"github.com/lepinkainen/bibsync/internal/config"
	"github.com/lepinkainen/bibsync/internal/identifier"
	"github.com/lepinkainen/bibsync/internal/library"
	"github.com/lepinkainen/bibsync/internal/testutil"

	_ "modernc.org/sqlite"
)

func TestEnrichPrintsYAML(t *testing.T) {
	e := setupCmd(t)

	out := e.mustRun(t, "enrich", "https://doi.org/10.1000/ABC")

	assert.Contains(t, out, "citationCount: 7")
	assert.Contains(t, out, "doi: 10.1000/abc")
	assert.Contains(t, out, "source: semanticscholar")
}

func TestEnrichJSONMatchesGolden(t *testing.T) {
	e := setupCmd(t)

	out := e.mustRun(t, "enrich", "10.1000/abc", "--format", "json")

	testutil.NewGolden(t, "testdata").EqualJSON("enrich_result.json", []byte(out))
}

func TestEnrichRequiresIdentifier(t *testing.T) {
	e := setupCmd(t)

	err := e.run(t, "enrich")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "at least one identifier")

	err = e.run(t, "enrich", "not an identifier")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognised identifier")
}

func TestEnrichWithoutUsableProvider(t *testing.T) {
	e := setupCmd(t)

	err := e.run(t, "enrich", "2019ApJ...882L..12A")
	assert.True(t, bibsyncerrors.KindOf(err) == bibsyncerrors.KindNoSourceAvailable)
}

func TestEnrichRetryReturnsLastError(t *testing.T) {
	p := testutil.NewFakeProvider("semanticscholar").Failing(bibsyncerrors.NewNetworkError("semanticscholar", "down", nil))
	e := setupCmd(t, p)

	err := e.run(t, "enrich", "10.1000/abc", "--retry")
	assert.True(t, bibsyncerrors.KindOf(err) == bibsyncerrors.KindNetwork)
	assert.Equal(t, 3, p.Calls())
}

func TestEnrichWritesOutputFile(t *testing.T) {
	e := setupCmd(t)
	path := e.Path("out", "result.json")

	e.mustRun(t, "enrich", "10.1000/abc", "-F", "json", "-o", path)
	assert.Contains(t, e.ReadFileString(filepath.Join("out", "result.json")), `"citationCount": 7`)
	assert.Equal(t, "", e.out.String())

	err := e.run(t, "enrich", "10.1000/abc", "-o", path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	e.mustRun(t, "enrich", "10.1000/abc", "-o", path, "--overwrite")
	assert.Contains(t, e.ReadFileString(filepath.Join("out", "result.json")), "citationCount: 7")
}

func TestEnrichPublicationSavesToLibrary(t *testing.T) {
	e := setupCmd(t)
	e.mustRun(t, "library", "add", "p1", "10.1000/abc")

	out := e.mustRun(t, "enrich", "--publication", "p1", "arXiv:2106.15928")
	assert.Contains(t, out, "citationCount: 7")

	lib, err := library.Open(config.LibraryDBFile)
	assert.NoError(t, err)
	defer func() { _ = lib.Close() }()

	pub, err := lib.Publication(context.Background(), "p1")
	assert.NoError(t, err)
	assert.True(t, pub.Enrichment != nil)
	assert.Equal(t, 7, *pub.Enrichment.CitationCount)
	assert.Equal(t, "2106.15928", pub.Identifiers.Get(identifier.ArXiv))
}

func TestEnrichPublicationFailureIsTracked(t *testing.T) {
	p := testutil.NewFakeProvider("semanticscholar").Failing(bibsyncerrors.NewNetworkError("semanticscholar", "down", nil))
	e := setupCmd(t, p)
	e.mustRun(t, "library", "add", "p1", "10.1000/abc")

	assert.Error(t, e.run(t, "enrich", "-p", "p1"))

	out := e.mustRun(t, "failures", "list")
	assert.Contains(t, out, "p1")
	assert.Contains(t, out, "down")

	// A later success clears the record.
	p.Err = nil
	e.mustRun(t, "enrich", "-p", "p1")
	assert.NotContains(t, e.mustRun(t, "failures", "list"), "p1")
}

func TestEnrichUnknownPublication(t *testing.T) {
	e := setupCmd(t)

	err := e.run(t, "enrich", "-p", "missing")
	assert.IsError(t, err, library.ErrPublicationNotFound)
}

func TestEnrichResolveOnly(t *testing.T) {
	p := testutil.NewFakeProvider("semanticscholar")
	p.Discovered = identifier.Map{identifier.SemanticScholar: "abc123"}
	e := setupCmd(t, p)

	out := e.mustRun(t, "enrich", "10.1000/abc", "--resolve")

	assert.Contains(t, out, "semanticscholar: abc123")
	assert.Equal(t, 0, p.Calls())
}

func TestLibraryExportToSQLite(t *testing.T) {
	e := setupCmd(t)
	e.mustRun(t, "library", "add", "p1", "10.1000/abc", "--enrich")
	e.mustRun(t, "library", "add", "p2", "PMID:123")
	path := e.Path("export.db")

	out := e.mustRun(t, "library", "export", "--db", path)
	assert.Contains(t, out, "Exported 2 publications")

	db, err := sql.Open("sqlite", path)
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	var citations int
	assert.NoError(t, db.QueryRow("SELECT citation_count FROM publications WHERE id = 'p1'").Scan(&citations))
	assert.Equal(t, 7, citations)
}

func TestLibraryExportRemoteRequiresURL(t *testing.T) {
	e := setupCmd(t)

	err := e.run(t, "library", "export", "--remote")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "datasette URL is required")
}
