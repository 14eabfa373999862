package cmd

import (
	"encoding/json"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/lepinkainen/bibsync/internal/enrichment"
	bibsyncerrors "github.com/lepinkainen/bibsync/internal/errors"
	"github.com/lepinkainen/bibsync/internal/identifier"
	"github.com/lepinkainen/bibsync/internal/library"
	"github.com/lepinkainen/bibsync/internal/settings"
	"github.com/lepinkainen/bibsync/internal/testutil"
	"github.com/lepinkainen/bibsync/internal/tracker"
	"github.com/lepinkainen/bibsync/internal/tui"
)

func twoProviders() (*testutil.FakeProvider, *testutil.FakeProvider) {
	s2 := testutil.NewFakeProvider("semanticscholar", identifier.DOI, identifier.ArXiv)
	s2.CitationCount = 7
	oa := testutil.NewFakeProvider("openalex").WithCapabilities(enrichment.CitationCount, enrichment.Abstract)
	oa.CitationCount = 9
	return s2, oa
}

func stubSelectFailures(t *testing.T, action tui.SelectionAction) *[]tracker.FailedRequest {
	t.Helper()
	var offered []tracker.FailedRequest
	orig := selectFailures
	selectFailures = func(failures []tracker.FailedRequest) (tui.SelectionResult, error) {
		offered = failures
		return tui.SelectionResult{Action: action, Selection: failures}, nil
	}
	t.Cleanup(func() { selectFailures = orig })
	return &offered
}

func TestLibraryAddListShow(t *testing.T) {
	e := setupCmd(t)

	e.mustRun(t, "library", "add", "p1", "10.1000/abc", "arXiv:2106.15928")
	e.mustRun(t, "library", "add", "p2", "PMID:123")

	out := e.mustRun(t, "library", "list")
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "p1")
	assert.Contains(t, out, "p2")
	assert.Contains(t, out, "never")

	var pub library.Publication
	assert.NoError(t, json.Unmarshal([]byte(e.mustRun(t, "library", "show", "p1", "-F", "json")), &pub))
	assert.Equal(t, "10.1000/abc", pub.Identifiers.Get(identifier.DOI))
	assert.Equal(t, "2106.15928", pub.Identifiers.Get(identifier.ArXiv))
}

func TestLibraryAddRejectsUnknownIdentifiers(t *testing.T) {
	e := setupCmd(t)

	err := e.run(t, "library", "add", "p1", "nonsense")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no recognisable identifiers")
}

func TestLibraryImportCSV(t *testing.T) {
	e := setupCmd(t)
	file := e.WriteFileString("papers.csv", "id,doi,arxiv\np1,10.1000/one,\np2,,2106.15928\n,10.1000/skipped,\n")

	out := e.mustRun(t, "library", "import", file)
	assert.Contains(t, out, "Imported 2 publications")

	list := e.mustRun(t, "library", "list", "-F", "yaml")
	assert.Contains(t, list, "id: p1")
	assert.Contains(t, list, "id: p2")
}

func TestLibraryRemove(t *testing.T) {
	e := setupCmd(t)
	e.mustRun(t, "library", "add", "p1", "10.1000/abc")

	e.mustRun(t, "library", "remove", "p1")

	assert.IsError(t, e.run(t, "library", "show", "p1"), library.ErrPublicationNotFound)
}

func TestSyncEnrichesStalePublications(t *testing.T) {
	p := testutil.NewFakeProvider("semanticscholar")
	e := setupCmd(t, p)
	e.mustRun(t, "library", "add", "p1", "10.1000/one")
	e.mustRun(t, "library", "add", "p2", "10.1000/two")

	out := e.mustRun(t, "sync")
	assert.Contains(t, out, "Processed 2 publications: 2 enriched, 0 failed")
	assert.Equal(t, 2, p.Calls())

	// Freshly enriched publications are not stale.
	out = e.mustRun(t, "sync")
	assert.Contains(t, out, "Processed 0 publications")
	assert.Equal(t, 2, p.Calls())
}

func TestSyncRecordsFailuresAndRetriesThem(t *testing.T) {
	p := testutil.NewFakeProvider("semanticscholar").Failing(bibsyncerrors.NewNetworkError("semanticscholar", "down", nil))
	e := setupCmd(t, p)
	e.mustRun(t, "library", "add", "p1", "10.1000/one")

	out := e.mustRun(t, "sync")
	assert.Contains(t, out, "1 failed")

	p.Err = nil
	// The failed publication is still stale, so it is queued once.
	out = e.mustRun(t, "sync", "--retry-failed")
	assert.Contains(t, out, "Processed 1 publications: 1 enriched, 0 failed")
}

func TestFailuresRetryNonInteractive(t *testing.T) {
	p := testutil.NewFakeProvider("semanticscholar").Failing(bibsyncerrors.NewNetworkError("semanticscholar", "down", nil))
	e := setupCmd(t, p)
	e.mustRun(t, "library", "add", "p1", "10.1000/one")
	e.mustRun(t, "sync")

	p.Err = nil
	out := e.mustRun(t, "failures", "retry")
	assert.Contains(t, out, "Retried 1 publications: 1 enriched, 0 failed")

	out = e.mustRun(t, "failures", "retry")
	assert.Contains(t, out, "Nothing to retry")
}

func TestFailuresRetryByID(t *testing.T) {
	p := testutil.NewFakeProvider("semanticscholar").Failing(bibsyncerrors.NewNetworkError("semanticscholar", "down", nil))
	e := setupCmd(t, p)
	e.mustRun(t, "library", "add", "p1", "10.1000/one")
	e.mustRun(t, "library", "add", "p2", "10.1000/two")
	e.mustRun(t, "sync")

	p.Err = nil
	out := e.mustRun(t, "failures", "retry", "p2", "unknown")
	assert.Contains(t, out, "Retried 1 publications: 1 enriched")

	list := e.mustRun(t, "failures", "list")
	assert.Contains(t, list, "p1")
	assert.NotContains(t, list, "p2")
}

func TestFailuresRetryInteractive(t *testing.T) {
	p := testutil.NewFakeProvider("semanticscholar").Failing(bibsyncerrors.NewNetworkError("semanticscholar", "down", nil))
	e := setupCmd(t, p)
	e.mustRun(t, "library", "add", "p1", "10.1000/one")
	e.mustRun(t, "sync")
	offered := stubSelectFailures(t, tui.ActionRetry)

	p.Err = nil
	out := e.mustRun(t, "failures", "retry", "--interactive")

	assert.Equal(t, 1, len(*offered))
	assert.Contains(t, out, "Retried 1 publications: 1 enriched, 0 failed")
}

func TestFailuresRetryInteractiveDismiss(t *testing.T) {
	p := testutil.NewFakeProvider("semanticscholar").Failing(bibsyncerrors.NewNetworkError("semanticscholar", "down", nil))
	e := setupCmd(t, p)
	e.mustRun(t, "library", "add", "p1", "10.1000/one")
	e.mustRun(t, "sync")
	stubSelectFailures(t, tui.ActionDismiss)

	out := e.mustRun(t, "failures", "retry", "-i")
	assert.Contains(t, out, "Dismissed 1 failed requests")
	assert.Contains(t, out, "Nothing to retry")
	assert.NotContains(t, e.mustRun(t, "failures", "list"), "p1")
}

func TestFailuresRetryInteractiveCancel(t *testing.T) {
	p := testutil.NewFakeProvider("semanticscholar").Failing(bibsyncerrors.NewNetworkError("semanticscholar", "down", nil))
	e := setupCmd(t, p)
	e.mustRun(t, "library", "add", "p1", "10.1000/one")
	e.mustRun(t, "sync")
	stubSelectFailures(t, tui.ActionCancelled)

	e.mustRun(t, "failures", "retry", "-i")
	assert.Contains(t, e.mustRun(t, "failures", "list"), "p1")
}

func TestFailuresClear(t *testing.T) {
	p := testutil.NewFakeProvider("semanticscholar").Failing(bibsyncerrors.NewNetworkError("semanticscholar", "down", nil))
	e := setupCmd(t, p)
	e.mustRun(t, "library", "add", "p1", "10.1000/one")
	e.mustRun(t, "library", "add", "p2", "10.1000/two")
	e.mustRun(t, "sync")

	assert.Contains(t, e.mustRun(t, "failures", "clear", "p1"), "Cleared 1 failed requests")
	assert.Contains(t, e.mustRun(t, "failures", "clear"), "Cleared 1 failed requests")

	var failures []tracker.FailedRequest
	assert.NoError(t, json.Unmarshal([]byte(e.mustRun(t, "failures", "list", "-F", "json")), &failures))
	assert.Equal(t, 0, len(failures))
}

func TestSettingsSetAndShow(t *testing.T) {
	s2, oa := twoProviders()
	e := setupCmd(t, s2, oa)

	e.mustRun(t, "settings", "set", "--preferred-source", "openalex", "--refresh-days", "3", "--disable-auto-sync")

	var got settings.Settings
	assert.NoError(t, json.Unmarshal([]byte(e.mustRun(t, "settings", "show", "-F", "json")), &got))
	assert.Equal(t, "openalex", got.PreferredSource)
	assert.Equal(t, 3, got.RefreshIntervalDays)
	assert.False(t, got.AutoSyncEnabled)

	// The preferred source is tried first.
	out := e.mustRun(t, "enrich", "10.1000/abc")
	assert.Contains(t, out, "citationCount: 9")
	assert.Equal(t, 0, s2.Calls())

	e.mustRun(t, "settings", "set", "--clear-preferred", "--priority", "openalex,semanticscholar")
	assert.Contains(t, e.mustRun(t, "settings", "show"), "effectiveOrder:\n    - openalex\n    - semanticscholar")
}

func TestSettingsSetValidates(t *testing.T) {
	s2, oa := twoProviders()
	e := setupCmd(t, s2, oa)

	err := e.run(t, "settings", "set", "--preferred-source", "crossref")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")

	err = e.run(t, "settings", "set")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to change")

	assert.Error(t, e.run(t, "settings", "set", "--enable-auto-sync", "--disable-auto-sync"))
}

func TestProvidersList(t *testing.T) {
	s2, oa := twoProviders()
	e := setupCmd(t, s2, oa)

	testutil.NewGolden(t, "testdata").EqualYAML("providers.yaml", []byte(e.mustRun(t, "providers")))

	out := e.mustRun(t, "providers", "--capability", "ABSTRACT")
	assert.Contains(t, out, "id: openalex")
	assert.NotContains(t, out, "id: semanticscholar")

	err := e.run(t, "providers", "-c", "impact")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown capability")
}

func TestCacheInvalidate(t *testing.T) {
	e := setupCmd(t)

	assert.NoError(t, e.run(t, "cache", "invalidate", "all"))
	assert.NoError(t, e.run(t, "cache", "invalidate", "openalex"))
	assert.Error(t, e.run(t, "cache", "invalidate", "crossref"))
}
