package openalex

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/lepinkainen/bibsync/internal/enrichment"
	bibsyncerrors "github.com/lepinkainen/bibsync/internal/errors"
	"github.com/lepinkainen/bibsync/internal/identifier"
)

var _ enrichment.Provider = (*Client)(nil)

func (c *Client) ID() string   { return ID }
func (c *Client) Name() string { return "OpenAlex" }

func (c *Client) Capabilities() enrichment.CapabilitySet {
	return enrichment.NewCapabilitySet(
		enrichment.CitationCount,
		enrichment.Abstract,
		enrichment.PDFURL,
		enrichment.OpenAccess,
		enrichment.Venue,
	)
}

func (c *Client) SupportedIdentifiers() []identifier.Kind {
	return []identifier.Kind{identifier.OpenAlex, identifier.DOI}
}

// ResolveIdentifier looks the work up and adds its OpenAlex ID and PubMed ID.
// Lookup failures leave the map unchanged.
func (c *Client) ResolveIdentifier(ctx context.Context, ids identifier.Map) identifier.Map {
	ref, ok := workRef(ids)
	if !ok {
		return ids.Clone()
	}
	w, err := c.fetchWork(ctx, ref)
	if err != nil {
		slog.Debug("OpenAlex identifier resolution failed", "ref", ref, "error", err)
		return ids.Clone()
	}
	return ids.Merge(discoveredIDs(w))
}

// Enrich fetches the work and merges it over existing.
func (c *Client) Enrich(ctx context.Context, ids identifier.Map, existing *enrichment.Data) (*enrichment.Result, error) {
	ref, ok := workRef(ids)
	if !ok {
		return nil, bibsyncerrors.NewNoIdentifierError(ID)
	}
	w, err := c.fetchWork(ctx, ref)
	if err != nil {
		return nil, err
	}

	data := toData(w)
	data.FetchedAt = c.now()
	return &enrichment.Result{
		Data:        enrichment.Merge(data, existing),
		Identifiers: ids.Merge(discoveredIDs(w)),
	}, nil
}

func discoveredIDs(w *work) identifier.Map {
	ids := identifier.Map{}
	if k, v, ok := identifier.Parse(w.ID); ok && k == identifier.OpenAlex {
		ids = ids.With(identifier.OpenAlex, v)
	}
	if doi := firstNonEmpty(w.DOI, w.IDs.DOI); doi != "" {
		ids = ids.With(identifier.DOI, identifier.NormalizeDOI(doi))
	}
	if w.IDs.PMID != "" {
		pmid := strings.TrimSuffix(w.IDs.PMID, "/")
		ids = ids.With(identifier.PubMed, pmid[strings.LastIndex(pmid, "/")+1:])
	}
	return ids
}

func toData(w *work) *enrichment.Data {
	data := &enrichment.Data{
		CitationCount:  enrichment.IntOrZero(w.CitedByCount),
		ReferenceCount: w.ReferencedWorksCount,
		Abstract:       enrichment.NonEmpty(reconstructAbstract(w.AbstractInvertedIndex)),
		Source:         ID,
	}

	if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil {
		data.Venue = enrichment.NonEmpty(w.PrimaryLocation.Source.DisplayName)
	}

	var urls []string
	for _, loc := range []*location{w.BestOALocation, w.PrimaryLocation} {
		if loc != nil {
			urls = append(urls, loc.PDFURL)
		}
	}
	if w.OpenAccess != nil {
		urls = append(urls, w.OpenAccess.OAURL)
		status := enrichment.ParseOpenAccessStatus(w.OpenAccess.OAStatus)
		data.OpenAccess = &status
	}
	if merged := enrichment.MergeURLs(nil, urls); len(merged) > 0 {
		data.PDFURLs = merged
	}
	return data
}

// reconstructAbstract rebuilds text from OpenAlex's word -> positions index.
func reconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}
	type placed struct {
		pos  int
		word string
	}
	var words []placed
	for word, positions := range index {
		for _, pos := range positions {
			words = append(words, placed{pos: pos, word: word})
		}
	}
	sort.Slice(words, func(i, j int) bool { return words[i].pos < words[j].pos })

	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.word
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
