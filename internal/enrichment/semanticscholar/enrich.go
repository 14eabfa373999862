package semanticscholar

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lepinkainen/bibsync/internal/enrichment"
	bibsyncerrors "github.com/lepinkainen/bibsync/internal/errors"
	"github.com/lepinkainen/bibsync/internal/identifier"
)

var _ enrichment.Provider = (*Client)(nil)

func (c *Client) ID() string   { return ID }
func (c *Client) Name() string { return "Semantic Scholar" }

func (c *Client) Capabilities() enrichment.CapabilitySet {
	return enrichment.NewCapabilitySet(enrichment.AllCapabilities...)
}

func (c *Client) SupportedIdentifiers() []identifier.Kind {
	return []identifier.Kind{identifier.SemanticScholar, identifier.DOI, identifier.ArXiv, identifier.PubMed}
}

// ResolveIdentifier adds the Semantic Scholar paper ID and any external IDs
// the API knows about. Lookup failures leave the map unchanged.
func (c *Client) ResolveIdentifier(ctx context.Context, ids identifier.Map) identifier.Map {
	ref, ok := paperRef(ids)
	if !ok {
		return ids.Clone()
	}
	p, err := c.fetchPaper(ctx, ref)
	if err != nil {
		slog.Debug("Semantic Scholar identifier resolution failed", "ref", ref, "error", err)
		return ids.Clone()
	}
	return ids.Merge(discoveredIDs(p))
}

// Enrich fetches the paper and merges it over existing.
func (c *Client) Enrich(ctx context.Context, ids identifier.Map, existing *enrichment.Data) (*enrichment.Result, error) {
	ref, ok := paperRef(ids)
	if !ok {
		return nil, bibsyncerrors.NewNoIdentifierError(ID)
	}
	p, err := c.fetchPaper(ctx, ref)
	if err != nil {
		return nil, err
	}

	data := toData(p)
	data.FetchedAt = c.now()
	return &enrichment.Result{
		Data:        enrichment.Merge(data, existing),
		Identifiers: ids.Merge(discoveredIDs(p)),
	}, nil
}

func discoveredIDs(p *paper) identifier.Map {
	ids := identifier.Map{}.
		With(identifier.SemanticScholar, strings.ToLower(p.PaperID)).
		With(identifier.ArXiv, p.ExternalIDs.ArXiv).
		With(identifier.PubMed, p.ExternalIDs.PubMed)
	if p.ExternalIDs.DOI != "" {
		ids = ids.With(identifier.DOI, identifier.NormalizeDOI(p.ExternalIDs.DOI))
	}
	return ids
}

func toData(p *paper) *enrichment.Data {
	data := &enrichment.Data{
		CitationCount:  enrichment.IntOrZero(p.CitationCount),
		ReferenceCount: p.ReferenceCount,
		Abstract:       enrichment.NonEmpty(strings.TrimSpace(p.Abstract)),
		Venue:          enrichment.NonEmpty(strings.TrimSpace(p.Venue)),
		References:     toRecords(p.References),
		Citations:      toRecords(p.Citations),
		AuthorStats:    toAuthorStats(p.Authors),
		Source:         ID,
	}

	status := enrichment.OAClosed
	if p.OpenAccessPDF != nil {
		if p.OpenAccessPDF.URL != "" {
			data.PDFURLs = []string{p.OpenAccessPDF.URL}
		}
		if s := strings.ToLower(p.OpenAccessPDF.Status); s != "" {
			status = enrichment.ParseOpenAccessStatus(s)
		} else if p.IsOpenAccess {
			status = enrichment.OAUnknown
		}
	} else if p.IsOpenAccess {
		status = enrichment.OAUnknown
	}
	data.OpenAccess = &status
	return data
}

func toRecords(papers []relatedPaper) []enrichment.CitationRecord {
	var out []enrichment.CitationRecord
	for _, rp := range papers {
		if rp.Title == "" {
			continue
		}
		rec := enrichment.CitationRecord{
			Title:         rp.Title,
			Year:          rp.Year,
			ArXivID:       rp.ExternalIDs.ArXiv,
			CitationCount: rp.CitationCount,
			IsOpenAccess:  rp.IsOpenAccess,
		}
		if rp.ExternalIDs.DOI != "" {
			rec.DOI = identifier.NormalizeDOI(rp.ExternalIDs.DOI)
		}
		for _, a := range rp.Authors {
			if a.Name != "" {
				rec.Authors = append(rec.Authors, a.Name)
			}
		}
		out = append(out, rec)
	}
	return out
}

func toAuthorStats(authors []author) []enrichment.AuthorStat {
	var out []enrichment.AuthorStat
	for _, a := range authors {
		if a.Name == "" {
			continue
		}
		out = append(out, enrichment.AuthorStat{
			Name:          a.Name,
			AuthorID:      a.AuthorID,
			HIndex:        deref(a.HIndex),
			CitationCount: deref(a.CitationCount),
			PaperCount:    deref(a.PaperCount),
			Affiliations:  a.Affiliations,
		})
	}
	return out
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
