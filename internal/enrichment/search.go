package enrichment

import "github.com/lepinkainen/bibsync/internal/identifier"

// SearchResult is the subset of a bibliographic search hit needed to enrich it.
type SearchResult struct {
	Title    string
	DOI      string
	ArXivID  string
	Bibcode  string
	SourceID string
	// NativeID is the ID assigned by the search source identified by SourceID.
	NativeID string
}

// Identifiers derives an identifier map from the search hit.
func (r SearchResult) Identifiers() identifier.Map {
	ids := identifier.Map{}
	if r.DOI != "" {
		ids = ids.With(identifier.DOI, identifier.NormalizeDOI(r.DOI))
	}
	ids = ids.With(identifier.ArXiv, r.ArXivID)
	ids = ids.With(identifier.Bibcode, r.Bibcode)
	if kind := identifier.Kind(r.SourceID); kind.Valid() && r.NativeID != "" {
		ids = ids.With(kind, r.NativeID)
	}
	return ids
}
