package enrichment

import "slices"

// Merge combines a freshly fetched snapshot with previously known data.
//
// Each field takes the newer value when it is set (non-nil, non-empty),
// otherwise the existing value is kept. Source and FetchedAt always come from
// newer, so a provider with few capabilities can refresh the timestamp
// without erasing richer data. Neither argument is modified.
func Merge(newer, existing *Data) *Data {
	if newer == nil {
		return existing.clone()
	}
	merged := newer.clone()
	if existing == nil {
		return merged
	}

	if merged.CitationCount == nil {
		merged.CitationCount = clonePtr(existing.CitationCount)
	}
	if merged.ReferenceCount == nil {
		merged.ReferenceCount = clonePtr(existing.ReferenceCount)
	}
	if merged.Abstract == nil || *merged.Abstract == "" {
		merged.Abstract = clonePtr(existing.Abstract)
	}
	if len(merged.PDFURLs) == 0 {
		merged.PDFURLs = slices.Clone(existing.PDFURLs)
	}
	if merged.OpenAccess == nil {
		merged.OpenAccess = clonePtr(existing.OpenAccess)
	}
	if merged.Venue == nil || *merged.Venue == "" {
		merged.Venue = clonePtr(existing.Venue)
	}
	if len(merged.References) == 0 {
		merged.References = cloneRecords(existing.References)
	}
	if len(merged.Citations) == 0 {
		merged.Citations = cloneRecords(existing.Citations)
	}
	if len(merged.AuthorStats) == 0 {
		merged.AuthorStats = cloneAuthors(existing.AuthorStats)
	}

	return merged
}

func (d *Data) clone() *Data {
	if d == nil {
		return nil
	}
	return &Data{
		CitationCount:  clonePtr(d.CitationCount),
		ReferenceCount: clonePtr(d.ReferenceCount),
		Abstract:       clonePtr(d.Abstract),
		PDFURLs:        slices.Clone(d.PDFURLs),
		OpenAccess:     clonePtr(d.OpenAccess),
		Venue:          clonePtr(d.Venue),
		References:     cloneRecords(d.References),
		Citations:      cloneRecords(d.Citations),
		AuthorStats:    cloneAuthors(d.AuthorStats),
		Source:         d.Source,
		FetchedAt:      d.FetchedAt,
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneRecords(in []CitationRecord) []CitationRecord {
	if in == nil {
		return nil
	}
	out := make([]CitationRecord, len(in))
	for i, r := range in {
		r.Authors = slices.Clone(r.Authors)
		out[i] = r
	}
	return out
}

func cloneAuthors(in []AuthorStat) []AuthorStat {
	if in == nil {
		return nil
	}
	out := make([]AuthorStat, len(in))
	for i, a := range in {
		a.Affiliations = slices.Clone(a.Affiliations)
		out[i] = a
	}
	return out
}

// MergeURLs appends the URLs of b missing from a, keeping order.
func MergeURLs(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	result := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			result = append(result, s)
		}
	}
	return result
}
