package enrichment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	oldTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newTime = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
)

func richSnapshot() *Data {
	return &Data{
		CitationCount:  Ptr(999),
		ReferenceCount: Ptr(42),
		Abstract:       Ptr("We measure things."),
		PDFURLs:        []string{"https://arxiv.org/pdf/2106.15928"},
		OpenAccess:     Ptr(OAGreen),
		Venue:          Ptr("Physical Review D"),
		References:     []CitationRecord{{Title: "Ref", Year: 2019, Authors: []string{"A. Author"}}},
		Citations:      []CitationRecord{{Title: "Cite", Year: 2023}},
		AuthorStats:    []AuthorStat{{Name: "A. Author", HIndex: 12, Affiliations: []string{"CERN"}}},
		Source:         "semanticscholar",
		FetchedAt:      oldTime,
	}
}

func TestMergeKeepsExistingWhenNewIsNil(t *testing.T) {
	existing := richSnapshot()
	newer := &Data{Source: "openalex", FetchedAt: newTime}

	merged := Merge(newer, existing)

	require.NotNil(t, merged.CitationCount)
	assert.Equal(t, 999, *merged.CitationCount)
	assert.Equal(t, 42, *merged.ReferenceCount)
	assert.Equal(t, "We measure things.", *merged.Abstract)
	assert.Equal(t, existing.PDFURLs, merged.PDFURLs)
	assert.Equal(t, OAGreen, *merged.OpenAccess)
	assert.Equal(t, "Physical Review D", *merged.Venue)
	assert.Equal(t, existing.References, merged.References)
	assert.Equal(t, existing.Citations, merged.Citations)
	assert.Equal(t, existing.AuthorStats, merged.AuthorStats)

	// Attribution always follows the new fetch.
	assert.Equal(t, "openalex", merged.Source)
	assert.Equal(t, newTime, merged.FetchedAt)
}

func TestMergeExplicitZeroWins(t *testing.T) {
	newer := &Data{CitationCount: Ptr(0), Source: "openalex", FetchedAt: newTime}
	merged := Merge(newer, richSnapshot())

	require.NotNil(t, merged.CitationCount)
	assert.Equal(t, 0, *merged.CitationCount)
}

func TestMergeNewValuesWin(t *testing.T) {
	newer := &Data{
		CitationCount: Ptr(1000),
		Abstract:      Ptr("Updated abstract."),
		PDFURLs:       []string{"https://example.org/a.pdf"},
		OpenAccess:    Ptr(OAGold),
		Source:        "openalex",
		FetchedAt:     newTime,
	}

	merged := Merge(newer, richSnapshot())

	assert.Equal(t, 1000, *merged.CitationCount)
	assert.Equal(t, "Updated abstract.", *merged.Abstract)
	assert.Equal(t, []string{"https://example.org/a.pdf"}, merged.PDFURLs)
	assert.Equal(t, OAGold, *merged.OpenAccess)
	assert.Equal(t, 42, *merged.ReferenceCount)
}

func TestMergeEmptyStringsAreAbsent(t *testing.T) {
	newer := &Data{Abstract: Ptr(""), Venue: Ptr(""), Source: "x", FetchedAt: newTime}
	merged := Merge(newer, richSnapshot())

	assert.Equal(t, "We measure things.", *merged.Abstract)
	assert.Equal(t, "Physical Review D", *merged.Venue)
}

func TestMergeIdempotentOnSameSource(t *testing.T) {
	a := richSnapshot()
	b := richSnapshot()
	b.FetchedAt = newTime

	merged := Merge(b, a)

	want := richSnapshot()
	want.FetchedAt = newTime
	assert.Equal(t, want, merged)
}

func TestMergeDoesNotAlias(t *testing.T) {
	existing := richSnapshot()
	newer := &Data{Source: "openalex", FetchedAt: newTime}

	merged := Merge(newer, existing)
	*merged.CitationCount = 1
	merged.PDFURLs[0] = "changed"
	merged.References[0].Authors[0] = "changed"

	assert.Equal(t, 999, *existing.CitationCount)
	assert.Equal(t, "https://arxiv.org/pdf/2106.15928", existing.PDFURLs[0])
	assert.Equal(t, "A. Author", existing.References[0].Authors[0])
	assert.Nil(t, newer.CitationCount)
}

func TestMergeNilArguments(t *testing.T) {
	assert.Nil(t, Merge(nil, nil))

	existing := richSnapshot()
	assert.Equal(t, existing, Merge(nil, existing))

	newer := &Data{CitationCount: Ptr(3), Source: "x", FetchedAt: newTime}
	assert.Equal(t, newer, Merge(newer, nil))
}

func TestMergeURLs(t *testing.T) {
	got := MergeURLs([]string{"a", "b"}, []string{"b", "", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestDataValidate(t *testing.T) {
	var nilData *Data
	require.Error(t, nilData.Validate())
	require.Error(t, (&Data{FetchedAt: newTime}).Validate())
	require.Error(t, (&Data{Source: "x"}).Validate())
	require.NoError(t, richSnapshot().Validate())
}

func TestIntOrZero(t *testing.T) {
	assert.Equal(t, 0, *IntOrZero(nil))
	v := 5
	p := IntOrZero(&v)
	assert.Equal(t, 5, *p)
	assert.NotSame(t, &v, p)
}

func TestParseOpenAccessStatus(t *testing.T) {
	assert.Equal(t, OAGold, ParseOpenAccessStatus("gold"))
	assert.Equal(t, OAUnknown, ParseOpenAccessStatus("diamond"))
	assert.Equal(t, OAUnknown, ParseOpenAccessStatus(""))
}
