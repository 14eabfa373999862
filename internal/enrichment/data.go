package enrichment

import (
	"fmt"
	"time"

	"github.com/lepinkainen/bibsync/internal/identifier"
)

// OpenAccessStatus mirrors the Unpaywall/OpenAlex open access classification.
type OpenAccessStatus string

const (
	OAClosed  OpenAccessStatus = "closed"
	OAGold    OpenAccessStatus = "gold"
	OAGreen   OpenAccessStatus = "green"
	OABronze  OpenAccessStatus = "bronze"
	OAHybrid  OpenAccessStatus = "hybrid"
	OAUnknown OpenAccessStatus = "unknown"
)

// ParseOpenAccessStatus maps a provider string to a status, OAUnknown for anything unrecognised.
func ParseOpenAccessStatus(s string) OpenAccessStatus {
	switch OpenAccessStatus(s) {
	case OAClosed, OAGold, OAGreen, OABronze, OAHybrid:
		return OpenAccessStatus(s)
	}
	return OAUnknown
}

// CitationRecord is a lightweight reference to another paper.
type CitationRecord struct {
	Title         string   `json:"title" yaml:"title"`
	Year          int      `json:"year,omitempty" yaml:"year,omitempty"`
	Authors       []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	DOI           string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	ArXivID       string   `json:"arxivId,omitempty" yaml:"arxivId,omitempty"`
	CitationCount int      `json:"citationCount,omitempty" yaml:"citationCount,omitempty"`
	IsOpenAccess  bool     `json:"isOpenAccess,omitempty" yaml:"isOpenAccess,omitempty"`
}

// AuthorStat holds bibliometric statistics for one author.
type AuthorStat struct {
	Name          string   `json:"name" yaml:"name"`
	AuthorID      string   `json:"authorId,omitempty" yaml:"authorId,omitempty"`
	HIndex        int      `json:"hIndex,omitempty" yaml:"hIndex,omitempty"`
	CitationCount int      `json:"citationCount,omitempty" yaml:"citationCount,omitempty"`
	PaperCount    int      `json:"paperCount,omitempty" yaml:"paperCount,omitempty"`
	Affiliations  []string `json:"affiliations,omitempty" yaml:"affiliations,omitempty"`
}

// Data is one provider's normalized snapshot for a publication.
// Pointer fields distinguish "not provided" from a zero value.
type Data struct {
	CitationCount  *int              `json:"citationCount,omitempty" yaml:"citationCount,omitempty"`
	ReferenceCount *int              `json:"referenceCount,omitempty" yaml:"referenceCount,omitempty"`
	Abstract       *string           `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	PDFURLs        []string          `json:"pdfUrls,omitempty" yaml:"pdfUrls,omitempty"`
	OpenAccess     *OpenAccessStatus `json:"openAccess,omitempty" yaml:"openAccess,omitempty"`
	Venue          *string           `json:"venue,omitempty" yaml:"venue,omitempty"`
	References     []CitationRecord  `json:"references,omitempty" yaml:"references,omitempty"`
	Citations      []CitationRecord  `json:"citations,omitempty" yaml:"citations,omitempty"`
	AuthorStats    []AuthorStat      `json:"authorStats,omitempty" yaml:"authorStats,omitempty"`

	// Source is the provider ID that produced this snapshot.
	Source    string    `json:"source" yaml:"source"`
	FetchedAt time.Time `json:"fetchedAt" yaml:"fetchedAt"`
}

// Validate checks that the snapshot is attributed to a source and time.
func (d *Data) Validate() error {
	if d == nil {
		return fmt.Errorf("enrichment data is nil")
	}
	if d.Source == "" {
		return fmt.Errorf("enrichment data has no source")
	}
	if d.FetchedAt.IsZero() {
		return fmt.Errorf("enrichment data from %s has no fetch time", d.Source)
	}
	return nil
}

// Result is what a provider returns: the merged data and the identifier map,
// possibly extended with IDs discovered during the fetch.
type Result struct {
	Data        *Data          `json:"data" yaml:"data"`
	Identifiers identifier.Map `json:"identifiers" yaml:"identifiers"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// IntOrZero returns a pointer to *v, or to 0 when the provider omitted the value.
func IntOrZero(v *int) *int {
	if v == nil {
		return Ptr(0)
	}
	return Ptr(*v)
}

// NonEmpty returns a pointer to s, or nil for blank strings.
func NonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
