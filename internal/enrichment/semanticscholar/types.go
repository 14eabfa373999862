package semanticscholar

// paper is the subset of the Graph API paper record we request.
type paper struct {
	PaperID        string         `json:"paperId"`
	ExternalIDs    externalIDs    `json:"externalIds"`
	Title          string         `json:"title"`
	Abstract       string         `json:"abstract"`
	Venue          string         `json:"venue"`
	Year           int            `json:"year"`
	CitationCount  *int           `json:"citationCount"`
	ReferenceCount *int           `json:"referenceCount"`
	IsOpenAccess   bool           `json:"isOpenAccess"`
	OpenAccessPDF  *openAccessPDF `json:"openAccessPdf"`
	Authors        []author       `json:"authors"`
	References     []relatedPaper `json:"references"`
	Citations      []relatedPaper `json:"citations"`
}

// externalIDs uses the API's own key casing ("DOI", "ArXiv", "PubMed").
type externalIDs struct {
	DOI      string `json:"DOI"`
	ArXiv    string `json:"ArXiv"`
	PubMed   string `json:"PubMed"`
	CorpusID int    `json:"CorpusId"`
}

type openAccessPDF struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

type author struct {
	AuthorID      string   `json:"authorId"`
	Name          string   `json:"name"`
	HIndex        *int     `json:"hIndex"`
	CitationCount *int     `json:"citationCount"`
	PaperCount    *int     `json:"paperCount"`
	Affiliations  []string `json:"affiliations"`
}

type relatedPaper struct {
	PaperID       string      `json:"paperId"`
	Title         string      `json:"title"`
	Year          int         `json:"year"`
	ExternalIDs   externalIDs `json:"externalIds"`
	CitationCount int         `json:"citationCount"`
	IsOpenAccess  bool        `json:"isOpenAccess"`
	Authors       []author    `json:"authors"`
}

// cachedPaper wraps a lookup result so "not found" can be cached too.
type cachedPaper struct {
	Paper    *paper `json:"paper,omitempty"`
	NotFound bool   `json:"not_found"`
}
