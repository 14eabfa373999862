package openalex

// work is the subset of an OpenAlex work record we request.
type work struct {
	ID                    string           `json:"id"`
	DOI                   string           `json:"doi"`
	Title                 string           `json:"title"`
	IDs                   workIDs          `json:"ids"`
	CitedByCount          *int             `json:"cited_by_count"`
	ReferencedWorksCount  *int             `json:"referenced_works_count"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
	OpenAccess            *openAccess      `json:"open_access"`
	PrimaryLocation       *location        `json:"primary_location"`
	BestOALocation        *location        `json:"best_oa_location"`
	Authorships           []authorship     `json:"authorships"`
}

type workIDs struct {
	OpenAlex string `json:"openalex"`
	DOI      string `json:"doi"`
	PMID     string `json:"pmid"`
}

type openAccess struct {
	IsOA     bool   `json:"is_oa"`
	OAStatus string `json:"oa_status"`
	OAURL    string `json:"oa_url"`
}

type location struct {
	PDFURL string  `json:"pdf_url"`
	Source *source `json:"source"`
}

type source struct {
	DisplayName string `json:"display_name"`
}

type authorship struct {
	Author struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"author"`
	Institutions []struct {
		DisplayName string `json:"display_name"`
	} `json:"institutions"`
}

// cachedWork wraps a lookup result so "not found" can be cached too.
type cachedWork struct {
	Work     *work `json:"work,omitempty"`
	NotFound bool  `json:"not_found"`
}
