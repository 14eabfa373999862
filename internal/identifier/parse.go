package identifier

import (
	"regexp"
	"strings"
)

var (
	// 2106.15928, arXiv:2106.15928v2
	arxivPattern = regexp.MustCompile(`^(?i:arxiv:)?(\d{4}\.\d{4,5}(?:v\d+)?)$`)
	// hep-th/9901001, math.GT/0309136
	arxivOldPattern = regexp.MustCompile(`^(?i:arxiv:)?([a-z\-]+(?:\.[A-Z]{2})?/\d{7}(?:v\d+)?)$`)
	doiPattern      = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)
	// 2019ApJ...882L..12A
	bibcodePattern  = regexp.MustCompile(`^\d{4}[A-Za-z&.]{5}[A-Za-z0-9.]{4}[A-Za-z0-9.][A-Za-z0-9.]{4}[A-Z.]$`)
	s2IDPattern     = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)
	openAlexPattern = regexp.MustCompile(`^(?:https://openalex\.org/)?(W\d+)$`)
	pmidPattern     = regexp.MustCompile(`^\d{1,9}$`)
)

var prefixes = []struct {
	prefix string
	kind   Kind
}{
	{"DOI:", DOI},
	{"ARXIV:", ArXiv},
	{"PMID:", PubMed},
	{"BIBCODE:", Bibcode},
	{"S2:", SemanticScholar},
	{"OPENALEX:", OpenAlex},
}

// Parse classifies a raw identifier string and returns its kind and
// normalized value. Supported forms:
//   - DOI:10.1038/nature12373, https://doi.org/10.1038/nature12373, 10.1038/nature12373
//   - arXiv:2106.15928, 2106.15928v2, hep-th/9901001
//   - 2019ApJ...882L..12A (ADS bibcode)
//   - PMID:19872477
//   - 40 hex characters (Semantic Scholar paper ID)
//   - W2741809807 or https://openalex.org/W2741809807
func Parse(raw string) (Kind, string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", false
	}

	upper := strings.ToUpper(raw)
	for _, p := range prefixes {
		if strings.HasPrefix(upper, p.prefix) {
			value := strings.TrimSpace(raw[len(p.prefix):])
			if value == "" {
				return "", "", false
			}
			return p.kind, normalize(p.kind, value), true
		}
	}

	if doi := NormalizeDOI(raw); doiPattern.MatchString(doi) {
		return DOI, doi, true
	}
	if m := arxivPattern.FindStringSubmatch(raw); m != nil {
		return ArXiv, m[1], true
	}
	if m := arxivOldPattern.FindStringSubmatch(raw); m != nil {
		return ArXiv, m[1], true
	}
	if s2IDPattern.MatchString(raw) {
		return SemanticScholar, strings.ToLower(raw), true
	}
	if m := openAlexPattern.FindStringSubmatch(raw); m != nil {
		return OpenAlex, m[1], true
	}
	if len(raw) == 19 && bibcodePattern.MatchString(raw) {
		return Bibcode, raw, true
	}
	if pmidPattern.MatchString(raw) {
		return PubMed, raw, true
	}
	return "", "", false
}

// ParseAll builds a Map from raw identifier strings, skipping anything that
// cannot be classified. Later values of the same kind do not override earlier ones.
func ParseAll(raw ...string) Map {
	out := Map{}
	for _, r := range raw {
		kind, value, ok := Parse(r)
		if !ok || out.Has(kind) {
			continue
		}
		out[kind] = value
	}
	return out
}

// NormalizeDOI strips resolver prefixes and lowercases a DOI.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi.org/"} {
		if len(doi) >= len(prefix) && strings.EqualFold(doi[:len(prefix)], prefix) {
			doi = doi[len(prefix):]
			break
		}
	}
	if len(doi) >= 4 && strings.EqualFold(doi[:4], "doi:") {
		doi = doi[4:]
	}
	return strings.ToLower(strings.TrimSpace(doi))
}

func normalize(kind Kind, value string) string {
	switch kind {
	case DOI:
		return NormalizeDOI(value)
	case ArXiv:
		if m := arxivPattern.FindStringSubmatch(value); m != nil {
			return m[1]
		}
	case SemanticScholar:
		return strings.ToLower(value)
	case OpenAlex:
		if m := openAlexPattern.FindStringSubmatch(value); m != nil {
			return m[1]
		}
	}
	return value
}
