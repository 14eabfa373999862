package enrichment

import (
	"slices"
	"strings"
)

// Capability names a category of enrichment data a provider can supply.
type Capability string

const (
	CitationCount Capability = "citationCount"
	References    Capability = "references"
	Citations     Capability = "citations"
	AuthorStats   Capability = "authorStats"
	Abstract      Capability = "abstract"
	PDFURL        Capability = "pdfURL"
	OpenAccess    Capability = "openAccess"
	Venue         Capability = "venue"
)

// AllCapabilities lists every capability in display order.
var AllCapabilities = []Capability{CitationCount, References, Citations, AuthorStats, Abstract, PDFURL, OpenAccess, Venue}

// ParseCapability maps a name (case-insensitive) to a Capability.
func ParseCapability(name string) (Capability, bool) {
	for _, c := range AllCapabilities {
		if strings.EqualFold(string(c), strings.TrimSpace(name)) {
			return c, true
		}
	}
	return "", false
}

// CapabilitySet is an immutable set of capabilities.
type CapabilitySet struct {
	m map[Capability]struct{}
}

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	m := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		m[c] = struct{}{}
	}
	return CapabilitySet{m: m}
}

func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s.m[c]
	return ok
}

func (s CapabilitySet) Len() int {
	return len(s.m)
}

// List returns the capabilities sorted by name.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s.m))
	for c := range s.m {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

func (s CapabilitySet) String() string {
	list := s.List()
	names := make([]string, len(list))
	for i, c := range list {
		names[i] = string(c)
	}
	return strings.Join(names, ",")
}
