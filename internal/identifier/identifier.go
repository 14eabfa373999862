// Package identifier holds the keyed set of external identifiers used to look
// a publication up across metadata providers.
package identifier

import (
	"maps"
	"slices"
	"strings"
)

// Kind distinguishes one identifier namespace from another.
type Kind string

const (
	DOI             Kind = "doi"
	ArXiv           Kind = "arxiv"
	Bibcode         Kind = "bibcode"
	PubMed          Kind = "pmid"
	SemanticScholar Kind = "semanticscholar"
	OpenAlex        Kind = "openalex"
)

// AllKinds lists the fixed identifier vocabulary in display order.
var AllKinds = []Kind{DOI, ArXiv, Bibcode, PubMed, SemanticScholar, OpenAlex}

// Valid reports whether k is part of the known vocabulary.
func (k Kind) Valid() bool {
	return slices.Contains(AllKinds, k)
}

// Map maps identifier kinds to their values. Treat a Map as immutable once it
// has been handed to a request: the helpers below always return copies.
type Map map[Kind]string

// Get returns the trimmed value for kind, or "" when absent.
func (m Map) Get(kind Kind) string {
	return strings.TrimSpace(m[kind])
}

// Has reports whether kind is present with a non-blank value.
func (m Map) Has(kind Kind) bool {
	return m.Get(kind) != ""
}

// IsEmpty reports whether the map carries no usable identifier.
func (m Map) IsEmpty() bool {
	for _, v := range m {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Clone returns a copy with blank values dropped.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	return out
}

// With returns a copy of m with kind set to value. A blank value removes the key.
func (m Map) With(kind Kind, value string) Map {
	out := m.Clone()
	if value = strings.TrimSpace(value); value == "" {
		delete(out, kind)
		return out
	}
	out[kind] = value
	return out
}

// Merge returns a copy of m extended with the non-blank entries of other.
// Existing values in m win; resolution only ever adds identifiers.
func (m Map) Merge(other Map) Map {
	out := m.Clone()
	for k, v := range other {
		if out.Has(k) {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	return out
}

// Kinds returns the populated kinds in vocabulary order, unknown kinds last
// in lexical order.
func (m Map) Kinds() []Kind {
	var known, unknown []Kind
	for _, k := range AllKinds {
		if m.Has(k) {
			known = append(known, k)
		}
	}
	for k := range m {
		if !k.Valid() && m.Has(k) {
			unknown = append(unknown, k)
		}
	}
	slices.Sort(unknown)
	return append(known, unknown...)
}

// Equal reports whether both maps hold the same non-blank identifiers.
func (m Map) Equal(other Map) bool {
	return maps.Equal(m.Clone(), other.Clone())
}

// String renders the map as "kind:value" pairs for logging.
func (m Map) String() string {
	kinds := m.Kinds()
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, string(k)+":"+m.Get(k))
	}
	return strings.Join(parts, " ")
}
