// Package enrichment defines the metadata provider contract, the normalized
// enrichment record and the rule for merging snapshots.
package enrichment

import (
	"context"
	"slices"

	"github.com/lepinkainen/bibsync/internal/identifier"
)

// Provider fetches supplementary metadata for a publication from one external
// source. Implementations handle their own rate limiting and response parsing.
type Provider interface {
	// ID is the stable identifier used in settings (e.g. "semanticscholar").
	ID() string

	// Name is the human-readable name.
	Name() string

	// Capabilities is queried once and assumed static.
	Capabilities() CapabilitySet

	// SupportedIdentifiers lists the identifier kinds the provider can look up.
	SupportedIdentifiers() []identifier.Kind

	// ResolveIdentifier derives additional identifiers (e.g. a provider-native
	// ID from a DOI) without a full fetch. It never fails: on any problem the
	// input map is returned unchanged.
	ResolveIdentifier(ctx context.Context, ids identifier.Map) identifier.Map

	// Enrich fetches and parses the provider's record, merges it with
	// existing (which may be nil) and returns the merged data together with
	// the possibly extended identifier map. Errors come from internal/errors.
	Enrich(ctx context.Context, ids identifier.Map, existing *Data) (*Result, error)
}

// CanEnrich reports whether ids contains at least one identifier kind that p
// understands. Providers cannot override this rule.
func CanEnrich(p Provider, ids identifier.Map) bool {
	return slices.ContainsFunc(p.SupportedIdentifiers(), ids.Has)
}

// Supports reports whether p advertises capability c.
func Supports(p Provider, c Capability) bool {
	return p.Capabilities().Has(c)
}
