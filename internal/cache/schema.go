package cache

// All cache tables share the same layout. Timestamps are Unix seconds.

// SemanticScholarCacheSchema defines the schema for Semantic Scholar paper lookups
const SemanticScholarCacheSchema = `
CREATE TABLE IF NOT EXISTS semanticscholar_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_semanticscholar_expires_at ON semanticscholar_cache(expires_at);
`

// OpenAlexCacheSchema defines the schema for OpenAlex work lookups
const OpenAlexCacheSchema = `
CREATE TABLE IF NOT EXISTS openalex_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_openalex_expires_at ON openalex_cache(expires_at);
`

// AllCacheSchemas contains all cache table schemas for easy initialization
var AllCacheSchemas = []string{
	SemanticScholarCacheSchema,
	OpenAlexCacheSchema,
}

const (
	SemanticScholarTable = "semanticscholar_cache"
	OpenAlexTable        = "openalex_cache"
)

// ValidCacheTableNames is the whitelist of allowed cache table names
// Used to prevent SQL injection when interpolating table names
var ValidCacheTableNames = map[string]bool{
	SemanticScholarTable: true,
	OpenAlexTable:        true,
}

// TableForSource maps a provider ID to its cache table.
func TableForSource(source string) (string, bool) {
	table := source + "_cache"
	return table, ValidCacheTableNames[table]
}
