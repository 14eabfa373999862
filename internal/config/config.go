package config

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Global configuration variables
var (
	// SemanticScholarAPIKey raises the Semantic Scholar rate limit when set
	SemanticScholarAPIKey string
	// OpenAlexEmail is sent as the mailto parameter to join the OpenAlex polite pool
	OpenAlexEmail string
	// LibraryDBFile is the SQLite database holding publications, failures and settings
	LibraryDBFile string
	// CacheDBFile is the SQLite database holding provider responses
	CacheDBFile string
	// CacheTTL is how long successful provider responses are reused
	CacheTTL time.Duration
)

const defaultCacheTTL = 720 * time.Hour

// SetDefaults registers the default value of every configuration key.
func SetDefaults() {
	viper.SetDefault("library.dbfile", "./bibsync.db")
	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "720h") // 30 days

	viper.SetDefault("enrichment.preferred_source", "")
	viper.SetDefault("enrichment.source_priority", []string{"semanticscholar", "openalex"})
	viper.SetDefault("enrichment.auto_sync", true)
	viper.SetDefault("enrichment.refresh_interval_days", 7)

	viper.SetDefault("sync.check_interval", "1h")
	viper.SetDefault("sync.schedule", "")
	viper.SetDefault("sync.max_per_cycle", 50)
	viper.SetDefault("sync.idle_interval", "30s")

	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.base_delay", "2s")
	viper.SetDefault("retry.jitter", 0.1)

	viper.SetDefault("semanticscholar.api_key", "")
	viper.SetDefault("openalex.email", "")

	viper.SetDefault("export.dbfile", "./bibsync-export.db")
	viper.SetDefault("export.database", "bibsync")
	viper.SetDefault("datasette.url", "")
	viper.SetDefault("datasette.token", "")
}

// InitConfig initializes the global configuration
func InitConfig() {
	SemanticScholarAPIKey = viper.GetString("semanticscholar.api_key")
	OpenAlexEmail = viper.GetString("openalex.email")
	LibraryDBFile = viper.GetString("library.dbfile")
	CacheDBFile = viper.GetString("cache.dbfile")
	CacheTTL = Duration("cache.ttl", defaultCacheTTL)
}

// Duration reads a duration key, falling back when it is missing or invalid.
func Duration(key string, fallback time.Duration) time.Duration {
	raw := viper.GetString(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.Warn("Invalid duration in config, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return d
}
