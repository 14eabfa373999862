package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestInitConfigReadsDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	SetDefaults()
	InitConfig()

	assert.Equal(t, "./bibsync.db", LibraryDBFile)
	assert.Equal(t, "./cache.db", CacheDBFile)
	assert.Equal(t, 720*time.Hour, CacheTTL)
	assert.Empty(t, SemanticScholarAPIKey)
	assert.Equal(t, []string{"semanticscholar", "openalex"}, viper.GetStringSlice("enrichment.source_priority"))
}

func TestInitConfigOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	SetDefaults()
	viper.Set("semanticscholar.api_key", "key")
	viper.Set("openalex.email", "me@example.org")
	viper.Set("cache.ttl", "12h")
	InitConfig()

	assert.Equal(t, "key", SemanticScholarAPIKey)
	assert.Equal(t, "me@example.org", OpenAlexEmail)
	assert.Equal(t, 12*time.Hour, CacheTTL)
}

func TestDurationFallback(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	assert.Equal(t, time.Minute, Duration("missing", time.Minute))

	viper.Set("bad", "soon")
	assert.Equal(t, time.Minute, Duration("bad", time.Minute))

	viper.Set("negative", "-5s")
	assert.Equal(t, time.Minute, Duration("negative", time.Minute))

	viper.Set("good", "90s")
	assert.Equal(t, 90*time.Second, Duration("good", time.Minute))
}
