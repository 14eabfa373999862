package testutil

import (
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/lepinkainen/bibsync/internal/config"
)

// ConfigState holds the state of the config package variables.
type ConfigState struct {
	SemanticScholarAPIKey string
	OpenAlexEmail         string
	LibraryDBFile         string
	CacheDBFile           string
	CacheTTL              time.Duration
}

// SaveConfigState captures the current state of config package variables.
func SaveConfigState() ConfigState {
	return ConfigState{
		SemanticScholarAPIKey: config.SemanticScholarAPIKey,
		OpenAlexEmail:         config.OpenAlexEmail,
		LibraryDBFile:         config.LibraryDBFile,
		CacheDBFile:           config.CacheDBFile,
		CacheTTL:              config.CacheTTL,
	}
}

// RestoreConfigState restores the config package variables to a saved state.
func RestoreConfigState(state ConfigState) {
	config.SemanticScholarAPIKey = state.SemanticScholarAPIKey
	config.OpenAlexEmail = state.OpenAlexEmail
	config.LibraryDBFile = state.LibraryDBFile
	config.CacheDBFile = state.CacheDBFile
	config.CacheTTL = state.CacheTTL
}

// ResetConfig saves the current config state and schedules restoration
// when the test completes. It also resets viper.
func ResetConfig(t *testing.T) {
	t.Helper()

	state := SaveConfigState()
	viper.Reset()
	t.Cleanup(func() {
		RestoreConfigState(state)
		viper.Reset()
	})
}

// SetTestConfig loads the default configuration with both databases placed
// inside env. State is restored when the test completes.
func SetTestConfig(t *testing.T, env *TestEnv) {
	t.Helper()

	ResetConfig(t)
	config.SetDefaults()
	viper.Set("library.dbfile", env.Path("bibsync.db"))
	viper.Set("cache.dbfile", env.Path("cache.db"))
	config.InitConfig()
}

// SetViperValue sets a viper configuration value and schedules cleanup.
// viper cannot unset keys, so a key that was unset before stays set.
func SetViperValue(t *testing.T, key string, value any) {
	t.Helper()

	oldValue := viper.Get(key)
	hadValue := viper.IsSet(key)
	viper.Set(key, value)

	t.Cleanup(func() {
		if hadValue {
			viper.Set(key, oldValue)
		}
	})
}
