package cmd

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/lepinkainen/bibsync/internal/cache"
	"github.com/lepinkainen/bibsync/internal/config"
)

// stdout is where command results are printed.
var stdout io.Writer = os.Stdout

// CLI represents the complete command structure for the bibsync application
type CLI struct {
	// Global flags
	Verbose bool `short:"v" help:"Enable debug logging"`

	LibraryDBFile string `name:"library-db" help:"Path to library SQLite database (default from config)"`
	CacheDBFile   string `name:"cache-db" help:"Path to cache SQLite database (default from config)"`
	CacheTTL      string `name:"cache-ttl" help:"Cache time-to-live duration, e.g. 720h for 30 days (default from config)"`

	Enrich    EnrichCmd    `cmd:"" help:"Enrich identifiers or a library publication"`
	Library   LibraryCmd   `cmd:"" help:"Manage the publication library"`
	Sync      SyncCmd      `cmd:"" help:"Queue stale publications and process the queue"`
	Failures  FailuresCmd  `cmd:"" help:"Inspect, clear and retry failed enrichments"`
	Settings  SettingsCmd  `cmd:"" help:"Show or change enrichment settings"`
	Providers ProvidersCmd `cmd:"" help:"List metadata providers and their capabilities"`
	Cache     CacheCmd     `cmd:"" help:"Manage the provider response cache"`
}

// CacheCmd groups cache maintenance subcommands.
type CacheCmd struct {
	Invalidate cache.InvalidateCacheCmd `cmd:"" help:"Delete cached responses for a source"`
}

func kongOptions() []kong.Option {
	return []kong.Option{
		kong.Name("bibsync"),
		kong.Description("Enrich a publication library with citation and open access metadata."),
		kong.UsageOnError(),
	}
}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging(false)
	initConfig()

	var cli CLI
	ctx := kong.Parse(&cli, kongOptions()...)

	if cli.Verbose {
		initLogging(true)
	}
	updateGlobalConfig(&cli)

	if err := ctx.Run(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	config.SetDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()
	// Bind specific environment variables to config keys
	for key, env := range map[string]string{
		"semanticscholar.api_key": "S2_API_KEY",
		"openalex.email":          "OPENALEX_EMAIL",
		"datasette.token":         "DATASETTE_TOKEN",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			slog.Error("Failed to bind environment variable", "key", key, "error", err)
		}
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("Fatal error config file", "error", err)
			os.Exit(1)
		}
		slog.Info("Config file not found, writing default config file")
		if err := viper.SafeWriteConfig(); err != nil {
			slog.Warn("Error writing config file", "error", err)
		}
	}

	config.InitConfig()
}

// updateGlobalConfig applies flags that were given on the command line.
func updateGlobalConfig(cli *CLI) {
	if cli.LibraryDBFile != "" {
		viper.Set("library.dbfile", cli.LibraryDBFile)
	}
	if cli.CacheDBFile != "" {
		viper.Set("cache.dbfile", cli.CacheDBFile)
	}
	if cli.CacheTTL != "" {
		viper.Set("cache.ttl", cli.CacheTTL)
	}
	config.InitConfig()
}

func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := humanlog.NewHandler(os.Stderr, &humanlog.Options{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}
