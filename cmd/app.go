package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/lepinkainen/bibsync/internal/cache"
	"github.com/lepinkainen/bibsync/internal/config"
	"github.com/lepinkainen/bibsync/internal/enrichment"
	"github.com/lepinkainen/bibsync/internal/enrichment/openalex"
	"github.com/lepinkainen/bibsync/internal/enrichment/semanticscholar"
	"github.com/lepinkainen/bibsync/internal/library"
	"github.com/lepinkainen/bibsync/internal/retry"
	"github.com/lepinkainen/bibsync/internal/scheduler"
	"github.com/lepinkainen/bibsync/internal/service"
	"github.com/lepinkainen/bibsync/internal/settings"
	"github.com/lepinkainen/bibsync/internal/tracker"
)

// newProviders builds the configured metadata providers.
var newProviders = func(c *cache.CacheDB) []enrichment.Provider {
	return []enrichment.Provider{
		semanticscholar.New(
			semanticscholar.WithAPIKey(config.SemanticScholarAPIKey),
			semanticscholar.WithCache(c),
		),
		openalex.New(
			openalex.WithEmail(config.OpenAlexEmail),
			openalex.WithCache(c),
		),
	}
}

// app holds the collaborators shared by the commands.
type app struct {
	library   *library.Store
	cache     *cache.CacheDB
	settings  *settings.Manager
	tracker   *tracker.Tracker
	service   *service.Service
	scheduler *scheduler.Scheduler
}

func openApp() (*app, error) {
	lib, err := library.Open(config.LibraryDBFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}

	cacheDB, err := cache.Open(config.CacheDBFile, cache.WithTTL(config.CacheTTL))
	if err != nil {
		_ = lib.Close()
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	a := &app{library: lib, cache: cacheDB}

	a.settings, err = settings.NewManager(lib, settings.Defaults())
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	a.tracker = tracker.New(tracker.WithStore(lib))
	if err := a.tracker.Load(); err != nil {
		slog.Warn("Failed to load failed requests", "error", err)
	}

	a.service = service.New(newProviders(cacheDB), a.settings,
		service.WithTracker(a.tracker),
		service.WithStore(lib),
		service.WithIdleInterval(config.Duration("sync.idle_interval", service.DefaultIdleInterval)),
	)

	schedOpts := []scheduler.Option{
		scheduler.WithCheckInterval(config.Duration("sync.check_interval", scheduler.DefaultCheckInterval)),
		scheduler.WithMaxPerCycle(viper.GetInt("sync.max_per_cycle")),
	}
	if spec := viper.GetString("sync.schedule"); spec != "" {
		opt, err := scheduler.WithSchedule(spec)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("invalid sync.schedule: %w", err), a.Close())
		}
		schedOpts = append(schedOpts, opt)
	}
	a.scheduler = scheduler.New(a.service, lib, a.settings, schedOpts...)
	a.service.Attach(a.scheduler)

	return a, nil
}

// Close stops background work and closes both databases.
func (a *app) Close() error {
	if a.service != nil {
		a.service.StopBackgroundSync()
	}
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.library != nil {
		errs = append(errs, a.library.Close())
	}
	return errors.Join(errs...)
}

// retryPolicy reads the retry settings, only retrying transient failures.
func retryPolicy() retry.Policy {
	def := retry.Default()
	p := retry.Policy{
		MaxAttempts:  viper.GetInt("retry.max_attempts"),
		BaseDelay:    config.Duration("retry.base_delay", def.BaseDelay),
		JitterFactor: viper.GetFloat64("retry.jitter"),
		MaxDelay:     time.Minute,
		Retryable:    service.Transient,
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = def.MaxAttempts
	}
	return p
}
