package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lepinkainen/bibsync/internal/service"
)

// SyncCmd queues stale publications and processes the queue.
type SyncCmd struct {
	Watch       bool `short:"w" help:"Keep running: process the queue in the background and rescan on the configured schedule"`
	RetryFailed bool `help:"Also queue tracked failures that have attempts left"`
}

// notifyContext is replaced in tests.
var notifyContext = func(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (s *SyncCmd) Run() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, stop := notifyContext(context.Background())
	defer stop()

	if s.Watch {
		return s.watch(ctx, a)
	}

	sum, err := s.once(ctx, a)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "Processed %d publications: %d enriched, %d failed\n", sum.Processed, sum.Succeeded, sum.Failed)
	return err
}

func (s *SyncCmd) queueWork(ctx context.Context, a *app) (int, error) {
	queued, err := a.scheduler.TriggerImmediateCheck(ctx)
	if err != nil {
		return 0, err
	}
	if s.RetryFailed {
		queued += a.service.RequeueFailed(retryPolicy())
	}
	return queued, nil
}

func (s *SyncCmd) once(ctx context.Context, a *app) (service.Summary, error) {
	queued, err := s.queueWork(ctx, a)
	if err != nil {
		return service.Summary{}, err
	}
	slog.Info("Publications queued", "count", queued)
	return a.service.DrainQueue(ctx), nil
}

func (s *SyncCmd) watch(ctx context.Context, a *app) error {
	if !a.settings.Current().AutoSyncEnabled {
		slog.Warn("Auto sync is disabled in settings; only the initial scan will run")
	}

	if _, err := s.queueWork(ctx, a); err != nil {
		return err
	}
	a.service.StartBackgroundSync()
	slog.Info("Watching for stale publications, press Ctrl+C to stop")

	<-ctx.Done()
	a.service.StopBackgroundSync()
	return nil
}
