package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"text/tabwriter"
	"time"

	bibsyncerrors "github.com/lepinkainen/bibsync/internal/errors"
	"github.com/lepinkainen/bibsync/internal/queue"
	"github.com/lepinkainen/bibsync/internal/tracker"
	"github.com/lepinkainen/bibsync/internal/tui"
)

// selectFailures is replaced in tests.
var selectFailures = tui.SelectFailures

// FailuresCmd groups the failed request subcommands.
type FailuresCmd struct {
	List  FailuresListCmd  `cmd:"" help:"List failed enrichment requests"`
	Clear FailuresClearCmd `cmd:"" help:"Forget failed requests"`
	Retry FailuresRetryCmd `cmd:"" help:"Queue failed requests again and process them"`
}

// FailuresListCmd lists tracked failures.
type FailuresListCmd struct {
	Format string `short:"F" help:"Output format" enum:"table,yaml,json" default:"table"`
}

func (f *FailuresListCmd) Run() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	failures := a.tracker.All()
	if f.Format != "table" {
		return printValue(stdout, failures, f.Format)
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PUBLICATION\tATTEMPTS\tLAST SEEN\tERROR")
	for _, fr := range failures {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", fr.PublicationID, fr.RetryCount+1, fr.LastSeen.Local().Format(time.DateTime), fr.LastError)
	}
	return tw.Flush()
}

// FailuresClearCmd clears one, several or all failures.
type FailuresClearCmd struct {
	IDs []string `arg:"" optional:"" name:"id" help:"Publication IDs to clear; all when omitted"`
}

func (f *FailuresClearCmd) Run() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if len(f.IDs) == 0 {
		n := a.tracker.FailureCount()
		a.tracker.ClearAll()
		_, err = fmt.Fprintf(stdout, "Cleared %d failed requests\n", n)
		return err
	}

	cleared := 0
	for _, id := range f.IDs {
		if a.tracker.ClearFailure(id) {
			cleared++
		} else {
			slog.Warn("No failed request for publication", "publication", id)
		}
	}
	_, err = fmt.Fprintf(stdout, "Cleared %d failed requests\n", cleared)
	return err
}

// FailuresRetryCmd re-queues failures and drains the queue.
type FailuresRetryCmd struct {
	IDs         []string `arg:"" optional:"" name:"id" help:"Publication IDs to retry; every retryable failure when omitted"`
	Interactive bool     `short:"i" help:"Pick the failures to retry or dismiss interactively"`
}

func (f *FailuresRetryCmd) Run() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	queued, err := f.queueFailures(a)
	if err != nil {
		if bibsyncerrors.IsStopProcessingError(err) {
			slog.Info("Retry cancelled", "reason", err)
			return nil
		}
		return err
	}
	if queued == 0 {
		_, err = fmt.Fprintln(stdout, "Nothing to retry")
		return err
	}

	ctx, stop := notifyContext(context.Background())
	defer stop()

	sum := a.service.DrainQueue(ctx)
	_, err = fmt.Fprintf(stdout, "Retried %d publications: %d enriched, %d failed\n", sum.Processed, sum.Succeeded, sum.Failed)
	return err
}

func (f *FailuresRetryCmd) queueFailures(a *app) (int, error) {
	switch {
	case f.Interactive:
		return f.queueSelected(a)
	case len(f.IDs) > 0:
		return queueByID(a, f.IDs), nil
	default:
		return a.service.RequeueFailed(retryPolicy()), nil
	}
}

func (f *FailuresRetryCmd) queueSelected(a *app) (int, error) {
	failures := a.tracker.All()
	if len(f.IDs) > 0 {
		failures = filterFailures(failures, f.IDs)
	}

	res, err := selectFailures(failures)
	if err != nil {
		return 0, err
	}

	switch res.Action {
	case tui.ActionRetry:
		return queueByID(a, failureIDs(res.Selection)), nil
	case tui.ActionDismiss:
		for _, fr := range res.Selection {
			a.tracker.ClearFailure(fr.PublicationID)
		}
		_, _ = fmt.Fprintf(stdout, "Dismissed %d failed requests\n", len(res.Selection))
		return 0, nil
	case tui.ActionCancelled:
		return 0, bibsyncerrors.NewStopProcessingError("user quit the picker")
	}
	return 0, nil
}

// queueByID queues tracked failures by publication ID at user priority.
func queueByID(a *app, ids []string) int {
	n := 0
	for _, id := range ids {
		fr, ok := a.tracker.Get(id)
		if !ok {
			slog.Warn("No failed request for publication", "publication", id)
			continue
		}
		if a.service.IsQueued(id) {
			continue
		}
		a.service.QueueForEnrichment(fr.PublicationID, fr.Identifiers, queue.UserTriggered)
		n++
	}
	return n
}

func filterFailures(failures []tracker.FailedRequest, ids []string) []tracker.FailedRequest {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []tracker.FailedRequest
	for _, fr := range failures {
		if want[fr.PublicationID] {
			out = append(out, fr)
		}
	}
	return out
}

func failureIDs(failures []tracker.FailedRequest) []string {
	ids := make([]string, len(failures))
	for i, fr := range failures {
		ids[i] = fr.PublicationID
	}
	sort.Strings(ids)
	return ids
}
