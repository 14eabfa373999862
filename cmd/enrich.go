package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/bibsync/internal/enrichment"
	"github.com/lepinkainen/bibsync/internal/identifier"
	"github.com/lepinkainen/bibsync/internal/queue"
)

// EnrichCmd enriches identifiers given on the command line, or a library
// publication when --publication is set.
type EnrichCmd struct {
	Identifiers []string `arg:"" optional:"" help:"Identifiers such as 10.1000/xyz, arXiv:2106.15928 or PMID:19872477"`
	Publication string   `short:"p" help:"Library publication ID to enrich and save"`
	Retry       bool     `help:"Retry transient failures with backoff"`
	Resolve     bool     `help:"Only resolve additional identifiers without fetching metadata"`
	Format      string   `short:"F" help:"Output format" enum:"yaml,json" default:"yaml"`
	Output      string   `short:"o" help:"Write the result to this file instead of stdout"`
	Overwrite   bool     `help:"Overwrite an existing output file"`
}

func (e *EnrichCmd) Run() error {
	ids := identifier.Map{}
	for _, raw := range e.Identifiers {
		kind, value, ok := identifier.Parse(raw)
		if !ok {
			return fmt.Errorf("unrecognised identifier %q", raw)
		}
		ids = ids.Merge(identifier.Map{kind: value})
	}
	if e.Publication == "" && ids.IsEmpty() {
		return fmt.Errorf("at least one identifier or --publication is required")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := context.Background()

	if e.Resolve {
		if e.Publication != "" {
			pub, err := a.library.Publication(ctx, e.Publication)
			if err != nil {
				return err
			}
			ids = pub.Identifiers.Merge(ids)
		}
		return writeOrPrint(a.resolveIdentifiers(ctx, ids), e.Format, e.Output, e.Overwrite)
	}

	var result *enrichment.Result
	if e.Publication != "" {
		result, err = e.enrichPublication(ctx, a, ids)
	} else if e.Retry {
		result, err = a.service.EnrichWithRetry(ctx, ids, nil, retryPolicy())
	} else {
		result, err = a.service.EnrichNow(ctx, ids, nil)
	}
	if err != nil {
		return err
	}
	return writeOrPrint(result, e.Format, e.Output, e.Overwrite)
}

// enrichPublication runs the publication through the queue so the tracker
// and the library are updated the same way background sync does it.
func (e *EnrichCmd) enrichPublication(ctx context.Context, a *app, extra identifier.Map) (*enrichment.Result, error) {
	pub, err := a.library.Publication(ctx, e.Publication)
	if err != nil {
		return nil, err
	}
	ids := pub.Identifiers.Merge(extra)
	if !extra.IsEmpty() {
		if _, err := a.library.AddPublication(ctx, pub.ID, extra); err != nil {
			return nil, err
		}
	}

	if e.Retry {
		result, err := a.service.EnrichWithRetry(ctx, ids, pub.Enrichment, retryPolicy())
		if err != nil {
			a.tracker.RecordFailure(pub.ID, ids, err)
			return nil, err
		}
		a.tracker.ClearFailure(pub.ID)
		if err := a.library.SaveEnrichment(ctx, pub.ID, result); err != nil {
			return nil, err
		}
		return result, nil
	}

	a.service.QueueForEnrichment(pub.ID, ids, queue.UserTriggered)
	out, ok := a.service.ProcessNextQueued(ctx)
	if !ok {
		return nil, fmt.Errorf("publication %s was not processed", pub.ID)
	}
	if out.Err != nil {
		return nil, out.Err
	}
	return out.Result, nil
}

// resolveIdentifiers asks every provider that understands ids for more.
func (a *app) resolveIdentifiers(ctx context.Context, ids identifier.Map) identifier.Map {
	if ids.IsEmpty() {
		return ids
	}
	for _, p := range a.service.Providers() {
		if !enrichment.CanEnrich(p, ids) {
			continue
		}
		ids = p.ResolveIdentifier(ctx, ids)
	}
	slog.Debug("Resolved identifiers", "identifiers", ids.String())
	return ids
}
