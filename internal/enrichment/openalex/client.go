// Package openalex enriches publications from the OpenAlex works API.
package openalex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lepinkainen/bibsync/internal/cache"
	bibsyncerrors "github.com/lepinkainen/bibsync/internal/errors"
	"github.com/lepinkainen/bibsync/internal/httpclient"
	"github.com/lepinkainen/bibsync/internal/identifier"
	"github.com/lepinkainen/bibsync/internal/ratelimit"
)

const (
	ID                   = "openalex"
	defaultBaseURL       = "https://api.openalex.org"
	defaultRatePerSecond = 10
)

const workFields = "id,doi,title,ids,cited_by_count,referenced_works_count,abstract_inverted_index,open_access,primary_location,best_oa_location,authorships"

// Client is the OpenAlex provider.
type Client struct {
	http    httpclient.Client
	baseURL string
	email   string
	limiter *ratelimit.Limiter
	cache   *cache.CacheDB
	now     func() time.Time
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c httpclient.Client) Option {
	return func(client *Client) {
		if c != nil {
			client.http = c
		}
	}
}

// WithBaseURL sets a custom base URL for the OpenAlex API.
func WithBaseURL(base string) Option {
	return func(client *Client) {
		if base != "" {
			client.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithEmail sends the address as the mailto parameter (the "polite pool").
func WithEmail(email string) Option {
	return func(client *Client) {
		client.email = email
	}
}

// WithRateLimiter sets a custom rate limiter for the client.
func WithRateLimiter(limiter *ratelimit.Limiter) Option {
	return func(client *Client) {
		if limiter != nil {
			client.limiter = limiter
		}
	}
}

// WithCache stores work lookups in the given cache.
func WithCache(c *cache.CacheDB) Option {
	return func(client *Client) {
		client.cache = c
	}
}

func WithClock(now func() time.Time) Option {
	return func(client *Client) {
		client.now = now
	}
}

// New creates an OpenAlex client.
func New(opts ...Option) *Client {
	c := &Client{
		http:    httpclient.NewRestyClient(httpclient.DefaultTimeout),
		baseURL: defaultBaseURL,
		limiter: ratelimit.New("OpenAlex", ratelimit.PerSecond(defaultRatePerSecond)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// workRef builds the /works path segment, preferring the native ID.
func workRef(ids identifier.Map) (string, bool) {
	switch {
	case ids.Has(identifier.OpenAlex):
		return ids.Get(identifier.OpenAlex), true
	case ids.Has(identifier.DOI):
		return "doi:" + ids.Get(identifier.DOI), true
	}
	return "", false
}

func (c *Client) fetchWork(ctx context.Context, ref string) (*work, error) {
	result, fromCache, err := cache.GetOrFetchWithTTL(c.cache, cache.OpenAlexTable, ref,
		func() (*cachedWork, error) {
			w, err := c.getWork(ctx, ref)
			if bibsyncerrors.IsNotFound(err) {
				return &cachedWork{NotFound: true}, nil
			}
			if err != nil {
				return nil, err
			}
			return &cachedWork{Work: w}, nil
		},
		cache.SelectNegativeCacheTTL(c.cache, func(r *cachedWork) bool { return r.NotFound }),
	)
	if err != nil {
		return nil, err
	}
	if result == nil || result.NotFound || result.Work == nil {
		return nil, bibsyncerrors.NewNotFoundError(ID, ref)
	}
	slog.Debug("OpenAlex work loaded", "ref", ref, "cached", fromCache)
	return result.Work, nil
}

func (c *Client) getWork(ctx context.Context, ref string) (*work, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := map[string]string{"select": workFields}
	if c.email != "" {
		query["mailto"] = c.email
	}

	slog.Debug("Fetching OpenAlex work", "ref", ref)
	var w work
	endpoint := fmt.Sprintf("%s/works/%s", c.baseURL, ref)
	if err := httpclient.GetJSON(ctx, c.http, ID, endpoint, query, nil, &w); err != nil {
		return nil, err
	}
	if w.ID == "" {
		return nil, bibsyncerrors.NewParseError(ID, "response has no id", nil)
	}
	return &w, nil
}
