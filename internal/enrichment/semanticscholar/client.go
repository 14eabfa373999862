// Package semanticscholar enriches publications from the Semantic Scholar
// Academic Graph API.
package semanticscholar

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/lepinkainen/bibsync/internal/cache"
	bibsyncerrors "github.com/lepinkainen/bibsync/internal/errors"
	"github.com/lepinkainen/bibsync/internal/httpclient"
	"github.com/lepinkainen/bibsync/internal/identifier"
	"github.com/lepinkainen/bibsync/internal/ratelimit"
)

const (
	ID             = "semanticscholar"
	defaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// Unauthenticated clients share a 1 request/second pool; keys get 10.
	anonymousRate = 1
	keyedRate     = 10
)

var paperFields = strings.Join([]string{
	"paperId", "externalIds", "title", "abstract", "venue", "year",
	"citationCount", "referenceCount", "isOpenAccess", "openAccessPdf",
	"authors.authorId", "authors.name", "authors.hIndex", "authors.citationCount",
	"authors.paperCount", "authors.affiliations",
	"references.paperId", "references.title", "references.year", "references.externalIds",
	"references.citationCount", "references.isOpenAccess", "references.authors",
	"citations.paperId", "citations.title", "citations.year", "citations.externalIds",
	"citations.citationCount", "citations.isOpenAccess", "citations.authors",
}, ",")

// Client is the Semantic Scholar provider.
type Client struct {
	http    httpclient.Client
	baseURL string
	apiKey  string
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

// WithBaseURL sets a custom base URL for the Graph API.
func WithBaseURL(base string) Option {
	return func(client *Client) {
		if base != "" {
			client.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithAPIKey sends the key as x-api-key and raises the default rate limit.
func WithAPIKey(key string) Option {
	return func(client *Client) {
		client.apiKey = key
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

// WithCache stores paper lookups in the given cache. Without one every lookup hits the API.
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

// New creates a Semantic Scholar client.
func New(opts ...Option) *Client {
	c := &Client{
		http:    httpclient.NewRestyClient(httpclient.DefaultTimeout),
		baseURL: defaultBaseURL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		perSecond := anonymousRate
		if c.apiKey != "" {
			perSecond = keyedRate
		}
		c.limiter = ratelimit.New("Semantic Scholar", ratelimit.PerSecond(perSecond))
	}
	return c
}

// paperRef builds the Graph API paper identifier, preferring the native ID.
func paperRef(ids identifier.Map) (string, bool) {
	switch {
	case ids.Has(identifier.SemanticScholar):
		return ids.Get(identifier.SemanticScholar), true
	case ids.Has(identifier.DOI):
		return "DOI:" + ids.Get(identifier.DOI), true
	case ids.Has(identifier.ArXiv):
		return "ARXIV:" + ids.Get(identifier.ArXiv), true
	case ids.Has(identifier.PubMed):
		return "PMID:" + ids.Get(identifier.PubMed), true
	}
	return "", false
}

// fetchPaper returns the paper for ref, from cache when possible.
func (c *Client) fetchPaper(ctx context.Context, ref string) (*paper, error) {
	result, fromCache, err := cache.GetOrFetchWithTTL(c.cache, cache.SemanticScholarTable, ref,
		func() (*cachedPaper, error) {
			p, err := c.getPaper(ctx, ref)
			if bibsyncerrors.IsNotFound(err) {
				return &cachedPaper{NotFound: true}, nil
			}
			if err != nil {
				return nil, err
			}
			return &cachedPaper{Paper: p}, nil
		},
		cache.SelectNegativeCacheTTL(c.cache, func(r *cachedPaper) bool { return r.NotFound }),
	)
	if err != nil {
		return nil, err
	}
	if result == nil || result.NotFound || result.Paper == nil {
		return nil, bibsyncerrors.NewNotFoundError(ID, ref)
	}
	slog.Debug("Semantic Scholar paper loaded", "ref", ref, "cached", fromCache)
	return result.Paper, nil
}

func (c *Client) getPaper(ctx context.Context, ref string) (*paper, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/paper/%s", c.baseURL, escapeRef(ref))
	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"x-api-key": c.apiKey}
	}

	slog.Debug("Fetching Semantic Scholar paper", "ref", ref)
	var p paper
	if err := httpclient.GetJSON(ctx, c.http, ID, endpoint, map[string]string{"fields": paperFields}, headers, &p); err != nil {
		return nil, err
	}
	if p.PaperID == "" {
		return nil, bibsyncerrors.NewParseError(ID, "response has no paperId", nil)
	}
	return &p, nil
}

// escapeRef escapes a paper reference but keeps the slashes DOIs contain,
// which the API expects literally.
func escapeRef(ref string) string {
	parts := strings.Split(ref, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
