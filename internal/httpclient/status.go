package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	bibsyncerrors "github.com/lepinkainen/bibsync/internal/errors"
)

const maxErrorBody = 256

// CheckStatus maps a non-2xx response to the matching enrichment error.
func CheckStatus(provider string, resp Response, now time.Time) error {
	code := resp.StatusCode()
	if code >= 200 && code < 300 {
		return nil
	}

	detail := snippet(resp.Body())
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return bibsyncerrors.NewAuthenticationError(provider, detail)
	case code == http.StatusNotFound:
		return bibsyncerrors.NewNotFoundError(provider, detail)
	case code == http.StatusTooManyRequests:
		return bibsyncerrors.NewRateLimitError(provider, ParseRetryAfter(resp.Header("Retry-After"), now))
	default:
		return bibsyncerrors.NewNetworkError(provider, "unexpected status "+strconv.Itoa(code), nil)
	}
}

// ParseRetryAfter reads a Retry-After header given either as seconds or as an
// HTTP date. Missing or unparseable values yield zero.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// GetJSON performs a GET and decodes a 2xx body into target. Transport
// failures become network errors and undecodable bodies become parse errors.
func GetJSON(ctx context.Context, c Client, provider, url string, query, headers map[string]string, target any) error {
	resp, err := c.Get(ctx, url, query, headers)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return bibsyncerrors.NewNetworkError(provider, "request failed", err)
	}
	if err := CheckStatus(provider, resp, time.Now()); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body(), target); err != nil {
		return bibsyncerrors.NewParseError(provider, "invalid JSON response", err)
	}
	return nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}
