package errors

import (
	stdErrors "errors"
	"fmt"
	"time"
)

// Kind classifies an enrichment failure.
type Kind string

const (
	KindNoIdentifier           Kind = "noIdentifier"
	KindNotFound               Kind = "notFound"
	KindRateLimited            Kind = "rateLimited"
	KindNetwork                Kind = "networkError"
	KindParse                  Kind = "parseError"
	KindAuthenticationRequired Kind = "authenticationRequired"
	KindNoSourceAvailable      Kind = "noSourceAvailable"
)

// Sentinels for errors.Is. Any EnrichmentError matches the sentinel of the same kind.
var (
	ErrNoIdentifier           = &EnrichmentError{Kind: KindNoIdentifier}
	ErrNotFound               = &EnrichmentError{Kind: KindNotFound}
	ErrRateLimited            = &EnrichmentError{Kind: KindRateLimited}
	ErrNetwork                = &EnrichmentError{Kind: KindNetwork}
	ErrParse                  = &EnrichmentError{Kind: KindParse}
	ErrAuthenticationRequired = &EnrichmentError{Kind: KindAuthenticationRequired}
	ErrNoSourceAvailable      = &EnrichmentError{Kind: KindNoSourceAvailable}
)

// EnrichmentError is returned by providers and the enrichment service.
type EnrichmentError struct {
	Kind     Kind
	Provider string
	Detail   string
	// RetryAfter is the provider-reported backoff for rate limited responses, 0 if unknown.
	RetryAfter time.Duration
	Err        error
}

func (e *EnrichmentError) Error() string {
	msg := string(e.Kind)
	switch e.Kind {
	case KindNoIdentifier:
		msg = "no usable identifier"
	case KindNotFound:
		msg = "publication not found"
	case KindRateLimited:
		msg = "rate limited"
	case KindNetwork:
		msg = "network error"
	case KindParse:
		msg = "parse error"
	case KindAuthenticationRequired:
		msg = "authentication required"
	case KindNoSourceAvailable:
		msg = "no enrichment source available"
	}
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EnrichmentError) Unwrap() error {
	return e.Err
}

// Is matches on Kind so wrapped provider errors compare equal to the sentinels.
func (e *EnrichmentError) Is(target error) bool {
	t, ok := target.(*EnrichmentError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewRateLimitError reports provider-side throttling.
func NewRateLimitError(provider string, retryAfter time.Duration) *EnrichmentError {
	return &EnrichmentError{Kind: KindRateLimited, Provider: provider, RetryAfter: retryAfter}
}

func NewNotFoundError(provider, detail string) *EnrichmentError {
	return &EnrichmentError{Kind: KindNotFound, Provider: provider, Detail: detail}
}

func NewNetworkError(provider, detail string, err error) *EnrichmentError {
	return &EnrichmentError{Kind: KindNetwork, Provider: provider, Detail: detail, Err: err}
}

func NewParseError(provider, detail string, err error) *EnrichmentError {
	return &EnrichmentError{Kind: KindParse, Provider: provider, Detail: detail, Err: err}
}

func NewAuthenticationError(provider, detail string) *EnrichmentError {
	return &EnrichmentError{Kind: KindAuthenticationRequired, Provider: provider, Detail: detail}
}

func NewNoIdentifierError(provider string) *EnrichmentError {
	return &EnrichmentError{Kind: KindNoIdentifier, Provider: provider}
}

// KindOf returns the kind of the first EnrichmentError in err's chain, or "".
func KindOf(err error) Kind {
	var e *EnrichmentError
	if stdErrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRateLimitError reports whether err is a rate limited EnrichmentError (even when wrapped).
func IsRateLimitError(err error) bool {
	return stdErrors.Is(err, ErrRateLimited)
}

// IsNotFound reports whether err is a not found EnrichmentError (even when wrapped).
func IsNotFound(err error) bool {
	return stdErrors.Is(err, ErrNotFound)
}

// RetryAfter extracts the provider-reported backoff from err, 0 if none.
func RetryAfter(err error) time.Duration {
	var e *EnrichmentError
	if stdErrors.As(err, &e) && e.Kind == KindRateLimited {
		return e.RetryAfter
	}
	return 0
}
