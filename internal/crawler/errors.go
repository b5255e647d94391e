package crawler

import (
	"context"
	"errors"
	"fmt"
)

// FetchErrorKind classifies why a page could not be fetched.
type FetchErrorKind string

// Fetch failure kinds. None of them are fatal to a crawl.
const (
	FetchErrorNotFound       FetchErrorKind = "not_found"
	FetchErrorDisambiguation FetchErrorKind = "disambiguation"
	FetchErrorRedirectLoop   FetchErrorKind = "redirect_loop"
	FetchErrorTimeout        FetchErrorKind = "timeout"
	FetchErrorLookup         FetchErrorKind = "lookup"
)

// Sentinels matched with errors.Is against a *FetchError.
var (
	ErrPageNotFound   = errors.New("page not found")
	ErrDisambiguation = errors.New("disambiguation page")
	ErrRedirectLoop   = errors.New("redirect loop")
	ErrTimeout        = errors.New("fetch timed out")
	ErrLookup         = errors.New("lookup failed")
	ErrSeedUnresolved = errors.New("seed keyword did not resolve to a page")
)

// FetchError is the tagged failure returned by PageFetcher implementations.
type FetchError struct {
	Kind FetchErrorKind
	Page string
	Err  error
}

// NewFetchError builds a FetchError for page.
func NewFetchError(kind FetchErrorKind, page string, err error) *FetchError {
	return &FetchError{Kind: kind, Page: page, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %q: %s", e.Page, e.Kind)
	}
	return fmt.Sprintf("fetch %q: %s: %v", e.Page, e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *FetchError) Unwrap() []error {
	errs := []error{e.Kind.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (k FetchErrorKind) sentinel() error {
	switch k {
	case FetchErrorNotFound:
		return ErrPageNotFound
	case FetchErrorDisambiguation:
		return ErrDisambiguation
	case FetchErrorRedirectLoop:
		return ErrRedirectLoop
	case FetchErrorTimeout:
		return ErrTimeout
	default:
		return ErrLookup
	}
}

// String returns the kind label used in logs and metrics.
func (k FetchErrorKind) String() string {
	if k == "" {
		return "unknown"
	}
	return string(k)
}

// KindOf classifies any error returned by a fetcher. Errors that are not a
// *FetchError fall back to timeout for deadline errors and lookup otherwise.
func KindOf(err error) FetchErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FetchErrorTimeout
	}
	return FetchErrorLookup
}
