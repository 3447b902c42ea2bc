package crawler

import (
	"context"
	"errors"
	"fmt"
)

// Per-URL failure classes. Each one is recovered where it happens: the URL is
// logged and abandoned, the crawl continues.
var (
	ErrNavigationTimeout = errors.New("navigation timeout")
	ErrNavigation        = errors.New("navigation error")
	ErrDownload          = errors.New("download error")
	ErrExtraction        = errors.New("extraction error")
	ErrMalformedURL      = errors.New("malformed url")
	ErrFileSystem        = errors.New("file system error")
)

// ErrRendererUnavailable is fatal: the run cannot start without a browser.
var ErrRendererUnavailable = errors.New("renderer unavailable")

// FetchError ties a failure class to the URL that produced it.
type FetchError struct {
	Kind error
	URL  string
	Err  error
}

// NewFetchError wraps err with the given failure class.
func NewFetchError(kind error, rawURL string, err error) *FetchError {
	return &FetchError{Kind: kind, URL: rawURL, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.URL)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.URL, e.Err)
}

// Unwrap exposes both the class and the cause to errors.Is/As.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Classify returns a short label for err, used in logs and metric labels.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNavigationTimeout):
		return "navigation_timeout"
	case errors.Is(err, ErrNavigation):
		return "navigation"
	case errors.Is(err, ErrDownload):
		return "download"
	case errors.Is(err, ErrExtraction):
		return "extraction"
	case errors.Is(err, ErrMalformedURL):
		return "malformed_url"
	case errors.Is(err, ErrFileSystem):
		return "filesystem"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "unknown"
	}
}
