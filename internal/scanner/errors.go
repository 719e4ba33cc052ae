package scanner

import (
	"errors"
	"strings"
)

// ErrorKind classifies a scan failure for the session-recovery policy.
type ErrorKind string

const (
	// KindNotFound: the platform clearly says the product is gone. Never a
	// retryable failure.
	KindNotFound ErrorKind = "product_not_found"
	// KindCloudflare / KindNetwork: transient, counted toward the
	// consecutive-failure threshold.
	KindCloudflare ErrorKind = "cloudflare_blocked"
	KindNetwork    ErrorKind = "network_error"
	// KindExtraction: deterministic scraper mismatch; no in-job retry.
	KindExtraction ErrorKind = "extraction_failed"
	// KindBrowser: lower-level crash; the batch rebuilds its context.
	KindBrowser ErrorKind = "browser_error"
	KindUnknown ErrorKind = "unknown"
)

// ScanError is a classified scan failure.
type ScanError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ScanError) Unwrap() error { return e.Err }

// ErrProductNotFound is the sentinel for a withdrawn/deleted product.
var ErrProductNotFound = &ScanError{Kind: KindNotFound, Msg: "product not found"}

func NewCloudflareError(err error) *ScanError {
	return &ScanError{Kind: KindCloudflare, Msg: "blocked by cloudflare", Err: err}
}

func NewNetworkError(err error) *ScanError {
	return &ScanError{Kind: KindNetwork, Msg: "network error", Err: err}
}

func NewExtractionError(msg string, err error) *ScanError {
	return &ScanError{Kind: KindExtraction, Msg: msg, Err: err}
}

func NewBrowserError(err error) *ScanError {
	return &ScanError{Kind: KindBrowser, Msg: "browser error", Err: err}
}

// Classify returns the error kind, falling back to substring matching for
// errors that did not originate in the scanner layer (chromedp, net/http).
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var se *ScanError
	if errors.As(err, &se) {
		return se.Kind
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found") || strings.Contains(msg, "404"):
		return KindNotFound
	case strings.Contains(msg, "cloudflare") || strings.Contains(msg, "challenge"):
		return KindCloudflare
	case strings.Contains(msg, "net::") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded"):
		return KindNetwork
	case strings.Contains(msg, "browser") || strings.Contains(msg, "target closed") ||
		strings.Contains(msg, "websocket"):
		return KindBrowser
	default:
		return KindUnknown
	}
}

// IsNotFound reports whether the error means the product is gone.
func IsNotFound(err error) bool {
	return Classify(err) == KindNotFound
}
