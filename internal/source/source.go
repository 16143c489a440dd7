// Package source implements external feed adapters satisfying
// pipeline.Gateway. Each adapter connects to one upstream database, maps
// its records to tagged events, and classifies its own failures; the
// pipeline treats adapters as black boxes.
package source

import (
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindAuth      ErrorKind = "auth"
	KindDecode    ErrorKind = "decode"
)

// FetchError is the failure type every adapter returns from FetchEvents.
type FetchError struct {
	Source string
	Kind   ErrorKind
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Source, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func fetchErr(source string, kind ErrorKind, err error) *FetchError {
	return &FetchError{Source: source, Kind: kind, Err: err}
}

// classifyStatus maps a non-2xx HTTP status to an error kind.
func classifyStatus(code int) ErrorKind {
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return KindAuth
	}
	return KindTransport
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
