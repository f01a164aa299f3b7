package n2yo

import (
	"fmt"
	"net/http"
)

// TransportError is a failed fetch: connection refused, DNS failure, timeout
// or an unreadable body. Err never carries the request URL.
type TransportError struct {
	Kind    Kind
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s request timed out: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamStatusError is a non-2xx answer from the upstream API, or from
// the proxy when fetching through one.
type UpstreamStatusError struct {
	Kind       Kind
	StatusCode int
	Message    string
}

func (e *UpstreamStatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s request returned status %d: %s", e.Kind, e.StatusCode, msg)
}
