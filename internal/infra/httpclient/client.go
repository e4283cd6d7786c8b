package httpclient

import (
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// New returns a client with a hard request timeout. The map-data query is
// the only call in the system expected to block for a non-trivial duration,
// so a zero timeout is never allowed through.
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
