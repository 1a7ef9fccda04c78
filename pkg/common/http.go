package common

import (
	_ "embed"
	"net/http"
	"strings"
	"time"
)

//go:embed VERSION
var version string

type userAgentTransport struct {
	transport http.RoundTripper
	userAgent string
}

// RoundTrip implements http.RoundTripper.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original request's headers
	// which might be shared or reused
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.transport.RoundTrip(req)
}

// UserAgent is sent with every upstream request.
func UserAgent() string {
	return "PVCast/" + strings.TrimSpace(version)
}

// HTTPClient returns a default http client with a default user-agent set
func HTTPClient(timeout time.Duration) *http.Client {
	return HTTPClientWithTransport(timeout, http.DefaultTransport)
}

// HTTPClientWithTransport is HTTPClient on top of base, which is typically an
// instrumented transport.
func HTTPClientWithTransport(timeout time.Duration, base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Transport: &userAgentTransport{
			transport: base,
			userAgent: UserAgent(),
		},
		Timeout: timeout,
	}
}
