// Package netgate decides whether network-dependent provisioning tasks
// may run. A Prober performs one reachability check; a Gate repeats the
// probe with bounded retries and an optional stability window before
// declaring the network ready.
package netgate

import (
	"context"
	"net/http"
	"time"
)

// DefaultProbeTimeout bounds a single reachability check.
const DefaultProbeTimeout = 5 * time.Second

// Prober performs a single network reachability check.
// Implementations must never return an error for ordinary network
// failures; an unreachable network is simply false.
type Prober interface {
	Probe(ctx context.Context) bool
}

// ProberFunc adapts a plain function to the Prober interface.
type ProberFunc func(ctx context.Context) bool

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context) bool {
	return f(ctx)
}

// HTTPProbe checks reachability by issuing a HEAD request against a
// well-known endpoint. Any response, regardless of status code, means
// the network path works; any transport error means it does not.
type HTTPProbe struct {
	url    string
	client *http.Client
}

// HTTPProbeOption configures an HTTPProbe.
type HTTPProbeOption func(*HTTPProbe)

// WithProbeTimeout overrides the per-request timeout.
func WithProbeTimeout(timeout time.Duration) HTTPProbeOption {
	return func(p *HTTPProbe) {
		p.client.Timeout = timeout
	}
}

// NewHTTPProbe creates a probe against the given URL.
func NewHTTPProbe(url string, opts ...HTTPProbeOption) *HTTPProbe {
	p := &HTTPProbe{
		url:    url,
		client: &http.Client{Timeout: DefaultProbeTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe issues the HEAD request. It returns false on any failure.
func (p *HTTPProbe) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return true
}
