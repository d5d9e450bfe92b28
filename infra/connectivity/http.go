// Package connectivity provides reachability probes for the monitor.
package connectivity

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPProbe checks an HTTP endpoint, typically the store server's
// /healthz.
type HTTPProbe struct {
	URL    string
	client *http.Client
}

// NewHTTPProbe creates a probe for the given URL.
func NewHTTPProbe(url string) *HTTPProbe {
	return &HTTPProbe{URL: url, client: &http.Client{Timeout: 10 * time.Second}}
}

// Probe performs a GET and treats any response below 400 as reachable.
func (p *HTTPProbe) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("probe returned %s", resp.Status)
	}
	return nil
}
