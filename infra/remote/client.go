// Package remote implements the apply boundary against a central store
// server. Transport failures come back as TransientError so the
// coordinator retries them under the same idempotency key.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/fleetsync/core/model"
)

// Client talks to the store server's /api/sync endpoints.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the given base URL. Per-call deadlines
// come from the caller's context; the embedded timeout is a safety net.
func NewClient(baseURL string) *Client {
	return &Client{
		base: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// Apply submits one operation and decodes the store's Result.
func (c *Client) Apply(ctx context.Context, op model.Operation) (model.Result, error) {
	body, err := json.Marshal(op)
	if err != nil {
		return model.Result{}, model.Permanentf("marshal operation: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/sync/apply", bytes.NewReader(body))
	if err != nil {
		return model.Result{}, model.Permanentf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.Result{}, model.Transient(err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		var res model.Result
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			// The operation may have committed; retrying is safe.
			return model.Result{}, model.Transient(fmt.Errorf("decode result: %w", err))
		}
		return res, nil
	case resp.StatusCode == http.StatusNotFound:
		return model.Result{}, model.Permanentf("%s", readError(resp.Body))
	case resp.StatusCode == http.StatusBadRequest:
		return model.Result{}, model.Permanentf("%s", readError(resp.Body))
	default:
		return model.Result{}, model.Transient(fmt.Errorf("store returned %s: %s", resp.Status, readError(resp.Body)))
	}
}

// Probe checks the server's health endpoint, making the client usable as
// a connectivity prober.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("health returned %s", resp.Status)
	}
	return nil
}

// GetVehicle fetches the current vehicle snapshot, used by clients to
// refresh a stale view after a conflict.
func (c *Client) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	var v model.Vehicle
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/vehicles?id="+id, nil)
	if err != nil {
		return v, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return v, model.Transient(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return v, model.Permanentf("vehicle %s does not exist", id)
	}
	if resp.StatusCode != http.StatusOK {
		return v, model.Transient(fmt.Errorf("store returned %s", resp.Status))
	}
	err = json.NewDecoder(resp.Body).Decode(&v)
	return v, err
}

func readError(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 1024))
	return strings.TrimSpace(string(b))
}
