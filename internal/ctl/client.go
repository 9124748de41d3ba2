// Package ctl is the HTTP client cmirrorctl uses to talk to a running
// daemon over its unix socket.
package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gfranco93/cmirror/internal/api"
	"github.com/gfranco93/cmirror/internal/cursor"
	"github.com/gfranco93/cmirror/internal/diag"
)

// Client wraps HTTP calls to the daemon's admin socket.
type Client struct {
	http *http.Client
}

// New returns a client dialing the daemon's unix domain socket.
func New(socketPath string) *Client {
	return &Client{
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

// Status fetches the daemon runtime state.
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	var out api.StatusResponse
	return &out, c.do(ctx, http.MethodGet, "/v1/status", &out)
}

// SyncState fetches the chat-list sync record.
func (c *Client) SyncState(ctx context.Context) (*api.SyncStateResponse, error) {
	var out api.SyncStateResponse
	return &out, c.do(ctx, http.MethodGet, "/v1/sync/state", &out)
}

// Diagnostics fetches the sync summary and mirror statistics.
func (c *Client) Diagnostics(ctx context.Context) (*diag.Report, error) {
	var out diag.Report
	return &out, c.do(ctx, http.MethodGet, "/v1/sync/diagnostics", &out)
}

// Gaps runs gap detection on the daemon.
func (c *Client) Gaps(ctx context.Context) (*diag.GapReport, error) {
	var out diag.GapReport
	return &out, c.do(ctx, http.MethodGet, "/v1/sync/gaps", &out)
}

// RunSync triggers a sync cycle. A 409 means another cycle holds the lock;
// that outcome is reported in the response, not as an error.
func (c *Client) RunSync(ctx context.Context) (*api.RunResponse, error) {
	var out api.RunResponse
	return &out, c.do(ctx, http.MethodPost, "/v1/sync/run", &out)
}

// ResetCursors clears all sync cursors on the daemon.
func (c *Client) ResetCursors(ctx context.Context) (*cursor.ResetResult, error) {
	var out cursor.ResetResult
	return &out, c.do(ctx, http.MethodPost, "/v1/sync/reset", &out)
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	// Host is ignored by the unix-socket transport but required by net/http.
	req, err := http.NewRequestWithContext(ctx, method, "http://cmirrord"+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dial daemon: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
