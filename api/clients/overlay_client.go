package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ruteri/dexcom-browser-source/api"
)

// ErrNoReading is returned when the server has no current reading.
var ErrNoReading = errors.New("no current reading")

// maxResponseBytes bounds bodies read from the server; chart PNGs are the
// largest responses.
const maxResponseBytes = 16 << 20

// StatusError is a non-200 answer from the overlay server.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("overlay server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("overlay server returned error %d: %s", e.StatusCode, e.Body)
}

// Trend is the answer of /api/current/trend.
type Trend struct {
	Arrow    string
	Category string
}

// OverlayClient reads from a running overlay server the same way a browser
// source does.
type OverlayClient struct {
	// ServerAddr is the base URL of the overlay server, e.g. http://127.0.0.1:8080
	ServerAddr string

	// HTTPClient defaults to http.DefaultClient
	HTTPClient *http.Client
}

// Current returns the current value in the server's configured unit.
func (c *OverlayClient) Current(ctx context.Context) (string, error) {
	body, _, err := c.get(ctx, "/api/current")
	return strings.TrimSpace(string(body)), err
}

// CurrentIn returns the current value in the unit named by token (mgdl, mmol).
func (c *OverlayClient) CurrentIn(ctx context.Context, token string) (string, error) {
	body, _, err := c.get(ctx, "/api/current/"+token)
	return strings.TrimSpace(string(body)), err
}

// Trend returns the current trend arrow and category.
func (c *OverlayClient) Trend(ctx context.Context) (*Trend, error) {
	body, header, err := c.get(ctx, "/api/current/trend")
	if err != nil {
		return nil, err
	}
	return &Trend{Arrow: string(body), Category: header.Get(api.TrendHeader)}, nil
}

// Graph returns the PNG chart of the last hours; hours <= 0 uses the server's
// default window.
func (c *OverlayClient) Graph(ctx context.Context, hours int) ([]byte, error) {
	path := "/api/last/graph"
	if hours > 0 {
		path = fmt.Sprintf("/api/last/%d/graph", hours)
	}
	body, header, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	if ct := header.Get("Content-Type"); ct != api.ContentTypePNG {
		return nil, fmt.Errorf("unexpected content type %q", ct)
	}
	return body, nil
}

func (c *OverlayClient) get(ctx context.Context, path string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(c.ServerAddr, "/")+path, nil)
	if err != nil {
		return nil, nil, err
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("could not request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("could not read response of %s: %w", path, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, resp.Header, nil
	case resp.StatusCode == http.StatusNotFound && string(body) == api.NoReading:
		return nil, nil, ErrNoReading
	default:
		return nil, nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
}
