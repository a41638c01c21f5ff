package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/scaledash/internal/dashboard"
	"github.com/claude/scaledash/internal/quantity"
	"github.com/claude/scaledash/internal/store"
	"github.com/claude/scaledash/internal/timescale"
)

// HTTPClient implements DataSource by calling the scaledash REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// the dashboard runs elsewhere (for example on the tailnet).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, payload any) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("httpclient: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, respBody)
	}

	return respBody, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func timeParams(start, end time.Time) url.Values {
	v := url.Values{}
	v.Set("start", start.Format(time.RFC3339))
	v.Set("end", end.Format(time.RFC3339))
	return v
}

func (c *HTTPClient) Quantities(ctx context.Context) ([]quantity.Info, error) {
	var infos []quantity.Info
	if err := c.get(ctx, "/api/v1/quantities", nil, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

func (c *HTTPClient) Measurements(ctx context.Context, start, end time.Time) ([]store.Measurement, error) {
	var rows []store.Measurement
	if err := c.get(ctx, "/api/v1/measurements", timeParams(start, end), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *HTTPClient) WindowStats(ctx context.Context, q quantity.Quantity, start, end time.Time) (*store.Extent, error) {
	params := timeParams(start, end)
	params.Set("quantity", q.Key())

	var resp struct {
		Stats store.Extent `json:"stats"`
	}
	if err := c.get(ctx, "/api/v1/stats", params, &resp); err != nil {
		return nil, err
	}
	return &resp.Stats, nil
}

func (c *HTTPClient) Summary(ctx context.Context) (*dashboard.Summary, error) {
	var sum dashboard.Summary
	if err := c.get(ctx, "/api/v1/dashboard/summary", nil, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

func (c *HTTPClient) SetTimeRange(ctx context.Context, r timescale.Range) (*dashboard.Summary, error) {
	ev := dashboard.Event{Type: dashboard.EventTimeRange, Origin: dashboard.OriginServer, Range: &r}
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/events", nil, ev); err != nil {
		return nil, err
	}
	return c.Summary(ctx)
}
