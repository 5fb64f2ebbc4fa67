// Package storefront talks to the commerce platform that owns orders, the
// payments ledger, and disputes. Payloads are decoded into typed records at
// this boundary; nothing downstream touches raw JSON.
package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/truemargin/truemargin/internal/shared"
	"github.com/truemargin/truemargin/internal/stores"
)

const (
	// MaxOrderPages bounds order pagination so a cursor that never
	// terminates cannot run away against the rate-limited API.
	MaxOrderPages = 60
	// MaxLedgerPages bounds balance-transaction pagination.
	MaxLedgerPages = 10

	defaultPageSize = 250
)

// Client wraps interactions with the storefront Admin API.
type Client struct {
	apiVersion string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(apiVersion string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) get(ctx context.Context, store *stores.Store, path string, query url.Values, dest any) (http.Header, error) {
	endpoint := fmt.Sprintf("https://%s/admin/api/%s/%s", store.Domain, c.apiVersion, path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Access-Token", store.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrUpstream, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s returned %d", shared.ErrFeatureUnavailable, path, resp.StatusCode)
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s returned %d: %s", shared.ErrUpstream, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", shared.ErrUpstream, path, err)
	}
	return resp.Header, nil
}

// nextPageInfo extracts the opaque cursor from a Link response header of the
// form <https://host/path?page_info=abc&limit=250>; rel="next".
func nextPageInfo(header http.Header) string {
	link := header.Get("Link")
	if link == "" {
		return ""
	}
	for _, part := range strings.Split(link, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start < 0 || end < 0 || end <= start {
			continue
		}
		u, err := url.Parse(part[start+1 : end])
		if err != nil {
			continue
		}
		return u.Query().Get("page_info")
	}
	return ""
}

func parseAmount(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return value
}
