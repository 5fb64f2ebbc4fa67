// Package adspend queries the advertising platform for spend totals.
package adspend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/truemargin/truemargin/internal/shared"
)

// Spend is the advertising spend over a date range in the ad account's currency.
type Spend struct {
	Amount   float64
	Currency string
}

// Client wraps the ad-platform insights endpoint.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient constructs a new client. An empty baseURL disables the source;
// TotalSpend then reports zero spend.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type spendPayload struct {
	Spend    float64 `json:"spend"`
	Currency string  `json:"account_currency"`
}

// TotalSpend returns spend for the account over [from, to] store-local days.
// Ad spend is optional input; callers treat failures as zero spend.
func (c *Client) TotalSpend(ctx context.Context, accountID string, rng shared.DateRange) (Spend, error) {
	if c == nil || c.baseURL == "" || accountID == "" {
		return Spend{Currency: "USD"}, nil
	}

	query := url.Values{}
	query.Set("fields", "spend,account_currency")
	query.Set("time_range[since]", rng.From.Format("2006-01-02"))
	query.Set("time_range[until]", rng.To.Format("2006-01-02"))

	endpoint := fmt.Sprintf("%s/%s/insights?%s", c.baseURL, accountID, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Spend{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Spend{}, fmt.Errorf("%w: ad spend: %v", shared.ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return Spend{}, fmt.Errorf("%w: ad spend returned %d", shared.ErrUpstream, resp.StatusCode)
	}

	var payload struct {
		Data []spendPayload `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Spend{}, fmt.Errorf("%w: decode ad spend: %v", shared.ErrUpstream, err)
	}

	spend := Spend{Currency: "USD"}
	for _, row := range payload.Data {
		spend.Amount += row.Spend
		if row.Currency != "" {
			spend.Currency = row.Currency
		}
	}
	return spend, nil
}
