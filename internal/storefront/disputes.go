package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/truemargin/truemargin/internal/shared"
	"github.com/truemargin/truemargin/internal/stores"
)

// Dispute is a chargeback record the merchant lost.
type Dispute struct {
	ID          int64
	OrderID     int64
	Amount      float64
	Currency    string
	InitiatedAt time.Time
}

type disputePayload struct {
	ID          int64  `json:"id"`
	OrderID     int64  `json:"order_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	InitiatedAt string `json:"initiated_at"`
}

type disputesEnvelope struct {
	Disputes []disputePayload `json:"disputes"`
}

// ListLostDisputes fetches disputes with status "lost" initiated inside the
// window. Merchants without the dispute feed get an empty result, not an error.
func (c *Client) ListLostDisputes(ctx context.Context, store *stores.Store, window shared.Window) ([]Dispute, error) {
	query := url.Values{}
	query.Set("status", "lost")
	query.Set("limit", strconv.Itoa(defaultPageSize))
	query.Set("initiated_at_min", window.Start.UTC().Format(time.RFC3339))
	query.Set("initiated_at_max", window.End.UTC().Format(time.RFC3339))

	disputes := make([]Dispute, 0)
	for page := 0; page < MaxLedgerPages; page++ {
		var envelope disputesEnvelope
		header, err := c.get(ctx, store, "payments/disputes.json", query, &envelope)
		if err != nil {
			if errors.Is(err, shared.ErrFeatureUnavailable) {
				return nil, nil
			}
			return nil, fmt.Errorf("list disputes page %d: %w", page+1, err)
		}
		for _, payload := range envelope.Disputes {
			d := Dispute{
				ID:       payload.ID,
				OrderID:  payload.OrderID,
				Amount:   parseAmount(payload.Amount),
				Currency: payload.Currency,
			}
			if initiated, err := time.Parse(time.RFC3339, payload.InitiatedAt); err == nil {
				d.InitiatedAt = initiated.UTC()
			}
			disputes = append(disputes, d)
		}
		cursor := nextPageInfo(header)
		if len(envelope.Disputes) == 0 || cursor == "" {
			break
		}
		query = url.Values{}
		query.Set("limit", strconv.Itoa(defaultPageSize))
		query.Set("page_info", cursor)
	}
	return disputes, nil
}
