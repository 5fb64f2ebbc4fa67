package storefront

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/truemargin/truemargin/internal/stores"
)

// BalanceTransaction is a settlement record from the payments ledger.
type BalanceTransaction struct {
	ID          int64
	Type        string
	Amount      float64
	Fee         float64
	Currency    string
	OrderID     int64 // 0 when the record is not linked to an order
	ProcessedAt time.Time
}

type balanceTransactionPayload struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Fee         string `json:"fee"`
	Currency    string `json:"currency"`
	SourceOrder *struct {
		ID int64 `json:"id"`
	} `json:"source_order"`
	ProcessedAt string `json:"processed_at"`
}

type ledgerEnvelope struct {
	Transactions []balanceTransactionPayload `json:"transactions"`
}

// LedgerPage is one page of balance transactions plus the cursor for the next.
type LedgerPage struct {
	Transactions []BalanceTransaction
	// NextSinceID is the id of the final record, used as the cursor for the
	// following page. Zero means the source signalled no further pages.
	NextSinceID int64
}

// ListBalanceTransactions fetches a single ledger page. The ledger cannot
// filter by date server-side, so callers filter after the fetch. A 404 or 403
// means the payments ledger is not enabled for this merchant and surfaces as
// shared.ErrFeatureUnavailable.
func (c *Client) ListBalanceTransactions(ctx context.Context, store *stores.Store, sinceID int64, limit int) (LedgerPage, error) {
	if limit <= 0 || limit > defaultPageSize {
		limit = defaultPageSize
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if sinceID > 0 {
		query.Set("since_id", strconv.FormatInt(sinceID, 10))
	}

	var envelope ledgerEnvelope
	if _, err := c.get(ctx, store, "payments/balance/transactions.json", query, &envelope); err != nil {
		return LedgerPage{}, fmt.Errorf("list balance transactions: %w", err)
	}

	page := LedgerPage{Transactions: make([]BalanceTransaction, 0, len(envelope.Transactions))}
	for _, payload := range envelope.Transactions {
		page.Transactions = append(page.Transactions, mapBalanceTransaction(payload))
	}
	// A short page means the ledger is exhausted; a full one may have more.
	if len(page.Transactions) == limit {
		page.NextSinceID = page.Transactions[len(page.Transactions)-1].ID
	}
	return page, nil
}

func mapBalanceTransaction(p balanceTransactionPayload) BalanceTransaction {
	tx := BalanceTransaction{
		ID:       p.ID,
		Type:     p.Type,
		Amount:   parseAmount(p.Amount),
		Fee:      parseAmount(p.Fee),
		Currency: p.Currency,
	}
	if p.SourceOrder != nil {
		tx.OrderID = p.SourceOrder.ID
	}
	if processed, err := time.Parse(time.RFC3339, p.ProcessedAt); err == nil {
		tx.ProcessedAt = processed.UTC()
	}
	return tx
}
