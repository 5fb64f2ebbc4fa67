package profit

import (
	"context"
	"math"
	"strings"

	"github.com/truemargin/truemargin/internal/shared"
	"github.com/truemargin/truemargin/internal/storefront"
	"github.com/truemargin/truemargin/internal/stores"
)

// LedgerSource supplies balance-transaction pages from the payments ledger.
type LedgerSource interface {
	ListBalanceTransactions(ctx context.Context, store *stores.Store, sinceID int64, limit int) (storefront.LedgerPage, error)
}

// Reconciler walks the payments ledger and attributes actual processing fees,
// disputes, and refunds to the requested range. The ledger cannot filter by
// date server-side, so every fetched transaction is filtered locally against
// the store-local window.
type Reconciler struct {
	ledger   LedgerSource
	pageSize int
}

// NewReconciler constructs a reconciler with the given page size.
func NewReconciler(ledger LedgerSource, pageSize int) *Reconciler {
	return &Reconciler{ledger: ledger, pageSize: pageSize}
}

// Reconcile paginates the ledger (bounded by storefront.MaxLedgerPages) and
// classifies each transaction. Failures propagate; callers decide how to
// degrade.
func (r *Reconciler) Reconcile(ctx context.Context, store *stores.Store, rng shared.DateRange, eurRate float64) (Reconciliation, error) {
	recon := Reconciliation{Fees: make(map[int64]float64)}
	window := rng.UTCWindow(store.TimezoneOffset)

	var sinceID int64
	for page := 0; page < storefront.MaxLedgerPages; page++ {
		ledgerPage, err := r.ledger.ListBalanceTransactions(ctx, store, sinceID, r.pageSize)
		if err != nil {
			return Reconciliation{}, err
		}
		if len(ledgerPage.Transactions) == 0 {
			break
		}
		for _, tx := range ledgerPage.Transactions {
			if !window.Contains(tx.ProcessedAt) {
				continue
			}
			classify(&recon, tx, eurRate)
		}
		if ledgerPage.NextSinceID == 0 {
			break
		}
		sinceID = ledgerPage.NextSinceID
	}
	return recon, nil
}

func classify(recon *Reconciliation, tx storefront.BalanceTransaction, eurRate float64) {
	convert := 1.0
	if strings.EqualFold(tx.Currency, "EUR") {
		convert = eurRate
	}
	amount := math.Abs(tx.Amount) * convert
	fee := math.Abs(tx.Fee) * convert

	kind := normalizeType(tx.Type)
	switch {
	case isDispute(kind) && isRecovered(kind):
		recon.Disputes.RecoveredValue += amount
		recon.Disputes.RecoveredFee += fee
		recon.Disputes.RecoveredCount++
	case isDispute(kind):
		recon.Disputes.LostValue += amount
		recon.Disputes.LostFee += fee
		recon.Disputes.LostCount++
	case strings.Contains(kind, "refund"):
		recon.Refunds += amount
	case tx.OrderID > 0:
		// Several transactions may settle one order; fees accumulate.
		recon.Fees[tx.OrderID] += fee
	}
}

// normalizeType lowercases the ledger type and strips separator noise so
// "Chargeback_Won", "chargeback-won", and "chargeback won" compare equal.
func normalizeType(raw string) string {
	replacer := strings.NewReplacer("-", "", "_", "", " ", "")
	return replacer.Replace(strings.ToLower(raw))
}

func isDispute(kind string) bool {
	return strings.Contains(kind, "dispute") || strings.Contains(kind, "chargeback")
}

func isRecovered(kind string) bool {
	return strings.Contains(kind, "won") || strings.Contains(kind, "reversal") || strings.Contains(kind, "reverse")
}
