package profit

import (
	"time"

	"github.com/truemargin/truemargin/internal/shared"
)

// Processing-fee provenance for an order.
const (
	FeeSourceLedger    = "ledger"
	FeeSourceEstimated = "estimated"
)

// EnrichedLineItem is a line item with resolved unit economics.
type EnrichedLineItem struct {
	Key      string  `json:"key"`
	Title    string  `json:"title"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	COGS     float64 `json:"cogs"`
	Shipping float64 `json:"shipping"`
}

// OrderBreakdown carries per-order revenue and cost totals in USD.
type OrderBreakdown struct {
	OrderID         int64              `json:"order_id"`
	Number          string             `json:"number"`
	Revenue         float64            `json:"revenue"`
	Discounts       float64            `json:"discounts"`
	Tip             float64            `json:"tip"`
	ShippingRevenue float64            `json:"shipping_revenue"`
	COGS            float64            `json:"cogs"`
	ShippingCost    float64            `json:"shipping_cost"`
	ProcessingFee   float64            `json:"processing_fee"`
	FeeSource       string             `json:"fee_source"`
	LineItems       []EnrichedLineItem `json:"line_items"`
}

// Profit returns the order-level profit used for margin averages. Disputes,
// refunds, ad spend, and operational expenses are period-level and excluded.
func (o OrderBreakdown) Profit() float64 {
	return o.Revenue - o.COGS - o.ShippingCost - o.ProcessingFee
}

// DisputeTotals aggregates chargeback outcomes in USD.
type DisputeTotals struct {
	LostValue      float64 `json:"lost_value"`
	LostFee        float64 `json:"lost_fee"`
	RecoveredValue float64 `json:"recovered_value"`
	RecoveredFee   float64 `json:"recovered_fee"`
	LostCount      int     `json:"lost_count"`
	RecoveredCount int     `json:"recovered_count"`
}

// Reconciliation is the outcome of a ledger pass: actual processing fees per
// order plus dispute and refund aggregates.
type Reconciliation struct {
	Fees     map[int64]float64
	Disputes DisputeTotals
	Refunds  float64
}

// Report is the final profit computation for one store and date range.
type Report struct {
	ComputationID string           `json:"computation_id"`
	StoreID       int64            `json:"store_id"`
	From          string           `json:"from"`
	To            string           `json:"to"`
	GeneratedAt   time.Time        `json:"generated_at"`
	OrderCount    int              `json:"order_count"`
	Orders        []OrderBreakdown `json:"orders"`

	Revenue             float64       `json:"revenue"`
	Discounts           float64       `json:"discounts"`
	Tips                float64       `json:"tips"`
	ShippingRevenue     float64       `json:"shipping_revenue"`
	COGS                float64       `json:"cogs"`
	ShippingCost        float64       `json:"shipping_cost"`
	ProcessingFees      float64       `json:"processing_fees"`
	AdSpend             float64       `json:"ad_spend"`
	Refunds             float64       `json:"refunds"`
	Disputes            DisputeTotals `json:"disputes"`
	OperationalExpenses float64       `json:"operational_expenses"`

	NetProfit      float64 `json:"net_profit"`
	AvgMargin      float64 `json:"avg_margin"`
	AvgOrderProfit float64 `json:"avg_order_profit"`
	ROAS           float64 `json:"roas"`

	// ReconcileDegraded flags reports where ledger reconciliation fell back
	// to the formulaic fee estimate.
	ReconcileDegraded bool `json:"reconcile_degraded"`
}

// SetRange stamps the report with the range it covers.
func (r *Report) SetRange(rng shared.DateRange) {
	r.From = rng.From.Format("2006-01-02")
	r.To = rng.To.Format("2006-01-02")
}
