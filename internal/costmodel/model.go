package costmodel

import "time"

// Expense recurrence types.
const (
	ExpenseOneTime = "one_time"
	ExpenseMonthly = "monthly"
	ExpenseYearly  = "yearly"
)

// ProcessingFee holds the formulaic processing-fee parameters used when no
// reconciled fee is available for an order.
type ProcessingFee struct {
	Percent float64
	Fixed   float64
}

// OperationalExpense is a recurring or one-off cost the merchant configured.
type OperationalExpense struct {
	ID        int64
	Name      string
	Type      string
	Amount    float64
	Currency  string
	StartDate time.Time
	EndDate   *time.Time
}

// ShippingMatrix prices shipments by region bucket, method, and quantity tier.
type ShippingMatrix struct {
	Currency string
	Rates    map[string]map[string]map[int]float64
}

// Tiers returns the configured quantity tiers for a region/method pair.
// A nil matrix yields nothing.
func (m *ShippingMatrix) Tiers(region, method string) map[int]float64 {
	if m == nil {
		return nil
	}
	methods, ok := m.Rates[region]
	if !ok {
		return nil
	}
	return methods[method]
}

// Model is the merchant-defined cost model, loaded read-only per computation.
type Model struct {
	COGS     map[string]float64
	Shipping map[string]*ShippingMatrix
	Fee      ProcessingFee
	Expenses []OperationalExpense
}

// UnitCost returns the configured per-unit cost for a line-item key, 0 when absent.
func (m *Model) UnitCost(key string) float64 {
	if m == nil {
		return 0
	}
	return m.COGS[key]
}

// ShippingFor returns the pricing matrix configured for a line-item key, nil when absent.
func (m *Model) ShippingFor(key string) *ShippingMatrix {
	if m == nil {
		return nil
	}
	return m.Shipping[key]
}
