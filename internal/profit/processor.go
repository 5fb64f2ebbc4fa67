package profit

import (
	"strings"

	"github.com/truemargin/truemargin/internal/costmodel"
	"github.com/truemargin/truemargin/internal/storefront"
)

// ProcessedOrders aggregates the per-order breakdowns for a range.
type ProcessedOrders struct {
	Orders          []OrderBreakdown
	Revenue         float64
	Discounts       float64
	Tips            float64
	ShippingRevenue float64
	COGS            float64
	ShippingCost    float64
	ProcessingFees  float64
}

// ProcessOrders enriches raw orders with resolved COGS, shipping cost, and a
// processing fee. Reconciled ledger fees win over the formulaic estimate when
// present for an order. All outputs are USD; EUR orders convert via eurRate.
func ProcessOrders(orders []storefront.Order, model *costmodel.Model, reconciledFees map[int64]float64, eurRate float64) ProcessedOrders {
	result := ProcessedOrders{Orders: make([]OrderBreakdown, 0, len(orders))}

	for _, order := range orders {
		convert := 1.0
		if strings.EqualFold(order.Currency, "EUR") {
			convert = eurRate
		}

		// Region and method are classified once per order: destination from
		// the shipping address, method from the first shipping line.
		region := ResolveRegion(order.DestinationCountry)
		method := costmodel.MethodStandard
		if len(order.ShippingLines) > 0 {
			method = ResolveMethod(order.ShippingLines[0].Title)
		}

		breakdown := OrderBreakdown{
			OrderID:   order.ID,
			Number:    order.Number,
			Revenue:   order.TotalPrice * convert,
			Discounts: order.TotalDiscounts * convert,
			Tip:       order.TotalTip * convert,
			LineItems: make([]EnrichedLineItem, 0, len(order.LineItems)),
		}
		for _, sl := range order.ShippingLines {
			breakdown.ShippingRevenue += sl.Price * convert
		}

		for _, item := range order.LineItems {
			key := item.Key()
			enriched := EnrichedLineItem{
				Key:      key,
				Title:    item.Title,
				Quantity: item.Quantity,
				Price:    item.Price * convert,
				COGS:     COGSCost(model, key, item.Quantity),
				Shipping: ShippingCost(model.ShippingFor(key), region, method, item.Quantity, eurRate),
			}
			breakdown.COGS += enriched.COGS
			breakdown.ShippingCost += enriched.Shipping
			breakdown.LineItems = append(breakdown.LineItems, enriched)
		}

		if fee, ok := reconciledFees[order.ID]; ok {
			breakdown.ProcessingFee = fee
			breakdown.FeeSource = FeeSourceLedger
		} else {
			breakdown.ProcessingFee = breakdown.Revenue*model.Fee.Percent + model.Fee.Fixed
			breakdown.FeeSource = FeeSourceEstimated
		}

		result.Revenue += breakdown.Revenue
		result.Discounts += breakdown.Discounts
		result.Tips += breakdown.Tip
		result.ShippingRevenue += breakdown.ShippingRevenue
		result.COGS += breakdown.COGS
		result.ShippingCost += breakdown.ShippingCost
		result.ProcessingFees += breakdown.ProcessingFee
		result.Orders = append(result.Orders, breakdown)
	}

	return result
}
