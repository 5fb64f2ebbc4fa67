package profit

import (
	"sort"
	"strings"

	"github.com/truemargin/truemargin/internal/costmodel"
)

// ResolveRegion maps a destination country to the canonical pricing bucket.
// The shipping matrix only distinguishes USA, Canada, and everything else.
func ResolveRegion(country string) string {
	switch strings.ToUpper(strings.TrimSpace(country)) {
	case "US", "USA", "UNITED STATES", "UNITED STATES OF AMERICA":
		return costmodel.RegionUSA
	case "CA", "CAN", "CANADA":
		return costmodel.RegionCanada
	default:
		return costmodel.RegionEU
	}
}

// ResolveMethod maps a checkout shipping label to a pricing method.
func ResolveMethod(label string) string {
	lower := strings.ToLower(label)
	if strings.Contains(lower, "express") || strings.Contains(lower, "expedited") || strings.Contains(lower, "priority") {
		return costmodel.MethodExpress
	}
	return costmodel.MethodStandard
}

// COGSCost resolves cost of goods for a line-item key and quantity. An
// unconfigured key costs nothing.
func COGSCost(model *costmodel.Model, key string, quantity int) float64 {
	if quantity <= 0 {
		return 0
	}
	return model.UnitCost(key) * float64(quantity)
}

// ShippingCost resolves the USD shipping cost for one line item. Inside the
// configured tier range only an exact quantity match prices the shipment;
// beyond the largest tier the quantity is decomposed greedily into configured
// tiers. A EUR-denominated matrix converts through eurRate.
func ShippingCost(matrix *costmodel.ShippingMatrix, region, method string, quantity int, eurRate float64) float64 {
	if quantity <= 0 {
		return 0
	}
	tiers := matrix.Tiers(region, method)
	if len(tiers) == 0 {
		return 0
	}

	quantities := make([]int, 0, len(tiers))
	for q := range tiers {
		quantities = append(quantities, q)
	}
	sort.Ints(quantities)
	maxTier := quantities[len(quantities)-1]

	var cost float64
	if quantity <= maxTier {
		// No interpolation: a quantity between tiers is unpriced.
		cost = tiers[quantity]
	} else {
		remaining := quantity
		for remaining > 0 {
			tier := largestTierAtMost(quantities, remaining)
			if tier == 0 {
				break
			}
			cost += tiers[tier]
			remaining -= tier
		}
	}

	if strings.EqualFold(matrix.Currency, "EUR") {
		cost *= eurRate
	}
	return cost
}

func largestTierAtMost(sorted []int, limit int) int {
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i] <= limit {
			return sorted[i]
		}
	}
	return 0
}
