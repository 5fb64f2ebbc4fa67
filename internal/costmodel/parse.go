package costmodel

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Canonical region buckets and shipping methods used by pricing matrices.
const (
	RegionUSA    = "USA"
	RegionCanada = "CANADA"
	RegionEU     = "EU"

	MethodStandard = "Standard"
	MethodExpress  = "Express"
)

// ParseShippingConfig decodes a per-product shipping configuration. Two shapes
// are accepted: the legacy bare matrix (region -> method -> quantity -> cost)
// and the wrapped {currency, rates} form. Quantity keys and costs arrive as
// JSON numbers or strings depending on how the merchant saved them, so both
// are tolerated.
func ParseShippingConfig(raw []byte) (*ShippingMatrix, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("shipping config: %w", err)
	}
	if len(probe) == 0 {
		return nil, nil
	}

	currency := "USD"
	var rawRates json.RawMessage
	if wrapped, ok := probe["rates"]; ok {
		rawRates = wrapped
		if c, ok := probe["currency"]; ok {
			var cur string
			if err := json.Unmarshal(c, &cur); err != nil {
				return nil, fmt.Errorf("shipping config currency: %w", err)
			}
			if cur != "" {
				currency = strings.ToUpper(cur)
			}
		}
	} else {
		rawRates = raw
	}

	var rates map[string]map[string]map[string]any
	dec := json.NewDecoder(strings.NewReader(string(rawRates)))
	dec.UseNumber()
	if err := dec.Decode(&rates); err != nil {
		return nil, fmt.Errorf("shipping config rates: %w", err)
	}

	matrix := &ShippingMatrix{Currency: currency, Rates: make(map[string]map[string]map[int]float64, len(rates))}
	for region, methods := range rates {
		regionKey := normalizeRegionKey(region)
		for method, tiers := range methods {
			methodKey := normalizeMethodKey(method)
			for qty, cost := range tiers {
				quantity, err := strconv.Atoi(strings.TrimSpace(qty))
				if err != nil || quantity <= 0 {
					return nil, fmt.Errorf("shipping config tier %q: not a quantity", qty)
				}
				value, err := costValue(cost)
				if err != nil {
					return nil, fmt.Errorf("shipping config cost for tier %q: %w", qty, err)
				}
				if matrix.Rates[regionKey] == nil {
					matrix.Rates[regionKey] = make(map[string]map[int]float64)
				}
				if matrix.Rates[regionKey][methodKey] == nil {
					matrix.Rates[regionKey][methodKey] = make(map[int]float64)
				}
				matrix.Rates[regionKey][methodKey][quantity] = value
			}
		}
	}
	return matrix, nil
}

// ParseUnitCost converts a stored COGS value into a float. Merchants save
// these as free text, so anything non-numeric counts as unconfigured.
func ParseUnitCost(raw string) float64 {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

func costValue(v any) (float64, error) {
	switch val := v.(type) {
	case json.Number:
		return val.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(val), 64)
	default:
		return 0, fmt.Errorf("unsupported cost type %T", v)
	}
}

func normalizeRegionKey(region string) string {
	switch strings.ToUpper(strings.TrimSpace(region)) {
	case "USA", "US", "UNITED STATES":
		return RegionUSA
	case "CANADA", "CA":
		return RegionCanada
	default:
		return RegionEU
	}
}

func normalizeMethodKey(method string) string {
	lower := strings.ToLower(strings.TrimSpace(method))
	if strings.Contains(lower, "express") || strings.Contains(lower, "expedited") || strings.Contains(lower, "priority") {
		return MethodExpress
	}
	return MethodStandard
}
