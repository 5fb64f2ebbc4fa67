package storefront

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/truemargin/truemargin/internal/shared"
	"github.com/truemargin/truemargin/internal/stores"
)

// Order is an order record with monetary fields already parsed.
type Order struct {
	ID                 int64
	Number             string
	CreatedAt          time.Time
	TotalPrice         float64
	Currency           string
	TotalDiscounts     float64
	TotalTip           float64
	ShippingLines      []ShippingLine
	LineItems          []LineItem
	DestinationCountry string
}

// ShippingLine is the shipping option the buyer selected at checkout.
type ShippingLine struct {
	Title string
	Price float64
}

// LineItem is a purchasable unit within an order.
type LineItem struct {
	VariantID int64
	ProductID int64
	Title     string
	Quantity  int
	Price     float64
}

// Key returns the cost-model lookup key: variant id when present, else
// product id, else the item title.
func (li LineItem) Key() string {
	if li.VariantID > 0 {
		return strconv.FormatInt(li.VariantID, 10)
	}
	if li.ProductID > 0 {
		return strconv.FormatInt(li.ProductID, 10)
	}
	return li.Title
}

type orderPayload struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	CreatedAt      string `json:"created_at"`
	TotalPrice     string `json:"total_price"`
	Currency       string `json:"currency"`
	TotalDiscounts string `json:"total_discounts"`
	TotalTip       string `json:"total_tip_received"`
	ShippingLines  []struct {
		Title string `json:"title"`
		Price string `json:"price"`
	} `json:"shipping_lines"`
	LineItems []struct {
		VariantID int64  `json:"variant_id"`
		ProductID int64  `json:"product_id"`
		Title     string `json:"title"`
		Quantity  int    `json:"quantity"`
		Price     string `json:"price"`
	} `json:"line_items"`
	ShippingAddress struct {
		CountryCode string `json:"country_code"`
		Country     string `json:"country"`
	} `json:"shipping_address"`
}

type ordersEnvelope struct {
	Orders []orderPayload `json:"orders"`
}

// ListOrders fetches all orders created inside the given UTC window. The API
// filters server-side on creation time; pagination is cursor-based via the
// Link header and capped at MaxOrderPages. Errors here are fatal to the
// caller; orders are the primary input of every computation.
func (c *Client) ListOrders(ctx context.Context, store *stores.Store, window shared.Window) ([]Order, error) {
	query := url.Values{}
	query.Set("status", "any")
	query.Set("limit", strconv.Itoa(defaultPageSize))
	query.Set("created_at_min", window.Start.UTC().Format(time.RFC3339))
	query.Set("created_at_max", window.End.UTC().Format(time.RFC3339))

	orders := make([]Order, 0)
	for page := 0; page < MaxOrderPages; page++ {
		var envelope ordersEnvelope
		header, err := c.get(ctx, store, "orders.json", query, &envelope)
		if err != nil {
			return nil, fmt.Errorf("list orders page %d: %w", page+1, err)
		}
		for _, payload := range envelope.Orders {
			orders = append(orders, mapOrder(payload))
		}
		cursor := nextPageInfo(header)
		if len(envelope.Orders) == 0 || cursor == "" {
			break
		}
		// Cursor requests reject filter params; only limit may accompany page_info.
		query = url.Values{}
		query.Set("limit", strconv.Itoa(defaultPageSize))
		query.Set("page_info", cursor)
	}
	return orders, nil
}

func mapOrder(p orderPayload) Order {
	order := Order{
		ID:             p.ID,
		Number:         p.Name,
		TotalPrice:     parseAmount(p.TotalPrice),
		Currency:       p.Currency,
		TotalDiscounts: parseAmount(p.TotalDiscounts),
		TotalTip:       parseAmount(p.TotalTip),
	}
	if created, err := time.Parse(time.RFC3339, p.CreatedAt); err == nil {
		order.CreatedAt = created.UTC()
	}
	for _, sl := range p.ShippingLines {
		order.ShippingLines = append(order.ShippingLines, ShippingLine{Title: sl.Title, Price: parseAmount(sl.Price)})
	}
	for _, li := range p.LineItems {
		order.LineItems = append(order.LineItems, LineItem{
			VariantID: li.VariantID,
			ProductID: li.ProductID,
			Title:     li.Title,
			Quantity:  li.Quantity,
			Price:     parseAmount(li.Price),
		})
	}
	order.DestinationCountry = p.ShippingAddress.CountryCode
	if order.DestinationCountry == "" {
		order.DestinationCountry = p.ShippingAddress.Country
	}
	return order
}
