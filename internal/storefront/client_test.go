package storefront

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/truemargin/truemargin/internal/shared"
	"github.com/truemargin/truemargin/internal/stores"
)

// testClient points the client at an httptest server by rewriting the
// https://{domain} scheme through a custom transport.
func testClient(t *testing.T, handler http.Handler) (*Client, *stores.Store) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("2024-10", 5*time.Second)
	serverURL, err := url.Parse(server.URL)
	require.NoError(t, err)
	client.httpClient.Transport = rewriteTransport{host: serverURL.Host}

	store := &stores.Store{ID: 1, Domain: "shop.example.com", AccessToken: "token-1"}
	return client, store
}

type rewriteTransport struct {
	host string
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = rt.host
	return http.DefaultTransport.RoundTrip(req)
}

func TestListOrdersPaginatesViaLinkHeader(t *testing.T) {
	var requests []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		require.Equal(t, "token-1", r.Header.Get("X-Access-Token"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page_info") == "" {
			w.Header().Set("Link", `<https://shop.example.com/admin/api/2024-10/orders.json?page_info=cursor2&limit=250>; rel="next"`)
			fmt.Fprint(w, `{"orders":[{"id":1,"name":"#1001","created_at":"2025-03-02T10:00:00Z","total_price":"100.00","currency":"USD","line_items":[{"variant_id":11,"quantity":2,"price":"50.00","title":"Widget"}]}]}`)
			return
		}
		fmt.Fprint(w, `{"orders":[{"id":2,"name":"#1002","created_at":"2025-03-03T10:00:00Z","total_price":"40.00","currency":"USD"}]}`)
	})
	client, store := testClient(t, handler)

	window := shared.NewDateRange(
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
	).UTCWindow(0)

	orders, err := client.ListOrders(context.Background(), store, window)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Equal(t, int64(1), orders[0].ID)
	require.Equal(t, 100.0, orders[0].TotalPrice)
	require.Equal(t, "11", orders[0].LineItems[0].Key())
	require.Equal(t, "#1002", orders[1].Number)

	require.Len(t, requests, 2)
	require.Contains(t, requests[0], "created_at_min=")
	require.Contains(t, requests[1], "page_info=cursor2")
	require.NotContains(t, requests[1], "created_at_min")
}

func TestListOrdersUpstreamFailureIsFatal(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	client, store := testClient(t, handler)

	_, err := client.ListOrders(context.Background(), store, shared.Window{Start: time.Now().Add(-time.Hour), End: time.Now()})
	require.ErrorIs(t, err, shared.ErrUpstream)
}

func TestListBalanceTransactionsFeatureUnavailable(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	client, store := testClient(t, handler)

	_, err := client.ListBalanceTransactions(context.Background(), store, 0, 100)
	require.ErrorIs(t, err, shared.ErrFeatureUnavailable)
}

func TestListBalanceTransactionsCursor(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("since_id") == "" {
			// Full page: exactly the requested limit.
			fmt.Fprint(w, `{"transactions":[
				{"id":10,"type":"charge","amount":"50.00","fee":"1.75","currency":"USD","source_order":{"id":7},"processed_at":"2025-03-02T08:00:00Z"},
				{"id":11,"type":"refund","amount":"-20.00","fee":"0.00","currency":"USD","processed_at":"2025-03-02T09:00:00Z"}
			]}`)
			return
		}
		require.Equal(t, "11", r.URL.Query().Get("since_id"))
		fmt.Fprint(w, `{"transactions":[{"id":12,"type":"charge","amount":"30.00","fee":"1.10","currency":"EUR","processed_at":"2025-03-02T10:00:00Z"}]}`)
	})
	client, store := testClient(t, handler)

	first, err := client.ListBalanceTransactions(context.Background(), store, 0, 2)
	require.NoError(t, err)
	require.Len(t, first.Transactions, 2)
	require.Equal(t, int64(11), first.NextSinceID)
	require.Equal(t, int64(7), first.Transactions[0].OrderID)
	require.Equal(t, int64(0), first.Transactions[1].OrderID)

	second, err := client.ListBalanceTransactions(context.Background(), store, first.NextSinceID, 2)
	require.NoError(t, err)
	require.Len(t, second.Transactions, 1)
	require.Zero(t, second.NextSinceID)
}

func TestListLostDisputesUnavailableMeansEmpty(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	client, store := testClient(t, handler)

	disputes, err := client.ListLostDisputes(context.Background(), store, shared.Window{Start: time.Now().Add(-time.Hour), End: time.Now()})
	require.NoError(t, err)
	require.Empty(t, disputes)
}

func TestNextPageInfo(t *testing.T) {
	header := http.Header{}
	header.Set("Link", strings.Join([]string{
		`<https://shop.example.com/admin/api/2024-10/orders.json?page_info=prev1>; rel="previous"`,
		`<https://shop.example.com/admin/api/2024-10/orders.json?page_info=next1&limit=250>; rel="next"`,
	}, ", "))
	require.Equal(t, "next1", nextPageInfo(header))

	header.Set("Link", `<https://shop.example.com/x?page_info=only>; rel="previous"`)
	require.Equal(t, "", nextPageInfo(header))
}
