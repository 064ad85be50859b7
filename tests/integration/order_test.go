//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"regexp"
	"sync"
	"testing"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func placeOrder(t *testing.T, req orderRequest) orderResponse {
	t.Helper()

	resp := doPost(t, "/api/orders", req)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusCreated)

	return decodeJSON[envelope[orderResponse]](t, resp).Data
}

func setStatus(t *testing.T, id, status string) *http.Response {
	t.Helper()
	return doPut(t, "/api/orders/"+id+"/status", map[string]string{"status": status})
}

func TestSeededOrders(t *testing.T) {
	resp := doGet(t, "/api/orders/customer/+1234567890")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	body := decodeJSON[envelope[[]orderResponse]](t, resp)
	if body.Count != 1 {
		t.Fatalf("expected 1 order for John Doe, got %d", body.Count)
	}
	o := body.Data[0]
	if o.Status != "pending" || len(o.Items) != 3 {
		t.Fatalf("unexpected seeded order: %+v", o)
	}
	// 5 × 2.50 + 2 × 4.50 + 3 × 2.00
	if math.Abs(o.TotalPrice-27.5) > 1e-9 {
		t.Fatalf("total: got %v, want 27.5", o.TotalPrice)
	}
}

func TestPlaceOrder(t *testing.T) {
	p := createProduct(t, "Order Orange", 2.5, 100)

	o := placeOrder(t, newOrder(orderItemRequest{Product: p.ID, Quantity: 5}))
	if !uuidPattern.MatchString(o.ID) {
		t.Errorf("order id %q is not a UUID", o.ID)
	}
	if o.Status != "pending" {
		t.Errorf("status: got %q, want pending", o.Status)
	}
	if math.Abs(o.TotalPrice-12.5) > 1e-9 {
		t.Errorf("total: got %v, want 12.5", o.TotalPrice)
	}
	if len(o.Items) != 1 || o.Items[0].Product == nil || o.Items[0].Product.Name != "Order Orange" {
		t.Fatalf("items not joined with product: %+v", o.Items)
	}

	if got := getProduct(t, p.ID).StockQuantity; got != 95 {
		t.Fatalf("stock: got %d, want 95", got)
	}
}

func TestPlaceOrder_InsufficientStockRollsBack(t *testing.T) {
	plenty := createProduct(t, "Rollback Rice", 1, 10)
	scarce := createProduct(t, "Rollback Radish", 1, 1)

	resp := doPost(t, "/api/orders", newOrder(
		orderItemRequest{Product: plenty.ID, Quantity: 4},
		orderItemRequest{Product: scarce.ID, Quantity: 2},
	))
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)

	body := decodeJSON[envelope[any]](t, resp)
	want := "Insufficient stock for Rollback Radish. Available: 1, Requested: 2"
	if body.Message != want {
		t.Fatalf("message: got %q, want %q", body.Message, want)
	}
	if got := getProduct(t, plenty.ID).StockQuantity; got != 10 {
		t.Fatalf("earlier line was not rolled back: stock %d, want 10", got)
	}
}

func TestPlaceOrder_UnknownProduct(t *testing.T) {
	resp := doPost(t, "/api/orders", newOrder(orderItemRequest{
		Product:  "00000000-0000-4000-8000-000000000000",
		Quantity: 1,
	}))
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusNotFound)
}

func TestPlaceOrder_Validation(t *testing.T) {
	resp := doPost(t, "/api/orders", orderRequest{
		CustomerName:    "Integration Tester",
		CustomerPhone:   "not a phone",
		CustomerAddress: "1 Test Street",
	})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)

	body := decodeJSON[envelope[any]](t, resp)
	fields := make(map[string]string, len(body.Errors))
	for _, e := range body.Errors {
		fields[e.Field] = e.Message
	}
	if fields["customerPhone"] != "Invalid phone number format" {
		t.Errorf("customerPhone: got %q", fields["customerPhone"])
	}
	if fields["items"] != "Order must have at least one item" {
		t.Errorf("items: got %q", fields["items"])
	}
}

func TestPlaceOrder_ConcurrentNeverOversells(t *testing.T) {
	p := createProduct(t, "Contended Cucumber", 1, 10)

	body, err := json.Marshal(newOrder(orderItemRequest{Product: p.ID, Quantity: 1}))
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	const attempts = 25
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := httpClient.Post(baseURL+"/api/orders", "application/json", bytes.NewReader(body))
			if err != nil {
				t.Errorf("POST /api/orders: %v", err)
				return
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusCreated {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 10 {
		t.Fatalf("created %d orders, want exactly 10", created)
	}
	if got := getProduct(t, p.ID).StockQuantity; got != 0 {
		t.Fatalf("stock: got %d, want 0", got)
	}
}

func TestOrderStatus_CancelAndReactivate(t *testing.T) {
	p := createProduct(t, "Status Spinach", 3, 4)
	o := placeOrder(t, newOrder(orderItemRequest{Product: p.ID, Quantity: 4}))

	resp := setStatus(t, o.ID, "cancelled")
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	if got := getProduct(t, p.ID).StockQuantity; got != 4 {
		t.Fatalf("cancel did not release stock: %d", got)
	}

	placeOrder(t, newOrder(orderItemRequest{Product: p.ID, Quantity: 1}))

	resp = setStatus(t, o.ID, "processing")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)
	body := decodeJSON[envelope[any]](t, resp)
	if body.Message != "Cannot reactivate order. Insufficient stock for Status Spinach" {
		t.Fatalf("message: got %q", body.Message)
	}
	if got := getProduct(t, p.ID).StockQuantity; got != 3 {
		t.Fatalf("failed reactivation changed stock to %d", got)
	}
}

func TestOrderStatus_Invalid(t *testing.T) {
	p := createProduct(t, "Invalid Status Ice", 1, 1)
	o := placeOrder(t, newOrder(orderItemRequest{Product: p.ID, Quantity: 1}))

	resp := setStatus(t, o.ID, "teleported")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestGetOrder_DeletedProductJoinsNull(t *testing.T) {
	p := createProduct(t, "Vanishing Vanilla", 5, 2)
	o := placeOrder(t, newOrder(orderItemRequest{Product: p.ID, Quantity: 1}))

	resp := do(t, http.MethodDelete, "/api/products/"+p.ID, nil, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = doGet(t, "/api/orders/"+o.ID)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	got := decodeJSON[envelope[orderResponse]](t, resp).Data
	if got.Items[0].Product != nil {
		t.Fatalf("expected null product, got %+v", got.Items[0].Product)
	}
	if got.Items[0].ProductID != p.ID || got.Items[0].Price != 5 {
		t.Fatalf("item snapshot lost: %+v", got.Items[0])
	}
}

func TestPlaceOrder_IdempotencyKey(t *testing.T) {
	p := createProduct(t, "Idempotent Iceberg", 1, 5)
	req := newOrder(orderItemRequest{Product: p.ID, Quantity: 1})
	header := http.Header{"Idempotency-Key": []string{"integration-" + p.ID}}

	resp := do(t, http.MethodPost, "/api/orders", req, header)
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = do(t, http.MethodPost, "/api/orders", req, header)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusConflict)

	if got := getProduct(t, p.ID).StockQuantity; got != 4 {
		t.Fatalf("replay reserved stock again: %d", got)
	}
}
