package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/grocery-backoffice/internal/domain/order"
	"github.com/xenking/grocery-backoffice/internal/domain/product"
	"github.com/xenking/grocery-backoffice/internal/idempotency"
)

// maxBodySize caps request bodies; an order with hundreds of lines stays
// well below it.
const maxBodySize = 1 << 20

// HeaderIdempotencyKey names the request header that deduplicates order
// submissions.
const HeaderIdempotencyKey = "Idempotency-Key"

// Handler serves the back-office REST API, delegating business logic to the
// catalog and order services.
type Handler struct {
	products *product.Service
	orders   *order.Service
	guard    idempotency.Guard
}

// NewHandler constructs a Handler. A nil guard disables idempotent order
// submission.
func NewHandler(products *product.Service, orders *order.Service, guard idempotency.Guard) *Handler {
	if guard == nil {
		guard = idempotency.Nop{}
	}
	return &Handler{
		products: products,
		orders:   orders,
		guard:    guard,
	}
}

// Register mounts every API route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.health)

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("POST /api/products", h.createProduct)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("PUT /api/products/{id}", h.updateProduct)
	mux.HandleFunc("DELETE /api/products/{id}", h.deleteProduct)

	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("POST /api/orders", h.createOrder)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("PUT /api/orders/{id}/status", h.updateOrderStatus)
	mux.HandleFunc("GET /api/orders/customer/{phone}", h.customerOrders)

	mux.HandleFunc("/api/", notFound)
}

// Routes returns a new mux with every API route registered.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("status", func(e *jx.Encoder) { e.Str("OK") })
			e.Field("message", func(e *jx.Encoder) { e.Str("Grocery Shop API is running") })
		})
	})
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusNotFound, "Route not found")
}

// readBody reads the request body, writing the failure response itself and
// returning false when the body is unusable.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return nil, false
		}
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	return data, true
}
