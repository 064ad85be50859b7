package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/grocery-backoffice/internal/domain/order"
)

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := order.Filter{
		Status:       order.Status(strings.TrimSpace(q.Get("status"))),
		CustomerName: strings.TrimSpace(q.Get("customerName")),
	}
	if f.Status != "" && !f.Status.Valid() {
		writeError(w, r, queryViolation("status", "Invalid order status"))
		return
	}

	views, err := h.orders.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOrders(w, views)
}

func (h *Handler) customerOrders(w http.ResponseWriter, r *http.Request) {
	views, err := h.orders.ListByPhone(r.Context(), r.PathValue("phone"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOrders(w, views)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	v, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, *v, true) })
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}
	body, err := decodeOrder(data)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req, err := validateOrder(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if key != "" {
		claimed, err := h.guard.Claim(ctx, key)
		if err != nil {
			writeError(w, r, errors.Wrap(err, "claim idempotency key"))
			return
		}
		if !claimed {
			writeMessage(w, http.StatusConflict, "Duplicate order submission")
			return
		}
	}

	v, err := h.orders.CreateOrder(ctx, req)
	if err != nil {
		if key != "" {
			// The key must be freed even when the client has gone away.
			if rerr := h.guard.Release(context.WithoutCancel(ctx), key); rerr != nil {
				zctx.From(ctx).Warn("Release idempotency key", zap.String("key", key), zap.Error(rerr))
			}
		}
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, *v, false) })
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}
	raw, err := decodeStatus(data)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	status, err := validateStatus(raw)
	if err != nil {
		writeError(w, r, err)
		return
	}

	v, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, *v, false) })
}

func writeOrders(w http.ResponseWriter, views []order.View) {
	writeList(w, len(views), func(e *jx.Encoder, i int) {
		encodeOrder(e, views[i], false)
	})
}
