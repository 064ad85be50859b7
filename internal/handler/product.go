package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"

	"github.com/xenking/grocery-backoffice/internal/domain/product"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := product.Filter{
		Category: product.Category(strings.TrimSpace(q.Get("category"))),
		Search:   strings.TrimSpace(q.Get("search")),
	}
	if f.Category != "" && !f.Category.Valid() {
		writeError(w, r, queryViolation("category", "Invalid category"))
		return
	}

	products, err := h.products.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, len(products), func(e *jx.Encoder, i int) {
		encodeProduct(e, products[i])
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, *p) })
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	in, ok := readProductInput(w, r, false)
	if !ok {
		return
	}

	p, err := h.products.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, func(e *jx.Encoder) { encodeProduct(e, *p) })
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	in, ok := readProductInput(w, r, true)
	if !ok {
		return
	}

	p, err := h.products.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, *p) })
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Product deleted successfully")
}

func readProductInput(w http.ResponseWriter, r *http.Request, update bool) (product.Input, bool) {
	data, ok := readBody(w, r)
	if !ok {
		return product.Input{}, false
	}
	body, err := decodeProduct(data)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON")
		return product.Input{}, false
	}
	in, err := validateProduct(body, update)
	if err != nil {
		writeError(w, r, err)
		return product.Input{}, false
	}
	return in, true
}
