package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/ogen-go/ogen/validate"
	"go.uber.org/zap"

	"github.com/xenking/grocery-backoffice/internal/domain/order"
	"github.com/xenking/grocery-backoffice/internal/domain/product"
)

// writeError maps service errors onto the response envelope. Unknown errors
// are logged and reported as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr         *validate.Error
		insufficient *order.InsufficientStockError
		missing      *order.ProductNotFoundError
		quantity     *order.InvalidQuantityError
	)
	switch {
	case errors.As(err, &verr):
		writeValidation(w, verr)
	case errors.As(err, &insufficient):
		writeMessage(w, http.StatusBadRequest, insufficient.Error())
	case errors.As(err, &missing):
		writeMessage(w, http.StatusNotFound, missing.Error())
	case errors.As(err, &quantity):
		writeMessage(w, http.StatusBadRequest, "Quantity must be at least 1 for each item")
	case errors.Is(err, order.ErrEmptyItems):
		writeMessage(w, http.StatusBadRequest, "Order must have at least one item")
	case errors.Is(err, order.ErrInvalidStatus):
		writeMessage(w, http.StatusBadRequest, "Invalid order status")
	case errors.Is(err, order.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, product.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, product.ErrInvalidCategory):
		writeMessage(w, http.StatusBadRequest, "Invalid category")
	case errors.Is(err, product.ErrNegativePrice):
		writeMessage(w, http.StatusBadRequest, "Price must be a positive number")
	case errors.Is(err, product.ErrPriceTooHigh):
		writeMessage(w, http.StatusBadRequest, "Price must not exceed "+product.MaxPrice.String())
	case errors.Is(err, product.ErrNegativeStock):
		writeMessage(w, http.StatusBadRequest, "Stock quantity must be a non-negative integer")
	default:
		zctx.From(r.Context()).Error("Request handling failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeMessage(w, http.StatusInternalServerError, "Server Error")
	}
}

func queryViolation(name, msg string) error {
	var v violations
	v.add(name, msg)
	return v.err()
}
