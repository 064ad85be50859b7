package handler

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/ogen-go/ogen/ogenregex"
	"github.com/ogen-go/ogen/validate"

	"github.com/xenking/grocery-backoffice/internal/domain/order"
	"github.com/xenking/grocery-backoffice/internal/domain/product"
)

var (
	nameRule    = validate.String{MinLength: 2, MinLengthSet: true, MaxLength: 100, MaxLengthSet: true}
	addressRule = validate.String{MinLength: 5, MinLengthSet: true, MaxLength: 500, MaxLengthSet: true}
	phoneRule   = validate.String{
		Regex: ogenregex.MustCompile(`^[+]?[(]?[0-9]{1,4}[)]?[-\s.]?[(]?[0-9]{1,4}[)]?[-\s.]?[0-9]{1,9}$`),
	}
	stockRule    = validate.Int{MinSet: true, Min: 0}
	quantityRule = validate.Int{MinSet: true, Min: 1}
)

// violations collects at most one failure per request field, in the order the
// fields are checked.
type violations struct {
	fields []validate.FieldError
	seen   map[string]struct{}
}

func (v *violations) add(name, msg string) {
	if v.seen == nil {
		v.seen = make(map[string]struct{})
	}
	if _, ok := v.seen[name]; ok {
		return
	}
	v.seen[name] = struct{}{}
	v.fields = append(v.fields, validate.FieldError{Name: name, Error: errors.New(msg)})
}

// required checks a trimmed string against rule, reporting missing when empty
// and invalid when the rule rejects it.
func (v *violations) required(name, value string, rule validate.String, missing, invalid string) {
	switch {
	case value == "":
		v.add(name, missing)
	case rule.Validate(value) != nil:
		v.add(name, invalid)
	}
}

func (v *violations) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &validate.Error{Fields: v.fields}
}

func validateProduct(b productBody, update bool) (product.Input, error) {
	in := product.Input{
		Name:          strings.TrimSpace(b.Name),
		Category:      product.Category(strings.TrimSpace(b.Category)),
		Price:         b.Price,
		StockQuantity: b.Stock,
		KeepStock:     update && !b.StockSet.set,
	}

	var v violations
	v.required("name", in.Name, nameRule,
		"Product name is required", "Product name must be between 2 and 100 characters")
	switch {
	case in.Category == "":
		v.add("category", "Category is required")
	case !in.Category.Valid():
		v.add("category", "Invalid category")
	}
	switch {
	case !b.PriceSet.valid || in.Price.IsNegative():
		v.add("price", "Price must be a positive number")
	case in.Price.Round(product.PriceScale).GreaterThan(product.MaxPrice):
		v.add("price", "Price must not exceed "+product.MaxPrice.String())
	}
	if b.StockSet.set && (!b.StockSet.valid || stockRule.Validate(int64(in.StockQuantity)) != nil) {
		v.add("stockQuantity", "Stock quantity must be a non-negative integer")
	}
	return in, v.err()
}

func validateOrder(b orderBody) (order.CreateRequest, error) {
	req := order.CreateRequest{
		CustomerName:    strings.TrimSpace(b.CustomerName),
		CustomerPhone:   strings.TrimSpace(b.CustomerPhone),
		CustomerAddress: strings.TrimSpace(b.CustomerAddress),
	}

	var v violations
	v.required("customerName", req.CustomerName, nameRule,
		"Customer name is required", "Customer name must be between 2 and 100 characters")
	v.required("customerPhone", req.CustomerPhone, phoneRule,
		"Customer phone is required", "Invalid phone number format")
	v.required("customerAddress", req.CustomerAddress, addressRule,
		"Customer address is required", "Address must be between 5 and 500 characters")

	if !b.ItemsSet.valid || len(b.Items) == 0 {
		v.add("items", "Order must have at least one item")
	}
	for i, item := range b.Items {
		id := strings.TrimSpace(item.ProductID)
		productField := fmt.Sprintf("items[%d].product", i)
		switch {
		case id == "":
			v.add(productField, "Product ID is required for each item")
		case !item.ProductSet.valid || uuid.Validate(id) != nil:
			v.add(productField, "Invalid product ID format")
		}
		if !item.QuantitySet.valid || quantityRule.Validate(int64(item.Quantity)) != nil {
			v.add(fmt.Sprintf("items[%d].quantity", i), "Quantity must be at least 1 for each item")
		}
		req.Items = append(req.Items, order.Line{ProductID: id, Quantity: item.Quantity})
	}
	return req, v.err()
}

func validateStatus(raw string) (order.Status, error) {
	status := order.Status(strings.TrimSpace(raw))

	var v violations
	switch {
	case status == "":
		v.add("status", "Status is required")
	case !status.Valid():
		v.add("status", "Invalid order status")
	}
	return status, v.err()
}
