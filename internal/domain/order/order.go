package order

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/grocery-backoffice/internal/domain/product"
)

// Status is the lifecycle state of an order.
type Status string

// Order statuses.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

// Valid reports whether s belongs to the status vocabulary.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// HoldsStock reports whether an order in status s keeps its items reserved.
// Stock is taken when the order is placed and given back only on cancellation.
func (s Status) HoldsStock() bool {
	return s != StatusCancelled
}

// Item is a line item frozen at order time.
type Item struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Subtotal returns Quantity × Price.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Total sums the subtotals of items.
func Total(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Order is a customer order. Items and TotalPrice are captured once at
// creation and never recomputed.
type Order struct {
	ID              string
	CustomerName    string
	CustomerPhone   string
	CustomerAddress string
	Items           []Item
	TotalPrice      decimal.Decimal
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProductIDs returns the distinct product ids referenced by o in item order.
func (o *Order) ProductIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// Filter narrows an order listing. The zero value matches every order.
type Filter struct {
	Status Status
	// CustomerName is matched as a case-insensitive substring.
	CustomerName string
	// CustomerPhone is matched exactly.
	CustomerPhone string
}

// Match reports whether o satisfies the filter.
func (f Filter) Match(o Order) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.CustomerName != "" && !strings.Contains(strings.ToLower(o.CustomerName), strings.ToLower(f.CustomerName)) {
		return false
	}
	if f.CustomerPhone != "" && o.CustomerPhone != f.CustomerPhone {
		return false
	}
	return true
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// List returns orders matching f, newest first.
	List(ctx context.Context, f Filter) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error
}

// Store is the persistence backend of the order service. Atomic runs fn
// with repositories bound to a single unit of work: when fn returns an
// error none of its writes are kept.
type Store interface {
	Products() product.Repository
	Orders() Repository
	Atomic(ctx context.Context, fn func(products product.Repository, orders Repository) error) error
}
