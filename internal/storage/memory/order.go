package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/xenking/grocery-backoffice/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository on a Store.
type OrderRepository struct {
	guard
}

// Create stores a new order.
func (r *OrderRepository) Create(_ context.Context, o *order.Order) error {
	r.write(func() { r.s.orders[o.ID] = cloneOrder(*o) })
	return nil
}

// GetByID returns a copy of order id.
func (r *OrderRepository) GetByID(_ context.Context, id string) (*order.Order, error) {
	var (
		o  order.Order
		ok bool
	)
	r.read(func() { o, ok = r.s.orders[id] })
	if !ok {
		return nil, order.ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

// List returns orders matching f, newest first.
func (r *OrderRepository) List(_ context.Context, f order.Filter) ([]order.Order, error) {
	var out []order.Order
	r.read(func() {
		for _, o := range r.s.orders {
			if f.Match(o) {
				out = append(out, cloneOrder(o))
			}
		}
	})
	slices.SortFunc(out, func(a, b order.Order) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// UpdateStatus rewrites the status of order id.
func (r *OrderRepository) UpdateStatus(_ context.Context, id string, status order.Status, updatedAt time.Time) error {
	var err error
	r.write(func() {
		o, ok := r.s.orders[id]
		if !ok {
			err = order.ErrNotFound
			return
		}
		o.Status = status
		o.UpdatedAt = updatedAt
		r.s.orders[id] = o
	})
	return err
}
