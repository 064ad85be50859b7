package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/xenking/grocery-backoffice/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository on a Store.
type ProductRepository struct {
	guard
}

// List returns products matching f ordered by name.
func (r *ProductRepository) List(_ context.Context, f product.Filter) ([]product.Product, error) {
	var out []product.Product
	r.read(func() {
		for _, p := range r.s.products {
			if f.Match(p) {
				out = append(out, p)
			}
		}
	})
	slices.SortFunc(out, func(a, b product.Product) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// GetByID returns a copy of product id.
func (r *ProductRepository) GetByID(_ context.Context, id string) (*product.Product, error) {
	var (
		p  product.Product
		ok bool
	)
	r.read(func() { p, ok = r.s.products[id] })
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// GetByIDs returns the products that exist among ids, ordered by id.
func (r *ProductRepository) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	out := make([]product.Product, 0, len(ids))
	r.read(func() {
		for _, id := range ids {
			if p, ok := r.s.products[id]; ok {
				out = append(out, p)
			}
		}
	})
	slices.SortFunc(out, func(a, b product.Product) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Create stores a new product.
func (r *ProductRepository) Create(_ context.Context, p *product.Product) error {
	if p.StockQuantity < 0 {
		return product.ErrNegativeStock
	}
	r.write(func() { r.s.products[p.ID] = *p })
	return nil
}

// Update applies c to product id under the write lock.
func (r *ProductRepository) Update(_ context.Context, id string, c product.Changes) (*product.Product, error) {
	if c.StockQuantity != nil && *c.StockQuantity < 0 {
		return nil, product.ErrNegativeStock
	}
	var (
		p   product.Product
		err error
	)
	r.write(func() {
		var ok bool
		if p, ok = r.s.products[id]; !ok {
			err = product.ErrNotFound
			return
		}
		p.Name = c.Name
		p.Category = c.Category
		p.Price = c.Price
		if c.StockQuantity != nil {
			p.StockQuantity = *c.StockQuantity
		}
		p.UpdatedAt = c.UpdatedAt
		r.s.products[id] = p
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete removes product id.
func (r *ProductRepository) Delete(_ context.Context, id string) error {
	var err error
	r.write(func() {
		if _, ok := r.s.products[id]; !ok {
			err = product.ErrNotFound
			return
		}
		delete(r.s.products, id)
	})
	return err
}

// AdjustStock adds delta to the stock of product id.
func (r *ProductRepository) AdjustStock(_ context.Context, id string, delta int) (*product.Product, error) {
	var (
		p   product.Product
		err error
	)
	r.write(func() {
		var ok bool
		p, ok = r.s.products[id]
		switch {
		case !ok:
			err = product.ErrNotFound
		case p.StockQuantity+delta < 0:
			err = product.ErrNegativeStock
		default:
			p.StockQuantity += delta
			r.s.products[id] = p
		}
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}
