// Package memory implements the catalog and order repositories in process
// memory. It backs the "memory" storage mode and the handler tests.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/xenking/grocery-backoffice/internal/domain/order"
	"github.com/xenking/grocery-backoffice/internal/domain/product"
)

var _ order.Store = (*Store)(nil)

// Store holds products and orders behind a single lock. Each repository
// call is atomic on its own; Atomic serialises a whole unit of work and
// rolls it back on error.
type Store struct {
	mu       sync.RWMutex
	products map[string]product.Product
	orders   map[string]order.Order
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		products: make(map[string]product.Product),
		orders:   make(map[string]order.Order),
	}
}

// Products returns a repository view of the catalog.
func (s *Store) Products() product.Repository {
	return &ProductRepository{guard{s: s}}
}

// Orders returns a repository view of the orders.
func (s *Store) Orders() order.Repository {
	return &OrderRepository{guard{s: s}}
}

// Atomic runs fn with exclusive access to the store. When fn fails, every
// change it made is discarded.
func (s *Store) Atomic(_ context.Context, fn func(products product.Repository, orders order.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := maps.Clone(s.products)
	orders := make(map[string]order.Order, len(s.orders))
	for id, o := range s.orders {
		orders[id] = cloneOrder(o)
	}

	if err := fn(&ProductRepository{guard{s: s, held: true}}, &OrderRepository{guard{s: s, held: true}}); err != nil {
		s.products = products
		s.orders = orders
		return err
	}
	return nil
}

// Ping always succeeds; it lets the store stand in for a database in
// readiness checks.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Reset drops every product and order.
func (s *Store) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = make(map[string]product.Product)
	s.orders = make(map[string]order.Order)
	return nil
}

// guard is embedded by the repositories. When held is set the caller is
// inside Atomic and already owns the write lock.
type guard struct {
	s    *Store
	held bool
}

func (g guard) read(fn func()) {
	if !g.held {
		g.s.mu.RLock()
		defer g.s.mu.RUnlock()
	}
	fn()
}

func (g guard) write(fn func()) {
	if !g.held {
		g.s.mu.Lock()
		defer g.s.mu.Unlock()
	}
	fn()
}

func cloneOrder(o order.Order) order.Order {
	o.Items = append([]order.Item(nil), o.Items...)
	return o
}
