package order

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/grocery-backoffice/internal/domain/product"
)

// Sentinel errors for order operations.
var (
	ErrNotFound      = errors.New("order not found")
	ErrEmptyItems    = errors.New("order must have at least one item")
	ErrInvalidStatus = errors.New("invalid order status")
)

// ProductNotFoundError indicates an order line references a missing product.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("Product with ID %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be at least 1 for product %s", e.ProductID)
}

// InsufficientStockError indicates a product cannot cover the requested
// quantity, either when an order is placed or when a cancelled order is
// reactivated. On reactivation Requested is the order's combined quantity
// of the product across all of its lines.
type InsufficientStockError struct {
	ProductID    string
	ProductName  string
	Available    int
	Requested    int
	Reactivation bool
}

func (e *InsufficientStockError) Error() string {
	if e.Reactivation {
		return fmt.Sprintf("Cannot reactivate order. Insufficient stock for %s", e.ProductName)
	}
	return fmt.Sprintf("Insufficient stock for %s. Available: %d, Requested: %d",
		e.ProductName, e.Available, e.Requested)
}

// Line is a requested line item: which product and how many.
type Line struct {
	ProductID string
	Quantity  int
}

// CreateRequest holds the input for placing an order.
type CreateRequest struct {
	CustomerName    string
	CustomerPhone   string
	CustomerAddress string
	Items           []Line
}

// View is an order joined with the current catalog entries of its items.
// Products has no entry for items whose product has since been deleted.
type View struct {
	Order    *Order
	Products map[string]product.Product
}

// Product returns the catalog entry joined for productID, if it still exists.
func (v View) Product(productID string) (product.Product, bool) {
	p, ok := v.Products[productID]
	return p, ok
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for stock side effects.
func WithLogger(lg *zap.Logger) Option {
	return func(s *Service) { s.lg = lg }
}

// WithClock overrides the time source used for order timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service keeps product stock consistent with the lifecycle of orders.
//
// Stock is reserved when an order is placed, released when it is cancelled
// and reserved again when a cancelled order is reactivated. Every operation
// that touches more than one document runs inside Store.Atomic, so a failure
// on any line leaves every product and order as it was.
type Service struct {
	store Store
	lg    *zap.Logger
	now   func() time.Time
}

// NewService creates an order Service on top of the given Store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		lg:    zap.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder checks every line against the catalog, reserves stock,
// snapshots current prices and persists a pending order.
func (s *Service) CreateOrder(ctx context.Context, req CreateRequest) (*View, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, line := range req.Items {
		if line.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: line.ProductID}
		}
	}

	now := s.now().UTC()
	o := &Order{
		ID:              uuid.New().String(),
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		Items:           make([]Item, 0, len(req.Items)),
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	ids := make([]string, len(req.Items))
	for i, line := range req.Items {
		ids[i] = line.ProductID
	}

	err := s.store.Atomic(ctx, func(products product.Repository, orders Repository) error {
		if err := lockProducts(ctx, products, ids); err != nil {
			return err
		}
		for _, line := range req.Items {
			p, err := products.GetByID(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, product.ErrNotFound) {
					return &ProductNotFoundError{ProductID: line.ProductID}
				}
				return errors.Wrapf(err, "get product %s", line.ProductID)
			}
			if err := s.reserve(ctx, products, p, line.Quantity, false); err != nil {
				return err
			}
			o.Items = append(o.Items, Item{
				ProductID: p.ID,
				Quantity:  line.Quantity,
				Price:     p.Price,
			})
		}

		o.TotalPrice = Total(o.Items)
		if err := orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.lg.Info("Order created",
		zap.String("order_id", o.ID),
		zap.Int("items", len(o.Items)),
		zap.Stringer("total", o.TotalPrice),
	)
	return s.view(ctx, o)
}

// UpdateStatus moves an order to status to. Cancelling returns the items to
// stock, reactivating a cancelled order takes them again; other transitions
// only rewrite the status. Items whose product no longer exists are skipped.
func (s *Service) UpdateStatus(ctx context.Context, id string, to Status) (*View, error) {
	if !to.Valid() {
		return nil, ErrInvalidStatus
	}

	var o *Order
	err := s.store.Atomic(ctx, func(products product.Repository, orders Repository) error {
		var err error
		o, err = orders.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrNotFound
			}
			return errors.Wrapf(err, "get order %s", id)
		}

		adjustments := StockDelta(o.Status, to, o.Items)
		ids := make([]string, len(adjustments))
		for i, adj := range adjustments {
			ids[i] = adj.ProductID
		}
		if err := lockProducts(ctx, products, ids); err != nil {
			return err
		}

		for _, adj := range adjustments {
			p, err := products.GetByID(ctx, adj.ProductID)
			if err != nil {
				if errors.Is(err, product.ErrNotFound) {
					s.lg.Info("Skipping stock change for deleted product",
						zap.String("order_id", o.ID),
						zap.String("product_id", adj.ProductID),
						zap.Int("delta", adj.Delta),
					)
					continue
				}
				return errors.Wrapf(err, "get product %s", adj.ProductID)
			}

			if adj.Delta < 0 {
				if err := s.reserve(ctx, products, p, -adj.Delta, true); err != nil {
					return err
				}
				continue
			}
			if _, err := products.AdjustStock(ctx, p.ID, adj.Delta); err != nil {
				return errors.Wrapf(err, "restore stock for %s", p.ID)
			}
			s.lg.Debug("Stock restored", zap.String("product_id", p.ID), zap.Int("delta", adj.Delta))
		}

		now := s.now().UTC()
		if err := orders.UpdateStatus(ctx, o.ID, to, now); err != nil {
			return errors.Wrapf(err, "update order %s status", o.ID)
		}
		o.Status = to
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, o)
}

// lockProducts reads the distinct ids in ascending order. Inside
// Store.Atomic this takes the row lock of every product the operation will
// touch, always in the same sequence.
func lockProducts(ctx context.Context, products product.Repository, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ids = slices.Clone(ids)
	slices.Sort(ids)
	if _, err := products.GetByIDs(ctx, slices.Compact(ids)); err != nil {
		return errors.Wrap(err, "lock products")
	}
	return nil
}

// reserve takes quantity units of p off the shelf or fails with
// InsufficientStockError.
func (s *Service) reserve(ctx context.Context, products product.Repository, p *product.Product, quantity int, reactivation bool) error {
	insufficient := &InsufficientStockError{
		ProductID:    p.ID,
		ProductName:  p.Name,
		Available:    p.StockQuantity,
		Requested:    quantity,
		Reactivation: reactivation,
	}
	if p.StockQuantity < quantity {
		return insufficient
	}
	if _, err := products.AdjustStock(ctx, p.ID, -quantity); err != nil {
		if errors.Is(err, product.ErrNegativeStock) {
			return insufficient
		}
		return errors.Wrapf(err, "reserve stock for %s", p.ID)
	}
	s.lg.Debug("Stock reserved", zap.String("product_id", p.ID), zap.Int("delta", -quantity))
	return nil
}

// Get returns a single order joined with current product details.
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	o, err := s.store.Orders().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %s", id)
	}
	return s.view(ctx, o)
}

// List returns orders matching f, newest first, joined with current
// product details.
func (s *Service) List(ctx context.Context, f Filter) ([]View, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	orders, err := s.store.Orders().List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}

	var ids []string
	seen := make(map[string]struct{})
	for i := range orders {
		for _, id := range orders[i].ProductIDs() {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	catalog, err := s.products(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]View, len(orders))
	for i := range orders {
		views[i] = View{Order: &orders[i], Products: catalog}
	}
	return views, nil
}

// ListByPhone returns the order history of a customer, newest first.
func (s *Service) ListByPhone(ctx context.Context, phone string) ([]View, error) {
	return s.List(ctx, Filter{CustomerPhone: phone})
}

func (s *Service) view(ctx context.Context, o *Order) (*View, error) {
	catalog, err := s.products(ctx, o.ProductIDs())
	if err != nil {
		return nil, err
	}
	return &View{Order: o, Products: catalog}, nil
}

// products batch-fetches the catalog entries for ids.
func (s *Service) products(ctx context.Context, ids []string) (map[string]product.Product, error) {
	catalog := make(map[string]product.Product, len(ids))
	if len(ids) == 0 {
		return catalog, nil
	}
	fetched, err := s.store.Products().GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	for _, p := range fetched {
		catalog[p.ID] = p
	}
	return catalog, nil
}
