package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Input holds the mutable attributes of a product.
type Input struct {
	Name          string
	Category      Category
	Price         decimal.Decimal
	StockQuantity int
	// KeepStock makes Update leave the current stock untouched.
	KeepStock bool
}

func (in Input) check() error {
	if !in.Category.Valid() {
		return ErrInvalidCategory
	}
	if in.Price.IsNegative() {
		return ErrNegativePrice
	}
	if in.Price.Round(PriceScale).GreaterThan(MaxPrice) {
		return ErrPriceTooHigh
	}
	if in.StockQuantity < 0 {
		return ErrNegativeStock
	}
	return nil
}

// Service implements catalog management on top of a Repository.
type Service struct {
	products Repository
	now      func() time.Time
}

// NewService creates a catalog Service backed by the given Repository.
func NewService(products Repository) *Service {
	return &Service{products: products, now: time.Now}
}

// List returns the products matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Product, error) {
	products, err := s.products.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// Get returns a single product or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %s", id)
	}
	return p, nil
}

// Create adds a new product to the catalog.
func (s *Service) Create(ctx context.Context, in Input) (*Product, error) {
	if err := in.check(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := &Product{
		ID:            uuid.New().String(),
		Name:          strings.TrimSpace(in.Name),
		Category:      in.Category,
		Price:         in.Price.Round(PriceScale),
		StockQuantity: in.StockQuantity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// Update replaces the mutable attributes of product id. Orders placed
// earlier keep their own price snapshot and are not affected. With
// in.KeepStock the stored quantity is left to the repository, so orders
// placed while the edit is in flight keep their reservation.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Product, error) {
	if err := in.check(); err != nil {
		return nil, err
	}

	c := Changes{
		Name:      strings.TrimSpace(in.Name),
		Category:  in.Category,
		Price:     in.Price.Round(PriceScale),
		UpdatedAt: s.now().UTC(),
	}
	if !in.KeepStock {
		stock := in.StockQuantity
		c.StockQuantity = &stock
	}

	p, err := s.products.Update(ctx, id, c)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "update product %s", id)
	}
	return p, nil
}

// Delete removes product id. Orders referencing it are left untouched.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrapf(err, "delete product %s", id)
	}
	return nil
}
