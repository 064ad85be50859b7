package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrNegativeStock is returned when a stock change would take the
	// quantity on hand below zero.
	ErrNegativeStock = errors.New("stock quantity cannot be negative")
	// ErrNegativePrice is returned when a product is priced below zero.
	ErrNegativePrice = errors.New("price cannot be negative")
	// ErrPriceTooHigh is returned when a price exceeds MaxPrice.
	ErrPriceTooHigh = errors.New("price exceeds the maximum")
	// ErrInvalidCategory is returned for a category outside the catalog vocabulary.
	ErrInvalidCategory = errors.New("invalid category")
)

// PriceScale is the number of decimal places a price is kept with.
const PriceScale = 2

// MaxPrice is the highest accepted unit price.
var MaxPrice = decimal.NewFromInt(1_000_000)

// Category is one of the fixed catalog sections.
type Category string

// Catalog categories.
const (
	CategoryFruits     Category = "Fruits"
	CategoryVegetables Category = "Vegetables"
	CategoryDairy      Category = "Dairy"
	CategoryBakery     Category = "Bakery"
	CategoryMeat       Category = "Meat"
	CategoryBeverages  Category = "Beverages"
	CategorySnacks     Category = "Snacks"
	CategoryGrains     Category = "Grains"
	CategoryOther      Category = "Other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryFruits,
	CategoryVegetables,
	CategoryDairy,
	CategoryBakery,
	CategoryMeat,
	CategoryBeverages,
	CategorySnacks,
	CategoryGrains,
	CategoryOther,
}

// Valid reports whether c belongs to the catalog vocabulary.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Product is a catalog entry with its stock on hand.
type Product struct {
	ID            string
	Name          string
	Category      Category
	Price         decimal.Decimal
	StockQuantity int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Changes is an edit of a product's mutable attributes. A nil
// StockQuantity leaves the stock as the store holds it at write time, so
// reservations made concurrently are preserved.
type Changes struct {
	Name          string
	Category      Category
	Price         decimal.Decimal
	StockQuantity *int
	UpdatedAt     time.Time
}

// Filter narrows a product listing. The zero value matches every product.
type Filter struct {
	// Category is matched exactly when set.
	Category Category
	// Search is matched as a case-insensitive substring of the name.
	Search string
}

// Match reports whether p satisfies the filter.
func (f Filter) Match(p Product) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	// List returns products matching f ordered by name.
	List(ctx context.Context, f Filter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	// GetByIDs returns the products that exist among ids, ordered by id;
	// missing ids are silently absent from the result. Inside
	// order.Store.Atomic the returned rows stay locked until it returns.
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	// Update applies c to product id in a single write and returns the
	// stored result.
	Update(ctx context.Context, id string, c Changes) (*Product, error)
	Delete(ctx context.Context, id string) error
	// AdjustStock adds delta to the stock of product id and returns the
	// updated product. It fails with ErrNegativeStock instead of letting the
	// quantity drop below zero.
	AdjustStock(ctx context.Context, id string, delta int) (*Product, error)
}
