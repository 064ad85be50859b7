package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/grocery-backoffice/internal/domain/product"
)

const productColumns = `id, name, category, price, stock_quantity, created_at, updated_at`

const (
	listProductsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE ($1::text = '' OR category = $1)
		  AND ($2::text = '' OR strpos(lower(name), lower($2)) > 0)
		ORDER BY name, id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY id`

	createProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	updateProductSQL = `UPDATE products
		SET name = $2, category = $3, price = $4,
		    stock_quantity = COALESCE($5, stock_quantity), updated_at = $6
		WHERE id = $1
		RETURNING ` + productColumns

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	adjustStockSQL = `UPDATE products
		SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id = $1 AND stock_quantity + $2 >= 0
		RETURNING ` + productColumns

	productExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
// Inside a transaction GetByID takes a row lock.
type ProductRepository struct {
	db   dbtx
	lock bool
}

// List returns the products matching f ordered by name.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, listProductsSQL, string(f.Category), f.Search)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	query := getProductByIDSQL
	if r.lock {
		query += ` FOR UPDATE`
	}
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

// GetByIDs returns the products that exist among ids. Inside a transaction
// the rows are locked in id order.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	query := getProductsByIDsSQL
	if r.lock {
		query += ` FOR UPDATE`
	}
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := r.db.Exec(ctx, createProductSQL,
		p.ID, p.Name, string(p.Category), p.Price, p.StockQuantity, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if checkViolation(err) {
			return product.ErrNegativeStock
		}
		return errors.Wrapf(err, "create product %q", p.ID)
	}
	return nil
}

// Update applies c in one statement. A nil c.StockQuantity keeps the
// stock_quantity the row has when the update runs.
func (r *ProductRepository) Update(ctx context.Context, id string, c product.Changes) (*product.Product, error) {
	rows, err := r.db.Query(ctx, updateProductSQL,
		id, c.Name, string(c.Category), c.Price, c.StockQuantity, c.UpdatedAt,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "update product %q", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, product.ErrNotFound
		case checkViolation(err):
			return nil, product.ErrNegativeStock
		}
		return nil, errors.Wrapf(err, "update product %q", id)
	}
	return &p, nil
}

// Delete removes a product. Orders referencing it keep their line items.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete product %q", id)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// AdjustStock adds delta to the stock of a product in a single conditional
// statement. A change that would take stock below zero updates nothing and
// returns product.ErrNegativeStock.
func (r *ProductRepository) AdjustStock(ctx context.Context, id string, delta int) (*product.Product, error) {
	rows, err := r.db.Query(ctx, adjustStockSQL, id, delta)
	if err != nil {
		return nil, errors.Wrapf(err, "adjust stock of %q", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(err, "adjust stock of %q", id)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, productExistsSQL, id).Scan(&exists); err != nil {
		return nil, errors.Wrapf(err, "check product %q", id)
	}
	if !exists {
		return nil, product.ErrNotFound
	}
	return nil, product.ErrNegativeStock
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p        product.Product
		category string
		price    decimal.Decimal
	)
	err := row.Scan(&p.ID, &p.Name, &category, &price, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt)
	p.Category = product.Category(category)
	p.Price = price
	return p, err
}
