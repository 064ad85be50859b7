package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/grocery-backoffice/internal/domain/order"
)

const orderColumns = `id, customer_name, customer_phone, customer_address, items, total_price, status, created_at, updated_at`

const (
	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1::text = '' OR status = $1)
		  AND ($2::text = '' OR strpos(lower(customer_name), lower($2)) > 0)
		  AND ($3::text = '' OR customer_phone = $3)
		ORDER BY created_at DESC, id`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db   dbtx
	lock bool
}

// Create persists a new order. The order items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}

	_, err = r.db.Exec(ctx, createOrderSQL,
		o.ID, o.CustomerName, o.CustomerPhone, o.CustomerAddress,
		itemsJSON, o.TotalPrice, string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	query := getOrderByIDSQL
	if r.lock {
		query += ` FOR UPDATE`
	}
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return &o, nil
}

// List returns the orders matching f, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	rows, err := r.db.Query(ctx, listOrdersSQL, string(f.Status), f.CustomerName, f.CustomerPhone)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus rewrites the status of an order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, updatedAt time.Time) error {
	tag, err := r.db.Exec(ctx, updateOrderStatusSQL, id, string(status), updatedAt)
	if err != nil {
		return errors.Wrapf(err, "update order %q", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		items  []byte
		total  decimal.Decimal
		status string
	)
	if err := row.Scan(
		&o.ID, &o.CustomerName, &o.CustomerPhone, &o.CustomerAddress,
		&items, &total, &status, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return o, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, errors.Wrapf(err, "unmarshal items of order %q", o.ID)
	}
	o.TotalPrice = total
	o.Status = order.Status(status)
	return o, nil
}
