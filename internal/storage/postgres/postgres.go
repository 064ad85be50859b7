// Package postgres implements the product and order repositories on
// PostgreSQL.
package postgres

import (
	"context"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/grocery-backoffice/db"
	"github.com/xenking/grocery-backoffice/internal/domain/order"
	"github.com/xenking/grocery-backoffice/internal/domain/product"
)

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database config")
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create connection pool")
	}
	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, db.Schema); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	return nil
}

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ order.Store = (*Store)(nil)

// Store groups the repositories over a single pool.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store that uses the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Products returns a product repository outside of any transaction.
func (s *Store) Products() product.Repository {
	return &ProductRepository{db: s.pool}
}

// Orders returns an order repository outside of any transaction.
func (s *Store) Orders() order.Repository {
	return &OrderRepository{db: s.pool}
}

// Atomic runs fn in a transaction. Rows read by id through the repositories
// passed to fn are locked until commit, so concurrent reservations against
// the same product are serialized.
func (s *Store) Atomic(ctx context.Context, fn func(products product.Repository, orders order.Repository) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(
			&ProductRepository{db: tx, lock: true},
			&OrderRepository{db: tx, lock: true},
		)
	})
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Reset removes every order and product.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE orders, products`); err != nil {
		return errors.Wrap(err, "truncate")
	}
	return nil
}

// checkViolation reports whether err is a CHECK constraint failure.
func checkViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23514"
}
