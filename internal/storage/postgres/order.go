package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/larek/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, payment, email, phone, address, total, items, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getOrderByIDSQL = `SELECT id, payment, email, phone, address, total, items, created_at
		FROM orders WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Items are stored as a text array in the order
// they were submitted.
func (r *OrderRepository) Create(ctx context.Context, rec *order.Record) error {
	o := rec.Order
	if _, err := r.pool.Exec(ctx, createOrderSQL,
		rec.ID, string(o.Payment), o.Email, o.Phone, o.Address, o.Total, o.Items, rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("creating order %q: %w", rec.ID, err)
	}
	return nil
}

// GetByID returns a stored order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Record, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	rec, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &rec, nil
}

func scanOrder(row pgx.CollectableRow) (order.Record, error) {
	var (
		rec     order.Record
		payment string
	)
	err := row.Scan(
		&rec.ID, &payment, &rec.Order.Email, &rec.Order.Phone, &rec.Order.Address,
		&rec.Order.Total, &rec.Order.Items, &rec.CreatedAt,
	)
	rec.Order.Payment = order.Payment(payment)
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, err
}
