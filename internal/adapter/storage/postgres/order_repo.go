package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"escrow-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, number, buyer_id, total_amount, delivery_fee, status, escrow_mode, auction_id,
	shipping, assigned_courier_id, assigned_at, created_at, updated_at, delivered_at, completed_at, cancelled_at`

const orderItemColumns = `id, order_id, product_id, seller_id, quantity, unit_price, line_total, refunded_amount`

// OrderRepo implements ports.OrderRepository. Items are written with the
// order and only their refunded amount changes afterwards.
type OrderRepo struct {
	pool Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

// Create inserts the order header and all of its items.
func (r *OrderRepo) Create(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	q := on(r.pool, tx)
	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := q.Exec(ctx, query,
		o.ID, o.Number, o.BuyerID, o.TotalAmount, o.DeliveryFee, string(o.Status), string(o.EscrowMode), o.AuctionID,
		o.Shipping, o.AssignedCourierID, o.AssignedAt, o.CreatedAt, o.UpdatedAt, o.DeliveredAt, o.CompletedAt, o.CancelledAt,
	)
	if err != nil {
		return mapErr("insert order", err)
	}

	itemQuery := `INSERT INTO order_items (` + orderItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, it := range o.Items {
		_, err := q.Exec(ctx, itemQuery,
			it.ID, it.OrderID, it.ProductID, it.SellerID,
			it.Quantity, it.UnitPrice, it.LineTotal, it.RefundedAmount,
		)
		if err != nil {
			return mapErr("insert order item", err)
		}
	}
	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	return r.get(ctx, on(r.pool, tx), id, "")
}

// GetForUpdate locks the order row. Items are read under the same lock.
// This MUST be called within a transaction.
func (r *OrderRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	return r.get(ctx, tx, id, " FOR UPDATE")
}

func (r *OrderRepo) get(ctx context.Context, q querier, id uuid.UUID, lock string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1` + lock

	o := &domain.Order{}
	err := q.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.Number, &o.BuyerID, &o.TotalAmount, &o.DeliveryFee, &o.Status, &o.EscrowMode, &o.AuctionID,
		&o.Shipping, &o.AssignedCourierID, &o.AssignedAt, &o.CreatedAt, &o.UpdatedAt, &o.DeliveredAt, &o.CompletedAt, &o.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}

	items, err := r.listItems(ctx, q, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (r *OrderRepo) listItems(ctx context.Context, q querier, orderID uuid.UUID) ([]domain.OrderItem, error) {
	query := `SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY id`

	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.SellerID,
			&it.Quantity, &it.UnitPrice, &it.LineTotal, &it.RefundedAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

// Update writes the mutable header fields of an order.
func (r *OrderRepo) Update(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	query := `UPDATE orders SET status = $1, assigned_courier_id = $2, assigned_at = $3, updated_at = $4,
		delivered_at = $5, completed_at = $6, cancelled_at = $7
		WHERE id = $8`

	tag, err := on(r.pool, tx).Exec(ctx, query,
		string(o.Status), o.AssignedCourierID, o.AssignedAt, o.UpdatedAt,
		o.DeliveredAt, o.CompletedAt, o.CancelledAt, o.ID,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s not found", o.ID)
	}
	return nil
}

func (r *OrderRepo) UpdateItemRefund(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, refunded int64) error {
	query := `UPDATE order_items SET refunded_amount = $1 WHERE id = $2`

	tag, err := on(r.pool, tx).Exec(ctx, query, refunded, itemID)
	if err != nil {
		return fmt.Errorf("update item refund: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order item %s not found", itemID)
	}
	return nil
}

// ListDueForCompletion returns delivered orders whose delivery happened at or
// before deliveredBefore, oldest first.
func (r *OrderRepo) ListDueForCompletion(ctx context.Context, deliveredBefore time.Time, limit int) ([]uuid.UUID, error) {
	query := `SELECT id FROM orders
		WHERE status = $1 AND delivered_at <= $2
		ORDER BY delivered_at LIMIT NULLIF($3, 0)`

	return collectIDs(ctx, r.pool, "list orders due for completion", query,
		string(domain.OrderStatusDelivered), deliveredBefore, limit)
}

func collectIDs(ctx context.Context, q querier, op, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}
