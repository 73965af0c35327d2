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

const productColumns = `id, seller_id, name_en, name_ar, price, sale_price, sale_ends_at, stock, updated_at`

// ProductRepo implements ports.ProductRepository.
type ProductRepo struct {
	pool Pool
}

// NewProductRepo creates a new ProductRepo.
func NewProductRepo(pool Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

func (r *ProductRepo) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(on(r.pool, tx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return p, nil
}

// GetManyForUpdate locks the given products in id order.
// This MUST be called within a transaction.
func (r *ProductRepo) GetManyForUpdate(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
		WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	rows, err := tx.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]*domain.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return out, nil
}

func (r *ProductRepo) UpdateStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, stock int64) error {
	query := `UPDATE products SET stock = $1, updated_at = $2 WHERE id = $3`

	tag, err := on(r.pool, tx).Exec(ctx, query, stock, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s not found", id)
	}
	return nil
}

// ClearExpiredSales drops sale prices whose end has passed.
func (r *ProductRepo) ClearExpiredSales(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE products SET sale_price = NULL, sale_ends_at = NULL, updated_at = $1
		WHERE sale_price IS NOT NULL AND sale_ends_at IS NOT NULL AND sale_ends_at <= $1`

	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("clear expired sales: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID, &p.SellerID, &p.NameEN, &p.NameAR, &p.Price,
		&p.SalePrice, &p.SaleEndsAt, &p.Stock, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CartRepo implements ports.CartRepository.
type CartRepo struct {
	pool Pool
}

// NewCartRepo creates a new CartRepo.
func NewCartRepo(pool Pool) *CartRepo {
	return &CartRepo{pool: pool}
}

func (r *CartRepo) ListLines(ctx context.Context, tx pgx.Tx, buyerID uuid.UUID) ([]domain.CartLine, error) {
	query := `SELECT buyer_id, product_id, quantity FROM cart_lines
		WHERE buyer_id = $1 ORDER BY product_id`

	rows, err := on(r.pool, tx).Query(ctx, query, buyerID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.BuyerID, &l.ProductID, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart lines: %w", err)
	}
	return lines, nil
}

func (r *CartRepo) Clear(ctx context.Context, tx pgx.Tx, buyerID uuid.UUID) error {
	if _, err := on(r.pool, tx).Exec(ctx, `DELETE FROM cart_lines WHERE buyer_id = $1`, buyerID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// ClampToStock lowers every cart line for a product to the remaining stock,
// removing the lines once the product is sold out. It returns the number of
// lines touched.
func (r *CartRepo) ClampToStock(ctx context.Context, tx pgx.Tx, productID uuid.UUID, stock int64) (int64, error) {
	q := on(r.pool, tx)
	if stock <= 0 {
		tag, err := q.Exec(ctx, `DELETE FROM cart_lines WHERE product_id = $1`, productID)
		if err != nil {
			return 0, fmt.Errorf("remove sold out cart lines: %w", err)
		}
		return tag.RowsAffected(), nil
	}

	tag, err := q.Exec(ctx,
		`UPDATE cart_lines SET quantity = $2 WHERE product_id = $1 AND quantity > $2`,
		productID, stock,
	)
	if err != nil {
		return 0, fmt.Errorf("clamp cart lines: %w", err)
	}
	return tag.RowsAffected(), nil
}
