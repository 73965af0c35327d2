package postgres

import (
	"context"
	"errors"
	"fmt"

	"escrow-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const returnColumns = `id, order_id, order_item_id, buyer_id, reason, quantity, status, inspection,
	inspection_notes, admin_notes, rejection_reason, condition, refund_amount, penalty_points,
	inspected_by, processed_by, processed_at, created_at, updated_at`

const returnedProductColumns = `id, return_request_id, product_id, seller_id, condition, quantity,
	discount_percentage, is_sellable, seller_approval, notes, created_at, updated_at`

// ReturnRepo implements ports.ReturnRepository.
type ReturnRepo struct {
	pool Pool
}

// NewReturnRepo creates a new ReturnRepo.
func NewReturnRepo(pool Pool) *ReturnRepo {
	return &ReturnRepo{pool: pool}
}

func (r *ReturnRepo) Create(ctx context.Context, tx pgx.Tx, req *domain.ReturnRequest) error {
	query := `INSERT INTO return_requests (` + returnColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := on(r.pool, tx).Exec(ctx, query,
		req.ID, req.OrderID, req.OrderItemID, req.BuyerID, req.Reason, req.Quantity, string(req.Status), breakdownArg(req.Inspection),
		req.InspectionNotes, req.AdminNotes, req.RejectionReason, req.Condition, req.RefundAmount, req.PenaltyPoints,
		req.InspectedBy, req.ProcessedBy, req.ProcessedAt, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return mapErr("insert return request", err)
	}
	return nil
}

func (r *ReturnRepo) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ReturnRequest, error) {
	return r.get(ctx, on(r.pool, tx), id, "")
}

// GetForUpdate locks the request row.
// This MUST be called within a transaction.
func (r *ReturnRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ReturnRequest, error) {
	return r.get(ctx, tx, id, " FOR UPDATE")
}

func (r *ReturnRepo) get(ctx context.Context, q querier, id uuid.UUID, lock string) (*domain.ReturnRequest, error) {
	query := `SELECT ` + returnColumns + ` FROM return_requests WHERE id = $1` + lock

	req := &domain.ReturnRequest{}
	err := q.QueryRow(ctx, query, id).Scan(
		&req.ID, &req.OrderID, &req.OrderItemID, &req.BuyerID, &req.Reason, &req.Quantity, &req.Status, &req.Inspection,
		&req.InspectionNotes, &req.AdminNotes, &req.RejectionReason, &req.Condition, &req.RefundAmount, &req.PenaltyPoints,
		&req.InspectedBy, &req.ProcessedBy, &req.ProcessedAt, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get return request by id: %w", err)
	}
	return req, nil
}

func (r *ReturnRepo) Update(ctx context.Context, tx pgx.Tx, req *domain.ReturnRequest) error {
	query := `UPDATE return_requests SET status = $1, inspection = $2, inspection_notes = $3, admin_notes = $4,
		rejection_reason = $5, condition = $6, refund_amount = $7, penalty_points = $8,
		inspected_by = $9, processed_by = $10, processed_at = $11, updated_at = $12
		WHERE id = $13`

	tag, err := on(r.pool, tx).Exec(ctx, query,
		string(req.Status), breakdownArg(req.Inspection), req.InspectionNotes, req.AdminNotes,
		req.RejectionReason, req.Condition, req.RefundAmount, req.PenaltyPoints,
		req.InspectedBy, req.ProcessedBy, req.ProcessedAt, req.UpdatedAt,
		req.ID,
	)
	if err != nil {
		return fmt.Errorf("update return request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("return request %s not found", req.ID)
	}
	return nil
}

// SumRequestedQuantity totals the quantity of every non-rejected request
// against an order item.
func (r *ReturnRepo) SumRequestedQuantity(ctx context.Context, tx pgx.Tx, orderItemID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(quantity), 0) FROM return_requests
		WHERE order_item_id = $1 AND status <> $2`

	var sum int64
	err := on(r.pool, tx).QueryRow(ctx, query, orderItemID, string(domain.ReturnStatusRejected)).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum requested quantity: %w", err)
	}
	return sum, nil
}

// CountOpenForOrder counts requests still awaiting a decision.
func (r *ReturnRepo) CountOpenForOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM return_requests WHERE order_id = $1 AND status IN ($2, $3)`

	var n int64
	err := on(r.pool, tx).QueryRow(ctx, query, orderID,
		string(domain.ReturnStatusRequested), string(domain.ReturnStatusUnderInspection),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open returns: %w", err)
	}
	return n, nil
}

func (r *ReturnRepo) CreateReturnedProduct(ctx context.Context, tx pgx.Tx, rp *domain.ReturnedProduct) error {
	query := `INSERT INTO returned_products (` + returnedProductColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := on(r.pool, tx).Exec(ctx, query,
		rp.ID, rp.ReturnRequestID, rp.ProductID, rp.SellerID, string(rp.Condition), rp.Quantity,
		rp.DiscountPercentage, rp.IsSellable, string(rp.SellerApproval), rp.Notes, rp.CreatedAt, rp.UpdatedAt,
	)
	if err != nil {
		return mapErr("insert returned product", err)
	}
	return nil
}

func (r *ReturnRepo) ListReturnedProducts(ctx context.Context, tx pgx.Tx, requestID uuid.UUID) ([]domain.ReturnedProduct, error) {
	query := `SELECT ` + returnedProductColumns + ` FROM returned_products
		WHERE return_request_id = $1 ORDER BY condition`

	rows, err := on(r.pool, tx).Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("list returned products: %w", err)
	}
	defer rows.Close()

	var out []domain.ReturnedProduct
	for rows.Next() {
		rp, err := scanReturnedProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan returned product: %w", err)
		}
		out = append(out, *rp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate returned products: %w", err)
	}
	return out, nil
}

// GetReturnedProductForUpdate locks a returned product awaiting a seller
// decision. This MUST be called within a transaction.
func (r *ReturnRepo) GetReturnedProductForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ReturnedProduct, error) {
	query := `SELECT ` + returnedProductColumns + ` FROM returned_products WHERE id = $1 FOR UPDATE`

	rp, err := scanReturnedProduct(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get returned product: %w", err)
	}
	return rp, nil
}

func (r *ReturnRepo) UpdateReturnedProduct(ctx context.Context, tx pgx.Tx, rp *domain.ReturnedProduct) error {
	query := `UPDATE returned_products SET is_sellable = $1, seller_approval = $2, updated_at = $3 WHERE id = $4`

	tag, err := on(r.pool, tx).Exec(ctx, query, rp.IsSellable, string(rp.SellerApproval), rp.UpdatedAt, rp.ID)
	if err != nil {
		return fmt.Errorf("update returned product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("returned product %s not found", rp.ID)
	}
	return nil
}

func scanReturnedProduct(row pgx.Row) (*domain.ReturnedProduct, error) {
	rp := &domain.ReturnedProduct{}
	err := row.Scan(
		&rp.ID, &rp.ReturnRequestID, &rp.ProductID, &rp.SellerID, &rp.Condition, &rp.Quantity,
		&rp.DiscountPercentage, &rp.IsSellable, &rp.SellerApproval, &rp.Notes, &rp.CreatedAt, &rp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rp, nil
}

// breakdownArg stores an absent inspection as SQL NULL rather than JSON null.
func breakdownArg(b domain.Breakdown) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
