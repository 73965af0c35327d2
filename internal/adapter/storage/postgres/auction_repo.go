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

const auctionColumns = `id, seller_id, product_id, quantity, title, description, start_price, reserve_price,
	buy_now_price, min_increment, start_at, end_at, anti_snipe_seconds, extension_seconds, status,
	rejection_reason, approved_at, approved_by, cancelled_at, cancelled_by, ended_at, winner_id, order_id,
	created_at, updated_at`

// AuctionRepo implements ports.AuctionRepository.
type AuctionRepo struct {
	pool Pool
}

// NewAuctionRepo creates a new AuctionRepo.
func NewAuctionRepo(pool Pool) *AuctionRepo {
	return &AuctionRepo{pool: pool}
}

func (r *AuctionRepo) Create(ctx context.Context, tx pgx.Tx, a *domain.Auction) error {
	query := `INSERT INTO auctions (` + auctionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`

	_, err := on(r.pool, tx).Exec(ctx, query,
		a.ID, a.SellerID, a.ProductID, a.Quantity, a.Title, a.Description, a.StartPrice, a.ReservePrice,
		a.BuyNowPrice, a.MinIncrement, a.StartAt, a.EndAt, seconds(a.AntiSnipeWindow), seconds(a.Extension), string(a.Status),
		a.RejectionReason, a.ApprovedAt, a.ApprovedBy, a.CancelledAt, a.CancelledBy, a.EndedAt, a.WinnerID, a.OrderID,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return mapErr("insert auction", err)
	}
	return nil
}

func (r *AuctionRepo) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Auction, error) {
	return r.get(ctx, on(r.pool, tx), id, "")
}

// GetForUpdate locks the auction row; bids are serialized behind it.
// This MUST be called within a transaction.
func (r *AuctionRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Auction, error) {
	return r.get(ctx, tx, id, " FOR UPDATE")
}

func (r *AuctionRepo) get(ctx context.Context, q querier, id uuid.UUID, lock string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1` + lock

	a := &domain.Auction{}
	var antiSnipe, extension int64
	err := q.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.SellerID, &a.ProductID, &a.Quantity, &a.Title, &a.Description, &a.StartPrice, &a.ReservePrice,
		&a.BuyNowPrice, &a.MinIncrement, &a.StartAt, &a.EndAt, &antiSnipe, &extension, &a.Status,
		&a.RejectionReason, &a.ApprovedAt, &a.ApprovedBy, &a.CancelledAt, &a.CancelledBy, &a.EndedAt, &a.WinnerID, &a.OrderID,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get auction by id: %w", err)
	}
	a.AntiSnipeWindow = time.Duration(antiSnipe) * time.Second
	a.Extension = time.Duration(extension) * time.Second
	return a, nil
}

// Update writes every mutable auction field.
func (r *AuctionRepo) Update(ctx context.Context, tx pgx.Tx, a *domain.Auction) error {
	query := `UPDATE auctions SET end_at = $1, status = $2, rejection_reason = $3, approved_at = $4, approved_by = $5,
		cancelled_at = $6, cancelled_by = $7, ended_at = $8, winner_id = $9, order_id = $10, updated_at = $11
		WHERE id = $12`

	tag, err := on(r.pool, tx).Exec(ctx, query,
		a.EndAt, string(a.Status), a.RejectionReason, a.ApprovedAt, a.ApprovedBy,
		a.CancelledAt, a.CancelledBy, a.EndedAt, a.WinnerID, a.OrderID, a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("update auction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("auction %s not found", a.ID)
	}
	return nil
}

// ListBids returns an auction's bids, highest first; equal amounts are
// ordered newest first, matching domain.SortBids.
func (r *AuctionRepo) ListBids(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) ([]domain.Bid, error) {
	query := `SELECT id, auction_id, bidder_id, amount, created_at FROM bids
		WHERE auction_id = $1 ORDER BY amount DESC, created_at DESC`

	rows, err := on(r.pool, tx).Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()

	var bids []domain.Bid
	for rows.Next() {
		var b domain.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.Amount, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bids: %w", err)
	}
	return bids, nil
}

func (r *AuctionRepo) CreateBid(ctx context.Context, tx pgx.Tx, b *domain.Bid) error {
	query := `INSERT INTO bids (id, auction_id, bidder_id, amount, created_at) VALUES ($1, $2, $3, $4, $5)`

	if _, err := on(r.pool, tx).Exec(ctx, query, b.ID, b.AuctionID, b.BidderID, b.Amount, b.CreatedAt); err != nil {
		return mapErr("insert bid", err)
	}
	return nil
}

// ListDueForActivation returns approved auctions whose start has arrived.
func (r *AuctionRepo) ListDueForActivation(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `SELECT id FROM auctions WHERE status = $1 AND start_at <= $2 ORDER BY id LIMIT NULLIF($3, 0)`
	return collectIDs(ctx, r.pool, "list auctions due for activation", query,
		string(domain.AuctionStatusApproved), now, limit)
}

// ListDueForClosing returns active auctions whose end has passed.
func (r *AuctionRepo) ListDueForClosing(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `SELECT id FROM auctions WHERE status = $1 AND end_at <= $2 ORDER BY id LIMIT NULLIF($3, 0)`
	return collectIDs(ctx, r.pool, "list auctions due for closing", query,
		string(domain.AuctionStatusActive), now, limit)
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
