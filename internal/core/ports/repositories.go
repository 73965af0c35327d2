package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"escrow-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Methods accepting pgx.Tx run inside the caller's transaction; the *ForUpdate
// variants take pessimistic row locks. A nil tx reads outside any transaction.
// Lookups return (nil, nil) when the row does not exist.

// ErrDuplicateKey is returned by Create methods when a unique key already exists.
var ErrDuplicateKey = errors.New("duplicate key")

// WalletRepository defines persistence operations for wallets.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	// GetByUserIDsForUpdate locks every listed user's wallet in ascending
	// wallet id order and returns them keyed by user id.
	GetByUserIDsForUpdate(ctx context.Context, tx pgx.Tx, userIDs []uuid.UUID) (map[uuid.UUID]*domain.Wallet, error)
	UpdateBalances(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	SetActive(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, active bool) error
}

// TransactionRepository is the append-only ledger.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByReference(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, txType domain.TransactionType, reference string) (*domain.Transaction, error)
	// SumHeldByPrefix returns the net held delta of a wallet's entries whose
	// reference starts with prefix.
	SumHeldByPrefix(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, prefix string) (int64, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// TransactionListParams holds filter + pagination for listing ledger entries.
type TransactionListParams struct {
	WalletID uuid.UUID
	Type     *domain.TransactionType
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// UserRepository reads profiles and adjusts loyalty points.
type UserRepository interface {
	GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error)
	// AdjustPoints adds delta (which may be negative) and floors the result at zero.
	AdjustPoints(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64) (domain.PointsChange, error)
	// MarkVerifiedSeller sets the verified flag and reports whether it was unset before.
	MarkVerifiedSeller(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
}

// ProductRepository moves stock.
type ProductRepository interface {
	GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Product, error)
	// GetManyForUpdate locks the listed products in ascending id order.
	GetManyForUpdate(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error)
	UpdateStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, stock int64) error
	ClearExpiredSales(ctx context.Context, now time.Time) (int64, error)
}

// CartRepository reads and reconciles buyer carts.
type CartRepository interface {
	ListLines(ctx context.Context, tx pgx.Tx, buyerID uuid.UUID) ([]domain.CartLine, error)
	Clear(ctx context.Context, tx pgx.Tx, buyerID uuid.UUID) error
	// ClampToStock lowers every cart line of the product to at most stock and
	// removes lines that drop to zero. Returns the number of lines touched.
	ClampToStock(ctx context.Context, tx pgx.Tx, productID uuid.UUID, stock int64) (int64, error)
}

// OrderRepository persists orders with their items.
type OrderRepository interface {
	Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error)
	Update(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	UpdateItemRefund(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, refunded int64) error
	ListDueForCompletion(ctx context.Context, deliveredBefore time.Time, limit int) ([]uuid.UUID, error)
}

// AuctionRepository persists auctions and their bids.
type AuctionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, auction *domain.Auction) error
	GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Auction, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Auction, error)
	Update(ctx context.Context, tx pgx.Tx, auction *domain.Auction) error
	// ListBids returns bids ordered by amount descending, then newest first.
	ListBids(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) ([]domain.Bid, error)
	CreateBid(ctx context.Context, tx pgx.Tx, bid *domain.Bid) error
	ListDueForActivation(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ListDueForClosing(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// ReturnRepository persists return requests and returned products.
type ReturnRepository interface {
	Create(ctx context.Context, tx pgx.Tx, req *domain.ReturnRequest) error
	GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ReturnRequest, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ReturnRequest, error)
	Update(ctx context.Context, tx pgx.Tx, req *domain.ReturnRequest) error
	// SumRequestedQuantity counts units already claimed by non-rejected requests on the item.
	SumRequestedQuantity(ctx context.Context, tx pgx.Tx, orderItemID uuid.UUID) (int64, error)
	CountOpenForOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (int64, error)
	CreateReturnedProduct(ctx context.Context, tx pgx.Tx, rp *domain.ReturnedProduct) error
	ListReturnedProducts(ctx context.Context, tx pgx.Tx, requestID uuid.UUID) ([]domain.ReturnedProduct, error)
	GetReturnedProductForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ReturnedProduct, error)
	UpdateReturnedProduct(ctx context.Context, tx pgx.Tx, rp *domain.ReturnedProduct) error
}

// NotificationRepository stores user notifications.
type NotificationRepository interface {
	Create(ctx context.Context, tx pgx.Tx, n *domain.Notification) error
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error)
}

// OutboxRepository stores events until the relay publishes them.
type OutboxRepository interface {
	Append(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error
	// ClaimPending locks up to limit unpublished events, skipping rows locked by other relays.
	ClaimPending(ctx context.Context, tx pgx.Tx, limit, maxAttempts int) ([]domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string) error
}

// AuditRepository stores audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
