package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"escrow-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TokenService handles JWT token operations. Tokens are issued elsewhere;
// Generate exists for tooling and tests.
type TokenService interface {
	Generate(actor domain.Actor) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   domain.Role
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// EventPublisher delivers outbox events to one downstream channel.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.OutboxEvent) error
	Name() string
}

// AuctionFeed streams live auction events to watchers.
type AuctionFeed interface {
	// Subscribe returns a channel of raw event payloads for the auction and a
	// function that ends the subscription.
	Subscribe(ctx context.Context, auctionID uuid.UUID) (<-chan []byte, func(), error)
}

// --- Service Ports (Business Logic) ---

// SweepResult summarizes one run of a periodic entry point.
type SweepResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// WalletService exposes balance reads and client-initiated money movement.
type WalletService interface {
	Open(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	Deposit(ctx context.Context, req WalletMovementRequest) (*domain.Transaction, error)
	Withdraw(ctx context.Context, req WalletMovementRequest) (*domain.Transaction, error)
	GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, params TransactionListParams) ([]domain.Transaction, int64, error)
	SetActive(ctx context.Context, actor domain.Actor, userID uuid.UUID, active bool) (*domain.Wallet, error)
}

// WalletMovementRequest holds validated input for a deposit or withdrawal.
type WalletMovementRequest struct {
	UserID      uuid.UUID
	Amount      int64
	Reference   string // client reference, unique per user and operation
	Description string
}

// OrderService drives checkout and the order lifecycle.
type OrderService interface {
	Checkout(ctx context.Context, req CheckoutRequest) (*domain.Order, error)
	Complete(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	AutoComplete(ctx context.Context, limit int) (SweepResult, error)
	Cancel(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*RefundResult, error)
	RefundDelivered(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*RefundResult, error)
	AdvanceStatus(ctx context.Context, actor domain.Actor, orderID uuid.UUID, next domain.OrderStatus) (*domain.Order, error)
	AssignCourier(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*domain.Order, error)
	GetOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*domain.Order, error)
}

// CheckoutRequest holds validated input for checkout.
type CheckoutRequest struct {
	BuyerID     uuid.UUID
	DeliveryFee int64
}

// RefundResult describes how a cancelled or refunded order's escrow was split.
type RefundResult struct {
	Order       *domain.Order   `json:"order"`
	Refund      int64           `json:"refund"`
	Penalty     int64           `json:"penalty"`
	RetainedFee int64           `json:"retained_delivery_fee"`
	PenaltyRate decimal.Decimal `json:"penalty_rate"`
}

// AuctionService is the auction engine.
type AuctionService interface {
	Create(ctx context.Context, actor domain.Actor, req CreateAuctionRequest) (*domain.Auction, error)
	Submit(ctx context.Context, actor domain.Actor, auctionID uuid.UUID) (*domain.Auction, error)
	Review(ctx context.Context, actor domain.Actor, auctionID uuid.UUID, req ReviewAuctionRequest) (*domain.Auction, error)
	PlaceBid(ctx context.Context, actor domain.Actor, auctionID uuid.UUID, amount int64) (*BidResult, error)
	AdminClose(ctx context.Context, actor domain.Actor, auctionID uuid.UUID) (*CloseResult, error)
	BuyNow(ctx context.Context, actor domain.Actor, auctionID uuid.UUID) (*domain.Order, error)
	Cancel(ctx context.Context, actor domain.Actor, auctionID uuid.UUID) (*domain.Auction, error)
	ActivateIfDue(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, bool, error)
	ActivateDue(ctx context.Context, limit int) (SweepResult, error)
	CloseDue(ctx context.Context, limit int) (SweepResult, error)
	Get(ctx context.Context, auctionID uuid.UUID) (*AuctionView, error)
}

// CreateAuctionRequest holds validated input for a new auction. Zero values
// for MinIncrement, AntiSnipeWindow and Extension take configured defaults.
type CreateAuctionRequest struct {
	ProductID       uuid.UUID
	Quantity        int64
	Title           string
	Description     string
	StartPrice      int64
	ReservePrice    *int64
	BuyNowPrice     *int64
	MinIncrement    int64
	StartAt         time.Time
	EndAt           time.Time
	AntiSnipeWindow time.Duration
	Extension       time.Duration
}

// ReviewAuctionRequest approves or rejects a submitted auction.
type ReviewAuctionRequest struct {
	Approve bool
	Reason  string
}

// BidResult is the outcome of an accepted bid.
type BidResult struct {
	Bid      domain.Bid      `json:"bid"`
	Auction  *domain.Auction `json:"auction"`
	Held     int64           `json:"held"`
	Extended bool            `json:"extended"`
}

// CloseResult is the outcome of closing an auction.
type CloseResult struct {
	Auction *domain.Auction `json:"auction"`
	Winner  *domain.Bid     `json:"winner,omitempty"`
	Order   *domain.Order   `json:"order,omitempty"`
}

// AuctionView is an auction with its ordered bids.
type AuctionView struct {
	Auction *domain.Auction `json:"auction"`
	Bids    []domain.Bid    `json:"bids"`
	Leader  *domain.Bid     `json:"leader,omitempty"`
	MinNext int64           `json:"min_next_bid"`
}

// ReturnService settles returns by inspected condition.
type ReturnService interface {
	Request(ctx context.Context, actor domain.Actor, req ReturnRequestInput) (*domain.ReturnRequest, error)
	RequestWholeOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID, reason string) ([]domain.ReturnRequest, error)
	RecordInspection(ctx context.Context, actor domain.Actor, requestID uuid.UUID, req InspectionInput) (*domain.ReturnRequest, error)
	Approve(ctx context.Context, actor domain.Actor, requestID uuid.UUID, req ApproveReturnInput) (*ReturnSettlement, error)
	Reject(ctx context.Context, actor domain.Actor, requestID uuid.UUID, reason string) (*domain.ReturnRequest, error)
	DecideReturnedProduct(ctx context.Context, actor domain.Actor, returnedProductID uuid.UUID, approve bool) (*domain.ReturnedProduct, error)
	Get(ctx context.Context, actor domain.Actor, requestID uuid.UUID) (*domain.ReturnRequest, []domain.ReturnedProduct, error)
}

// ReturnRequestInput holds validated input for a buyer's return.
type ReturnRequestInput struct {
	OrderID     uuid.UUID
	OrderItemID uuid.UUID
	Quantity    int64
	Reason      string
}

// InspectionInput is the inspector's per-condition breakdown.
type InspectionInput struct {
	Breakdown domain.Breakdown
	Notes     string
}

// ApproveReturnInput finalizes a return. A nil Breakdown reuses the recorded
// inspection; a nil RefundOverride pays unit price × quantity.
type ApproveReturnInput struct {
	Breakdown      domain.Breakdown
	RefundOverride *int64
	AdminNotes     string
}

// ReturnSettlement is the outcome of an approved return.
type ReturnSettlement struct {
	Request       *domain.ReturnRequest    `json:"request"`
	Products      []domain.ReturnedProduct `json:"returned_products"`
	Refund        int64                    `json:"refund"`
	Restocked     int64                    `json:"restocked"`
	PenaltyPoints int64                    `json:"penalty_points"`
}

// CatalogService runs catalog maintenance owned by the core.
type CatalogService interface {
	ExpireSales(ctx context.Context) (int64, error)
}

// NotificationService reads a user's inbox.
type NotificationService interface {
	List(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error)
}

// AuditService records privileged actions without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry domain.AuditLog)
}
