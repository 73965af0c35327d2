package dto

import (
	"time"

	"escrow-marketplace/internal/core/domain"

	"github.com/shopspring/decimal"
)

// --- Wallet ---

// MovementRequest is the body of a deposit or withdrawal. Reference makes the
// call safe to retry.
type MovementRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Reference   string `json:"reference" binding:"required,max=100,safe_id"`
	Description string `json:"description" binding:"max=255"`
}

// WalletStatusRequest activates or deactivates a wallet.
type WalletStatusRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// WalletResponse is a wallet with both buckets.
type WalletResponse struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Balance     int64  `json:"balance"`
	HeldBalance int64  `json:"held_balance"`
	Total       int64  `json:"total"`
	Display     string `json:"display_balance"`
	IsActive    bool   `json:"is_active"`
}

// NewWalletResponse maps a wallet.
func NewWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		ID:          w.ID.String(),
		UserID:      w.UserID.String(),
		Balance:     w.Balance,
		HeldBalance: w.HeldBalance,
		Total:       w.Total(),
		Display:     domain.FormatAmount(w.Balance),
		IsActive:    w.IsActive,
	}
}

// TransactionResponse is one ledger entry.
type TransactionResponse struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Amount       int64  `json:"amount"`
	BalanceDelta int64  `json:"balance_delta"`
	HeldDelta    int64  `json:"held_delta"`
	Reference    string `json:"reference"`
	Description  string `json:"description"`
	CreatedAt    string `json:"created_at"`
}

// NewTransactionResponse maps a ledger entry.
func NewTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:           t.ID.String(),
		Type:         string(t.Type),
		Amount:       t.Amount,
		BalanceDelta: t.BalanceDelta,
		HeldDelta:    t.HeldDelta,
		Reference:    t.Reference,
		Description:  t.Description,
		CreatedAt:    t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// TransactionListResponse wraps paginated transaction list.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// --- Orders ---

// CheckoutRequest turns the caller's cart into an order.
type CheckoutRequest struct {
	DeliveryFee int64 `json:"delivery_fee" binding:"gte=0"`
}

// AdvanceOrderRequest moves an order one fulfilment step forward.
type AdvanceOrderRequest struct {
	Status string `json:"status" binding:"required,oneof=PROCESSING SHIPPED DELIVERED"`
}

// --- Auctions ---

// CreateAuctionRequest is the body of a new auction draft. Durations are seconds.
type CreateAuctionRequest struct {
	ProductID        string    `json:"product_id" binding:"required,uuid"`
	Quantity         int64     `json:"quantity" binding:"required,gt=0"`
	Title            string    `json:"title" binding:"required,min=3,max=200"`
	Description      string    `json:"description" binding:"max=5000"`
	StartPrice       int64     `json:"start_price" binding:"required,gt=0"`
	ReservePrice     *int64    `json:"reserve_price" binding:"omitempty,gt=0"`
	BuyNowPrice      *int64    `json:"buy_now_price" binding:"omitempty,gt=0"`
	MinIncrement     int64     `json:"min_increment" binding:"gte=0"`
	StartAt          time.Time `json:"start_at" binding:"required"`
	EndAt            time.Time `json:"end_at" binding:"required,gtfield=StartAt"`
	AntiSnipeSeconds int64     `json:"anti_snipe_seconds" binding:"gte=0,lte=3600"`
	ExtensionSeconds int64     `json:"extension_seconds" binding:"gte=0,lte=3600"`
}

// ReviewAuctionRequest approves or rejects a submitted auction.
type ReviewAuctionRequest struct {
	Approve *bool  `json:"approve" binding:"required"`
	Reason  string `json:"reason" binding:"max=500"`
}

// PlaceBidRequest is a bid in minor units.
type PlaceBidRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// --- Returns ---

// ReturnRequest asks to return units of one order item.
type ReturnRequest struct {
	OrderID     string `json:"order_id" binding:"required,uuid"`
	OrderItemID string `json:"order_item_id" binding:"required,uuid"`
	Quantity    int64  `json:"quantity" binding:"required,gt=0"`
	Reason      string `json:"reason" binding:"required,max=1000"`
}

// WholeOrderReturnRequest asks to return every remaining unit of an order.
type WholeOrderReturnRequest struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}

// ConditionQuantity is one inspected condition row.
type ConditionQuantity struct {
	Condition          string           `json:"condition" binding:"required,condition"`
	Quantity           int64            `json:"quantity" binding:"required,gt=0"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage"`
	Notes              string           `json:"notes" binding:"max=500"`
}

// InspectionRequest records the inspector's breakdown.
type InspectionRequest struct {
	Breakdown []ConditionQuantity `json:"breakdown" binding:"required,min=1,dive"`
	Notes     string              `json:"notes" binding:"max=2000"`
}

// ApproveReturnRequest settles a return. An empty breakdown reuses the
// recorded inspection.
type ApproveReturnRequest struct {
	Breakdown      []ConditionQuantity `json:"breakdown" binding:"omitempty,dive"`
	RefundOverride *int64              `json:"refund_override" binding:"omitempty,gte=0"`
	AdminNotes     string              `json:"admin_notes" binding:"max=2000"`
}

// RejectRequest carries a rejection reason.
type RejectRequest struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}

// ResaleDecisionRequest is the seller's call on an OPEN_BOX or USED unit.
type ResaleDecisionRequest struct {
	Approve *bool `json:"approve" binding:"required"`
}

// ToBreakdown converts request rows to a domain breakdown. Nil in, nil out.
func ToBreakdown(rows []ConditionQuantity) domain.Breakdown {
	if len(rows) == 0 {
		return nil
	}
	out := make(domain.Breakdown, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.ConditionQuantity{
			Condition:          domain.Condition(r.Condition),
			Quantity:           r.Quantity,
			DiscountPercentage: r.DiscountPercentage,
			Notes:              r.Notes,
		})
	}
	return out
}
