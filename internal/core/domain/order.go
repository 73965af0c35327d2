package domain

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the order lifecycle state.
type OrderStatus string

const (
	OrderStatusCreated    OrderStatus = "CREATED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

// IsTerminal returns true if no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled || s == OrderStatusRefunded
}

// nextFulfilmentStatus is the forward path driven by sellers and couriers.
var nextFulfilmentStatus = map[OrderStatus]OrderStatus{
	OrderStatusCreated:    OrderStatusProcessing,
	OrderStatusProcessing: OrderStatusShipped,
	OrderStatusShipped:    OrderStatusDelivered,
}

// CanAdvanceTo reports whether next is the single allowed fulfilment step after s.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	want, ok := nextFulfilmentStatus[s]
	return ok && want == next
}

// EscrowMode says which wallet holds an order's money until settlement.
type EscrowMode string

const (
	// EscrowBuyerWallet: the total sits in the buyer's held bucket.
	EscrowBuyerWallet EscrowMode = "BUYER_WALLET"
	// EscrowPlatformWallet: the total was captured into the platform's held bucket.
	EscrowPlatformWallet EscrowMode = "PLATFORM_WALLET"
)

// Order is the root aggregate for a purchase.
type Order struct {
	ID                uuid.UUID        `json:"id"`
	Number            string           `json:"number"`
	BuyerID           uuid.UUID        `json:"buyer_id"`
	TotalAmount       int64            `json:"total_amount"`
	DeliveryFee       int64            `json:"delivery_fee"`
	Status            OrderStatus      `json:"status"`
	EscrowMode        EscrowMode       `json:"escrow_mode"`
	AuctionID         *uuid.UUID       `json:"auction_id,omitempty"`
	Shipping          ShippingLocation `json:"shipping"`
	AssignedCourierID *uuid.UUID       `json:"assigned_courier_id,omitempty"`
	AssignedAt        *time.Time       `json:"assigned_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	DeliveredAt       *time.Time       `json:"delivered_at,omitempty"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
	CancelledAt       *time.Time       `json:"cancelled_at,omitempty"`
	Items             []OrderItem      `json:"items"`
}

// OrderItem is a frozen product snapshot inside an order.
type OrderItem struct {
	ID             uuid.UUID `json:"id"`
	OrderID        uuid.UUID `json:"order_id"`
	ProductID      uuid.UUID `json:"product_id"`
	SellerID       uuid.UUID `json:"seller_id"`
	Quantity       int64     `json:"quantity"`
	UnitPrice      int64     `json:"unit_price"`
	LineTotal      int64     `json:"line_total"`
	RefundedAmount int64     `json:"refunded_amount"`
}

// NewOrderItem prices a line at quantity × unit price.
func NewOrderItem(orderID, productID, sellerID uuid.UUID, quantity, unitPrice int64) OrderItem {
	return OrderItem{
		ID:        uuid.New(),
		OrderID:   orderID,
		ProductID: productID,
		SellerID:  sellerID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		LineTotal: quantity * unitPrice,
	}
}

// NewLotItem prices a line by its total, as auctions sell a lot for one amount.
// UnitPrice is the per-unit share, truncated.
func NewLotItem(orderID, productID, sellerID uuid.UUID, quantity, lotPrice int64) OrderItem {
	item := NewOrderItem(orderID, productID, sellerID, quantity, lotPrice/quantity)
	item.LineTotal = lotPrice
	return item
}

// Escrowed is the part of the line total still held for the seller.
func (i *OrderItem) Escrowed() int64 {
	return i.LineTotal - i.RefundedAmount
}

// NewOrderNumber returns "ORD-YYYYMMDD-XXXXXX" with six upper-case hex characters.
func NewOrderNumber(now time.Time) string {
	id := uuid.New()
	return "ORD-" + now.UTC().Format("20060102") + "-" + strings.ToUpper(hex.EncodeToString(id[:3]))
}

// Item returns the order item with id, or nil.
func (o *Order) Item(id uuid.UUID) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i]
		}
	}
	return nil
}

// RefundedAmount sums refunds already paid out of this order's escrow.
func (o *Order) RefundedAmount() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.RefundedAmount
	}
	return total
}

// EscrowRemaining is what is still held for this order.
func (o *Order) EscrowRemaining() int64 {
	return o.TotalAmount - o.RefundedAmount()
}

// SellerGross is the escrowed line total per seller.
type SellerGross struct {
	SellerID uuid.UUID
	Gross    int64
}

// GrossBySeller groups escrowed line totals by seller, in first-seen order.
func (o *Order) GrossBySeller() []SellerGross {
	var out []SellerGross
	index := make(map[uuid.UUID]int)
	for _, it := range o.Items {
		i, ok := index[it.SellerID]
		if !ok {
			index[it.SellerID] = len(out)
			out = append(out, SellerGross{SellerID: it.SellerID})
			i = len(out) - 1
		}
		out[i].Gross += it.Escrowed()
	}
	return out
}

// HasSeller reports whether any item in the order is sold by sellerID.
func (o *Order) HasSeller(sellerID uuid.UUID) bool {
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			return true
		}
	}
	return false
}

// DisputeDeadline is the end of the dispute window, or zero if not delivered.
func (o *Order) DisputeDeadline(window time.Duration) time.Time {
	if o.DeliveredAt == nil {
		return time.Time{}
	}
	return o.DeliveredAt.Add(window)
}

// InDisputeWindow reports whether now is before the dispute deadline.
func (o *Order) InDisputeWindow(now time.Time, window time.Duration) bool {
	return o.DeliveredAt != nil && now.Before(o.DisputeDeadline(window))
}

// Cancellable reports whether the buyer may still cancel.
func (o *Order) Cancellable() bool {
	switch o.Status {
	case OrderStatusCreated, OrderStatusProcessing, OrderStatusShipped:
		return true
	}
	return false
}

var (
	cancelPenaltyUnderDay = decimal.RequireFromString("0.10")
	cancelPenaltyLate     = decimal.RequireFromString("0.15")
)

// CancellationPenaltyRate is tiered by time since the order was created:
// nothing within the first hour, 10% within the first day, 15% after that.
func CancellationPenaltyRate(elapsed time.Duration) decimal.Decimal {
	switch {
	case elapsed < time.Hour:
		return decimal.Zero
	case elapsed < 24*time.Hour:
		return cancelPenaltyUnderDay
	default:
		return cancelPenaltyLate
	}
}

// RefundSplit divides an amount into the buyer's refund and the retained penalty.
// The penalty is round(base × rate); the refund is the remainder, so both sum to base.
func RefundSplit(base int64, rate decimal.Decimal) (refund, penalty int64) {
	penalty = ApplyRate(base, rate)
	return base - penalty, penalty
}
