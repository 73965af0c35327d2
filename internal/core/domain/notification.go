package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityKind is the closed set of things a notification can point at.
type EntityKind string

const (
	EntityOrder         EntityKind = "ORDER"
	EntityAuction       EntityKind = "AUCTION"
	EntityProduct       EntityKind = "PRODUCT"
	EntityReturnRequest EntityKind = "RETURN_REQUEST"
	EntityUser          EntityKind = "USER"
)

// EntityRef is a typed reference to the subject of a notification.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   uuid.UUID  `json:"id"`
}

func OrderRef(id uuid.UUID) EntityRef         { return EntityRef{Kind: EntityOrder, ID: id} }
func AuctionRef(id uuid.UUID) EntityRef       { return EntityRef{Kind: EntityAuction, ID: id} }
func ProductRef(id uuid.UUID) EntityRef       { return EntityRef{Kind: EntityProduct, ID: id} }
func ReturnRequestRef(id uuid.UUID) EntityRef { return EntityRef{Kind: EntityReturnRequest, ID: id} }
func UserRef(id uuid.UUID) EntityRef          { return EntityRef{Kind: EntityUser, ID: id} }

// NotificationType identifies the template of a notification.
type NotificationType string

const (
	NotifyOrderCreated         NotificationType = "order_created"
	NotifyOrderStatusChanged   NotificationType = "order_status_changed"
	NotifyOrderCompleted       NotificationType = "order_completed"
	NotifyOrderCancelled       NotificationType = "order_cancelled"
	NotifyOrderRefunded        NotificationType = "order_refunded"
	NotifySellerPayment        NotificationType = "seller_payment"
	NotifySellerVerified       NotificationType = "seller_verified"
	NotifyLowStock             NotificationType = "low_stock"
	NotifyAuctionSubmitted     NotificationType = "auction_submitted"
	NotifyAuctionApproved      NotificationType = "auction_approved"
	NotifyAuctionRejected      NotificationType = "auction_rejected"
	NotifyAuctionStarted       NotificationType = "auction_started"
	NotifyAuctionNewBid        NotificationType = "auction_new_bid"
	NotifyAuctionOutbid        NotificationType = "auction_outbid"
	NotifyAuctionWon           NotificationType = "auction_won"
	NotifyAuctionLost          NotificationType = "auction_lost"
	NotifyAuctionSold          NotificationType = "auction_sold"
	NotifyAuctionNoSale        NotificationType = "auction_ended_no_sale"
	NotifyAuctionBought        NotificationType = "auction_bought"
	NotifyAuctionSoldBuyNow    NotificationType = "auction_sold_buy_now"
	NotifyAuctionCancelled     NotificationType = "auction_cancelled"
	NotifyReturnRequested      NotificationType = "return_requested"
	NotifyReturnInspected      NotificationType = "return_inspected"
	NotifyReturnNeedsApproval  NotificationType = "return_needs_seller_approval"
	NotifyReturnApproved       NotificationType = "return_approved"
	NotifyReturnRejected       NotificationType = "return_rejected"
	NotifyReturnSellerPenalty  NotificationType = "return_seller_penalty"
	NotifyReturnResaleDecision NotificationType = "return_resale_decision"
)

// Notification is a bilingual message to one user, persisted with the
// business change that caused it.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Type      NotificationType `json:"type"`
	MessageEN string           `json:"message_en"`
	MessageAR string           `json:"message_ar"`
	Subject   EntityRef        `json:"subject"`
	ExtraData json.RawMessage  `json:"extra_data,omitempty"`
	IsRead    bool             `json:"is_read"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
