package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// AuctionStatus is the auction lifecycle state.
type AuctionStatus string

const (
	AuctionStatusDraft     AuctionStatus = "DRAFT"
	AuctionStatusSubmitted AuctionStatus = "SUBMITTED"
	AuctionStatusApproved  AuctionStatus = "APPROVED"
	AuctionStatusRejected  AuctionStatus = "REJECTED"
	AuctionStatusActive    AuctionStatus = "ACTIVE"
	AuctionStatusEnded     AuctionStatus = "ENDED"
	AuctionStatusCancelled AuctionStatus = "CANCELLED"
)

// IsTerminal returns true for ENDED, REJECTED and CANCELLED.
func (s AuctionStatus) IsTerminal() bool {
	return s == AuctionStatusEnded || s == AuctionStatusRejected || s == AuctionStatusCancelled
}

const (
	MinAuctionDuration = 2 * time.Hour
	MaxAuctionDuration = 14 * 24 * time.Hour
)

// Auction is the root aggregate for a timed sale. Prices are minor units.
type Auction struct {
	ID              uuid.UUID     `json:"id"`
	SellerID        uuid.UUID     `json:"seller_id"`
	ProductID       uuid.UUID     `json:"product_id"`
	Quantity        int64         `json:"quantity"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	StartPrice      int64         `json:"start_price"`
	ReservePrice    *int64        `json:"reserve_price,omitempty"`
	BuyNowPrice     *int64        `json:"buy_now_price,omitempty"`
	MinIncrement    int64         `json:"min_increment"`
	StartAt         time.Time     `json:"start_at"`
	EndAt           time.Time     `json:"end_at"`
	AntiSnipeWindow time.Duration `json:"anti_snipe_window"`
	Extension       time.Duration `json:"extension"`
	Status          AuctionStatus `json:"status"`
	RejectionReason *string       `json:"rejection_reason,omitempty"`
	ApprovedAt      *time.Time    `json:"approved_at,omitempty"`
	ApprovedBy      *uuid.UUID    `json:"approved_by,omitempty"`
	CancelledAt     *time.Time    `json:"cancelled_at,omitempty"`
	CancelledBy     *uuid.UUID    `json:"cancelled_by,omitempty"`
	EndedAt         *time.Time    `json:"ended_at,omitempty"`
	WinnerID        *uuid.UUID    `json:"winner_id,omitempty"`
	OrderID         *uuid.UUID    `json:"order_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Bid is one accepted offer on an auction.
type Bid struct {
	ID        uuid.UUID `json:"id"`
	AuctionID uuid.UUID `json:"auction_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks pricing and scheduling rules for a new auction.
func (a *Auction) Validate() error {
	if a.Quantity <= 0 {
		return ErrAuctionQuantity
	}
	if a.StartPrice <= 0 {
		return ErrAuctionStartPrice
	}
	if a.MinIncrement <= 0 {
		return ErrAuctionMinIncrement
	}
	d := a.EndAt.Sub(a.StartAt)
	if d < MinAuctionDuration || d > MaxAuctionDuration {
		return ErrAuctionDuration
	}
	if a.BuyNowPrice != nil && *a.BuyNowPrice <= a.StartPrice {
		return ErrAuctionBuyNowPrice
	}
	if a.ReservePrice != nil && *a.ReservePrice <= a.StartPrice {
		return ErrAuctionReservePrice
	}
	return nil
}

// IsLive reports whether bids are accepted at now: ACTIVE and within [StartAt, EndAt).
func (a *Auction) IsLive(now time.Time) bool {
	return a.Status == AuctionStatusActive && !now.Before(a.StartAt) && now.Before(a.EndAt)
}

// DueForActivation reports whether an APPROVED auction has reached its start.
func (a *Auction) DueForActivation(now time.Time) bool {
	return a.Status == AuctionStatusApproved && !now.Before(a.StartAt)
}

// MinNextBid is the start price with no leader, else the leader plus the increment.
func (a *Auction) MinNextBid(leader *Bid) int64 {
	if leader == nil {
		return a.StartPrice
	}
	return leader.Amount + a.MinIncrement
}

// ShouldExtend reports whether a bid at now lands inside the anti-snipe window.
func (a *Auction) ShouldExtend(now time.Time) bool {
	return a.AntiSnipeWindow > 0 && a.EndAt.Sub(now) <= a.AntiSnipeWindow
}

// MeetsReserve reports whether amount satisfies the reserve price, if any.
func (a *Auction) MeetsReserve(amount int64) bool {
	return a.ReservePrice == nil || amount >= *a.ReservePrice
}

// SortBids orders bids by amount descending, then most recent first.
func SortBids(bids []Bid) {
	sort.SliceStable(bids, func(i, j int) bool {
		if bids[i].Amount != bids[j].Amount {
			return bids[i].Amount > bids[j].Amount
		}
		return bids[i].CreatedAt.After(bids[j].CreatedAt)
	})
}

// Leader returns the first bid of a sorted slice, or nil.
func Leader(sorted []Bid) *Bid {
	if len(sorted) == 0 {
		return nil
	}
	return &sorted[0]
}

// Bidders returns distinct bidder ids in bid order.
func Bidders(bids []Bid) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(bids))
	var out []uuid.UUID
	for _, b := range bids {
		if !seen[b.BidderID] {
			seen[b.BidderID] = true
			out = append(out, b.BidderID)
		}
	}
	return out
}

// AuctionHoldPrefix is the reference prefix shared by every hold on the auction.
func AuctionHoldPrefix(auctionID uuid.UUID) string {
	return "AUCTION:" + auctionID.String() + ":"
}
