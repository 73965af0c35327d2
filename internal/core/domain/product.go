package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product is the catalog row the core locks to move stock.
type Product struct {
	ID         uuid.UUID  `json:"id"`
	SellerID   uuid.UUID  `json:"seller_id"`
	NameEN     string     `json:"name_en"`
	NameAR     string     `json:"name_ar"`
	Price      int64      `json:"price"`
	SalePrice  *int64     `json:"sale_price,omitempty"`
	SaleEndsAt *time.Time `json:"sale_ends_at,omitempty"`
	Stock      int64      `json:"stock"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// CurrentPrice is the sale price while a sale is running, else the list price.
func (p *Product) CurrentPrice(now time.Time) int64 {
	if p.SalePrice != nil && *p.SalePrice > 0 && *p.SalePrice < p.Price {
		if p.SaleEndsAt == nil || now.Before(*p.SaleEndsAt) {
			return *p.SalePrice
		}
	}
	return p.Price
}

// CrossesLowStock reports whether a stock change from before to after moved
// the product from above the threshold to at or below it.
func CrossesLowStock(before, after, threshold int64) bool {
	return before > threshold && after <= threshold
}

// CartLine is one product and quantity in a buyer's cart.
type CartLine struct {
	BuyerID   uuid.UUID `json:"buyer_id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int64     `json:"quantity"`
}

// StockReason explains why a stock delta happened.
type StockReason string

const (
	StockReasonCheckout        StockReason = "CHECKOUT"
	StockReasonOrderCancelled  StockReason = "ORDER_CANCELLED"
	StockReasonOrderRefunded   StockReason = "ORDER_REFUNDED"
	StockReasonAuctionReserved StockReason = "AUCTION_RESERVED"
	StockReasonAuctionReleased StockReason = "AUCTION_RELEASED"
	StockReasonReturnRestocked StockReason = "RETURN_RESTOCKED"
)

// StockDelta is the event emitted whenever the core changes a product's stock.
type StockDelta struct {
	ProductID uuid.UUID   `json:"product_id"`
	Delta     int64       `json:"delta"`
	Stock     int64       `json:"stock"`
	Reason    StockReason `json:"reason"`
}
