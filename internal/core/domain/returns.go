package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReturnStatus is the return request lifecycle state.
type ReturnStatus string

const (
	ReturnStatusRequested       ReturnStatus = "REQUESTED"
	ReturnStatusUnderInspection ReturnStatus = "UNDER_INSPECTION"
	ReturnStatusApproved        ReturnStatus = "APPROVED"
	ReturnStatusRejected        ReturnStatus = "REJECTED"
)

// IsOpen reports whether the request still awaits a decision.
func (s ReturnStatus) IsOpen() bool {
	return s == ReturnStatusRequested || s == ReturnStatusUnderInspection
}

// Condition is the inspected state of returned units.
type Condition string

const (
	ConditionNew          Condition = "NEW"
	ConditionLikeNew      Condition = "LIKE_NEW"
	ConditionOpenBox      Condition = "OPEN_BOX"
	ConditionUsed         Condition = "USED"
	ConditionDamaged      Condition = "DAMAGED"
	ConditionMissingParts Condition = "MISSING_PARTS"
	ConditionUnsaleable   Condition = "UNSALEABLE"
)

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionOpenBox, ConditionUsed,
		ConditionDamaged, ConditionMissingParts, ConditionUnsaleable:
		return true
	}
	return false
}

// NeedsSellerApproval reports whether resale of units in this condition
// must be approved by the seller.
func (c Condition) NeedsSellerApproval() bool {
	return c == ConditionOpenBox || c == ConditionUsed
}

// SellerApproval is the tri-state resale decision on a returned product.
type SellerApproval string

const (
	SellerApprovalPending  SellerApproval = "PENDING"
	SellerApprovalApproved SellerApproval = "APPROVED"
	SellerApprovalRejected SellerApproval = "REJECTED"
)

// ConditionQuantity is one row of an inspection breakdown.
type ConditionQuantity struct {
	Condition          Condition        `json:"condition"`
	Quantity           int64            `json:"quantity"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
	Notes              string           `json:"notes,omitempty"`
}

// Breakdown is the per-condition split of a return's quantity.
type Breakdown []ConditionQuantity

// Validate checks conditions, quantities and discounts and returns the
// total quantity so the caller can compare it with the request.
func (b Breakdown) Validate() (int64, error) {
	seen := make(map[Condition]bool, len(b))
	var total int64
	hundred := decimal.NewFromInt(100)
	for _, row := range b {
		if !row.Condition.Valid() {
			return 0, ErrUnknownCondition
		}
		if seen[row.Condition] {
			return 0, ErrDuplicateCondition
		}
		seen[row.Condition] = true
		if row.Quantity < 0 {
			return 0, ErrNegativeQuantity
		}
		if d := row.DiscountPercentage; d != nil && (d.IsNegative() || d.GreaterThan(hundred)) {
			return 0, ErrInvalidDiscount
		}
		total += row.Quantity
	}
	return total, nil
}

// Quantity returns the units recorded for c.
func (b Breakdown) Quantity(c Condition) int64 {
	for _, row := range b {
		if row.Condition == c {
			return row.Quantity
		}
	}
	return 0
}

// Total sums every row.
func (b Breakdown) Total() int64 {
	var total int64
	for _, row := range b {
		total += row.Quantity
	}
	return total
}

// NeedsSellerApproval reports whether any non-zero row awaits a resale decision.
func (b Breakdown) NeedsSellerApproval() bool {
	for _, row := range b {
		if row.Quantity > 0 && row.Condition.NeedsSellerApproval() {
			return true
		}
	}
	return false
}

// Dominant returns the condition with the most units, preferring the worse one on ties.
func (b Breakdown) Dominant() Condition {
	var best Condition
	var bestQty int64 = -1
	for _, row := range b {
		if row.Quantity > bestQty || (row.Quantity == bestQty && severity(row.Condition) > severity(best)) {
			best, bestQty = row.Condition, row.Quantity
		}
	}
	return best
}

func severity(c Condition) int {
	switch c {
	case ConditionNew:
		return 0
	case ConditionLikeNew:
		return 1
	case ConditionOpenBox:
		return 2
	case ConditionUsed:
		return 3
	case ConditionMissingParts:
		return 4
	case ConditionDamaged:
		return 5
	case ConditionUnsaleable:
		return 6
	}
	return -1
}

// PenaltyWeights maps penalized conditions to seller points per unit.
type PenaltyWeights map[Condition]int64

// DefaultPenaltyWeights: damaged 5, missing parts 3, unsaleable 7.
func DefaultPenaltyWeights() PenaltyWeights {
	return PenaltyWeights{
		ConditionDamaged:      5,
		ConditionMissingParts: 3,
		ConditionUnsaleable:   7,
	}
}

// Penalty is the weighted sum of penalized quantities in b.
func (w PenaltyWeights) Penalty(b Breakdown) int64 {
	var points int64
	for _, row := range b {
		points += w[row.Condition] * row.Quantity
	}
	return points
}

// ReturnRequest is the root aggregate of a buyer's return.
type ReturnRequest struct {
	ID              uuid.UUID    `json:"id"`
	OrderID         uuid.UUID    `json:"order_id"`
	OrderItemID     uuid.UUID    `json:"order_item_id"`
	BuyerID         uuid.UUID    `json:"buyer_id"`
	Reason          string       `json:"reason"`
	Quantity        int64        `json:"quantity"`
	Status          ReturnStatus `json:"status"`
	Inspection      Breakdown    `json:"inspection,omitempty"`
	InspectionNotes *string      `json:"inspection_notes,omitempty"`
	AdminNotes      *string      `json:"admin_notes,omitempty"`
	RejectionReason *string      `json:"rejection_reason,omitempty"`
	Condition       *Condition   `json:"condition,omitempty"`
	RefundAmount    *int64       `json:"refund_amount,omitempty"`
	PenaltyPoints   *int64       `json:"penalty_points,omitempty"`
	InspectedBy     *uuid.UUID   `json:"inspected_by,omitempty"`
	ProcessedBy     *uuid.UUID   `json:"processed_by,omitempty"`
	ProcessedAt     *time.Time   `json:"processed_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// ReturnedProduct records units of one condition from a settled return.
type ReturnedProduct struct {
	ID                 uuid.UUID        `json:"id"`
	ReturnRequestID    uuid.UUID        `json:"return_request_id"`
	ProductID          uuid.UUID        `json:"product_id"`
	SellerID           uuid.UUID        `json:"seller_id"`
	Condition          Condition        `json:"condition"`
	Quantity           int64            `json:"quantity"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
	IsSellable         bool             `json:"is_sellable"`
	SellerApproval     SellerApproval   `json:"seller_approval"`
	Notes              string           `json:"notes,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// NewReturnedProduct builds the row for one breakdown entry. NEW and
// LIKE_NEW units are sellable outright, OPEN_BOX and USED wait for the
// seller, the rest are not resold.
func NewReturnedProduct(req *ReturnRequest, productID, sellerID uuid.UUID, row ConditionQuantity, now time.Time) ReturnedProduct {
	rp := ReturnedProduct{
		ID:                 uuid.New(),
		ReturnRequestID:    req.ID,
		ProductID:          productID,
		SellerID:           sellerID,
		Condition:          row.Condition,
		Quantity:           row.Quantity,
		DiscountPercentage: row.DiscountPercentage,
		Notes:              row.Notes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	switch {
	case row.Condition == ConditionNew || row.Condition == ConditionLikeNew:
		rp.IsSellable = true
		rp.SellerApproval = SellerApprovalApproved
	case row.Condition.NeedsSellerApproval():
		rp.SellerApproval = SellerApprovalPending
	default:
		rp.SellerApproval = SellerApprovalRejected
	}
	return rp
}
