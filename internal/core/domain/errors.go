package domain

import "errors"

// Validation errors raised by pure domain rules. Services translate them
// into apperror values at the boundary.
var (
	ErrAmountPrecision     = errors.New("amount has more than two decimal places")
	ErrAuctionDuration     = errors.New("auction must run between 2 hours and 14 days")
	ErrAuctionBuyNowPrice  = errors.New("buy-now price must be greater than the start price")
	ErrAuctionReservePrice = errors.New("reserve price must be greater than the start price")
	ErrAuctionStartPrice   = errors.New("start price must be positive")
	ErrAuctionQuantity     = errors.New("auction quantity must be positive")
	ErrAuctionMinIncrement = errors.New("minimum increment must be positive")
	ErrNegativeQuantity    = errors.New("condition quantities must not be negative")
	ErrUnknownCondition    = errors.New("unknown return condition")
	ErrDuplicateCondition  = errors.New("condition listed more than once")
	ErrInvalidDiscount     = errors.New("discount percentage must be within [0, 100]")
)
