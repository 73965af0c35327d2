package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "" if none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Wallet & Ledger (WAL) ----

func ErrInsufficientFunds() *AppError {
	return New("WAL_001", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New("WAL_002", "Invalid amount", http.StatusBadRequest)
}

func ErrDuplicateReference() *AppError {
	return New("WAL_003", "Ledger reference already applied", http.StatusConflict)
}

func ErrWalletInactive() *AppError {
	return New("WAL_004", "Wallet is deactivated", http.StatusForbidden)
}

func ErrInsufficientHeld() *AppError {
	return New("WAL_005", "Held balance is lower than the requested release", http.StatusConflict)
}

// ---- Stock & Cart (STK) ----

func ErrInsufficientStock(product string) *AppError {
	return New("STK_001", fmt.Sprintf("Insufficient stock for %s", product), http.StatusConflict)
}

func ErrEmptyCart() *AppError {
	return New("STK_002", "Cart is empty", http.StatusBadRequest)
}

// ---- State machine (STA) ----

func ErrInvalidStateTransition(entity, from, action string) *AppError {
	return New("STA_001", fmt.Sprintf("Cannot %s %s in status %s", action, entity, from), http.StatusConflict)
}

func ErrMissingShippingLocation() *AppError {
	return New("STA_002", "Shipping location is required before checkout", http.StatusBadRequest)
}

func ErrMissingDeliveryTimestamp() *AppError {
	return New("STA_003", "Order has no delivery timestamp", http.StatusConflict)
}

// ---- Bidding (BID) ----

func ErrBidTooLow(minAllowed string) *AppError {
	return New("BID_001", fmt.Sprintf("Bid must be at least %s", minAllowed), http.StatusUnprocessableEntity)
}

func ErrBidMustExceedCurrent() *AppError {
	return New("BID_002", "New bid must exceed your current leading bid", http.StatusUnprocessableEntity)
}

// ---- Returns (RET) ----

func ErrQuantityMismatch(expected, got int64) *AppError {
	return New("RET_001", fmt.Sprintf("Condition quantities add up to %d, expected %d", got, expected), http.StatusUnprocessableEntity)
}

// ---- Time windows (WIN) ----

func ErrWindowExpired(what string) *AppError {
	return New("WIN_001", fmt.Sprintf("%s window has expired", what), http.StatusUnprocessableEntity)
}

func ErrWindowStillOpen() *AppError {
	return New("WIN_002", "Dispute window is still open", http.StatusConflict)
}

// ---- Authentication & Authorization (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_002", "Role is not allowed to perform this action", http.StatusForbidden)
}

func ErrNotOwner(entity string) *AppError {
	return New("AUTH_003", fmt.Sprintf("Not the owner of this %s", entity), http.StatusForbidden)
}

func ErrNotAssigned() *AppError {
	return New("AUTH_004", "Courier is not assigned to this order", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

func ErrNotFound(entity string) *AppError {
	return New("SYS_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a SYS_005 validation error.
func Validation(message string) *AppError {
	return New("SYS_005", message, http.StatusBadRequest)
}

func ErrPayloadTooLarge(limit int64) *AppError {
	return New("SYS_006", fmt.Sprintf("Request body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
}

func ErrFeatureDisabled(feature string) *AppError {
	return New("SYS_007", fmt.Sprintf("%s is not enabled", feature), http.StatusNotImplemented)
}
