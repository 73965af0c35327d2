package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a user's spendable balance and a separate held bucket.
// Funds in HeldBalance are never counted in Balance; a hold moves money
// from one bucket to the other and leaves the total unchanged.
type Wallet struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Balance     int64     `json:"balance"`      // minor units, spendable
	HeldBalance int64     `json:"held_balance"` // minor units, pledged
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Spendable is the amount a new commitment may draw on.
func (w *Wallet) Spendable() int64 {
	return w.Balance
}

// Total is Balance plus HeldBalance.
func (w *Wallet) Total() int64 {
	return w.Balance + w.HeldBalance
}

// NewWallet returns an active, empty wallet for the user.
func NewWallet(userID uuid.UUID, now time.Time) *Wallet {
	return &Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
