package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeDeposit       TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal    TransactionType = "WITHDRAWAL"
	TransactionTypeTransfer      TransactionType = "TRANSFER"
	TransactionTypePayment       TransactionType = "PAYMENT"
	TransactionTypeRefund        TransactionType = "REFUND"
	TransactionTypeFee           TransactionType = "FEE"
	TransactionTypeEscrowHold    TransactionType = "ESCROW_HOLD"
	TransactionTypeEscrowRelease TransactionType = "ESCROW_RELEASE"
	TransactionTypePenalty       TransactionType = "PENALTY"
)

// Bucket names one side of a wallet.
type Bucket string

const (
	BucketBalance Bucket = "BALANCE"
	BucketHeld    Bucket = "HELD"
)

// Transaction is an immutable ledger entry. Amount is the nominal, positive
// amount of the movement; BalanceDelta and HeldDelta are its exact effect
// on the wallet, so replaying a wallet's entries reproduces its buckets.
type Transaction struct {
	ID                uuid.UUID       `json:"id"`
	WalletID          uuid.UUID       `json:"wallet_id"`
	Type              TransactionType `json:"type"`
	Amount            int64           `json:"amount"`
	BalanceDelta      int64           `json:"balance_delta"`
	HeldDelta         int64           `json:"held_delta"`
	RecipientWalletID *uuid.UUID      `json:"recipient_wallet_id,omitempty"`
	Description       string          `json:"description"`
	Reference         string          `json:"reference"`
	IsSuccessful      bool            `json:"is_successful"`
	CreatedAt         time.Time       `json:"created_at"`
}

// IsBookkeeping reports whether the entry only marks a transition and moves no money.
func (t *Transaction) IsBookkeeping() bool {
	return t.BalanceDelta == 0 && t.HeldDelta == 0
}
