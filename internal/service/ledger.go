package service

import (
	"context"
	"errors"
	"time"

	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"
	"escrow-marketplace/internal/metrics"
	"escrow-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Ledger is the only code path that changes wallet buckets. Every movement
// updates the locked wallet row and appends one ledger entry per wallet
// touched, inside the caller's transaction.
type Ledger struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	clock      func() time.Time
	log        zerolog.Logger
}

// NewLedger creates a new Ledger.
func NewLedger(walletRepo ports.WalletRepository, txRepo ports.TransactionRepository, clock func() time.Time, log zerolog.Logger) *Ledger {
	return &Ledger{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		clock:      clock,
		log:        log,
	}
}

// Wallets are locked wallets keyed by owner.
type Wallets map[uuid.UUID]*domain.Wallet

// Lock locks the wallets of every listed user in ascending wallet id order.
// A user without a wallet fails with NotFound.
func (l *Ledger) Lock(ctx context.Context, tx pgx.Tx, userIDs ...uuid.UUID) (Wallets, error) {
	ids := uniqueIDs(userIDs)
	wallets, err := l.walletRepo.GetByUserIDsForUpdate(ctx, tx, ids)
	if err != nil {
		return nil, dbErr("lock wallets", err)
	}
	for _, id := range ids {
		if wallets[id] == nil {
			return nil, apperror.ErrNotFound("wallet")
		}
	}
	return wallets, nil
}

// Movement describes one ledger operation.
type Movement struct {
	Type        domain.TransactionType
	Amount      int64
	Reference   string
	Description string
}

// Hold moves amount from Balance into HeldBalance.
func (l *Ledger) Hold(ctx context.Context, tx pgx.Tx, w *domain.Wallet, amount int64, reference, description string) error {
	if skip, err := checkAmount(amount); skip || err != nil {
		return err
	}
	if !w.IsActive {
		return apperror.ErrWalletInactive()
	}
	if w.Balance < amount {
		return apperror.ErrInsufficientFunds()
	}
	return l.apply(ctx, tx, w, entry(w, domain.TransactionTypeEscrowHold, amount, -amount, amount, reference, description))
}

// Release moves amount from HeldBalance back into Balance.
func (l *Ledger) Release(ctx context.Context, tx pgx.Tx, w *domain.Wallet, amount int64, reference, description string) error {
	if skip, err := checkAmount(amount); skip || err != nil {
		return err
	}
	if w.HeldBalance < amount {
		return apperror.ErrInsufficientHeld()
	}
	return l.apply(ctx, tx, w, entry(w, domain.TransactionTypeEscrowRelease, amount, amount, -amount, reference, description))
}

// Credit adds amount to Balance and returns the entry written.
func (l *Ledger) Credit(ctx context.Context, tx pgx.Tx, w *domain.Wallet, m Movement) (*domain.Transaction, error) {
	if m.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	t := entry(w, m.Type, m.Amount, m.Amount, 0, m.Reference, m.Description)
	if err := l.apply(ctx, tx, w, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Debit removes amount from Balance, failing rather than going negative,
// and returns the entry written.
func (l *Ledger) Debit(ctx context.Context, tx pgx.Tx, w *domain.Wallet, m Movement) (*domain.Transaction, error) {
	if m.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if !w.IsActive {
		return nil, apperror.ErrWalletInactive()
	}
	if w.Balance < m.Amount {
		return nil, apperror.ErrInsufficientFunds()
	}
	t := entry(w, m.Type, m.Amount, -m.Amount, 0, m.Reference, m.Description)
	if err := l.apply(ctx, tx, w, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Settlement moves money from one wallet bucket to another wallet bucket.
type Settlement struct {
	From       *domain.Wallet
	FromBucket domain.Bucket
	To         *domain.Wallet
	ToBucket   domain.Bucket
	Movement
}

// heldToBalance settles from the payer's held bucket into the payee's balance.
func heldToBalance(from, to *domain.Wallet, m Movement) Settlement {
	return Settlement{From: from, FromBucket: domain.BucketHeld, To: to, ToBucket: domain.BucketBalance, Movement: m}
}

// Settle records a paired movement. Two entries sharing the reference are
// written when the wallets differ; a same-wallet move between buckets is a
// single entry carrying both deltas.
func (l *Ledger) Settle(ctx context.Context, tx pgx.Tx, s Settlement) error {
	if skip, err := checkAmount(s.Amount); skip || err != nil {
		return err
	}
	switch s.FromBucket {
	case domain.BucketHeld:
		if s.From.HeldBalance < s.Amount {
			return apperror.ErrInsufficientHeld()
		}
	default:
		if !s.From.IsActive {
			return apperror.ErrWalletInactive()
		}
		if s.From.Balance < s.Amount {
			return apperror.ErrInsufficientFunds()
		}
	}

	fromBal, fromHeld := bucketDelta(s.FromBucket, -s.Amount)
	toBal, toHeld := bucketDelta(s.ToBucket, s.Amount)

	if s.From.ID == s.To.ID {
		return l.apply(ctx, tx, s.From, entry(s.From, s.Type, s.Amount, fromBal+toBal, fromHeld+toHeld, s.Reference, s.Description))
	}

	out := entry(s.From, s.Type, s.Amount, fromBal, fromHeld, s.Reference, s.Description)
	out.RecipientWalletID = &s.To.ID
	if err := l.apply(ctx, tx, s.From, out); err != nil {
		return err
	}
	return l.apply(ctx, tx, s.To, entry(s.To, s.Type, s.Amount, toBal, toHeld, s.Reference, s.Description))
}

// Mark writes a zero-delta bookkeeping entry recording a transition of
// money that does not move, such as a bid hold becoming order escrow.
func (l *Ledger) Mark(ctx context.Context, tx pgx.Tx, w *domain.Wallet, m Movement) error {
	if m.Amount < 0 {
		return apperror.ErrInvalidAmount()
	}
	return l.create(ctx, tx, entry(w, m.Type, m.Amount, 0, 0, m.Reference, m.Description))
}

// Outstanding returns what the wallet still holds under a reference prefix.
func (l *Ledger) Outstanding(ctx context.Context, tx pgx.Tx, w *domain.Wallet, prefix string) (int64, error) {
	held, err := l.txRepo.SumHeldByPrefix(ctx, tx, w.ID, prefix)
	if err != nil {
		return 0, dbErr("sum holds", err)
	}
	return held, nil
}

func (l *Ledger) apply(ctx context.Context, tx pgx.Tx, w *domain.Wallet, t *domain.Transaction) error {
	if w.Balance+t.BalanceDelta < 0 || w.HeldBalance+t.HeldDelta < 0 {
		return apperror.ErrInsufficientFunds()
	}
	if err := l.create(ctx, tx, t); err != nil {
		return err
	}

	w.Balance += t.BalanceDelta
	w.HeldBalance += t.HeldDelta
	w.UpdatedAt = t.CreatedAt
	if err := l.walletRepo.UpdateBalances(ctx, tx, w); err != nil {
		return dbErr("update wallet", err)
	}
	metrics.LedgerEntries.WithLabelValues(string(t.Type)).Inc()
	metrics.LedgerAmount.WithLabelValues(string(t.Type)).Add(float64(t.Amount))

	l.log.Debug().
		Str("wallet_id", w.ID.String()).
		Str("type", string(t.Type)).
		Str("reference", t.Reference).
		Int64("balance_delta", t.BalanceDelta).
		Int64("held_delta", t.HeldDelta).
		Msg("ledger entry applied")
	return nil
}

func (l *Ledger) create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	t.CreatedAt = l.clock()
	if err := l.txRepo.Create(ctx, tx, t); err != nil {
		if errors.Is(err, ports.ErrDuplicateKey) {
			return apperror.ErrDuplicateReference()
		}
		return dbErr("create ledger entry", err)
	}
	return nil
}

func entry(w *domain.Wallet, t domain.TransactionType, amount, balanceDelta, heldDelta int64, reference, description string) *domain.Transaction {
	return &domain.Transaction{
		ID:           uuid.New(),
		WalletID:     w.ID,
		Type:         t,
		Amount:       amount,
		BalanceDelta: balanceDelta,
		HeldDelta:    heldDelta,
		Description:  description,
		Reference:    reference,
		IsSuccessful: true,
	}
}

func bucketDelta(b domain.Bucket, amount int64) (balance, held int64) {
	if b == domain.BucketHeld {
		return 0, amount
	}
	return amount, 0
}

// checkAmount rejects negative amounts and reports zero amounts as skippable.
func checkAmount(amount int64) (skip bool, err error) {
	if amount < 0 {
		return false, apperror.ErrInvalidAmount()
	}
	return amount == 0, nil
}
