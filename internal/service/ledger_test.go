package service

import (
	"errors"
	"testing"

	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inLedger runs fn against locked wallets of the actors.
func (f *fixture) inLedger(fn func(tx pgx.Tx, l *Ledger, w Wallets) error, actors ...domain.Actor) error {
	e := f.orders.engine
	return e.inTx(f.ctx, func(tx pgx.Tx) error {
		userIDs := make([]uuid.UUID, 0, len(actors))
		for _, a := range actors {
			userIDs = append(userIDs, a.UserID)
		}
		w, err := e.ledger.Lock(f.ctx, tx, userIDs...)
		if err != nil {
			return err
		}
		return fn(tx, e.ledger, w)
	})
}

func TestLedger_HoldReleaseConservesTotal(t *testing.T) {
	f := newFixture(t)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 5000)

	err := f.inLedger(func(tx pgx.Tx, l *Ledger, w Wallets) error {
		bw := w[buyer.UserID]
		require.NoError(t, l.Hold(f.ctx, tx, bw, 3000, "TEST:HOLD", "hold"))
		assert.Equal(t, int64(2000), bw.Balance)
		assert.Equal(t, int64(3000), bw.HeldBalance)
		assert.Equal(t, int64(5000), bw.Total())

		require.NoError(t, l.Release(f.ctx, tx, bw, 1000, "TEST:RELEASE", "release"))
		assert.Equal(t, int64(3000), bw.Balance)
		assert.Equal(t, int64(2000), bw.HeldBalance)
		assert.Equal(t, int64(5000), bw.Total())
		return nil
	}, buyer)
	require.NoError(t, err)

	w := f.wallet(buyer)
	assert.Equal(t, int64(3000), w.Balance)
	assert.Equal(t, int64(2000), w.HeldBalance)
	f.assertWalletTotalsMatchLedger(buyer)
}

func TestLedger_Guards(t *testing.T) {
	f := newFixture(t)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 1000)

	tests := []struct {
		name string
		op   func(tx pgx.Tx, l *Ledger, w *domain.Wallet) error
		want *apperror.AppError
	}{
		{
			name: "hold over balance",
			op: func(tx pgx.Tx, l *Ledger, w *domain.Wallet) error {
				return l.Hold(f.ctx, tx, w, 1001, "G:1", "")
			},
			want: apperror.ErrInsufficientFunds(),
		},
		{
			name: "release over held",
			op: func(tx pgx.Tx, l *Ledger, w *domain.Wallet) error {
				return l.Release(f.ctx, tx, w, 1, "G:2", "")
			},
			want: apperror.ErrInsufficientHeld(),
		},
		{
			name: "debit over balance",
			op: func(tx pgx.Tx, l *Ledger, w *domain.Wallet) error {
				_, err := l.Debit(f.ctx, tx, w, Movement{Type: domain.TransactionTypeWithdrawal, Amount: 1001, Reference: "G:3"})
				return err
			},
			want: apperror.ErrInsufficientFunds(),
		},
		{
			name: "zero credit",
			op: func(tx pgx.Tx, l *Ledger, w *domain.Wallet) error {
				_, err := l.Credit(f.ctx, tx, w, Movement{Type: domain.TransactionTypeDeposit, Reference: "G:4"})
				return err
			},
			want: apperror.ErrInvalidAmount(),
		},
		{
			name: "negative hold",
			op: func(tx pgx.Tx, l *Ledger, w *domain.Wallet) error {
				return l.Hold(f.ctx, tx, w, -5, "G:5", "")
			},
			want: apperror.ErrInvalidAmount(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.inLedger(func(tx pgx.Tx, l *Ledger, w Wallets) error {
				return tt.op(tx, l, w[buyer.UserID])
			}, buyer)
			assertCode(t, err, tt.want)

			w := f.wallet(buyer)
			assert.Equal(t, int64(1000), w.Balance)
			assert.Equal(t, int64(0), w.HeldBalance)
		})
	}
}

func TestLedger_ZeroHoldIsSkipped(t *testing.T) {
	f := newFixture(t)
	buyer := f.user(domain.RoleBuyer)

	err := f.inLedger(func(tx pgx.Tx, l *Ledger, w Wallets) error {
		return l.Hold(f.ctx, tx, w[buyer.UserID], 0, "ZERO", "")
	}, buyer)
	require.NoError(t, err)

	assert.Empty(t, f.store.Transactions().LedgerEntries(f.wallet(buyer).ID))
}

func TestLedger_DuplicateReferenceRejected(t *testing.T) {
	f := newFixture(t)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 1000)

	hold := func(tx pgx.Tx, l *Ledger, w Wallets) error {
		return l.Hold(f.ctx, tx, w[buyer.UserID], 100, "ORDER_HOLD:ORD-1", "")
	}
	require.NoError(t, f.inLedger(hold, buyer))

	err := f.inLedger(hold, buyer)
	assertCode(t, err, apperror.ErrDuplicateReference())
	assert.Equal(t, int64(100), f.wallet(buyer).HeldBalance)
}

func TestLedger_InactiveWallet(t *testing.T) {
	f := newFixture(t)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 1000)
	_, err := f.wallets.SetActive(f.ctx, f.admin, buyer.UserID, false)
	require.NoError(t, err)

	err = f.inLedger(func(tx pgx.Tx, l *Ledger, w Wallets) error {
		return l.Hold(f.ctx, tx, w[buyer.UserID], 10, "INACTIVE:HOLD", "")
	}, buyer)
	assertCode(t, err, apperror.ErrWalletInactive())

	// Credits still land on an inactive wallet.
	err = f.inLedger(func(tx pgx.Tx, l *Ledger, w Wallets) error {
		_, err := l.Credit(f.ctx, tx, w[buyer.UserID], Movement{Type: domain.TransactionTypeRefund, Amount: 10, Reference: "INACTIVE:CREDIT"})
		return err
	}, buyer)
	require.NoError(t, err)
	assert.Equal(t, int64(1010), f.wallet(buyer).Balance)
}

func TestLedger_SettleBetweenWallets(t *testing.T) {
	f := newFixture(t)
	buyer := f.user(domain.RoleBuyer)
	seller := f.user(domain.RoleSeller)
	f.fund(buyer, 1000)

	err := f.inLedger(func(tx pgx.Tx, l *Ledger, w Wallets) error {
		if err := l.Hold(f.ctx, tx, w[buyer.UserID], 600, "S:HOLD", ""); err != nil {
			return err
		}
		return l.Settle(f.ctx, tx, heldToBalance(w[buyer.UserID], w[seller.UserID], Movement{
			Type:      domain.TransactionTypePayment,
			Amount:    600,
			Reference: "S:PAY",
		}))
	}, buyer, seller)
	require.NoError(t, err)

	bw, sw := f.wallet(buyer), f.wallet(seller)
	assert.Equal(t, int64(400), bw.Balance)
	assert.Equal(t, int64(0), bw.HeldBalance)
	assert.Equal(t, int64(600), sw.Balance)

	var payer *domain.Transaction
	for _, e := range f.store.Transactions().LedgerEntries(bw.ID) {
		if e.Reference == "S:PAY" {
			e := e
			payer = &e
		}
	}
	require.NotNil(t, payer)
	require.NotNil(t, payer.RecipientWalletID)
	assert.Equal(t, sw.ID, *payer.RecipientWalletID)
	assert.Equal(t, int64(-600), payer.HeldDelta)

	payee := f.store.Transactions().LedgerEntries(sw.ID)
	require.Len(t, payee, 1)
	assert.Equal(t, "S:PAY", payee[0].Reference)
	f.assertWalletTotalsMatchLedger(buyer)
	f.assertWalletTotalsMatchLedger(seller)
}

func TestLedger_SameWalletSettleWritesOneEntry(t *testing.T) {
	f := newFixture(t)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 1000)

	err := f.inLedger(func(tx pgx.Tx, l *Ledger, w Wallets) error {
		bw := w[buyer.UserID]
		if err := l.Hold(f.ctx, tx, bw, 500, "SW:HOLD", ""); err != nil {
			return err
		}
		return l.Settle(f.ctx, tx, heldToBalance(bw, bw, Movement{
			Type:      domain.TransactionTypeRefund,
			Amount:    500,
			Reference: "SW:REFUND",
		}))
	}, buyer)
	require.NoError(t, err)

	var refunds int
	for _, e := range f.store.Transactions().LedgerEntries(f.wallet(buyer).ID) {
		if e.Reference == "SW:REFUND" {
			refunds++
			assert.Equal(t, int64(500), e.BalanceDelta)
			assert.Equal(t, int64(-500), e.HeldDelta)
		}
	}
	assert.Equal(t, 1, refunds)
	assert.Equal(t, int64(1000), f.wallet(buyer).Balance)
}

func TestLedger_MarkMovesNothing(t *testing.T) {
	f := newFixture(t)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 1000)

	err := f.inLedger(func(tx pgx.Tx, l *Ledger, w Wallets) error {
		return l.Mark(f.ctx, tx, w[buyer.UserID], Movement{
			Type:      domain.TransactionTypeEscrowHold,
			Amount:    700,
			Reference: "MARK",
		})
	}, buyer)
	require.NoError(t, err)

	w := f.wallet(buyer)
	assert.Equal(t, int64(1000), w.Balance)
	var found bool
	for _, e := range f.store.Transactions().LedgerEntries(w.ID) {
		if e.Reference == "MARK" {
			found = true
			assert.True(t, e.IsBookkeeping())
			assert.Equal(t, int64(700), e.Amount)
		}
	}
	assert.True(t, found)
}

func TestLedger_FailureRollsBackEveryEntry(t *testing.T) {
	f := newFixture(t)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 1000)
	before := len(f.store.Transactions().LedgerEntries(f.wallet(buyer).ID))

	boom := errors.New("boom")
	err := f.inLedger(func(tx pgx.Tx, l *Ledger, w Wallets) error {
		if err := l.Hold(f.ctx, tx, w[buyer.UserID], 400, "RB:HOLD", ""); err != nil {
			return err
		}
		return boom
	}, buyer)
	assert.ErrorIs(t, err, boom)

	w := f.wallet(buyer)
	assert.Equal(t, int64(1000), w.Balance)
	assert.Equal(t, int64(0), w.HeldBalance)
	assert.Len(t, f.store.Transactions().LedgerEntries(w.ID), before)
}

func TestLedger_OutstandingSumsHoldsUnderPrefix(t *testing.T) {
	f := newFixture(t)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 5000)

	err := f.inLedger(func(tx pgx.Tx, l *Ledger, w Wallets) error {
		bw := w[buyer.UserID]
		for _, step := range []struct {
			ref  string
			hold int64
		}{
			{"AUCTION:A:BID:1", 1000},
			{"AUCTION:A:BID:2", 300},
			{"AUCTION:B:BID:3", 50},
		} {
			if err := l.Hold(f.ctx, tx, bw, step.hold, step.ref, ""); err != nil {
				return err
			}
		}
		if err := l.Release(f.ctx, tx, bw, 200, "AUCTION:A:OUTBID:4", ""); err != nil {
			return err
		}
		held, err := l.Outstanding(f.ctx, tx, bw, "AUCTION:A:")
		require.NoError(t, err)
		assert.Equal(t, int64(1100), held)
		return nil
	}, buyer)
	require.NoError(t, err)
}
