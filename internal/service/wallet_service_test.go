package service

import (
	"testing"

	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"
	"escrow-marketplace/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWallet_OpenIsIdempotent(t *testing.T) {
	f := newFixture(t)
	buyer := f.user(domain.RoleBuyer)

	w1, err := f.wallets.Open(f.ctx, buyer.UserID)
	require.NoError(t, err)
	w2, err := f.wallets.Open(f.ctx, buyer.UserID)
	require.NoError(t, err)
	assert.Equal(t, w1.ID, w2.ID)
	assert.True(t, w1.IsActive)
}

func TestWallet_DepositReplayReturnsOriginal(t *testing.T) {
	f := newFixture(t)
	buyer := f.user(domain.RoleBuyer)
	req := ports.WalletMovementRequest{UserID: buyer.UserID, Amount: 2500, Reference: "top-up-1"}

	first, err := f.wallets.Deposit(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "CLIENT:deposit:top-up-1", first.Reference)

	second, err := f.wallets.Deposit(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(2500), f.wallet(buyer).Balance)

	// With the cache cold the ledger reference still deduplicates.
	f.cache.data = make(map[string][]byte)
	third, err := f.wallets.Deposit(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
	assert.Equal(t, int64(2500), f.wallet(buyer).Balance)
	f.assertWalletTotalsMatchLedger(buyer)
}

func TestWallet_Withdraw(t *testing.T) {
	f := newFixture(t)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 1000)

	_, err := f.wallets.Withdraw(f.ctx, ports.WalletMovementRequest{UserID: buyer.UserID, Amount: 1001, Reference: "w-1"})
	assertCode(t, err, apperror.ErrInsufficientFunds())

	txn, err := f.wallets.Withdraw(f.ctx, ports.WalletMovementRequest{UserID: buyer.UserID, Amount: 400, Reference: "w-2"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionTypeWithdrawal, txn.Type)
	assert.Equal(t, int64(-400), txn.BalanceDelta)
	assert.Equal(t, int64(600), f.wallet(buyer).Balance)
}

func TestWallet_MovementValidation(t *testing.T) {
	f := newFixture(t)
	buyer := f.user(domain.RoleBuyer)

	_, err := f.wallets.Deposit(f.ctx, ports.WalletMovementRequest{UserID: buyer.UserID, Amount: 0, Reference: "x"})
	assertCode(t, err, apperror.ErrInvalidAmount())

	_, err = f.wallets.Deposit(f.ctx, ports.WalletMovementRequest{UserID: buyer.UserID, Amount: 10})
	assertCode(t, err, apperror.Validation(""))
}

func TestWallet_SetActiveIsAdminOnly(t *testing.T) {
	f := newFixture(t)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 1000)

	_, err := f.wallets.SetActive(f.ctx, buyer, buyer.UserID, false)
	assertCode(t, err, apperror.ErrForbidden())

	w, err := f.wallets.SetActive(f.ctx, f.admin, buyer.UserID, false)
	require.NoError(t, err)
	assert.False(t, w.IsActive)

	_, err = f.wallets.Withdraw(f.ctx, ports.WalletMovementRequest{UserID: buyer.UserID, Amount: 10, Reference: "w"})
	assertCode(t, err, apperror.ErrWalletInactive())

	_, err = f.wallets.SetActive(f.ctx, f.admin, buyer.UserID, true)
	require.NoError(t, err)
	_, err = f.wallets.Withdraw(f.ctx, ports.WalletMovementRequest{UserID: buyer.UserID, Amount: 10, Reference: "w"})
	require.NoError(t, err)
}

func TestWallet_ListTransactionsPages(t *testing.T) {
	f := newFixture(t)
	buyer := f.user(domain.RoleBuyer)
	for i := 0; i < 3; i++ {
		f.fund(buyer, 100)
	}

	txns, total, err := f.wallets.ListTransactions(f.ctx, buyer.UserID, ports.TransactionListParams{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, txns, 2)

	_, _, err = f.wallets.ListTransactions(f.ctx, f.admin.UserID, ports.TransactionListParams{})
	require.NoError(t, err)
}
