package memory

import (
	"context"
	"testing"
	"time"

	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RollbackRestoresSnapshot(t *testing.T) {
	s := New()
	ctx := context.Background()
	userID := uuid.New()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Wallets().Create(ctx, tx, domain.NewWallet(userID, time.Now())))
	require.NoError(t, tx.Rollback(ctx))

	w, err := s.Wallets().GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestStore_CommitPersists(t *testing.T) {
	s := New()
	ctx := context.Background()
	userID := uuid.New()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Wallets().Create(ctx, tx, domain.NewWallet(userID, time.Now())))
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx), "rollback after commit is a no-op")

	w, err := s.Wallets().GetByUserID(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.True(t, w.IsActive)

	err = s.Wallets().Create(ctx, nil, domain.NewWallet(userID, time.Now()))
	assert.ErrorIs(t, err, ports.ErrDuplicateKey)
}

func TestStore_BeginHonoursCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Begin(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// The lock must have been released.
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Commit(context.Background()))
}

func TestCartRepo_ClampToStock(t *testing.T) {
	s := New()
	ctx := context.Background()
	productID := uuid.New()
	a, b := uuid.New(), uuid.New()
	s.Carts().Put(domain.CartLine{BuyerID: a, ProductID: productID, Quantity: 5})
	s.Carts().Put(domain.CartLine{BuyerID: b, ProductID: productID, Quantity: 2})

	n, err := s.Carts().ClampToStock(ctx, nil, productID, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	lines, err := s.Carts().ListLines(ctx, nil, a)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, int64(3), lines[0].Quantity)

	n, err = s.Carts().ClampToStock(ctx, nil, productID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	lines, err = s.Carts().ListLines(ctx, nil, b)
	require.NoError(t, err)
	assert.Empty(t, lines)
}
