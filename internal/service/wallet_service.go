package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"
	"escrow-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	*engine
	idempCache ports.IdempotencyCache
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(d Deps, idempCache ports.IdempotencyCache) *WalletServiceImpl {
	return &WalletServiceImpl{engine: newEngine(d), idempCache: idempCache}
}

// Open returns the user's wallet, creating an empty one if missing.
func (s *WalletServiceImpl) Open(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.Wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, dbErr("get wallet", err)
	}
	if wallet != nil {
		return wallet, nil
	}

	wallet = domain.NewWallet(userID, s.now())
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.Wallets.Create(ctx, tx, wallet); err != nil {
			if errors.Is(err, ports.ErrDuplicateKey) {
				return err
			}
			return dbErr("create wallet", err)
		}
		return nil
	})
	if errors.Is(err, ports.ErrDuplicateKey) {
		// Lost a race with a concurrent Open.
		return s.GetWallet(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	s.Log.Info().Str("user_id", userID.String()).Str("wallet_id", wallet.ID.String()).Msg("wallet opened")
	return wallet, nil
}

// Deposit credits the wallet. Replays with the same reference return the
// original entry.
func (s *WalletServiceImpl) Deposit(ctx context.Context, req ports.WalletMovementRequest) (*domain.Transaction, error) {
	return s.move(ctx, req, domain.IdempotentDeposit, domain.TransactionTypeDeposit)
}

// Withdraw debits the wallet's spendable balance.
func (s *WalletServiceImpl) Withdraw(ctx context.Context, req ports.WalletMovementRequest) (*domain.Transaction, error) {
	return s.move(ctx, req, domain.IdempotentWithdraw, domain.TransactionTypeWithdrawal)
}

func (s *WalletServiceImpl) move(ctx context.Context, req ports.WalletMovementRequest, op domain.IdempotentOperation, txType domain.TransactionType) (*domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Reference == "" {
		return nil, apperror.Validation("reference is required")
	}

	idempKey := domain.BuildIdempotencyKey(req.UserID, op, req.Reference)

	// Layer 1: Redis idempotency check
	cached, err := s.idempCache.Get(ctx, idempKey)
	if err != nil {
		s.Log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		return unmarshalCachedTransaction(cached)
	}

	ref := domain.ClientReference(op, req.Reference)
	var txn *domain.Transaction
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		wallets, err := s.ledger.Lock(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		wallet := wallets[req.UserID]

		// Layer 2: ledger reference check
		existing, err := s.Transactions.GetByReference(ctx, tx, wallet.ID, txType, ref)
		if err != nil {
			return dbErr("db idempotency check", err)
		}
		if existing != nil {
			txn = existing
			return nil
		}

		m := Movement{Type: txType, Amount: req.Amount, Reference: ref, Description: req.Description}
		if txType == domain.TransactionTypeDeposit {
			txn, err = s.ledger.Credit(ctx, tx, wallet, m)
		} else {
			txn, err = s.ledger.Debit(ctx, tx, wallet, m)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	// Post-process: cache in Redis (best-effort)
	if respJSON, err := json.Marshal(txn); err == nil {
		if err := s.idempCache.Set(ctx, idempKey, respJSON, s.Settings.IdempotencyTTL); err != nil {
			s.Log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	s.Log.Info().
		Str("tx_id", txn.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("type", string(txType)).
		Int64("amount", req.Amount).
		Msg("wallet movement processed")

	return txn, nil
}

// GetWallet returns the user's wallet.
func (s *WalletServiceImpl) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.Wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, dbErr("get wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// ListTransactions pages through the user's ledger entries, newest first.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, userID uuid.UUID, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	params.WalletID = wallet.ID
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	txns, total, err := s.Transactions.List(ctx, params)
	if err != nil {
		return nil, 0, dbErr("list transactions", err)
	}
	return txns, total, nil
}

// SetActive activates or deactivates a wallet. Inactive wallets keep
// receiving credits and settlements but reject holds and debits.
func (s *WalletServiceImpl) SetActive(ctx context.Context, actor domain.Actor, userID uuid.UUID, active bool) (*domain.Wallet, error) {
	if err := authorize(actor, domain.CapAdministerWallets); err != nil {
		return nil, err
	}

	var wallet *domain.Wallet
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		wallets, err := s.ledger.Lock(ctx, tx, userID)
		if err != nil {
			return err
		}
		wallet = wallets[userID]
		if err := s.Wallets.SetActive(ctx, tx, wallet.ID, active); err != nil {
			return dbErr("set wallet status", err)
		}
		wallet.IsActive = active
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("admin_id", actor.UserID.String()).
		Bool("active", active).
		Msg("wallet status changed")

	return wallet, nil
}

func unmarshalCachedTransaction(data []byte) (*domain.Transaction, error) {
	var txn domain.Transaction
	if err := json.Unmarshal(data, &txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached response: %w", err))
	}
	return &txn, nil
}
