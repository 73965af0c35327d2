package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"
	"escrow-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Deps lists the repositories and settings shared by the marketplace services.
type Deps struct {
	Transactor    ports.DBTransactor
	Wallets       ports.WalletRepository
	Transactions  ports.TransactionRepository
	Users         ports.UserRepository
	Products      ports.ProductRepository
	Carts         ports.CartRepository
	Orders        ports.OrderRepository
	Auctions      ports.AuctionRepository
	Returns       ports.ReturnRepository
	Notifications ports.NotificationRepository
	Outbox        ports.OutboxRepository
	Settings      Settings
	Clock         func() time.Time // defaults to time.Now
	Log           zerolog.Logger
}

// engine holds the collaborators every business operation uses.
type engine struct {
	Deps
	ledger   *Ledger
	notifier *Notifier
	stock    *stockKeeper
}

func newEngine(d Deps) *engine {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	base := d.Clock
	clock := func() time.Time { return base().UTC() }
	d.Clock = clock

	notifier := NewNotifier(d.Notifications, d.Outbox, clock)
	return &engine{
		Deps:     d,
		ledger:   NewLedger(d.Wallets, d.Transactions, clock, d.Log),
		notifier: notifier,
		stock: &stockKeeper{
			products:  d.Products,
			carts:     d.Carts,
			notifier:  notifier,
			threshold: d.Settings.LowStockThreshold,
		},
	}
}

func (e *engine) now() time.Time {
	return e.Clock()
}

// inTx runs fn inside one database transaction. The transaction commits only
// if fn returns nil; every other path rolls back.
func (e *engine) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	dbTx, err := e.Transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := fn(dbTx); err != nil {
		return err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// authorize fails with Forbidden unless the actor's role grants c.
func authorize(actor domain.Actor, c domain.Capability) error {
	if !actor.Can(c) {
		return apperror.ErrForbidden()
	}
	return nil
}

// lockNotAvailable is the SQLSTATE raised when lock_timeout expires.
const lockNotAvailable = "55P03"

// dbErr wraps a repository failure as an internal error, or as a lock
// timeout when the database gave up waiting for a row lock.
func dbErr(op string, err error) error {
	wrapped := fmt.Errorf("%s: %w", op, err)
	var coded interface{ SQLState() string }
	if errors.As(err, &coded) && coded.SQLState() == lockNotAvailable {
		return apperror.ErrLockTimeout(wrapped)
	}
	return apperror.InternalError(wrapped)
}

// lockProducts locks the products in ascending id order and fails with
// NotFound if any is missing.
func (e *engine) lockProducts(ctx context.Context, tx pgx.Tx, ids ...uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	products, err := e.Products.GetManyForUpdate(ctx, tx, uniqueIDs(ids))
	if err != nil {
		return nil, dbErr("lock products", err)
	}
	for _, id := range ids {
		if products[id] == nil {
			return nil, apperror.ErrNotFound("product")
		}
	}
	return products, nil
}

func (e *engine) lockOrder(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	order, err := e.Orders.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, dbErr("lock order", err)
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	return order, nil
}

// escrowHolder is the user whose wallet holds the order's money.
func (e *engine) escrowHolder(o *domain.Order) uuid.UUID {
	if o.EscrowMode == domain.EscrowPlatformWallet {
		return e.Settings.PlatformUserID
	}
	return o.BuyerID
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func ptrTime(t time.Time) *time.Time { return &t }

func ptrUUID(id uuid.UUID) *uuid.UUID { return &id }

func ptrString(s string) *string { return &s }

func ptrInt64(v int64) *int64 { return &v }
