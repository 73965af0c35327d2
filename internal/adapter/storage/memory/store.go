// Package memory is an in-process store implementing every repository port.
// It backs the service and HTTP tests and the "memory" storage driver.
//
// A transaction takes the store's single lock for its whole lifetime, which
// serializes writers the way row locks would. Calls with a nil tx take the
// lock for the duration of the call, so they must never be made while the
// same goroutine has a transaction open.
package memory

import (
	"context"
	"errors"
	"sync"

	"escrow-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errTxDone = errors.New("memory: transaction already finished")

// Store holds all rows.
type Store struct {
	mu sync.Mutex
	st *state
}

type state struct {
	wallets          map[uuid.UUID]domain.Wallet // by wallet id
	transactions     []domain.Transaction
	users            map[uuid.UUID]domain.User
	products         map[uuid.UUID]domain.Product
	carts            map[uuid.UUID][]domain.CartLine // by buyer id
	orders           map[uuid.UUID]domain.Order
	auctions         map[uuid.UUID]domain.Auction
	bids             map[uuid.UUID][]domain.Bid // by auction id
	returns          map[uuid.UUID]domain.ReturnRequest
	returnedProducts map[uuid.UUID]domain.ReturnedProduct
	notifications    []domain.Notification
	outbox           []domain.OutboxEvent
	audit            []domain.AuditLog
}

// New creates an empty Store.
func New() *Store {
	return &Store{st: &state{
		wallets:          make(map[uuid.UUID]domain.Wallet),
		users:            make(map[uuid.UUID]domain.User),
		products:         make(map[uuid.UUID]domain.Product),
		carts:            make(map[uuid.UUID][]domain.CartLine),
		orders:           make(map[uuid.UUID]domain.Order),
		auctions:         make(map[uuid.UUID]domain.Auction),
		bids:             make(map[uuid.UUID][]domain.Bid),
		returns:          make(map[uuid.UUID]domain.ReturnRequest),
		returnedProducts: make(map[uuid.UUID]domain.ReturnedProduct),
	}}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneSlices[K comparable, V any](m map[K][]V) map[K][]V {
	out := make(map[K][]V, len(m))
	for k, v := range m {
		out[k] = append([]V(nil), v...)
	}
	return out
}

// clone copies every table. Stored values are never mutated in place, so
// copying the maps and slices is enough.
func (st *state) clone() *state {
	return &state{
		wallets:          cloneMap(st.wallets),
		transactions:     append([]domain.Transaction(nil), st.transactions...),
		users:            cloneMap(st.users),
		products:         cloneMap(st.products),
		carts:            cloneSlices(st.carts),
		orders:           cloneMap(st.orders),
		auctions:         cloneMap(st.auctions),
		bids:             cloneSlices(st.bids),
		returns:          cloneMap(st.returns),
		returnedProducts: cloneMap(st.returnedProducts),
		notifications:    append([]domain.Notification(nil), st.notifications...),
		outbox:           append([]domain.OutboxEvent(nil), st.outbox...),
		audit:            append([]domain.AuditLog(nil), st.audit...),
	}
}

// do runs fn against the current state. With a nil tx it takes the lock;
// inside a transaction the lock is already held.
func (s *Store) do(tx pgx.Tx, fn func(st *state) error) error {
	if tx == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.st)
}

// --- Transactor ---

// Begin starts a transaction, blocking until no other transaction is open.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	s.mu.Lock()
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return &memTx{store: s, snapshot: s.st.clone()}, nil
}

// memTx is a pgx.Tx over the store. Rollback restores the snapshot taken
// at Begin; only Commit and Rollback are meaningful.
type memTx struct {
	store    *Store
	snapshot *state
	done     bool
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.snapshot = nil
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.st = t.snapshot
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *memTx) Conn() *pgx.Conn { return nil }

// Ping reports the store as always reachable.
func (s *Store) Ping(ctx context.Context) error { return nil }

// Name returns the dependency name.
func (s *Store) Name() string { return "memory" }
