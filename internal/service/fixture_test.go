package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"escrow-marketplace/internal/adapter/storage/memory"
	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"
	"escrow-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// mapCache is an in-process ports.IdempotencyCache.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string][]byte)} }

func (c *mapCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *mapCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

// fixture wires every marketplace service to one memory store and a
// controllable clock.
type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *memory.Store
	now      time.Time
	tick     time.Duration
	clockMu  sync.Mutex
	platform domain.Actor
	admin    domain.Actor
	cache    *mapCache

	wallets  *WalletServiceImpl
	orders   *OrderServiceImpl
	auctions *AuctionServiceImpl
	returns  *ReturnServiceImpl
}

func newFixture(t *testing.T, tweak ...func(*Settings)) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: memory.New(),
		now:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		cache: newMapCache(),
	}

	platformID := uuid.New()
	settings := DefaultSettings(platformID)
	for _, fn := range tweak {
		fn(&settings)
	}

	d := Deps{
		Transactor:    f.store,
		Wallets:       f.store.Wallets(),
		Transactions:  f.store.Transactions(),
		Users:         f.store.Users(),
		Products:      f.store.Products(),
		Carts:         f.store.Carts(),
		Orders:        f.store.Orders(),
		Auctions:      f.store.Auctions(),
		Returns:       f.store.Returns(),
		Notifications: f.store.Notifications(),
		Outbox:        f.store.Outbox(),
		Settings:      settings,
		Clock:         f.clock,
		Log:           newTestLogger(),
	}
	f.wallets = NewWalletService(d, f.cache)
	f.orders = NewOrderService(d)
	f.auctions = NewAuctionService(d)
	f.returns = NewReturnService(d)

	f.platform = domain.Actor{UserID: platformID, Role: domain.RoleAdmin}
	f.putUser(f.platform, false)
	f.admin = f.user(domain.RoleAdmin)
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

// clock returns the fixture time and moves it on by tick, so reads made
// under the store lock come out in commit order.
func (f *fixture) clock() time.Time {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	now := f.now
	f.now = f.now.Add(f.tick)
	return now
}

func (f *fixture) putUser(a domain.Actor, withShipping bool) {
	u := domain.User{
		ID:        a.UserID,
		Email:     a.UserID.String() + "@example.com",
		Role:      a.Role,
		CreatedAt: f.now,
	}
	if withShipping {
		u.Shipping = &domain.ShippingLocation{
			AddressLine: "12 King Fahd Rd",
			City:        "Riyadh",
			Country:     "SA",
		}
	}
	f.store.Users().Put(u)
	_, err := f.wallets.Open(f.ctx, a.UserID)
	require.NoError(f.t, err)
}

// user creates a user with a shipping address and an empty wallet.
func (f *fixture) user(role domain.Role) domain.Actor {
	a := domain.Actor{UserID: uuid.New(), Role: role}
	f.putUser(a, true)
	return a
}

func (f *fixture) fund(a domain.Actor, amount int64) {
	_, err := f.wallets.Deposit(f.ctx, ports.WalletMovementRequest{
		UserID:    a.UserID,
		Amount:    amount,
		Reference: uuid.NewString(),
	})
	require.NoError(f.t, err)
}

func (f *fixture) wallet(a domain.Actor) *domain.Wallet {
	w, err := f.wallets.GetWallet(f.ctx, a.UserID)
	require.NoError(f.t, err)
	return w
}

func (f *fixture) product(seller domain.Actor, price, stock int64) *domain.Product {
	p := domain.Product{
		ID:        uuid.New(),
		SellerID:  seller.UserID,
		NameEN:    "Brass lantern",
		NameAR:    "فانوس نحاسي",
		Price:     price,
		Stock:     stock,
		UpdatedAt: f.now,
	}
	f.store.Products().Put(p)
	return &p
}

func (f *fixture) stock(id uuid.UUID) int64 {
	p, err := f.store.Products().GetByID(f.ctx, nil, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, p)
	return p.Stock
}

func (f *fixture) addToCart(buyer domain.Actor, p *domain.Product, qty int64) {
	f.store.Carts().Put(domain.CartLine{BuyerID: buyer.UserID, ProductID: p.ID, Quantity: qty})
}

func (f *fixture) points(a domain.Actor) int64 {
	u, err := f.store.Users().GetByID(f.ctx, nil, a.UserID)
	require.NoError(f.t, err)
	return u.Points
}

func (f *fixture) order(id uuid.UUID) *domain.Order {
	o, err := f.store.Orders().GetByID(f.ctx, nil, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, o)
	return o
}

func (f *fixture) notified(a domain.Actor, typ domain.NotificationType) int {
	items, err := f.store.Notifications().ListForUser(f.ctx, a.UserID, 0)
	require.NoError(f.t, err)
	n := 0
	for _, item := range items {
		if item.Type == typ {
			n++
		}
	}
	return n
}

// checkout buys qty of each product with the given delivery fee.
func (f *fixture) checkout(buyer domain.Actor, fee int64, lines map[*domain.Product]int64) *domain.Order {
	for p, qty := range lines {
		f.addToCart(buyer, p, qty)
	}
	o, err := f.orders.Checkout(f.ctx, ports.CheckoutRequest{BuyerID: buyer.UserID, DeliveryFee: fee})
	require.NoError(f.t, err)
	return o
}

// deliver walks an order through fulfilment to DELIVERED at the current time.
func (f *fixture) deliver(o *domain.Order, seller domain.Actor) *domain.Order {
	_, err := f.orders.AdvanceStatus(f.ctx, seller, o.ID, domain.OrderStatusProcessing)
	require.NoError(f.t, err)
	courier := f.user(domain.RoleCourier)
	_, err = f.orders.AssignCourier(f.ctx, courier, o.ID)
	require.NoError(f.t, err)
	_, err = f.orders.AdvanceStatus(f.ctx, seller, o.ID, domain.OrderStatusShipped)
	require.NoError(f.t, err)
	delivered, err := f.orders.AdvanceStatus(f.ctx, courier, o.ID, domain.OrderStatusDelivered)
	require.NoError(f.t, err)
	return delivered
}

// assertWalletTotalsMatchLedger replays every entry of the wallet.
func (f *fixture) assertWalletTotalsMatchLedger(a domain.Actor) {
	w := f.wallet(a)
	var bal, held int64
	for _, e := range f.store.Transactions().LedgerEntries(w.ID) {
		bal += e.BalanceDelta
		held += e.HeldDelta
	}
	assert.Equal(f.t, w.Balance, bal, "balance replay")
	assert.Equal(f.t, w.HeldBalance, held, "held replay")
	assert.GreaterOrEqual(f.t, w.Balance, int64(0))
	assert.GreaterOrEqual(f.t, w.HeldBalance, int64(0))
}

func assertCode(t *testing.T, err error, want *apperror.AppError) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want.Code, apperror.CodeOf(err), "error: %v", err)
}
