package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"escrow-marketplace/config"
	httpHandler "escrow-marketplace/internal/adapter/http/handler"
	"escrow-marketplace/internal/app"
	"escrow-marketplace/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp is the full stack on the memory driver with miniredis: real
// router, middleware, handlers, services and Redis stores.
type testApp struct {
	*app.App
	server *httptest.Server
	redis  *miniredis.Miniredis
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Driver = "memory"
	cfg.Redis.Host, cfg.Redis.Port = mr.Host(), port
	cfg.JWT.Secret = "test-jwt-secret-key-32bytes!!"
	cfg.Marketplace.PlatformUserID = uuid.NewString()
	require.NoError(t, cfg.Validate())

	a, err := app.New(context.Background(), cfg, zerolog.Nop(), "test")
	require.NoError(t, err)
	require.True(t, a.InProcess)
	require.NotNil(t, a.Store)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:       a.WalletSvc,
		OrderSvc:        a.OrderSvc,
		AuctionSvc:      a.AuctionSvc,
		ReturnSvc:       a.ReturnSvc,
		NotificationSvc: a.NotificationSvc,
		TokenSvc:        a.TokenSvc,
		AuctionFeed:     a.AuctionFeed,
		RateLimitStore:  a.RateLimits,
		HealthCheckers:  a.HealthCheckers,
		AuditSvc:        a.AuditSvc,
		BidsPerMinute:   cfg.Marketplace.BidRateLimitPerMinute,
		Logger:          zerolog.Nop(),
	})

	ta := &testApp{App: a, server: httptest.NewServer(router), redis: mr}
	t.Cleanup(ta.close)
	return ta
}

func (a *testApp) close() {
	a.server.Close()
	a.App.Close()
	a.redis.Close()
}

// user seeds a profile and returns a bearer token for it.
func (a *testApp) user(t *testing.T, role domain.Role) (uuid.UUID, string) {
	t.Helper()
	id := uuid.New()
	a.Store.Users().Put(domain.User{
		ID:    id,
		Email: id.String() + "@example.com",
		Role:  role,
		Shipping: &domain.ShippingLocation{
			Latitude: 24.7136, Longitude: 46.6753, AddressLine: "King Fahd Rd", City: "Riyadh", Country: "SA",
		},
	})
	token, _, err := a.TokenSvc.Generate(domain.Actor{UserID: id, Role: role})
	require.NoError(t, err)
	return id, token
}

// call sends a JSON request and returns the status and the "data" object.
func (a *testApp) call(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = json.Unmarshal(raw, &envelope)
	var data map[string]interface{}
	_ = json.Unmarshal(envelope.Data, &data)
	return resp.StatusCode, data
}

func (a *testApp) fund(t *testing.T, token string, amount int64) {
	t.Helper()
	status, _ := a.call(t, http.MethodGet, "/api/v1/wallets/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = a.call(t, http.MethodPost, "/api/v1/wallets/me/deposits", token, map[string]interface{}{
		"amount": amount, "reference": "seed-" + uuid.NewString()[:8],
	})
	require.Equal(t, http.StatusCreated, status)
}

func (a *testApp) wallet(t *testing.T, token string) (balance, held int64) {
	t.Helper()
	status, data := a.call(t, http.MethodGet, "/api/v1/wallets/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	return int64(data["balance"].(float64)), int64(data["held_balance"].(float64))
}

// --- Integration Tests ---

func TestIntegration_HealthCheck(t *testing.T) {
	a := newTestApp(t)

	resp, err := http.Get(a.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestIntegration_Unauthorized(t *testing.T) {
	a := newTestApp(t)

	status, _ := a.call(t, http.MethodGet, "/api/v1/wallets/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = a.call(t, http.MethodGet, "/api/v1/wallets/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

// TestIntegration_ConcurrentWithdrawals fires more withdrawals than the
// balance covers; row locking must let exactly the covered ones through.
func TestIntegration_ConcurrentWithdrawals(t *testing.T) {
	a := newTestApp(t)
	_, token := a.user(t, domain.RoleBuyer)
	a.fund(t, token, 10000)

	const attempts = 15
	var wg sync.WaitGroup
	var ok, short atomic.Int64
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status, _ := a.call(t, http.MethodPost, "/api/v1/wallets/me/withdrawals", token, map[string]interface{}{
				"amount": 1000, "reference": fmt.Sprintf("wd-%02d", i),
			})
			switch status {
			case http.StatusCreated:
				ok.Add(1)
			case http.StatusPaymentRequired:
				short.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(10), ok.Load())
	assert.Equal(t, int64(attempts-10), short.Load())
	balance, held := a.wallet(t, token)
	assert.Equal(t, int64(0), balance)
	assert.Equal(t, int64(0), held)
}

// TestIntegration_ConcurrentIdempotentDeposits replays one reference; the
// wallet is credited once and every caller sees the same entry.
func TestIntegration_ConcurrentIdempotentDeposits(t *testing.T) {
	a := newTestApp(t)
	_, token := a.user(t, domain.RoleBuyer)
	status, _ := a.call(t, http.MethodGet, "/api/v1/wallets/me", token, nil)
	require.Equal(t, http.StatusOK, status)

	const attempts = 10
	var wg sync.WaitGroup
	ids := make([]string, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status, data := a.call(t, http.MethodPost, "/api/v1/wallets/me/deposits", token, map[string]interface{}{
				"amount": 5000, "reference": "card-topup-7",
			})
			if status == http.StatusCreated {
				ids[i], _ = data["id"].(string)
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < attempts; i++ {
		assert.NotEmpty(t, ids[i])
		assert.Equal(t, ids[0], ids[i], "replays return the original entry")
	}
	balance, _ := a.wallet(t, token)
	assert.Equal(t, int64(5000), balance)
}

// TestIntegration_CheckoutThenCancel holds the order total, then cancels
// inside the free window: the buyer gets everything back except the
// delivery fee.
func TestIntegration_CheckoutThenCancel(t *testing.T) {
	a := newTestApp(t)
	buyerID, buyerToken := a.user(t, domain.RoleBuyer)
	sellerID, _ := a.user(t, domain.RoleSeller)
	a.fund(t, buyerToken, 100000)

	productID := uuid.New()
	a.Store.Products().Put(domain.Product{ID: productID, SellerID: sellerID, NameEN: "Desk lamp", Price: 25000, Stock: 10})
	a.Store.Carts().Put(domain.CartLine{BuyerID: buyerID, ProductID: productID, Quantity: 2})

	status, order := a.call(t, http.MethodPost, "/api/v1/orders", buyerToken, map[string]interface{}{"delivery_fee": 1500})
	require.Equal(t, http.StatusCreated, status)
	total := int64(order["total_amount"].(float64))
	orderID := order["id"].(string)

	balance, held := a.wallet(t, buyerToken)
	assert.Equal(t, total, held)
	assert.Equal(t, int64(100000)-total, balance)

	status, result := a.call(t, http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", buyerToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), result["penalty"])
	assert.Equal(t, float64(total-1500), result["refund"])

	balance, held = a.wallet(t, buyerToken)
	assert.Equal(t, int64(0), held)
	assert.Equal(t, int64(100000-1500), balance)

	p, err := a.Store.Products().GetByID(context.Background(), nil, productID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.Stock, "cancelled units go back on sale")
}

// TestIntegration_RelayDrainsInProcess checks the memory driver's outbox is
// published by the in-process relay.
func TestIntegration_RelayDrainsInProcess(t *testing.T) {
	a := newTestApp(t)
	sellerID, _ := a.user(t, domain.RoleSeller)
	buyerID, buyerToken := a.user(t, domain.RoleBuyer)
	a.fund(t, buyerToken, 50000)
	productID := uuid.New()
	a.Store.Products().Put(domain.Product{ID: productID, SellerID: sellerID, NameEN: "Kettle", Price: 9000, Stock: 3})
	a.Store.Carts().Put(domain.CartLine{BuyerID: buyerID, ProductID: productID, Quantity: 1})
	status, _ := a.call(t, http.MethodPost, "/api/v1/orders", buyerToken, map[string]interface{}{"delivery_fee": 0})
	require.Equal(t, http.StatusCreated, status)

	res, err := a.Relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Positive(t, res.Processed)
	assert.Zero(t, res.Failed)

	res, err = a.Relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Processed, "nothing left pending")
}
