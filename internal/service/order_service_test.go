package service

import (
	"testing"
	"time"

	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"
	"escrow-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckout_HoldsTotalAndMovesStock(t *testing.T) {
	f := newFixture(t)
	seller := f.user(domain.RoleSeller)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 20000)
	lamp := f.product(seller, 6000, 10)
	rug := f.product(seller, 2000, 10)

	o := f.checkout(buyer, 500, map[*domain.Product]int64{lamp: 1, rug: 2})

	assert.Equal(t, domain.OrderStatusCreated, o.Status)
	assert.Equal(t, domain.EscrowBuyerWallet, o.EscrowMode)
	assert.Equal(t, int64(10500), o.TotalAmount)
	assert.Equal(t, int64(500), o.DeliveryFee)
	assert.Len(t, o.Items, 2)
	assert.Equal(t, "Riyadh", o.Shipping.City)

	w := f.wallet(buyer)
	assert.Equal(t, int64(9500), w.Balance)
	assert.Equal(t, int64(10500), w.HeldBalance)
	assert.Equal(t, int64(9), f.stock(lamp.ID))
	assert.Equal(t, int64(8), f.stock(rug.ID))

	lines, err := f.store.Carts().ListLines(f.ctx, nil, buyer.UserID)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Equal(t, 1, f.notified(buyer, domain.NotifyOrderCreated))
	f.assertWalletTotalsMatchLedger(buyer)
}

func TestCheckout_FreezesSalePrice(t *testing.T) {
	f := newFixture(t)
	seller := f.user(domain.RoleSeller)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 10000)

	sale := int64(4000)
	ends := f.now.Add(time.Hour)
	p := domain.Product{
		ID:         uuid.New(),
		SellerID:   seller.UserID,
		NameEN:     "Kettle",
		Price:      5000,
		SalePrice:  &sale,
		SaleEndsAt: &ends,
		Stock:      3,
	}
	f.store.Products().Put(p)

	o := f.checkout(buyer, 0, map[*domain.Product]int64{&p: 1})
	assert.Equal(t, int64(4000), o.Items[0].UnitPrice)
	assert.Equal(t, int64(4000), o.TotalAmount)
}

func TestCheckout_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture, buyer domain.Actor, p *domain.Product)
		want  *apperror.AppError
	}{
		{
			name:  "empty cart",
			setup: func(f *fixture, buyer domain.Actor, p *domain.Product) {},
			want:  apperror.ErrEmptyCart(),
		},
		{
			name: "more than stock",
			setup: func(f *fixture, buyer domain.Actor, p *domain.Product) {
				f.addToCart(buyer, p, 11)
			},
			want: apperror.ErrInsufficientStock(""),
		},
		{
			name: "not enough money",
			setup: func(f *fixture, buyer domain.Actor, p *domain.Product) {
				f.addToCart(buyer, p, 6)
			},
			want: apperror.ErrInsufficientFunds(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			seller := f.user(domain.RoleSeller)
			buyer := f.user(domain.RoleBuyer)
			f.fund(buyer, 5000)
			p := f.product(seller, 1000, 10)
			tt.setup(f, buyer, p)

			_, err := f.orders.Checkout(f.ctx, ports.CheckoutRequest{BuyerID: buyer.UserID, DeliveryFee: 100})
			assertCode(t, err, tt.want)

			w := f.wallet(buyer)
			assert.Equal(t, int64(5000), w.Balance)
			assert.Equal(t, int64(0), w.HeldBalance)
			assert.Equal(t, int64(10), f.stock(p.ID))
		})
	}
}

func TestCheckout_RequiresShippingLocation(t *testing.T) {
	f := newFixture(t)
	seller := f.user(domain.RoleSeller)
	buyer := domain.Actor{UserID: uuid.New(), Role: domain.RoleBuyer}
	f.putUser(buyer, false)
	f.fund(buyer, 5000)
	p := f.product(seller, 1000, 10)
	f.addToCart(buyer, p, 1)

	_, err := f.orders.Checkout(f.ctx, ports.CheckoutRequest{BuyerID: buyer.UserID})
	assertCode(t, err, apperror.ErrMissingShippingLocation())
}

func TestCheckout_LowStockNotifiesSellerAndClampsCarts(t *testing.T) {
	f := newFixture(t)
	seller := f.user(domain.RoleSeller)
	buyer := f.user(domain.RoleBuyer)
	other := f.user(domain.RoleBuyer)
	f.fund(buyer, 10000)
	p := f.product(seller, 1000, 7)
	f.addToCart(other, p, 5)

	f.checkout(buyer, 0, map[*domain.Product]int64{p: 3})

	assert.Equal(t, int64(4), f.stock(p.ID))
	assert.Equal(t, 1, f.notified(seller, domain.NotifyLowStock))

	lines, err := f.store.Carts().ListLines(f.ctx, nil, other.UserID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, int64(4), lines[0].Quantity)
}

func TestComplete_PaysSellerAndPlatform(t *testing.T) {
	f := newFixture(t)
	seller := f.user(domain.RoleSeller)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 20000)
	p := f.product(seller, 10000, 10)

	o := f.checkout(buyer, 0, map[*domain.Product]int64{p: 1})
	f.deliver(o, seller)

	_, err := f.orders.Complete(f.ctx, o.ID)
	assertCode(t, err, apperror.ErrWindowStillOpen())

	f.advance(72 * time.Hour)
	done, err := f.orders.Complete(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)

	assert.Equal(t, int64(9600), f.wallet(seller).Balance)
	assert.Equal(t, int64(400), f.wallet(f.platform).Balance)
	bw := f.wallet(buyer)
	assert.Equal(t, int64(10000), bw.Balance)
	assert.Equal(t, int64(0), bw.HeldBalance)
	assert.Equal(t, int64(9), f.points(seller))
	assert.Equal(t, 1, f.notified(seller, domain.NotifySellerPayment))
	assert.Equal(t, 1, f.notified(buyer, domain.NotifyOrderCompleted))

	// A second completion is rejected and pays nothing.
	_, err = f.orders.Complete(f.ctx, o.ID)
	assertCode(t, err, apperror.ErrInvalidStateTransition("", "", ""))
	assert.Equal(t, int64(9600), f.wallet(seller).Balance)
	assert.Equal(t, int64(9), f.points(seller))

	for _, a := range []domain.Actor{buyer, seller, f.platform} {
		f.assertWalletTotalsMatchLedger(a)
	}
}

func TestComplete_SplitsPerSellerAndKeepsDeliveryFee(t *testing.T) {
	f := newFixture(t, func(s *Settings) { s.MinFee = 300 })
	s1 := f.user(domain.RoleSeller)
	s2 := f.user(domain.RoleSeller)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 50000)
	a := f.product(s1, 20000, 5)
	b := f.product(s2, 1000, 5)

	o := f.checkout(buyer, 700, map[*domain.Product]int64{a: 1, b: 2})
	f.deliver(o, s1)
	f.advance(73 * time.Hour)

	_, err := f.orders.Complete(f.ctx, o.ID)
	require.NoError(t, err)

	// 4% of 200.00 is 8.00; 4% of 20.00 is 0.80, raised to the 3.00 minimum.
	assert.Equal(t, int64(19200), f.wallet(s1).Balance)
	assert.Equal(t, int64(1700), f.wallet(s2).Balance)
	assert.Equal(t, int64(800+300+700), f.wallet(f.platform).Balance)
	assert.Equal(t, int64(0), f.wallet(buyer).HeldBalance)
}

func TestComplete_VerifiesSellerOnce(t *testing.T) {
	f := newFixture(t, func(s *Settings) { s.VerificationThreshold = 5 })
	seller := f.user(domain.RoleSeller)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 50000)
	p := f.product(seller, 10000, 10)

	for i := 0; i < 2; i++ {
		o := f.checkout(buyer, 0, map[*domain.Product]int64{p: 1})
		f.deliver(o, seller)
		f.advance(72 * time.Hour)
		_, err := f.orders.Complete(f.ctx, o.ID)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(18), f.points(seller))
	assert.Equal(t, 1, f.notified(seller, domain.NotifySellerVerified))
	u, err := f.store.Users().GetByID(f.ctx, nil, seller.UserID)
	require.NoError(t, err)
	assert.True(t, u.IsVerifiedSeller)
}

func TestComplete_RequiresDelivery(t *testing.T) {
	f := newFixture(t)
	seller := f.user(domain.RoleSeller)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 5000)
	p := f.product(seller, 1000, 10)
	o := f.checkout(buyer, 0, map[*domain.Product]int64{p: 1})

	f.advance(100 * time.Hour)
	_, err := f.orders.Complete(f.ctx, o.ID)
	assertCode(t, err, apperror.ErrInvalidStateTransition("", "", ""))
}

func TestComplete_BlockedByOpenReturn(t *testing.T) {
	f := newFixture(t)
	seller := f.user(domain.RoleSeller)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 5000)
	p := f.product(seller, 1000, 10)
	o := f.checkout(buyer, 0, map[*domain.Product]int64{p: 2})
	f.deliver(o, seller)

	_, err := f.returns.Request(f.ctx, buyer, ports.ReturnRequestInput{
		OrderID:     o.ID,
		OrderItemID: o.Items[0].ID,
		Quantity:    1,
		Reason:      "scratched",
	})
	require.NoError(t, err)

	f.advance(80 * time.Hour)
	_, err = f.orders.Complete(f.ctx, o.ID)
	assertCode(t, err, apperror.ErrInvalidStateTransition("", "", ""))
	assert.Equal(t, int64(2000), f.wallet(buyer).HeldBalance)
}

func TestAutoComplete_SweepsDueOrders(t *testing.T) {
	f := newFixture(t)
	seller := f.user(domain.RoleSeller)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 10000)
	p := f.product(seller, 1000, 10)

	due := f.checkout(buyer, 0, map[*domain.Product]int64{p: 1})
	f.deliver(due, seller)
	pending := f.checkout(buyer, 0, map[*domain.Product]int64{p: 1})
	f.advance(72 * time.Hour)

	res, err := f.orders.AutoComplete(f.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 0, res.Failed)

	assert.Equal(t, domain.OrderStatusCompleted, f.order(due.ID).Status)
	assert.Equal(t, domain.OrderStatusCreated, f.order(pending.ID).Status)
}

func TestCancel_PenaltyTiers(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  time.Duration
		refund   int64
		penalty  int64
		platform int64
	}{
		{name: "within the hour", elapsed: 30 * time.Minute, refund: 9500, penalty: 0, platform: 500},
		{name: "within the day", elapsed: 2 * time.Hour, refund: 8550, penalty: 950, platform: 1450},
		{name: "after a day", elapsed: 30 * time.Hour, refund: 8075, penalty: 1425, platform: 1925},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			seller := f.user(domain.RoleSeller)
			buyer := f.user(domain.RoleBuyer)
			f.fund(buyer, 20000)
			p := f.product(seller, 9500, 10)
			o := f.checkout(buyer, 500, map[*domain.Product]int64{p: 1})
			require.Equal(t, int64(10000), o.TotalAmount)

			f.advance(tt.elapsed)
			res, err := f.orders.Cancel(f.ctx, buyer, o.ID)
			require.NoError(t, err)

			assert.Equal(t, tt.refund, res.Refund)
			assert.Equal(t, tt.penalty, res.Penalty)
			assert.Equal(t, int64(500), res.RetainedFee)
			assert.Equal(t, domain.OrderStatusCancelled, res.Order.Status)

			bw := f.wallet(buyer)
			assert.Equal(t, 10000+tt.refund, bw.Balance)
			assert.Equal(t, int64(0), bw.HeldBalance)
			assert.Equal(t, tt.platform, f.wallet(f.platform).Balance)
			assert.Equal(t, int64(10), f.stock(p.ID))
			assert.Equal(t, 1, f.notified(seller, domain.NotifyOrderCancelled))
			f.assertWalletTotalsMatchLedger(buyer)
		})
	}
}

func TestCancel_Rules(t *testing.T) {
	f := newFixture(t)
	seller := f.user(domain.RoleSeller)
	buyer := f.user(domain.RoleBuyer)
	stranger := f.user(domain.RoleBuyer)
	f.fund(buyer, 10000)
	p := f.product(seller, 1000, 10)

	o := f.checkout(buyer, 0, map[*domain.Product]int64{p: 1})
	_, err := f.orders.Cancel(f.ctx, stranger, o.ID)
	assertCode(t, err, apperror.ErrNotOwner(""))

	courier := f.user(domain.RoleCourier)
	_, err = f.orders.Cancel(f.ctx, courier, o.ID)
	assertCode(t, err, apperror.ErrForbidden())

	f.deliver(o, seller)
	_, err = f.orders.Cancel(f.ctx, buyer, o.ID)
	assertCode(t, err, apperror.ErrInvalidStateTransition("", "", ""))

	// Admins may cancel on the buyer's behalf.
	o2 := f.checkout(buyer, 0, map[*domain.Product]int64{p: 1})
	res, err := f.orders.Cancel(f.ctx, f.admin, o2.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), res.Refund)
}

func TestRefundDelivered(t *testing.T) {
	f := newFixture(t)
	seller := f.user(domain.RoleSeller)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 20000)
	p := f.product(seller, 9500, 10)

	o := f.checkout(buyer, 500, map[*domain.Product]int64{p: 1})
	f.deliver(o, seller)
	f.advance(24 * time.Hour)

	res, err := f.orders.RefundDelivered(f.ctx, buyer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRefunded, res.Order.Status)
	assert.Equal(t, int64(9500), res.Refund)
	assert.Equal(t, int64(0), res.Penalty)

	bw := f.wallet(buyer)
	assert.Equal(t, int64(19500), bw.Balance)
	assert.Equal(t, int64(0), bw.HeldBalance)
	assert.Equal(t, int64(500), f.wallet(f.platform).Balance)
	assert.Equal(t, int64(10), f.stock(p.ID))
}

func TestRefundDelivered_ConfiguredPenalty(t *testing.T) {
	f := newFixture(t, func(s *Settings) { s.DeliveredRefundPenaltyRate = decimal.RequireFromString("0.10") })
	seller := f.user(domain.RoleSeller)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 20000)
	p := f.product(seller, 9500, 10)

	o := f.checkout(buyer, 500, map[*domain.Product]int64{p: 1})
	f.deliver(o, seller)

	res, err := f.orders.RefundDelivered(f.ctx, buyer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8550), res.Refund)
	assert.Equal(t, int64(950), res.Penalty)
	assert.Equal(t, int64(1450), f.wallet(f.platform).Balance)
}

func TestRefundDelivered_WindowExpired(t *testing.T) {
	f := newFixture(t)
	seller := f.user(domain.RoleSeller)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 5000)
	p := f.product(seller, 1000, 10)

	o := f.checkout(buyer, 0, map[*domain.Product]int64{p: 1})
	f.deliver(o, seller)
	f.advance(72 * time.Hour)

	_, err := f.orders.RefundDelivered(f.ctx, buyer, o.ID)
	assertCode(t, err, apperror.ErrWindowExpired(""))
	assert.Equal(t, int64(1000), f.wallet(buyer).HeldBalance)
}

func TestAdvanceStatus_Rules(t *testing.T) {
	f := newFixture(t)
	seller := f.user(domain.RoleSeller)
	otherSeller := f.user(domain.RoleSeller)
	buyer := f.user(domain.RoleBuyer)
	courier := f.user(domain.RoleCourier)
	otherCourier := f.user(domain.RoleCourier)
	f.fund(buyer, 5000)
	p := f.product(seller, 1000, 10)
	o := f.checkout(buyer, 0, map[*domain.Product]int64{p: 1})

	_, err := f.orders.AdvanceStatus(f.ctx, buyer, o.ID, domain.OrderStatusProcessing)
	assertCode(t, err, apperror.ErrForbidden())

	_, err = f.orders.AdvanceStatus(f.ctx, otherSeller, o.ID, domain.OrderStatusProcessing)
	assertCode(t, err, apperror.ErrNotOwner(""))

	_, err = f.orders.AdvanceStatus(f.ctx, seller, o.ID, domain.OrderStatusShipped)
	assertCode(t, err, apperror.ErrInvalidStateTransition("", "", ""))

	_, err = f.orders.AdvanceStatus(f.ctx, seller, o.ID, domain.OrderStatusProcessing)
	require.NoError(t, err)
	_, err = f.orders.AssignCourier(f.ctx, courier, o.ID)
	require.NoError(t, err)
	_, err = f.orders.AssignCourier(f.ctx, otherCourier, o.ID)
	assertCode(t, err, apperror.ErrNotAssigned())

	_, err = f.orders.AdvanceStatus(f.ctx, seller, o.ID, domain.OrderStatusShipped)
	require.NoError(t, err)

	_, err = f.orders.AdvanceStatus(f.ctx, seller, o.ID, domain.OrderStatusDelivered)
	assertCode(t, err, apperror.ErrForbidden())
	_, err = f.orders.AdvanceStatus(f.ctx, otherCourier, o.ID, domain.OrderStatusDelivered)
	assertCode(t, err, apperror.ErrNotAssigned())

	delivered, err := f.orders.AdvanceStatus(f.ctx, courier, o.ID, domain.OrderStatusDelivered)
	require.NoError(t, err)
	require.NotNil(t, delivered.DeliveredAt)
	assert.Equal(t, f.now, *delivered.DeliveredAt)
	assert.Positive(t, f.notified(buyer, domain.NotifyOrderStatusChanged))
}

func TestGetOrder_Visibility(t *testing.T) {
	f := newFixture(t)
	seller := f.user(domain.RoleSeller)
	buyer := f.user(domain.RoleBuyer)
	stranger := f.user(domain.RoleBuyer)
	f.fund(buyer, 5000)
	p := f.product(seller, 1000, 10)
	o := f.checkout(buyer, 0, map[*domain.Product]int64{p: 1})

	for _, a := range []domain.Actor{buyer, seller, f.admin} {
		got, err := f.orders.GetOrder(f.ctx, a, o.ID)
		require.NoError(t, err)
		assert.Equal(t, o.Number, got.Number)
	}

	_, err := f.orders.GetOrder(f.ctx, stranger, o.ID)
	assertCode(t, err, apperror.ErrNotOwner(""))

	_, err = f.orders.GetOrder(f.ctx, buyer, uuid.New())
	assertCode(t, err, apperror.ErrNotFound(""))
}
