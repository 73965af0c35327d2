package service

import (
	"testing"
	"time"

	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"
	"escrow-marketplace/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// returnScene is a delivered order of five units at 10.00 each.
type returnScene struct {
	seller domain.Actor
	buyer  domain.Actor
	p      *domain.Product
	o      *domain.Order
}

func (f *fixture) returnScene() returnScene {
	seller := f.user(domain.RoleSeller)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 10000)
	p := f.product(seller, 1000, 10)
	o := f.checkout(buyer, 0, map[*domain.Product]int64{p: 5})
	f.deliver(o, seller)
	return returnScene{seller: seller, buyer: buyer, p: p, o: o}
}

func (f *fixture) requestReturn(sc returnScene, qty int64) *domain.ReturnRequest {
	req, err := f.returns.Request(f.ctx, sc.buyer, ports.ReturnRequestInput{
		OrderID:     sc.o.ID,
		OrderItemID: sc.o.Items[0].ID,
		Quantity:    qty,
		Reason:      "arrived dented",
	})
	require.NoError(f.t, err)
	return req
}

func (f *fixture) setPoints(a domain.Actor, points int64) {
	u, err := f.store.Users().GetByID(f.ctx, nil, a.UserID)
	require.NoError(f.t, err)
	u.Points = points
	f.store.Users().Put(*u)
}

func TestReturn_ApproveSettlesByCondition(t *testing.T) {
	f := newFixture(t)
	sc := f.returnScene()
	f.setPoints(sc.seller, 25)
	req := f.requestReturn(sc, 3)
	assert.Equal(t, domain.ReturnStatusRequested, req.Status)
	assert.Equal(t, 1, f.notified(sc.seller, domain.NotifyReturnRequested))
	stockBefore := f.stock(sc.p.ID)

	inspected, err := f.returns.RecordInspection(f.ctx, f.admin, req.ID, ports.InspectionInput{
		Breakdown: domain.Breakdown{
			{Condition: domain.ConditionNew, Quantity: 1},
			{Condition: domain.ConditionDamaged, Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReturnStatusUnderInspection, inspected.Status)
	require.NotNil(t, inspected.Condition)
	assert.Equal(t, domain.ConditionDamaged, *inspected.Condition)

	res, err := f.returns.Approve(f.ctx, f.admin, req.ID, ports.ApproveReturnInput{AdminNotes: "checked"})
	require.NoError(t, err)
	assert.Equal(t, int64(3000), res.Refund)
	assert.Equal(t, int64(1), res.Restocked)
	assert.Equal(t, int64(10), res.PenaltyPoints)
	assert.Len(t, res.Products, 2)
	assert.Equal(t, domain.ReturnStatusApproved, res.Request.Status)

	assert.Equal(t, stockBefore+1, f.stock(sc.p.ID))
	assert.Equal(t, int64(15), f.points(sc.seller))
	bw := f.wallet(sc.buyer)
	assert.Equal(t, int64(8000), bw.Balance)
	assert.Equal(t, int64(2000), bw.HeldBalance)
	assert.Equal(t, int64(3000), f.order(sc.o.ID).Items[0].RefundedAmount)
	assert.Equal(t, 1, f.notified(sc.buyer, domain.NotifyReturnApproved))
	assert.Equal(t, 1, f.notified(sc.seller, domain.NotifyReturnSellerPenalty))

	_, rows, err := f.returns.Get(f.ctx, sc.seller, req.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, rp := range rows {
		switch rp.Condition {
		case domain.ConditionNew:
			assert.True(t, rp.IsSellable)
		case domain.ConditionDamaged:
			assert.False(t, rp.IsSellable)
			assert.Equal(t, domain.SellerApprovalRejected, rp.SellerApproval)
		}
	}

	// The rest of the order pays out normally.
	f.advance(72 * time.Hour)
	_, err = f.orders.Complete(f.ctx, sc.o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1920), f.wallet(sc.seller).Balance)
	assert.Equal(t, int64(80), f.wallet(f.platform).Balance)
	assert.Equal(t, int64(0), f.wallet(sc.buyer).HeldBalance)
	f.assertWalletTotalsMatchLedger(sc.buyer)
}

func TestReturn_PenaltyFloorsPointsAtZero(t *testing.T) {
	f := newFixture(t)
	sc := f.returnScene()
	f.setPoints(sc.seller, 4)
	req := f.requestReturn(sc, 1)

	res, err := f.returns.Approve(f.ctx, f.admin, req.ID, ports.ApproveReturnInput{
		Breakdown: domain.Breakdown{{Condition: domain.ConditionUnsaleable, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.PenaltyPoints)
	assert.Equal(t, int64(0), f.points(sc.seller))
}

func TestReturn_QuantityMismatch(t *testing.T) {
	f := newFixture(t)
	sc := f.returnScene()
	req := f.requestReturn(sc, 3)

	_, err := f.returns.RecordInspection(f.ctx, f.admin, req.ID, ports.InspectionInput{
		Breakdown: domain.Breakdown{{Condition: domain.ConditionNew, Quantity: 2}},
	})
	assertCode(t, err, apperror.ErrQuantityMismatch(0, 0))

	_, err = f.returns.Approve(f.ctx, f.admin, req.ID, ports.ApproveReturnInput{
		Breakdown: domain.Breakdown{{Condition: domain.ConditionUsed, Quantity: 4}},
	})
	assertCode(t, err, apperror.ErrQuantityMismatch(0, 0))

	_, err = f.returns.Approve(f.ctx, f.admin, req.ID, ports.ApproveReturnInput{})
	assertCode(t, err, apperror.Validation(""))

	_, err = f.returns.RecordInspection(f.ctx, f.admin, req.ID, ports.InspectionInput{
		Breakdown: domain.Breakdown{{Condition: "SCRATCHED", Quantity: 3}},
	})
	assertCode(t, err, apperror.Validation(""))

	assert.Equal(t, int64(5000), f.wallet(sc.buyer).HeldBalance)
}

func TestReturn_RequestRules(t *testing.T) {
	f := newFixture(t)
	sc := f.returnScene()
	stranger := f.user(domain.RoleBuyer)

	_, err := f.returns.Request(f.ctx, stranger, ports.ReturnRequestInput{
		OrderID:     sc.o.ID,
		OrderItemID: sc.o.Items[0].ID,
		Quantity:    1,
		Reason:      "mine now",
	})
	assertCode(t, err, apperror.ErrNotOwner(""))

	_, err = f.returns.Request(f.ctx, sc.buyer, ports.ReturnRequestInput{
		OrderID:     sc.o.ID,
		OrderItemID: sc.o.Items[0].ID,
		Quantity:    1,
	})
	assertCode(t, err, apperror.Validation(""))

	f.requestReturn(sc, 4)
	_, err = f.returns.Request(f.ctx, sc.buyer, ports.ReturnRequestInput{
		OrderID:     sc.o.ID,
		OrderItemID: sc.o.Items[0].ID,
		Quantity:    2,
		Reason:      "second thoughts",
	})
	assertCode(t, err, apperror.Validation(""))

	whole, err := f.returns.RequestWholeOrder(f.ctx, sc.buyer, sc.o.ID, "all of it")
	require.NoError(t, err)
	require.Len(t, whole, 1)
	assert.Equal(t, int64(1), whole[0].Quantity)

	_, err = f.returns.RequestWholeOrder(f.ctx, sc.buyer, sc.o.ID, "all of it")
	assertCode(t, err, apperror.Validation(""))
}

func TestReturn_WindowExpired(t *testing.T) {
	f := newFixture(t)
	sc := f.returnScene()
	f.advance(72 * time.Hour)

	_, err := f.returns.Request(f.ctx, sc.buyer, ports.ReturnRequestInput{
		OrderID:     sc.o.ID,
		OrderItemID: sc.o.Items[0].ID,
		Quantity:    1,
		Reason:      "late",
	})
	assertCode(t, err, apperror.ErrWindowExpired(""))
}

func TestReturn_RejectMovesNothing(t *testing.T) {
	f := newFixture(t)
	sc := f.returnScene()
	req := f.requestReturn(sc, 2)
	stock := f.stock(sc.p.ID)

	_, err := f.returns.Reject(f.ctx, f.admin, req.ID, "")
	assertCode(t, err, apperror.Validation(""))

	rejected, err := f.returns.Reject(f.ctx, f.admin, req.ID, "no damage found")
	require.NoError(t, err)
	assert.Equal(t, domain.ReturnStatusRejected, rejected.Status)
	assert.Equal(t, int64(5000), f.wallet(sc.buyer).HeldBalance)
	assert.Equal(t, stock, f.stock(sc.p.ID))
	assert.Equal(t, 1, f.notified(sc.buyer, domain.NotifyReturnRejected))

	_, err = f.returns.Approve(f.ctx, f.admin, req.ID, ports.ApproveReturnInput{
		Breakdown: domain.Breakdown{{Condition: domain.ConditionNew, Quantity: 2}},
	})
	assertCode(t, err, apperror.ErrInvalidStateTransition("", "", ""))

	// A rejected request no longer blocks completion.
	f.advance(72 * time.Hour)
	_, err = f.orders.Complete(f.ctx, sc.o.ID)
	require.NoError(t, err)
}

func TestReturn_RefundOverride(t *testing.T) {
	f := newFixture(t)
	sc := f.returnScene()
	req := f.requestReturn(sc, 2)
	breakdown := domain.Breakdown{{Condition: domain.ConditionLikeNew, Quantity: 2}}

	_, err := f.returns.Approve(f.ctx, f.admin, req.ID, ports.ApproveReturnInput{
		Breakdown:      breakdown,
		RefundOverride: ptrInt64(5001),
	})
	assertCode(t, err, apperror.Validation(""))

	res, err := f.returns.Approve(f.ctx, f.admin, req.ID, ports.ApproveReturnInput{
		Breakdown:      breakdown,
		RefundOverride: ptrInt64(1500),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), res.Refund)
	assert.Equal(t, int64(0), res.Restocked)
	assert.Equal(t, int64(0), res.PenaltyPoints)
	assert.Equal(t, int64(6500), f.wallet(sc.buyer).Balance)
}

func TestReturn_SellerResaleDecision(t *testing.T) {
	f := newFixture(t)
	sc := f.returnScene()
	other := f.user(domain.RoleSeller)
	req := f.requestReturn(sc, 2)

	_, err := f.returns.RecordInspection(f.ctx, f.admin, req.ID, ports.InspectionInput{
		Breakdown: domain.Breakdown{
			{Condition: domain.ConditionOpenBox, Quantity: 1},
			{Condition: domain.ConditionMissingParts, Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.notified(sc.seller, domain.NotifyReturnNeedsApproval))

	res, err := f.returns.Approve(f.ctx, f.admin, req.ID, ports.ApproveReturnInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.PenaltyPoints)

	var openBox domain.ReturnedProduct
	for _, rp := range res.Products {
		if rp.Condition == domain.ConditionOpenBox {
			openBox = rp
		}
	}
	require.Equal(t, domain.SellerApprovalPending, openBox.SellerApproval)

	_, err = f.returns.DecideReturnedProduct(f.ctx, other, openBox.ID, true)
	assertCode(t, err, apperror.ErrNotOwner(""))

	_, err = f.returns.DecideReturnedProduct(f.ctx, sc.buyer, openBox.ID, true)
	assertCode(t, err, apperror.ErrForbidden())

	decided, err := f.returns.DecideReturnedProduct(f.ctx, sc.seller, openBox.ID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.SellerApprovalApproved, decided.SellerApproval)
	assert.True(t, decided.IsSellable)

	_, err = f.returns.DecideReturnedProduct(f.ctx, sc.seller, openBox.ID, false)
	assertCode(t, err, apperror.ErrInvalidStateTransition("", "", ""))
}

func TestReturn_GetVisibility(t *testing.T) {
	f := newFixture(t)
	sc := f.returnScene()
	stranger := f.user(domain.RoleBuyer)
	req := f.requestReturn(sc, 1)

	for _, a := range []domain.Actor{sc.buyer, sc.seller, f.admin} {
		got, rows, err := f.returns.Get(f.ctx, a, req.ID)
		require.NoError(t, err)
		assert.Equal(t, req.ID, got.ID)
		assert.Empty(t, rows)
	}

	_, _, err := f.returns.Get(f.ctx, stranger, req.ID)
	assertCode(t, err, apperror.ErrNotOwner(""))
}
