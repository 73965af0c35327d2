package postgres

import (
	"context"
	"testing"
	"time"

	"escrow-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder() *domain.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)
	o := &domain.Order{
		ID:          uuid.New(),
		Number:      domain.NewOrderNumber(now),
		BuyerID:     uuid.New(),
		TotalAmount: 10500,
		DeliveryFee: 500,
		Status:      domain.OrderStatusCreated,
		EscrowMode:  domain.EscrowBuyerWallet,
		Shipping:    domain.ShippingLocation{AddressLine: "5 King Fahd Rd", City: "Jeddah", Country: "SA"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	o.Items = []domain.OrderItem{
		domain.NewOrderItem(o.ID, uuid.New(), uuid.New(), 1, 6000),
		domain.NewOrderItem(o.ID, uuid.New(), uuid.New(), 2, 2000),
	}
	return o
}

func orderRows(o *domain.Order) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "number", "buyer_id", "total_amount", "delivery_fee", "status", "escrow_mode",
		"auction_id", "shipping", "assigned_courier_id", "assigned_at", "created_at", "updated_at",
		"delivered_at", "completed_at", "cancelled_at"}).
		AddRow(o.ID, o.Number, o.BuyerID, o.TotalAmount, o.DeliveryFee, o.Status, o.EscrowMode,
			o.AuctionID, o.Shipping, o.AssignedCourierID, o.AssignedAt, o.CreatedAt, o.UpdatedAt,
			o.DeliveredAt, o.CompletedAt, o.CancelledAt)
}

func orderItemRows(items []domain.OrderItem) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"id", "order_id", "product_id", "seller_id", "quantity", "unit_price", "line_total", "refunded_amount"})
	for _, it := range items {
		rows.AddRow(it.ID, it.OrderID, it.ProductID, it.SellerID, it.Quantity, it.UnitPrice, it.LineTotal, it.RefundedAmount)
	}
	return rows
}

func TestOrderRepo_Create_WritesItems(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	o := newTestOrder()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WithArgs(o.ID, o.Number, o.BuyerID, o.TotalAmount, o.DeliveryFee, string(o.Status), string(o.EscrowMode),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	for _, it := range o.Items {
		mock.ExpectExec("INSERT INTO order_items").
			WithArgs(it.ID, it.OrderID, it.ProductID, it.SellerID, it.Quantity, it.UnitPrice, it.LineTotal, int64(0)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, o)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_GetForUpdate_LoadsItems(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	o := newTestOrder()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM orders WHERE id .+ FOR UPDATE").
		WithArgs(o.ID).
		WillReturnRows(orderRows(o))
	mock.ExpectQuery("SELECT .+ FROM order_items WHERE order_id").
		WithArgs(o.ID).
		WillReturnRows(orderItemRows(o.Items))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	got, err := repo.GetForUpdate(context.Background(), tx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, o.Number, got.Number)
	assert.Equal(t, "Jeddah", got.Shipping.City)
	require.Len(t, got.Items, 2)
	assert.Equal(t, int64(10000), got.EscrowRemaining()-o.DeliveryFee)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM orders WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	got, err := repo.GetByID(context.Background(), nil, id)
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_Update(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	o := newTestOrder()
	delivered := o.CreatedAt.Add(48 * time.Hour)
	o.Status = domain.OrderStatusDelivered
	o.DeliveredAt = &delivered

	mock.ExpectExec("UPDATE orders SET status").
		WithArgs("DELIVERED", o.AssignedCourierID, o.AssignedAt, o.UpdatedAt,
			o.DeliveredAt, o.CompletedAt, o.CancelledAt, o.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.Update(context.Background(), nil, o)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_UpdateItemRefund(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	itemID := uuid.New()

	mock.ExpectExec("UPDATE order_items SET refunded_amount").
		WithArgs(int64(3000), itemID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.UpdateItemRefund(context.Background(), nil, itemID, 3000)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_ListDueForCompletion(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	cutoff := time.Now().UTC().Add(-72 * time.Hour)
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT id FROM orders WHERE status .+ AND delivered_at .+ ORDER BY delivered_at").
		WithArgs("DELIVERED", cutoff, 50).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(a).AddRow(b))

	ids, err := repo.ListDueForCompletion(context.Background(), cutoff, 50)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
