package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturnRepo_SumRequestedQuantity_ExcludesRejected(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReturnRepo(mock)
	itemID := uuid.New()

	mock.ExpectQuery("SELECT COALESCE.+ FROM return_requests WHERE order_item_id").
		WithArgs(itemID, "REJECTED").
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(3)))

	sum, err := repo.SumRequestedQuantity(context.Background(), nil, itemID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReturnRepo_CountOpenForOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReturnRepo(mock)
	orderID := uuid.New()

	mock.ExpectQuery("SELECT COUNT.+ FROM return_requests WHERE order_id").
		WithArgs(orderID, "REQUESTED", "UNDER_INSPECTION").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

	n, err := repo.CountOpenForOrder(context.Background(), nil, orderID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReturnRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReturnRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM return_requests WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	req, err := repo.GetByID(context.Background(), nil, id)
	assert.NoError(t, err)
	assert.Nil(t, req)
	assert.NoError(t, mock.ExpectationsWereMet())
}
