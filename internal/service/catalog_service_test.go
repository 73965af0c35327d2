package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports/mocks"
	"escrow-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestCatalogService_ExpireSales_UsesClock(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := mocks.NewMockProductRepository(ctrl)
	repo.EXPECT().ClearExpiredSales(gomock.Any(), now).Return(int64(3), nil)

	svc := NewCatalogService(repo, func() time.Time { return now }, newTestLogger())
	n, err := svc.ExpireSales(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestCatalogService_ExpireSales_RepoError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockProductRepository(ctrl)
	repo.EXPECT().ClearExpiredSales(gomock.Any(), gomock.Any()).Return(int64(0), errors.New("connection reset"))

	svc := NewCatalogService(repo, nil, newTestLogger())
	n, err := svc.ExpireSales(context.Background())

	require.Error(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "SYS_001", apperror.CodeOf(err))
}

func TestNotificationService_List_ClampsLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default when unset", 0, defaultNotificationLimit},
		{"default when negative", -4, defaultNotificationLimit},
		{"passes through", 20, 20},
		{"capped", 5000, maxNotificationLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			userID := uuid.New()
			repo := mocks.NewMockNotificationRepository(ctrl)
			repo.EXPECT().ListForUser(gomock.Any(), userID, tt.want).Return(nil, nil)

			items, err := NewNotificationService(repo).List(context.Background(), userID, tt.limit)
			require.NoError(t, err)
			assert.NotNil(t, items, "empty result encodes as []")
			assert.Empty(t, items)
		})
	}
}

func TestNotificationService_List_ReturnsRows(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userID := uuid.New()
	rows := []domain.Notification{{ID: uuid.New(), UserID: userID}, {ID: uuid.New(), UserID: userID}}
	repo := mocks.NewMockNotificationRepository(ctrl)
	repo.EXPECT().ListForUser(gomock.Any(), userID, defaultNotificationLimit).Return(rows, nil)

	items, err := NewNotificationService(repo).List(context.Background(), userID, 0)
	require.NoError(t, err)
	assert.Equal(t, rows, items)
}

func TestNotificationService_List_RepoError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockNotificationRepository(ctrl)
	repo.EXPECT().ListForUser(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))

	_, err := NewNotificationService(repo).List(context.Background(), uuid.New(), 10)
	assert.Equal(t, "SYS_001", apperror.CodeOf(err))
}
