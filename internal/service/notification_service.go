package service

import (
	"context"

	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"

	"github.com/google/uuid"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// NotificationServiceImpl implements ports.NotificationService.
type NotificationServiceImpl struct {
	notifRepo ports.NotificationRepository
}

// NewNotificationService creates a new NotificationServiceImpl.
func NewNotificationService(notifRepo ports.NotificationRepository) *NotificationServiceImpl {
	return &NotificationServiceImpl{notifRepo: notifRepo}
}

// List returns the user's newest notifications.
func (s *NotificationServiceImpl) List(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	items, err := s.notifRepo.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, dbErr("list notifications", err)
	}
	if items == nil {
		items = []domain.Notification{}
	}
	return items, nil
}
