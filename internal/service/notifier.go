package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"
	"escrow-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Notifier records notifications and outbox events in the caller's
// transaction. Delivery happens later, through the outbox relay.
type Notifier struct {
	notifRepo  ports.NotificationRepository
	outboxRepo ports.OutboxRepository
	clock      func() time.Time
}

// NewNotifier creates a new Notifier.
func NewNotifier(notifRepo ports.NotificationRepository, outboxRepo ports.OutboxRepository, clock func() time.Time) *Notifier {
	return &Notifier{notifRepo: notifRepo, outboxRepo: outboxRepo, clock: clock}
}

// Notify stores a bilingual notification for the user and queues its delivery.
func (n *Notifier) Notify(ctx context.Context, tx pgx.Tx, userID uuid.UUID, typ domain.NotificationType, subject domain.EntityRef, msg Message, extra map[string]any) error {
	notif := &domain.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      typ,
		MessageEN: msg.EN,
		MessageAR: msg.AR,
		Subject:   subject,
		CreatedAt: n.clock(),
	}
	if len(extra) > 0 {
		raw, err := json.Marshal(extra)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("marshal notification extra: %w", err))
		}
		notif.ExtraData = raw
	}

	if err := n.notifRepo.Create(ctx, tx, notif); err != nil {
		return apperror.InternalError(fmt.Errorf("create notification: %w", err))
	}
	return n.Emit(ctx, tx, domain.TopicNotificationCreated, userID.String(), notif)
}

// Emit appends an event to the outbox.
func (n *Notifier) Emit(ctx context.Context, tx pgx.Tx, topic, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("marshal %s payload: %w", topic, err))
	}
	event := &domain.OutboxEvent{
		ID:        uuid.New(),
		Topic:     topic,
		Key:       key,
		Payload:   raw,
		CreatedAt: n.clock(),
	}
	if err := n.outboxRepo.Append(ctx, tx, event); err != nil {
		return apperror.InternalError(fmt.Errorf("append outbox event: %w", err))
	}
	return nil
}

// AuctionChanged emits the auction's current state for live watchers.
func (n *Notifier) AuctionChanged(ctx context.Context, tx pgx.Tx, a *domain.Auction) error {
	return n.Emit(ctx, tx, domain.TopicAuctionStateChanged, a.ID.String(), domain.AuctionEvent{
		AuctionID: a.ID,
		Status:    a.Status,
		EndAt:     a.EndAt,
		At:        n.clock(),
	})
}

// BidPlaced emits an accepted bid for live watchers.
func (n *Notifier) BidPlaced(ctx context.Context, tx pgx.Tx, a *domain.Auction, bid *domain.Bid) error {
	return n.Emit(ctx, tx, domain.TopicAuctionBidPlaced, a.ID.String(), domain.AuctionEvent{
		AuctionID: a.ID,
		Status:    a.Status,
		Amount:    bid.Amount,
		BidderID:  &bid.BidderID,
		EndAt:     a.EndAt,
		At:        bid.CreatedAt,
	})
}

// OrderChanged emits the order's new status.
func (n *Notifier) OrderChanged(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	return n.Emit(ctx, tx, domain.TopicOrderStateChanged, o.ID.String(), domain.OrderEvent{
		OrderID: o.ID,
		Number:  o.Number,
		Status:  o.Status,
		At:      n.clock(),
	})
}

// stockKeeper applies stock deltas and their side effects: the stock event,
// cart reconciliation and the low-stock alert.
type stockKeeper struct {
	products  ports.ProductRepository
	carts     ports.CartRepository
	notifier  *Notifier
	threshold int64
}

// Adjust changes a locked product's stock by delta.
func (k *stockKeeper) Adjust(ctx context.Context, tx pgx.Tx, p *domain.Product, delta int64, reason domain.StockReason) error {
	if delta == 0 {
		return nil
	}
	before := p.Stock
	after := before + delta
	if after < 0 {
		return apperror.ErrInsufficientStock(p.NameEN)
	}

	if err := k.products.UpdateStock(ctx, tx, p.ID, after); err != nil {
		return dbErr("update stock", err)
	}
	p.Stock = after

	if err := k.notifier.Emit(ctx, tx, domain.TopicStockChanged, p.ID.String(), domain.StockDelta{
		ProductID: p.ID,
		Delta:     delta,
		Stock:     after,
		Reason:    reason,
	}); err != nil {
		return err
	}

	if delta > 0 {
		return nil
	}
	if _, err := k.carts.ClampToStock(ctx, tx, p.ID, after); err != nil {
		return dbErr("reconcile carts", err)
	}
	if domain.CrossesLowStock(before, after, k.threshold) {
		return k.notifier.Notify(ctx, tx, p.SellerID, domain.NotifyLowStock, domain.ProductRef(p.ID),
			msgLowStock(p, after), map[string]any{"stock": after})
	}
	return nil
}
