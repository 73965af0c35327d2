package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event topics written to the outbox.
const (
	TopicNotificationCreated = "notification.created"
	TopicStockChanged        = "stock.changed"
	TopicAuctionBidPlaced    = "auction.bid_placed"
	TopicAuctionStateChanged = "auction.state_changed"
	TopicOrderStateChanged   = "order.state_changed"

	// TopicAuctionSnapshot is sent to a watcher once, when it connects.
	TopicAuctionSnapshot = "auction.snapshot"
)

// OutboxEvent is an event recorded in the same transaction as the change
// it describes and relayed to the event bus afterwards.
type OutboxEvent struct {
	ID          uuid.UUID       `json:"id"`
	Topic       string          `json:"topic"`
	Key         string          `json:"key"` // aggregate id, used for routing
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	LastError   *string         `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}

// IsAuctionTopic reports whether the event feeds live auction watchers.
func (e *OutboxEvent) IsAuctionTopic() bool {
	return e.Topic == TopicAuctionBidPlaced || e.Topic == TopicAuctionStateChanged
}

// FeedMessage is what live auction watchers receive.
type FeedMessage struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// FeedMessage encodes the event for the live feed.
func (e *OutboxEvent) FeedMessage() ([]byte, error) {
	return json.Marshal(FeedMessage{Topic: e.Topic, Data: e.Payload})
}

// AuctionEvent is the payload of auction.* topics.
type AuctionEvent struct {
	AuctionID uuid.UUID     `json:"auction_id"`
	Status    AuctionStatus `json:"status"`
	Amount    int64         `json:"amount,omitempty"`
	BidderID  *uuid.UUID    `json:"bidder_id,omitempty"`
	EndAt     time.Time     `json:"end_at"`
	At        time.Time     `json:"at"`
}

// OrderEvent is the payload of order.state_changed.
type OrderEvent struct {
	OrderID uuid.UUID   `json:"order_id"`
	Number  string      `json:"number"`
	Status  OrderStatus `json:"status"`
	At      time.Time   `json:"at"`
}
