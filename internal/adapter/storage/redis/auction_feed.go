package redis

import (
	"context"
	"fmt"
	"sync"

	"escrow-marketplace/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AuctionFeed fans auction events out to live watchers over Redis Pub/Sub,
// one channel per auction ("mkt:auction:<id>"). It implements both
// ports.EventPublisher (for the outbox relay) and ports.AuctionFeed (for the
// websocket handler), so every API instance sees every bid.
type AuctionFeed struct {
	client *goredis.Client
	prefix string
	buffer int
	log    zerolog.Logger
}

// NewAuctionFeed creates a Redis-backed auction feed.
func NewAuctionFeed(client *goredis.Client, log zerolog.Logger) *AuctionFeed {
	return &AuctionFeed{
		client: client,
		prefix: "mkt:auction:",
		buffer: 32,
		log:    log.With().Str("component", "auction_feed").Logger(),
	}
}

func (f *AuctionFeed) channel(auctionID string) string {
	return f.prefix + auctionID
}

// Publish sends an auction event to the auction's channel. Other topics are
// ignored.
func (f *AuctionFeed) Publish(ctx context.Context, event domain.OutboxEvent) error {
	if !event.IsAuctionTopic() {
		return nil
	}
	msg, err := event.FeedMessage()
	if err != nil {
		return fmt.Errorf("encode feed message: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel(event.Key), msg).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Name returns the publisher name.
func (f *AuctionFeed) Name() string {
	return "redis-feed"
}

// Subscribe returns a channel of feed messages for one auction. The channel
// closes when ctx is done or cancel is called. Slow readers lose messages
// rather than stalling the subscription.
func (f *AuctionFeed) Subscribe(ctx context.Context, auctionID uuid.UUID) (<-chan []byte, func(), error) {
	pubsub := f.client.Subscribe(ctx, f.channel(auctionID.String()))
	// Wait for the subscription to be confirmed so no event published after
	// Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan []byte, f.buffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					f.log.Warn().Str("auction_id", auctionID.String()).Msg("watcher too slow, dropping feed message")
				}
			}
		}
	}()

	return out, cancel, nil
}
