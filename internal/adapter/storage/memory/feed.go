package memory

import (
	"context"
	"sync"

	"escrow-marketplace/internal/core/domain"

	"github.com/google/uuid"
)

// Feed is an in-process event bus for the memory driver. It implements
// ports.EventPublisher and ports.AuctionFeed; auction events reach the
// watchers of that auction and everything else is dropped.
type Feed struct {
	mu       sync.Mutex
	watchers map[uuid.UUID]map[chan []byte]struct{}
	buffer   int
}

// NewFeed creates an in-process feed.
func NewFeed() *Feed {
	return &Feed{
		watchers: make(map[uuid.UUID]map[chan []byte]struct{}),
		buffer:   32,
	}
}

// Name returns the publisher name.
func (f *Feed) Name() string { return "inproc" }

func (f *Feed) Publish(ctx context.Context, event domain.OutboxEvent) error {
	if !event.IsAuctionTopic() {
		return nil
	}
	auctionID, err := uuid.Parse(event.Key)
	if err != nil {
		return err
	}
	msg, err := event.FeedMessage()
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.watchers[auctionID] {
		select {
		case ch <- msg:
		default: // slow watcher
		}
	}
	return nil
}

func (f *Feed) Subscribe(ctx context.Context, auctionID uuid.UUID) (<-chan []byte, func(), error) {
	ch := make(chan []byte, f.buffer)

	f.mu.Lock()
	if f.watchers[auctionID] == nil {
		f.watchers[auctionID] = make(map[chan []byte]struct{})
	}
	f.watchers[auctionID][ch] = struct{}{}
	f.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.watchers[auctionID], ch)
			if len(f.watchers[auctionID]) == 0 {
				delete(f.watchers, auctionID)
			}
			f.mu.Unlock()
			close(done)
			close(ch)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return ch, cancel, nil
}
