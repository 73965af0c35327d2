package service

import (
	"context"
	"errors"
	"testing"

	"escrow-marketplace/internal/adapter/storage/memory"
	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func appendEvent(t *testing.T, store *memory.Store, topic string) domain.OutboxEvent {
	t.Helper()
	ev := domain.OutboxEvent{ID: uuid.New(), Topic: topic, Key: uuid.NewString(), Payload: []byte(`{}`)}
	require.NoError(t, store.Outbox().Append(context.Background(), nil, &ev))
	return ev
}

func TestOutboxRelay_PublishesAndRoutesAuctionTopics(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := memory.New()
	bus := mocks.NewMockEventPublisher(ctrl)
	feed := mocks.NewMockEventPublisher(ctrl)

	stock := appendEvent(t, store, domain.TopicStockChanged)
	bid := appendEvent(t, store, domain.TopicAuctionBidPlaced)

	bus.EXPECT().Name().Return("nats").AnyTimes()
	bus.EXPECT().Publish(gomock.Any(), stock).Return(nil)
	bus.EXPECT().Publish(gomock.Any(), bid).Return(nil)
	feed.EXPECT().Publish(gomock.Any(), bid).Return(nil)

	relay := NewOutboxRelay(store, store.Outbox(), bus, feed, RelayConfig{}, newTestLogger())
	res, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 0, res.Failed)
	assert.Empty(t, store.Outbox().Pending())
}

func TestOutboxRelay_FailedEventsRetryUntilMaxAttempts(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := memory.New()
	bus := mocks.NewMockEventPublisher(ctrl)

	ev := appendEvent(t, store, domain.TopicOrderStateChanged)
	bus.EXPECT().Name().Return("nats").AnyTimes()
	bus.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("no responders")).Times(2)

	relay := NewOutboxRelay(store, store.Outbox(), bus, nil, RelayConfig{MaxAttempts: 2}, newTestLogger())
	for i := 0; i < 3; i++ {
		_, err := relay.RelayOnce(context.Background())
		require.NoError(t, err)
	}

	pending := store.Outbox().Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, ev.ID, pending[0].ID)
	assert.Equal(t, 2, pending[0].Attempts)
	require.NotNil(t, pending[0].LastError)
	assert.Contains(t, *pending[0].LastError, "nats: no responders")
}

func TestOutboxRelay_DrainsServiceEvents(t *testing.T) {
	f := newFixture(t)
	seller := f.user(domain.RoleSeller)
	buyer := f.user(domain.RoleBuyer)
	f.fund(buyer, 5000)
	f.checkout(buyer, 0, map[*domain.Product]int64{f.product(seller, 1000, 10): 1})

	pending := f.store.Outbox().Pending()
	require.NotEmpty(t, pending)
	topics := make(map[string]bool)
	for _, ev := range pending {
		topics[ev.Topic] = true
	}
	assert.True(t, topics[domain.TopicOrderStateChanged])
	assert.True(t, topics[domain.TopicStockChanged])
	assert.True(t, topics[domain.TopicNotificationCreated])

	ctrl := gomock.NewController(t)
	bus := mocks.NewMockEventPublisher(ctrl)
	bus.EXPECT().Name().Return("nats").AnyTimes()
	bus.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(len(pending))

	relay := NewOutboxRelay(f.store, f.store.Outbox(), bus, nil, RelayConfig{}, newTestLogger())
	res, err := relay.RelayOnce(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, len(pending), res.Processed)
	assert.Empty(t, f.store.Outbox().Pending())
}
