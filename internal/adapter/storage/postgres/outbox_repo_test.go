package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"escrow-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxRepo_ClaimPending_SkipsLockedRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOutboxRepo(mock)
	e := domain.OutboxEvent{
		ID:        uuid.New(),
		Topic:     domain.TopicAuctionBidPlaced,
		Key:       uuid.NewString(),
		Payload:   json.RawMessage(`{"amount":1200}`),
		Attempts:  1,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	lastErr := "nats: timeout"
	e.LastError = &lastErr

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM outbox_events WHERE published_at IS NULL AND attempts .+ FOR UPDATE SKIP LOCKED").
		WithArgs(5, 100).
		WillReturnRows(pgxmock.NewRows([]string{"id", "topic", "key", "payload", "attempts", "last_error", "created_at", "published_at"}).
			AddRow(e.ID, e.Topic, e.Key, e.Payload, e.Attempts, e.LastError, e.CreatedAt, e.PublishedAt))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	events, err := repo.ClaimPending(context.Background(), tx, 100, 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].IsAuctionTopic())
	assert.JSONEq(t, `{"amount":1200}`, string(events[0].Payload))
	assert.Equal(t, "nats: timeout", *events[0].LastError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepo_MarkPublishedAndFailed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOutboxRepo(mock)
	ok, bad := uuid.New(), uuid.New()
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE outbox_events SET published_at").
		WithArgs(at, ok).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE outbox_events SET attempts = attempts").
		WithArgs("no responders", bad).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.MarkPublished(context.Background(), nil, ok, at))
	require.NoError(t, repo.MarkFailed(context.Background(), nil, bad, "no responders"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
