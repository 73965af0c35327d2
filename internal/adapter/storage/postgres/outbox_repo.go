package postgres

import (
	"context"
	"fmt"
	"time"

	"escrow-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OutboxRepo implements ports.OutboxRepository. Events are appended inside
// the business transaction that produced them and drained by the relay.
type OutboxRepo struct {
	pool Pool
}

// NewOutboxRepo creates a new OutboxRepo.
func NewOutboxRepo(pool Pool) *OutboxRepo {
	return &OutboxRepo{pool: pool}
}

func (r *OutboxRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.OutboxEvent) error {
	query := `INSERT INTO outbox_events (id, topic, key, payload, attempts, last_error, created_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := on(r.pool, tx).Exec(ctx, query,
		e.ID, e.Topic, e.Key, e.Payload, e.Attempts, e.LastError, e.CreatedAt, e.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("append outbox event: %w", err)
	}
	return nil
}

// ClaimPending locks up to limit unpublished events, oldest first. Rows held
// by another relay are skipped rather than waited on.
func (r *OutboxRepo) ClaimPending(ctx context.Context, tx pgx.Tx, limit, maxAttempts int) ([]domain.OutboxEvent, error) {
	query := `SELECT id, topic, key, payload, attempts, last_error, created_at, published_at
		FROM outbox_events
		WHERE published_at IS NULL AND attempts < $1
		ORDER BY created_at
		LIMIT NULLIF($2, 0)
		FOR UPDATE SKIP LOCKED`

	rows, err := on(r.pool, tx).Query(ctx, query, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox events: %w", err)
	}
	defer rows.Close()

	var out []domain.OutboxEvent
	for rows.Next() {
		var e domain.OutboxEvent
		err := rows.Scan(&e.ID, &e.Topic, &e.Key, &e.Payload, &e.Attempts, &e.LastError, &e.CreatedAt, &e.PublishedAt)
		if err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox events: %w", err)
	}
	return out, nil
}

func (r *OutboxRepo) MarkPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	query := `UPDATE outbox_events SET published_at = $1, attempts = attempts + 1 WHERE id = $2`

	if _, err := on(r.pool, tx).Exec(ctx, query, at, id); err != nil {
		return fmt.Errorf("mark outbox event published: %w", err)
	}
	return nil
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string) error {
	query := `UPDATE outbox_events SET attempts = attempts + 1, last_error = $1 WHERE id = $2`

	if _, err := on(r.pool, tx).Exec(ctx, query, reason, id); err != nil {
		return fmt.Errorf("mark outbox event failed: %w", err)
	}
	return nil
}
