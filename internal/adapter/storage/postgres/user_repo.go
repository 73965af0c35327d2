package postgres

import (
	"context"
	"errors"
	"fmt"

	"escrow-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements ports.UserRepository. Accounts are provisioned by the
// identity service; the engine only reads them and maintains points and the
// verified-seller flag.
type UserRepo struct {
	pool Pool
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(pool Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error) {
	query := `SELECT id, email, role, points, is_verified_seller, shipping, created_at
		FROM users WHERE id = $1`

	u := &domain.User{}
	err := on(r.pool, tx).QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.Role, &u.Points, &u.IsVerifiedSeller, &u.Shipping, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// AdjustPoints adds delta to a user's points, flooring the result at zero.
func (r *UserRepo) AdjustPoints(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64) (domain.PointsChange, error) {
	query := `UPDATE users u SET points = GREATEST(old.points + $2, 0)
		FROM (SELECT id, points FROM users WHERE id = $1 FOR UPDATE) old
		WHERE u.id = old.id
		RETURNING old.points, u.points`

	var change domain.PointsChange
	err := on(r.pool, tx).QueryRow(ctx, query, id, delta).Scan(&change.Before, &change.After)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return change, fmt.Errorf("user %s not found", id)
		}
		return change, fmt.Errorf("adjust points: %w", err)
	}
	return change, nil
}

// MarkVerifiedSeller sets the verified flag and reports whether it changed.
func (r *UserRepo) MarkVerifiedSeller(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	query := `UPDATE users SET is_verified_seller = TRUE WHERE id = $1 AND NOT is_verified_seller`

	tag, err := on(r.pool, tx).Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("mark verified seller: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
