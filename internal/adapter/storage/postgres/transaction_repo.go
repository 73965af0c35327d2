package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, wallet_id, type, amount, balance_delta, held_delta,
	recipient_wallet_id, description, reference, is_successful, created_at`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a ledger entry. (wallet_id, type, reference) is unique, so a
// replayed movement fails with ports.ErrDuplicateKey.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := on(r.pool, tx).Exec(ctx, query,
		t.ID, t.WalletID, string(t.Type), t.Amount, t.BalanceDelta, t.HeldDelta,
		t.RecipientWalletID, t.Description, t.Reference, t.IsSuccessful, t.CreatedAt,
	)
	if err != nil {
		return mapErr("insert transaction", err)
	}
	return nil
}

// GetByReference finds the entry a wallet already booked for a reference.
func (r *TransactionRepo) GetByReference(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, txType domain.TransactionType, reference string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE wallet_id = $1 AND type = $2 AND reference = $3`

	t, err := scanTransaction(on(r.pool, tx).QueryRow(ctx, query, walletID, string(txType), reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction by reference: %w", err)
	}
	return t, nil
}

// SumHeldByPrefix returns the net held movement of every entry on a wallet
// whose reference starts with prefix.
func (r *TransactionRepo) SumHeldByPrefix(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, prefix string) (int64, error) {
	query := `SELECT COALESCE(SUM(held_delta), 0) FROM transactions
		WHERE wallet_id = $1 AND reference LIKE $2`

	var sum int64
	err := on(r.pool, tx).QueryRow(ctx, query, walletID, escapeLike(prefix)+"%").Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum held by prefix: %w", err)
	}
	return sum, nil
}

// List retrieves a page of a wallet's ledger, newest first.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("wallet_id = $%d", argIdx))
	args = append(args, params.WalletID)
	argIdx++

	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, string(*params.Type))
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, transactionColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.BalanceDelta, &t.HeldDelta,
		&t.RecipientWalletID, &t.Description, &t.Reference, &t.IsSuccessful, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike quotes LIKE wildcards so a reference prefix matches literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
