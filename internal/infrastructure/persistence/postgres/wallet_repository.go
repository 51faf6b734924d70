package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/payflowhq/payflow/internal/domain"
)

const walletColumns = `
	id, user_id, balance, reserved_balance, currency, version, created_at, updated_at
`

type WalletRepository struct {
	q Executor
}

func NewWalletRepository(db *DB) *WalletRepository {
	return &WalletRepository{q: db.Pool}
}

func (r *WalletRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	query := `
		INSERT INTO wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.Exec(ctx, query,
		wallet.ID, wallet.UserID, wallet.Balance, wallet.ReservedBalance,
		wallet.Currency, wallet.Version, wallet.CreatedAt, wallet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *WalletRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	return scanWallet(r.q.QueryRow(ctx, query, id), id)
}

// FindByIDAndUser scopes the lookup to the owner. A wallet owned by someone
// else is reported as not found to avoid disclosure.
func (r *WalletRepository) FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 AND user_id = $2`
	return scanWallet(r.q.QueryRow(ctx, query, id, userID), id)
}

func (r *WalletRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 ORDER BY created_at ASC`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query wallets by user: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Wallet, error) {
		var m WalletModel
		err := row.Scan(&m.ID, &m.UserID, &m.Balance, &m.ReservedBalance,
			&m.Currency, &m.Version, &m.CreatedAt, &m.UpdatedAt)
		return toDomainWallet(m), err
	})
}

// AddReserved moves amount into the reserved balance with a compare-and-set
// on version, guarded by the available-balance check at the database. Returns
// false when zero rows were updated; the caller re-reads to classify the
// failure as a version conflict or insufficient funds.
func (r *WalletRepository) AddReserved(ctx context.Context, id uuid.UUID, amount decimal.Decimal, expectedVersion int64) (bool, error) {
	query := `
		UPDATE wallets
		SET reserved_balance = reserved_balance + $1,
			version = version + 1,
			updated_at = $2
		WHERE id = $3
		  AND version = $4
		  AND balance - reserved_balance >= $1
	`

	tag, err := r.q.Exec(ctx, query, amount, time.Now().UTC(), id, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("failed to reserve funds: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ConfirmReserved settles a reservation: both balance and reserved balance
// drop by amount. The guards keep balances non-negative under stale callers.
func (r *WalletRepository) ConfirmReserved(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (bool, error) {
	query := `
		UPDATE wallets
		SET balance = balance - $1,
			reserved_balance = reserved_balance - $1,
			version = version + 1,
			updated_at = $2
		WHERE id = $3
		  AND reserved_balance >= $1
		  AND balance >= $1
	`

	tag, err := r.q.Exec(ctx, query, amount, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to confirm reservation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseReserved returns a reservation to the available balance; the
// balance itself is unchanged.
func (r *WalletRepository) ReleaseReserved(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (bool, error) {
	query := `
		UPDATE wallets
		SET reserved_balance = reserved_balance - $1,
			version = version + 1,
			updated_at = $2
		WHERE id = $3
		  AND reserved_balance >= $1
	`

	tag, err := r.q.Exec(ctx, query, amount, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to release reservation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Credit adds to the balance with a compare-and-set on version.
func (r *WalletRepository) Credit(ctx context.Context, id uuid.UUID, amount decimal.Decimal, expectedVersion int64) (bool, error) {
	query := `
		UPDATE wallets
		SET balance = balance + $1,
			version = version + 1,
			updated_at = $2
		WHERE id = $3 AND version = $4
	`

	tag, err := r.q.Exec(ctx, query, amount, time.Now().UTC(), id, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("failed to credit wallet: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Debit subtracts from the balance with a compare-and-set on version,
// guarded so the available balance never goes negative.
func (r *WalletRepository) Debit(ctx context.Context, id uuid.UUID, amount decimal.Decimal, expectedVersion int64) (bool, error) {
	query := `
		UPDATE wallets
		SET balance = balance - $1,
			version = version + 1,
			updated_at = $2
		WHERE id = $3
		  AND version = $4
		  AND balance - reserved_balance >= $1
	`

	tag, err := r.q.Exec(ctx, query, amount, time.Now().UTC(), id, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("failed to debit wallet: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanWallet(row pgx.Row, id uuid.UUID) (*domain.Wallet, error) {
	var m WalletModel
	err := row.Scan(&m.ID, &m.UserID, &m.Balance, &m.ReservedBalance,
		&m.Currency, &m.Version, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewWalletNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}
	return toDomainWallet(m), nil
}
