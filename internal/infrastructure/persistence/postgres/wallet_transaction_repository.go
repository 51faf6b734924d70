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

const transactionColumns = `
	id, wallet_id, amount, transaction_type, status,
	reference_id, reference_type, description, created_at
`

// HistoryPageSize is the fixed page size for transaction history queries.
const HistoryPageSize = 10

type WalletTransactionRepository struct {
	q Executor
}

func NewWalletTransactionRepository(db *DB) *WalletTransactionRepository {
	return &WalletTransactionRepository{q: db.Pool}
}

// Create inserts a journal entry. A unique violation on
// (reference_id, reference_type) is surfaced unwrapped so the ledger can
// fall back to the already-existing reservation.
func (r *WalletTransactionRepository) Create(ctx context.Context, t *domain.WalletTransaction) error {
	query := `
		INSERT INTO wallet_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.Exec(ctx, query,
		t.ID, t.WalletID, t.Amount, string(t.Type), string(t.Status),
		t.ReferenceID, refTypeString(t.ReferenceType), t.Description, t.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to create wallet transaction: %w", err)
	}
	return nil
}

func (r *WalletTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.WalletTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE id = $1`
	return scanTransaction(r.q.QueryRow(ctx, query, id), id)
}

// FindByIDForUpdate retrieves a journal entry with a row-level lock. Only
// meaningful on a transaction-bound repository.
func (r *WalletTransactionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.WalletTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE id = $1 FOR UPDATE`
	return scanTransaction(r.q.QueryRow(ctx, query, id), id)
}

// FindByPaymentReference resolves the reservation for a payment, if any.
func (r *WalletTransactionRepository) FindByPaymentReference(ctx context.Context, paymentID uuid.UUID) (*domain.WalletTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM wallet_transactions
		WHERE reference_id = $1 AND reference_type = 'PAYMENT'
	`

	var m WalletTransactionModel
	err := r.q.QueryRow(ctx, query, paymentID.String()).Scan(
		&m.ID, &m.WalletID, &m.Amount, &m.Type, &m.Status,
		&m.ReferenceID, &m.ReferenceType, &m.Description, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan wallet transaction: %w", err)
	}
	return toDomainTransaction(m), nil
}

// UpdateStatus persists a status transition.
func (r *WalletTransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TransactionStatus) error {
	query := `UPDATE wallet_transactions SET status = $1 WHERE id = $2`

	tag, err := r.q.Exec(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update wallet transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewTransactionNotFoundError(id)
	}
	return nil
}

// ListByWallet returns one page of history, newest first. Page index is
// 1-based and the page size is fixed at HistoryPageSize.
func (r *WalletTransactionRepository) ListByWallet(ctx context.Context, walletID uuid.UUID, page int) ([]*domain.WalletTransaction, error) {
	if page < 1 {
		page = 1
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.q.Query(ctx, query, walletID, HistoryPageSize, (page-1)*HistoryPageSize)
	if err != nil {
		return nil, fmt.Errorf("query wallet transactions: %w", err)
	}
	return pgx.CollectRows(rows, collectTransaction)
}

// MonthlySummary aggregates COMPLETED credits and debits across all of a
// user's wallets for one calendar month.
func (r *WalletTransactionRepository) MonthlySummary(ctx context.Context, userID uuid.UUID, year int, month time.Month) (credits, debits decimal.Decimal, err error) {
	query := `
		SELECT
			COALESCE(SUM(t.amount) FILTER (WHERE t.transaction_type = 'CREDIT'), 0),
			COALESCE(SUM(t.amount) FILTER (WHERE t.transaction_type = 'DEBIT'), 0)
		FROM wallet_transactions t
		JOIN wallets w ON w.id = t.wallet_id
		WHERE w.user_id = $1
		  AND t.status = 'COMPLETED'
		  AND t.created_at >= $2
		  AND t.created_at < $3
	`

	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	err = r.q.QueryRow(ctx, query, userID, from, to).Scan(&credits, &debits)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("monthly summary: %w", err)
	}
	return credits, debits, nil
}

// FindStalePending returns PENDING payment reservations older than the
// cutoff, oldest first. Used by the reconciler.
func (r *WalletTransactionRepository) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.WalletTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM wallet_transactions
		WHERE status = 'PENDING'
		  AND reference_type = 'PAYMENT'
		  AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale pending transactions: %w", err)
	}
	return pgx.CollectRows(rows, collectTransaction)
}

func collectTransaction(row pgx.CollectableRow) (*domain.WalletTransaction, error) {
	var m WalletTransactionModel
	err := row.Scan(
		&m.ID, &m.WalletID, &m.Amount, &m.Type, &m.Status,
		&m.ReferenceID, &m.ReferenceType, &m.Description, &m.CreatedAt,
	)
	return toDomainTransaction(m), err
}

func scanTransaction(row pgx.Row, id uuid.UUID) (*domain.WalletTransaction, error) {
	var m WalletTransactionModel
	err := row.Scan(
		&m.ID, &m.WalletID, &m.Amount, &m.Type, &m.Status,
		&m.ReferenceID, &m.ReferenceType, &m.Description, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewTransactionNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to scan wallet transaction: %w", err)
	}
	return toDomainTransaction(m), nil
}

func refTypeString(t *domain.ReferenceType) *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}
