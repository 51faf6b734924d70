package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/payflowhq/payflow/internal/domain"
)

const paymentColumns = `
	id, user_id, amount, currency, client_request_id, wallet_id, status, version,
	provider, provider_transaction_id, wallet_transaction_id,
	failure_code, failure_message, created_at, updated_at
`

type PaymentRepository struct {
	q Executor
}

func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{q: db.Pool}
}

// Create inserts a payment in INITIATED. A unique violation on
// (client_request_id, user_id) is surfaced unwrapped so callers can detect
// the concurrent-insert race.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	p := toPaymentModel(payment)
	_, err := r.q.Exec(ctx, query,
		p.ID, p.UserID, p.Amount, p.Currency, p.ClientRequestID, p.WalletID,
		p.Status, p.Version,
		p.Provider, p.ProviderTransactionID, p.WalletTransactionID,
		p.FailureCode, p.FailureMessage,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(r.q.QueryRow(ctx, query, id), id)
}

// FindByIDForUpdate retrieves a payment with a row-level lock. Only
// meaningful on a transaction-bound repository.
func (r *PaymentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	return scanPayment(r.q.QueryRow(ctx, query, id), id)
}

// FindByClientRequestID looks up the idempotency scope (client_request_id, user).
func (r *PaymentRepository) FindByClientRequestID(ctx context.Context, clientRequestID string, userID uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE client_request_id = $1 AND user_id = $2`

	var m PaymentModel
	err := r.q.QueryRow(ctx, query, clientRequestID, userID).Scan(
		&m.ID, &m.UserID, &m.Amount, &m.Currency, &m.ClientRequestID, &m.WalletID,
		&m.Status, &m.Version,
		&m.Provider, &m.ProviderTransactionID, &m.WalletTransactionID,
		&m.FailureCode, &m.FailureMessage,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return toDomainPayment(m), nil
}

// Update persists all mutable payment fields with a compare-and-set on
// version. Zero rows updated means another writer got there first.
func (r *PaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	query := `
		UPDATE payments
		SET amount = $1, currency = $2, wallet_id = $3, status = $4,
			provider = $5, provider_transaction_id = $6, wallet_transaction_id = $7,
			failure_code = $8, failure_message = $9,
			version = version + 1, updated_at = $10
		WHERE id = $11 AND version = $12
	`

	p := toPaymentModel(payment)
	tag, err := r.q.Exec(ctx, query,
		p.Amount, p.Currency, p.WalletID, p.Status,
		p.Provider, p.ProviderTransactionID, p.WalletTransactionID,
		p.FailureCode, p.FailureMessage,
		time.Now().UTC(),
		p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewConcurrentModificationError("payment", payment.ID)
	}

	payment.Version++
	return nil
}

// FindInitiatedBefore returns INITIATED payments created before the cutoff,
// oldest first. Used by the expiration worker.
func (r *PaymentRepository) FindInitiatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'INITIATED' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query initiated payments: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Payment, error) {
		var m PaymentModel
		err := row.Scan(
			&m.ID, &m.UserID, &m.Amount, &m.Currency, &m.ClientRequestID, &m.WalletID,
			&m.Status, &m.Version,
			&m.Provider, &m.ProviderTransactionID, &m.WalletTransactionID,
			&m.FailureCode, &m.FailureMessage,
			&m.CreatedAt, &m.UpdatedAt,
		)
		return toDomainPayment(m), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan initiated payments: %w", err)
	}
	return results, nil
}

func scanPayment(row pgx.Row, id uuid.UUID) (*domain.Payment, error) {
	var m PaymentModel
	err := row.Scan(
		&m.ID, &m.UserID, &m.Amount, &m.Currency, &m.ClientRequestID, &m.WalletID,
		&m.Status, &m.Version,
		&m.Provider, &m.ProviderTransactionID, &m.WalletTransactionID,
		&m.FailureCode, &m.FailureMessage,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewPaymentNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return toDomainPayment(m), nil
}
