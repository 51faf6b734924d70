package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/payflowhq/payflow/internal/application"
	"github.com/payflowhq/payflow/internal/application/services"
	"github.com/payflowhq/payflow/internal/domain"
)

// StatusChecker polls the provider for a pending payment and settles it.
// Satisfied by the payment service.
type StatusChecker interface {
	CheckStatus(ctx context.Context, paymentID, userID uuid.UUID) (*services.PaymentResult, error)
}

// Reconciler sweeps reservations that stayed PENDING past a threshold and
// settles them from the associated payment's state. Confirm and cancel are
// idempotent on the ledger side, so running the sweep repeatedly is safe.
type Reconciler struct {
	transactions application.WalletTransactionRepository
	payments     application.PaymentRepository
	ledger       application.WalletLedger
	checker      StatusChecker
	interval     time.Duration
	batchSize    int
	pendingAge   time.Duration
	logger       *slog.Logger
}

func NewReconciler(
	transactions application.WalletTransactionRepository,
	payments application.PaymentRepository,
	ledger application.WalletLedger,
	checker StatusChecker,
	interval time.Duration,
	batchSize int,
	pendingAge time.Duration,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		transactions: transactions,
		payments:     payments,
		ledger:       ledger,
		checker:      checker,
		interval:     interval,
		batchSize:    batchSize,
		pendingAge:   pendingAge,
		logger:       logger,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("starting reservation reconciler",
		"interval", r.interval,
		"batch_size", r.batchSize,
		"pending_age", r.pendingAge)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping reservation reconciler")
			return
		case <-ticker.C:
			r.run(ctx)
		}
	}
}

// RunOnce executes a single reconciliation cycle.
func (r *Reconciler) RunOnce(ctx context.Context) {
	r.run(ctx)
}

func (r *Reconciler) run(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.pendingAge)
	stale, err := r.transactions.FindStalePending(ctx, cutoff, r.batchSize)
	if err != nil {
		r.logger.Error("failed to fetch stale reservations", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	r.logger.Info("reconciling stale reservations", "count", len(stale))

	for _, entry := range stale {
		if err := r.reconcile(ctx, entry); err != nil {
			r.logger.Error("reservation reconciliation failed",
				"wallet_transaction_id", entry.ID,
				"error", err)
		}
	}
}

func (r *Reconciler) reconcile(ctx context.Context, entry *domain.WalletTransaction) error {
	if entry.ReferenceID == nil {
		return nil
	}
	paymentID, err := uuid.Parse(*entry.ReferenceID)
	if err != nil {
		r.logger.Error("stale reservation has malformed payment reference",
			"wallet_transaction_id", entry.ID,
			"reference_id", *entry.ReferenceID)
		return nil
	}

	payment, err := r.payments.FindByID(ctx, paymentID)
	if err != nil {
		return err
	}

	switch payment.Status {
	case domain.PaymentSuccess:
		err = r.ledger.ConfirmReservation(ctx, entry.WalletID, entry.ID,
			deref(payment.ProviderTransactionID), deref(payment.Provider))
		if err == nil {
			r.logger.Info("settled stuck reservation for successful payment",
				"payment_id", payment.ID,
				"wallet_transaction_id", entry.ID)
		}
		return err

	case domain.PaymentFailed, domain.PaymentExpired:
		err = r.ledger.CancelReservation(ctx, entry.WalletID, entry.ID)
		if err == nil {
			r.logger.Info("released stuck reservation",
				"payment_id", payment.ID,
				"payment_status", payment.Status,
				"wallet_transaction_id", entry.ID)
		}
		return err

	case domain.PaymentPending:
		_, err = r.checker.CheckStatus(ctx, payment.ID, payment.UserID)
		return err

	default:
		// INITIATED with an old reservation means a crashed process run.
		// The expiration worker will move the payment to EXPIRED and the
		// next sweep cancels the hold.
		return nil
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
