package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/payflowhq/payflow/internal/application"
	"github.com/payflowhq/payflow/internal/domain"
	"github.com/payflowhq/payflow/internal/infrastructure/persistence/postgres"
	"github.com/payflowhq/payflow/internal/provider"
)

// PaymentService orchestrates the payment lifecycle: idempotent initiation,
// the reserve-charge-settle sequence, and status reconciliation for charges
// the provider left pending.
type PaymentService struct {
	coordinator application.TransactionCoordinator
	payments    application.PaymentRepository
	ledger      application.WalletLedger
	charger     provider.PaymentProvider
	vault       *TokenVault
	logger      *slog.Logger
}

func NewPaymentService(
	coordinator application.TransactionCoordinator,
	payments application.PaymentRepository,
	ledger application.WalletLedger,
	charger provider.PaymentProvider,
	vault *TokenVault,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		coordinator: coordinator,
		payments:    payments,
		ledger:      ledger,
		charger:     charger,
		vault:       vault,
		logger:      logger,
	}
}

// InitiatePaymentResult tells the caller whether this request created the
// payment or replayed an earlier one.
type InitiatePaymentResult struct {
	PaymentID uuid.UUID
	Version   int64
	IsNew     bool
}

// PaymentResult is the processing and status-check response shape.
type PaymentResult struct {
	PaymentID uuid.UUID
	Status    domain.PaymentStatus
	Message   string
	Amount    decimal.Decimal
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Initiate creates a payment in INITIATED, replaying idempotently on
// (clientRequestId, user). An EXPIRED payment under the same key is reset
// in place with the fresh request fields.
func (s *PaymentService) Initiate(ctx context.Context, cmd InitiatePaymentCommand) (*InitiatePaymentResult, error) {
	// The provider choice is optional; when present it must name the
	// adapter this deployment charges through.
	if cmd.Provider != "" && cmd.Provider != s.charger.Name() {
		return nil, application.NewValidationError(fmt.Sprintf("unsupported payment provider %q", cmd.Provider), nil)
	}

	existing, err := s.payments.FindByClientRequestID(ctx, cmd.ClientRequestID, cmd.UserID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if existing != nil {
		return s.replayOrReset(ctx, existing, cmd)
	}

	money, err := domain.NewMoney(cmd.Amount, cmd.Currency)
	if err != nil {
		return nil, application.ToServiceError(err)
	}
	payment, err := domain.NewPayment(cmd.UserID, money, cmd.ClientRequestID, cmd.WalletID)
	if err != nil {
		return nil, application.ToServiceError(err)
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		// Concurrent insert under the same key. The violating statement
		// poisoned its transaction, so recover with a fresh read rather
		// than guessing at the winner's state.
		if postgres.IsUniqueViolation(err) {
			winner, readErr := s.payments.FindByClientRequestID(ctx, cmd.ClientRequestID, cmd.UserID)
			if readErr != nil || winner == nil {
				return nil, application.NewInternalError(err)
			}
			return s.replayOrReset(ctx, winner, cmd)
		}
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("payment initiated",
		"payment_id", payment.ID,
		"user_id", payment.UserID,
		"amount", payment.Amount.StringFixed(2),
		"currency", payment.Currency)

	return &InitiatePaymentResult{PaymentID: payment.ID, Version: payment.Version, IsNew: true}, nil
}

func (s *PaymentService) replayOrReset(ctx context.Context, payment *domain.Payment, cmd InitiatePaymentCommand) (*InitiatePaymentResult, error) {
	if payment.Status != domain.PaymentExpired {
		return &InitiatePaymentResult{PaymentID: payment.ID, Version: payment.Version, IsNew: false}, nil
	}

	money, err := domain.NewMoney(cmd.Amount, cmd.Currency)
	if err != nil {
		return nil, application.ToServiceError(err)
	}

	s.logger.Warn("reusing expired payment, overwriting request fields",
		"payment_id", payment.ID,
		"old_amount", payment.Amount.StringFixed(2),
		"new_amount", money.Amount.StringFixed(2),
		"old_wallet_id", payment.WalletID,
		"new_wallet_id", cmd.WalletID)

	if err := payment.Reset(money, cmd.WalletID); err != nil {
		return nil, application.ToServiceError(err)
	}
	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, application.ToServiceError(err)
	}

	return &InitiatePaymentResult{PaymentID: payment.ID, Version: payment.Version, IsNew: true}, nil
}

// Process runs the two-phase commit for an INITIATED payment: reserve funds,
// charge the provider with retry, then settle the reservation. The payment
// row stays locked for the whole sequence so concurrent process calls for
// the same payment serialize.
func (s *PaymentService) Process(ctx context.Context, cmd ProcessPaymentCommand) (*PaymentResult, error) {
	token := cmd.PaymentMethodToken
	if token == "" {
		var err error
		token, err = s.vault.Resolve(cmd.PaymentMethodID)
		if err != nil {
			return nil, application.ToServiceError(err)
		}
	}

	var result *PaymentResult
	err := s.coordinator.WithTransaction(ctx, func(ctx context.Context, repos application.Repositories) error {
		payment, err := repos.Payments.FindByIDForUpdate(ctx, cmd.PaymentID)
		if err != nil {
			return err
		}
		if payment.UserID != cmd.UserID {
			return domain.NewAccessDeniedError("payment belongs to another user")
		}
		if payment.Status != domain.PaymentInitiated {
			return domain.NewInvalidTransitionError(string(payment.Status), string(domain.PaymentPending))
		}

		// With the in-process ledger this opens a second transaction from
		// the same pool while the payment row lock is held; PoolConfig
		// keeps a connection floor so these nested acquires cannot starve.
		reservation, err := s.ledger.ReserveFunds(ctx, payment.WalletID, payment.Amount, payment.Currency, payment.ID)
		if err != nil {
			return err
		}
		walletTxID := reservation.WalletTransactionID

		outcome, chargeErr := s.charger.Charge(ctx, provider.ChargeRequest{
			PaymentID:          payment.ID,
			Amount:             payment.Amount,
			Currency:           payment.Currency,
			PaymentMethodToken: token,
			Description:        "wallet payment",
		})
		if chargeErr != nil {
			provErr, ok := provider.AsProviderError(chargeErr)
			if !ok {
				return chargeErr
			}
			s.cancelBestEffort(ctx, payment.WalletID, walletTxID, payment.ID)
			if err := payment.Fail(string(provErr.Code), provErr.Message); err != nil {
				return err
			}
			if err := repos.Payments.Update(ctx, payment); err != nil {
				return err
			}
			result = s.buildResult(payment, provErr.Message)
			return nil
		}

		switch outcome.Status {
		case provider.ChargeSuccess:
			if confirmErr := s.ledger.ConfirmReservation(ctx, payment.WalletID, walletTxID, outcome.ProviderTransactionID, outcome.Provider); confirmErr != nil {
				// The charge committed on the provider side. Keep the
				// payment SUCCESS and let the reconciler settle the
				// stuck reservation.
				s.logger.Error("reservation confirmation failed after successful charge",
					"payment_id", payment.ID,
					"wallet_transaction_id", walletTxID,
					"error", confirmErr)
			}
			if err := payment.Succeed(outcome.Provider, outcome.ProviderTransactionID, walletTxID); err != nil {
				return err
			}
			result = s.buildResult(payment, "payment completed")

		case provider.ChargePending:
			if err := payment.MarkPending(outcome.Provider, outcome.ProviderTransactionID, walletTxID); err != nil {
				return err
			}
			result = s.buildResult(payment, "charge pending at provider")

		case provider.ChargeFailed:
			s.cancelBestEffort(ctx, payment.WalletID, walletTxID, payment.ID)
			if err := payment.Fail(string(outcome.FailureCode), outcome.FailureMessage); err != nil {
				return err
			}
			result = s.buildResult(payment, outcome.FailureMessage)
		}

		return repos.Payments.Update(ctx, payment)
	})
	if err != nil {
		return nil, application.ToServiceError(err)
	}

	s.logger.Info("payment processed",
		"payment_id", result.PaymentID,
		"status", result.Status)
	return result, nil
}

// CheckStatus polls the provider for a PENDING payment and settles it when
// the charge has reached a terminal state. Non-PENDING payments return their
// current status unchanged.
func (s *PaymentService) CheckStatus(ctx context.Context, paymentID, userID uuid.UUID) (*PaymentResult, error) {
	var result *PaymentResult
	err := s.coordinator.WithTransaction(ctx, func(ctx context.Context, repos application.Repositories) error {
		payment, err := repos.Payments.FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.UserID != userID {
			return domain.NewAccessDeniedError("payment belongs to another user")
		}
		if payment.Status != domain.PaymentPending {
			result = s.buildResult(payment, "payment is not pending")
			return nil
		}
		if payment.ProviderTransactionID == nil || payment.WalletTransactionID == nil {
			return domain.NewInvalidStateError("pending payment is missing provider bookkeeping")
		}

		outcome, err := s.charger.GetTransactionStatus(ctx, *payment.ProviderTransactionID)
		if err != nil {
			return err
		}

		switch outcome.Status {
		case provider.ChargeSuccess:
			if confirmErr := s.ledger.ConfirmReservation(ctx, payment.WalletID, *payment.WalletTransactionID, outcome.ProviderTransactionID, outcome.Provider); confirmErr != nil {
				s.logger.Error("reservation confirmation failed during status check",
					"payment_id", payment.ID,
					"error", confirmErr)
			}
			if err := payment.Succeed(outcome.Provider, outcome.ProviderTransactionID, *payment.WalletTransactionID); err != nil {
				return err
			}
			if err := repos.Payments.Update(ctx, payment); err != nil {
				return err
			}
			result = s.buildResult(payment, "payment completed")

		case provider.ChargePending:
			result = s.buildResult(payment, "charge still pending at provider")

		case provider.ChargeFailed:
			s.cancelBestEffort(ctx, payment.WalletID, *payment.WalletTransactionID, payment.ID)
			if err := payment.Fail(string(outcome.FailureCode), outcome.FailureMessage); err != nil {
				return err
			}
			if err := repos.Payments.Update(ctx, payment); err != nil {
				return err
			}
			result = s.buildResult(payment, outcome.FailureMessage)
		}

		return nil
	})
	if err != nil {
		return nil, application.ToServiceError(err)
	}
	return result, nil
}

// GetPayment returns a payment scoped to its owner.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID, userID uuid.UUID) (*domain.Payment, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, application.ToServiceError(err)
	}
	if payment.UserID != userID {
		return nil, application.ToServiceError(domain.NewAccessDeniedError("payment belongs to another user"))
	}
	return payment, nil
}

func (s *PaymentService) cancelBestEffort(ctx context.Context, walletID, walletTxID, paymentID uuid.UUID) {
	if err := s.ledger.CancelReservation(ctx, walletID, walletTxID); err != nil {
		s.logger.Error("reservation cancellation failed, reconciler will retry",
			"payment_id", paymentID,
			"wallet_transaction_id", walletTxID,
			"error", err)
	}
}

func (s *PaymentService) buildResult(p *domain.Payment, message string) *PaymentResult {
	return &PaymentResult{
		PaymentID: p.ID,
		Status:    p.Status,
		Message:   message,
		Amount:    p.Amount,
		Currency:  p.Currency,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
