package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/payflowhq/payflow/internal/application"
	"github.com/payflowhq/payflow/internal/domain"
	"github.com/payflowhq/payflow/internal/infrastructure/persistence/postgres"
)

const (
	casAttempts = 3
	casBackoff  = 100 * time.Millisecond
)

// WalletService is the ledger. It owns every balance mutation and enforces
// the reserve/confirm/cancel protocol. Payment orchestration talks to it
// through the application.WalletLedger port.
type WalletService struct {
	coordinator  application.TransactionCoordinator
	wallets      application.WalletRepository
	transactions application.WalletTransactionRepository
	logger       *slog.Logger
}

func NewWalletService(
	coordinator application.TransactionCoordinator,
	wallets application.WalletRepository,
	transactions application.WalletTransactionRepository,
	logger *slog.Logger,
) *WalletService {
	return &WalletService{
		coordinator:  coordinator,
		wallets:      wallets,
		transactions: transactions,
		logger:       logger,
	}
}

// TransferResult reports the journal entries created by a transfer.
type TransferResult struct {
	DebitTransactionID  uuid.UUID
	CreditTransactionID uuid.UUID
}

// CreateWallet provisions an empty wallet for a user.
func (s *WalletService) CreateWallet(ctx context.Context, cmd CreateWalletCommand) (*domain.Wallet, error) {
	wallet, err := domain.NewWallet(cmd.UserID, cmd.Currency)
	if err != nil {
		return nil, application.ToServiceError(err)
	}

	if err := s.wallets.Create(ctx, wallet); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("wallet created", "wallet_id", wallet.ID, "user_id", wallet.UserID, "currency", wallet.Currency)
	return wallet, nil
}

// GetWallet returns a wallet scoped to its owner.
func (s *WalletService) GetWallet(ctx context.Context, walletID, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.wallets.FindByIDAndUser(ctx, walletID, userID)
	if err != nil {
		return nil, application.ToServiceError(err)
	}
	return wallet, nil
}

// ListWallets returns all wallets owned by a user.
func (s *WalletService) ListWallets(ctx context.Context, userID uuid.UUID) ([]*domain.Wallet, error) {
	wallets, err := s.wallets.ListByUser(ctx, userID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return wallets, nil
}

// ReserveFunds places a hold for a payment. Idempotent on the payment id:
// a repeat call returns the existing reservation instead of creating a
// second hold.
func (s *WalletService) ReserveFunds(ctx context.Context, cmd ReserveFundsCommand) (*application.ReservationResult, error) {
	if cmd.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, application.ToServiceError(domain.NewInvalidAmountError(cmd.Amount))
	}

	existing, err := s.transactions.FindByPaymentReference(ctx, cmd.PaymentID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if existing != nil {
		return s.existingReservation(ctx, existing, cmd.PaymentID)
	}

	var result *application.ReservationResult
	for attempt := 1; attempt <= casAttempts; attempt++ {
		err = s.coordinator.WithTransaction(ctx, func(ctx context.Context, repos application.Repositories) error {
			wallet, err := repos.Wallets.FindByID(ctx, cmd.WalletID)
			if err != nil {
				return err
			}
			if cmd.UserID != uuid.Nil && wallet.UserID != cmd.UserID {
				return domain.NewWalletNotFoundError(cmd.WalletID)
			}
			if cmd.Currency != "" && wallet.Currency != cmd.Currency {
				return domain.NewCurrencyMismatchError(wallet.Currency, cmd.Currency)
			}
			if !wallet.CanReserve(cmd.Amount) {
				return domain.NewInsufficientBalanceError(wallet.AvailableBalance(), cmd.Amount)
			}

			ok, err := repos.Wallets.AddReserved(ctx, wallet.ID, cmd.Amount, wallet.Version)
			if err != nil {
				return err
			}
			if !ok {
				// The guarded update hit nothing. Re-read to tell a version
				// change apart from funds vanishing underneath us.
				current, readErr := repos.Wallets.FindByID(ctx, wallet.ID)
				if readErr != nil {
					return readErr
				}
				if !current.CanReserve(cmd.Amount) {
					return domain.NewInsufficientBalanceError(current.AvailableBalance(), cmd.Amount)
				}
				return domain.NewConcurrentModificationError("wallet", wallet.ID)
			}

			entry := domain.NewReservation(wallet.ID, cmd.Amount, cmd.PaymentID, "payment reservation")
			if err := repos.Transactions.Create(ctx, entry); err != nil {
				return err
			}

			result = &application.ReservationResult{
				WalletTransactionID: entry.ID,
				WalletID:            wallet.ID,
				AmountReserved:      cmd.Amount,
				RemainingBalance:    wallet.AvailableBalance().Sub(cmd.Amount),
			}
			return nil
		})
		if err == nil {
			s.logger.Info("funds reserved",
				"wallet_id", cmd.WalletID,
				"payment_id", cmd.PaymentID,
				"amount", cmd.Amount.StringFixed(2))
			return result, nil
		}

		// A concurrent reserve for the same payment won the insert race. The
		// violating transaction is gone, so recover with a fresh read.
		if postgres.IsUniqueViolation(err) {
			existing, readErr := s.transactions.FindByPaymentReference(ctx, cmd.PaymentID)
			if readErr != nil || existing == nil {
				return nil, application.NewInternalError(err)
			}
			return s.existingReservation(ctx, existing, cmd.PaymentID)
		}
		if !domain.IsErrorCode(err, domain.ErrCodeConcurrentModification) {
			return nil, application.ToServiceError(err)
		}
		time.Sleep(casBackoff)
	}

	return nil, application.ToServiceError(err)
}

func (s *WalletService) existingReservation(ctx context.Context, entry *domain.WalletTransaction, paymentID uuid.UUID) (*application.ReservationResult, error) {
	s.logger.Info("reservation already exists, returning it",
		"payment_id", paymentID,
		"wallet_transaction_id", entry.ID,
		"status", entry.Status)

	wallet, err := s.wallets.FindByID(ctx, entry.WalletID)
	if err != nil {
		return nil, application.ToServiceError(err)
	}
	return &application.ReservationResult{
		WalletTransactionID: entry.ID,
		WalletID:            entry.WalletID,
		AmountReserved:      entry.Amount,
		RemainingBalance:    wallet.AvailableBalance(),
	}, nil
}

// ConfirmReservation settles a hold: the money leaves the wallet for good.
// Idempotent when the entry is already COMPLETED.
func (s *WalletService) ConfirmReservation(ctx context.Context, cmd ConfirmReservationCommand) error {
	err := s.coordinator.WithTransaction(ctx, func(ctx context.Context, repos application.Repositories) error {
		entry, err := repos.Transactions.FindByIDForUpdate(ctx, cmd.WalletTransactionID)
		if err != nil {
			return err
		}
		if err := s.checkEntryAccess(ctx, repos, entry, cmd.WalletID, cmd.UserID); err != nil {
			return err
		}
		if entry.Status == domain.TransactionCompleted {
			s.logger.Info("reservation already confirmed", "wallet_transaction_id", entry.ID)
			return nil
		}
		if err := entry.Complete(); err != nil {
			return err
		}

		ok, err := repos.Wallets.ConfirmReserved(ctx, entry.WalletID, entry.Amount)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewInvalidStateError("reserved balance does not cover the reservation")
		}

		return repos.Transactions.UpdateStatus(ctx, entry.ID, domain.TransactionCompleted)
	})
	if err != nil {
		return application.ToServiceError(err)
	}

	s.logger.Info("reservation confirmed",
		"wallet_transaction_id", cmd.WalletTransactionID,
		"provider", cmd.Provider,
		"provider_transaction_id", cmd.ProviderTransactionID)
	return nil
}

// CancelReservation releases a hold back to the available balance.
// Idempotent when the entry is already CANCELLED.
func (s *WalletService) CancelReservation(ctx context.Context, cmd CancelReservationCommand) error {
	err := s.coordinator.WithTransaction(ctx, func(ctx context.Context, repos application.Repositories) error {
		entry, err := repos.Transactions.FindByIDForUpdate(ctx, cmd.WalletTransactionID)
		if err != nil {
			return err
		}
		if err := s.checkEntryAccess(ctx, repos, entry, cmd.WalletID, cmd.UserID); err != nil {
			return err
		}
		if entry.Status == domain.TransactionCancelled {
			s.logger.Info("reservation already cancelled", "wallet_transaction_id", entry.ID)
			return nil
		}
		if err := entry.Cancel(); err != nil {
			return err
		}

		ok, err := repos.Wallets.ReleaseReserved(ctx, entry.WalletID, entry.Amount)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewInvalidStateError("reserved balance does not cover the reservation")
		}

		return repos.Transactions.UpdateStatus(ctx, entry.ID, domain.TransactionCancelled)
	})
	if err != nil {
		return application.ToServiceError(err)
	}

	s.logger.Info("reservation cancelled", "wallet_transaction_id", cmd.WalletTransactionID)
	return nil
}

// checkEntryAccess verifies that a journal entry belongs to the addressed
// wallet and that the caller owns it. Zero identifiers skip the check;
// in-process callers route through the payment id, not the HTTP surface.
func (s *WalletService) checkEntryAccess(ctx context.Context, repos application.Repositories, entry *domain.WalletTransaction, walletID, userID uuid.UUID) error {
	if walletID != uuid.Nil && entry.WalletID != walletID {
		return domain.NewInvalidInputError("transaction does not belong to this wallet")
	}
	if userID != uuid.Nil {
		wallet, err := repos.Wallets.FindByID(ctx, entry.WalletID)
		if err != nil {
			return err
		}
		if wallet.UserID != userID {
			return domain.NewAccessDeniedError("wallet belongs to another user")
		}
	}
	return nil
}

// TopUp credits a wallet and records a COMPLETED journal entry.
func (s *WalletService) TopUp(ctx context.Context, cmd TopUpCommand) (*domain.Wallet, error) {
	money, err := domain.NewMoney(cmd.Amount, cmd.Currency)
	if err != nil {
		return nil, application.ToServiceError(err)
	}

	for attempt := 1; attempt <= casAttempts; attempt++ {
		err = s.coordinator.WithTransaction(ctx, func(ctx context.Context, repos application.Repositories) error {
			wallet, err := repos.Wallets.FindByIDAndUser(ctx, cmd.WalletID, cmd.UserID)
			if err != nil {
				return err
			}
			if wallet.Currency != money.Currency {
				return domain.NewCurrencyMismatchError(wallet.Currency, money.Currency)
			}

			ok, err := repos.Wallets.Credit(ctx, wallet.ID, money.Amount, wallet.Version)
			if err != nil {
				return err
			}
			if !ok {
				return domain.NewConcurrentModificationError("wallet", wallet.ID)
			}

			refType := domain.ReferenceTopUp
			entry := domain.NewCompletedEntry(wallet.ID, money.Amount, domain.TransactionCredit, nil, &refType, "wallet top-up")
			return repos.Transactions.Create(ctx, entry)
		})
		if err == nil {
			s.logger.Info("wallet topped up", "wallet_id", cmd.WalletID, "amount", money.Amount.StringFixed(2))
			return s.GetWallet(ctx, cmd.WalletID, cmd.UserID)
		}
		if !domain.IsErrorCode(err, domain.ErrCodeConcurrentModification) {
			return nil, application.ToServiceError(err)
		}
		time.Sleep(casBackoff)
	}

	return nil, application.ToServiceError(err)
}

// Transfer moves funds between two wallets atomically, recording a paired
// DEBIT/CREDIT where each entry references the counterpart wallet.
func (s *WalletService) Transfer(ctx context.Context, cmd TransferCommand) (*TransferResult, error) {
	money, err := domain.NewMoney(cmd.Amount, cmd.Currency)
	if err != nil {
		return nil, application.ToServiceError(err)
	}
	if cmd.FromWalletID == cmd.ToWalletID {
		return nil, application.NewValidationError("cannot transfer to the same wallet", nil)
	}

	var result *TransferResult
	for attempt := 1; attempt <= casAttempts; attempt++ {
		err = s.coordinator.WithTransaction(ctx, func(ctx context.Context, repos application.Repositories) error {
			from, err := repos.Wallets.FindByIDAndUser(ctx, cmd.FromWalletID, cmd.UserID)
			if err != nil {
				return err
			}
			to, err := repos.Wallets.FindByID(ctx, cmd.ToWalletID)
			if err != nil {
				return err
			}
			if from.Currency != money.Currency || to.Currency != money.Currency {
				return domain.NewCurrencyMismatchError(from.Currency, money.Currency)
			}
			if from.AvailableBalance().LessThan(money.Amount) {
				return domain.NewInsufficientBalanceError(from.AvailableBalance(), money.Amount)
			}

			ok, err := repos.Wallets.Debit(ctx, from.ID, money.Amount, from.Version)
			if err != nil {
				return err
			}
			if !ok {
				return domain.NewConcurrentModificationError("wallet", from.ID)
			}

			ok, err = repos.Wallets.Credit(ctx, to.ID, money.Amount, to.Version)
			if err != nil {
				return err
			}
			if !ok {
				return domain.NewConcurrentModificationError("wallet", to.ID)
			}

			// Each leg references the counterpart wallet, so either row
			// leads back to the other side of the transfer.
			toRef := to.ID.String()
			fromRef := from.ID.String()
			refType := domain.ReferenceTransfer
			debit := domain.NewCompletedEntry(from.ID, money.Amount, domain.TransactionDebit, &toRef, &refType, "transfer out")
			credit := domain.NewCompletedEntry(to.ID, money.Amount, domain.TransactionCredit, &fromRef, &refType, "transfer in")

			if err := repos.Transactions.Create(ctx, debit); err != nil {
				return err
			}
			if err := repos.Transactions.Create(ctx, credit); err != nil {
				return err
			}

			result = &TransferResult{
				DebitTransactionID:  debit.ID,
				CreditTransactionID: credit.ID,
			}
			return nil
		})
		if err == nil {
			s.logger.Info("transfer completed",
				"from_wallet_id", cmd.FromWalletID,
				"to_wallet_id", cmd.ToWalletID,
				"amount", money.Amount.StringFixed(2))
			return result, nil
		}
		if !domain.IsErrorCode(err, domain.ErrCodeConcurrentModification) {
			return nil, application.ToServiceError(err)
		}
		time.Sleep(casBackoff)
	}

	return nil, application.ToServiceError(err)
}

// History returns one page of a wallet's journal, newest first.
func (s *WalletService) History(ctx context.Context, walletID, userID uuid.UUID, page int) ([]*domain.WalletTransaction, error) {
	if _, err := s.wallets.FindByIDAndUser(ctx, walletID, userID); err != nil {
		return nil, application.ToServiceError(err)
	}

	entries, err := s.transactions.ListByWallet(ctx, walletID, page)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return entries, nil
}

// MonthlySummary aggregates COMPLETED credits and debits across all of a
// user's wallets for one month.
func (s *WalletService) MonthlySummary(ctx context.Context, userID uuid.UUID, year int, month time.Month) (credits, debits decimal.Decimal, err error) {
	credits, debits, err = s.transactions.MonthlySummary(ctx, userID, year, month)
	if err != nil {
		return decimal.Zero, decimal.Zero, application.NewInternalError(err)
	}
	return credits, debits, nil
}
