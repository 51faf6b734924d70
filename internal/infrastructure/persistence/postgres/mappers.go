package postgres

import (
	"github.com/payflowhq/payflow/internal/domain"
)

// toDomainPayment: maps db model to domain entity
func toDomainPayment(m PaymentModel) *domain.Payment {
	return domain.ReconstitutePayment(
		m.ID,
		m.UserID,
		m.Amount,
		m.Currency,
		m.ClientRequestID,
		m.WalletID,
		domain.PaymentStatus(m.Status),
		m.Version,
		m.Provider,
		m.ProviderTransactionID,
		m.WalletTransactionID,
		m.FailureCode,
		m.FailureMessage,
		m.CreatedAt,
		m.UpdatedAt,
	)
}

// toPaymentModel: maps domain entity to db model
func toPaymentModel(p *domain.Payment) *PaymentModel {
	return &PaymentModel{
		ID:                    p.ID,
		UserID:                p.UserID,
		Amount:                p.Amount,
		Currency:              p.Currency,
		ClientRequestID:       p.ClientRequestID,
		WalletID:              p.WalletID,
		Status:                string(p.Status),
		Version:               p.Version,
		Provider:              p.Provider,
		ProviderTransactionID: p.ProviderTransactionID,
		WalletTransactionID:   p.WalletTransactionID,
		FailureCode:           p.FailureCode,
		FailureMessage:        p.FailureMessage,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

func toDomainWallet(m WalletModel) *domain.Wallet {
	return domain.ReconstituteWallet(
		m.ID,
		m.UserID,
		m.Balance,
		m.ReservedBalance,
		m.Currency,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	)
}

func toDomainTransaction(m WalletTransactionModel) *domain.WalletTransaction {
	var refType *domain.ReferenceType
	if m.ReferenceType != nil {
		rt := domain.ReferenceType(*m.ReferenceType)
		refType = &rt
	}
	return &domain.WalletTransaction{
		ID:            m.ID,
		WalletID:      m.WalletID,
		Amount:        m.Amount,
		Type:          domain.TransactionType(m.Type),
		Status:        domain.TransactionStatus(m.Status),
		ReferenceID:   m.ReferenceID,
		ReferenceType: refType,
		Description:   m.Description,
		CreatedAt:     m.CreatedAt,
	}
}
