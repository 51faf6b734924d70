package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/payflowhq/payflow/internal/application"
	"github.com/payflowhq/payflow/internal/domain"
)

// In-memory fakes for the persistence and ledger ports. Default behavior
// mimics the real repositories including version compare-and-set and unique
// violations; individual Fn fields override single calls in tests.

// MockPaymentRepository
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]*domain.Payment

	CreateFn                func(ctx context.Context, payment *domain.Payment) error
	UpdateFn                func(ctx context.Context, payment *domain.Payment) error
	FindByClientRequestIDFn func(ctx context.Context, clientRequestID string, userID uuid.UUID) (*domain.Payment, error)
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{payments: make(map[uuid.UUID]*domain.Payment)}
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, payment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ClientRequestID == payment.ClientRequestID && p.UserID == payment.UserID {
			return uniqueViolation()
		}
	}
	cp := *payment
	m.payments[payment.ID] = &cp
	return nil
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domain.NewPaymentNotFoundError(id)
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return m.FindByID(ctx, id)
}

func (m *MockPaymentRepository) FindByClientRequestID(ctx context.Context, clientRequestID string, userID uuid.UUID) (*domain.Payment, error) {
	if m.FindByClientRequestIDFn != nil {
		return m.FindByClientRequestIDFn(ctx, clientRequestID, userID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.ClientRequestID == clientRequestID && p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, payment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.payments[payment.ID]
	if !ok {
		return domain.NewPaymentNotFoundError(payment.ID)
	}
	if existing.Version != payment.Version {
		return domain.NewConcurrentModificationError("payment", payment.ID)
	}
	cp := *payment
	cp.Version++
	m.payments[payment.ID] = &cp
	payment.Version++
	return nil
}

func (m *MockPaymentRepository) FindInitiatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Payment
	for _, p := range m.payments {
		if p.Status == domain.PaymentInitiated && p.CreatedAt.Before(cutoff) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Seed inserts a payment directly, bypassing uniqueness checks.
func (m *MockPaymentRepository) Seed(payment *domain.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *payment
	m.payments[payment.ID] = &cp
}

// MockWalletRepository
type MockWalletRepository struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.Wallet

	AddReservedFn func(ctx context.Context, id uuid.UUID, amount decimal.Decimal, expectedVersion int64) (bool, error)
}

func NewMockWalletRepository() *MockWalletRepository {
	return &MockWalletRepository{wallets: make(map[uuid.UUID]*domain.Wallet)}
}

func (m *MockWalletRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *wallet
	m.wallets[wallet.ID] = &cp
	return nil
}

func (m *MockWalletRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wallets[id]
	if !ok {
		return nil, domain.NewWalletNotFoundError(id)
	}
	cp := *w
	return &cp, nil
}

func (m *MockWalletRepository) FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*domain.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wallets[id]
	if !ok || w.UserID != userID {
		return nil, domain.NewWalletNotFoundError(id)
	}
	cp := *w
	return &cp, nil
}

func (m *MockWalletRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Wallet
	for _, w := range m.wallets {
		if w.UserID == userID {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MockWalletRepository) AddReserved(ctx context.Context, id uuid.UUID, amount decimal.Decimal, expectedVersion int64) (bool, error) {
	if m.AddReservedFn != nil {
		return m.AddReservedFn(ctx, id, amount, expectedVersion)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[id]
	if !ok || w.Version != expectedVersion || w.AvailableBalance().LessThan(amount) {
		return false, nil
	}
	w.ReservedBalance = w.ReservedBalance.Add(amount)
	w.Version++
	w.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MockWalletRepository) ConfirmReserved(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[id]
	if !ok || w.ReservedBalance.LessThan(amount) || w.Balance.LessThan(amount) {
		return false, nil
	}
	w.Balance = w.Balance.Sub(amount)
	w.ReservedBalance = w.ReservedBalance.Sub(amount)
	w.Version++
	w.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MockWalletRepository) ReleaseReserved(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[id]
	if !ok || w.ReservedBalance.LessThan(amount) {
		return false, nil
	}
	w.ReservedBalance = w.ReservedBalance.Sub(amount)
	w.Version++
	w.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MockWalletRepository) Credit(ctx context.Context, id uuid.UUID, amount decimal.Decimal, expectedVersion int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[id]
	if !ok || w.Version != expectedVersion {
		return false, nil
	}
	w.Balance = w.Balance.Add(amount)
	w.Version++
	w.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MockWalletRepository) Debit(ctx context.Context, id uuid.UUID, amount decimal.Decimal, expectedVersion int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[id]
	if !ok || w.Version != expectedVersion || w.AvailableBalance().LessThan(amount) {
		return false, nil
	}
	w.Balance = w.Balance.Sub(amount)
	w.Version++
	w.UpdatedAt = time.Now().UTC()
	return true, nil
}

// MockWalletTransactionRepository
type MockWalletTransactionRepository struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*domain.WalletTransaction
	wallets *MockWalletRepository

	CreateFn func(ctx context.Context, t *domain.WalletTransaction) error
}

func NewMockWalletTransactionRepository(wallets *MockWalletRepository) *MockWalletTransactionRepository {
	return &MockWalletTransactionRepository{
		entries: make(map[uuid.UUID]*domain.WalletTransaction),
		wallets: wallets,
	}
}

func (m *MockWalletTransactionRepository) Create(ctx context.Context, t *domain.WalletTransaction) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ReferenceType != nil && *t.ReferenceType == domain.ReferencePayment {
		for _, e := range m.entries {
			if e.ReferenceType != nil && *e.ReferenceType == domain.ReferencePayment &&
				e.ReferenceID != nil && t.ReferenceID != nil && *e.ReferenceID == *t.ReferenceID {
				return uniqueViolation()
			}
		}
	}
	cp := *t
	m.entries[t.ID] = &cp
	return nil
}

func (m *MockWalletTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.WalletTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, domain.NewTransactionNotFoundError(id)
	}
	cp := *e
	return &cp, nil
}

func (m *MockWalletTransactionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.WalletTransaction, error) {
	return m.FindByID(ctx, id)
}

func (m *MockWalletTransactionRepository) FindByPaymentReference(ctx context.Context, paymentID uuid.UUID) (*domain.WalletTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ref := paymentID.String()
	for _, e := range m.entries {
		if e.ReferenceType != nil && *e.ReferenceType == domain.ReferencePayment &&
			e.ReferenceID != nil && *e.ReferenceID == ref {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockWalletTransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TransactionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return domain.NewTransactionNotFoundError(id)
	}
	e.Status = status
	return nil
}

func (m *MockWalletTransactionRepository) ListByWallet(ctx context.Context, walletID uuid.UUID, page int) ([]*domain.WalletTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if page < 1 {
		page = 1
	}
	var all []*domain.WalletTransaction
	for _, e := range m.entries {
		if e.WalletID == walletID {
			cp := *e
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	const pageSize = 10
	start := (page - 1) * pageSize
	if start >= len(all) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (m *MockWalletTransactionRepository) MonthlySummary(ctx context.Context, userID uuid.UUID, year int, month time.Month) (decimal.Decimal, decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	credits, debits := decimal.Zero, decimal.Zero
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	for _, e := range m.entries {
		if e.Status != domain.TransactionCompleted || e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
			continue
		}
		owner, err := m.wallets.FindByID(ctx, e.WalletID)
		if err != nil || owner.UserID != userID {
			continue
		}
		if e.Type == domain.TransactionCredit {
			credits = credits.Add(e.Amount)
		} else {
			debits = debits.Add(e.Amount)
		}
	}
	return credits, debits, nil
}

func (m *MockWalletTransactionRepository) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.WalletTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.WalletTransaction
	for _, e := range m.entries {
		if e.Status == domain.TransactionPending &&
			e.ReferenceType != nil && *e.ReferenceType == domain.ReferencePayment &&
			e.CreatedAt.Before(cutoff) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MockCoordinator passes the same fakes to the callback. There is no real
// rollback; tests must not rely on state reverting after an error.
type MockCoordinator struct {
	Repos application.Repositories
}

func NewMockCoordinator(payments *MockPaymentRepository, wallets *MockWalletRepository, transactions *MockWalletTransactionRepository) *MockCoordinator {
	return &MockCoordinator{
		Repos: application.Repositories{
			Payments:     payments,
			Wallets:      wallets,
			Transactions: transactions,
		},
	}
}

func (m *MockCoordinator) WithTransaction(ctx context.Context, fn func(ctx context.Context, repos application.Repositories) error) error {
	return fn(ctx, m.Repos)
}

// MockLedger records reserve/confirm/cancel calls for orchestrator tests.
type MockLedger struct {
	mu sync.Mutex

	ReserveFn func(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, currency string, paymentID uuid.UUID) (*application.ReservationResult, error)
	ConfirmFn func(ctx context.Context, walletID, walletTransactionID uuid.UUID, providerTransactionID, providerName string) error
	CancelFn  func(ctx context.Context, walletID, walletTransactionID uuid.UUID) error

	Reserved  []uuid.UUID
	Confirmed []uuid.UUID
	Cancelled []uuid.UUID
}

func NewMockLedger() *MockLedger {
	return &MockLedger{}
}

func (m *MockLedger) ReserveFunds(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, currency string, paymentID uuid.UUID) (*application.ReservationResult, error) {
	if m.ReserveFn != nil {
		return m.ReserveFn(ctx, walletID, amount, currency, paymentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.Reserved = append(m.Reserved, id)
	return &application.ReservationResult{
		WalletTransactionID: id,
		WalletID:            walletID,
		AmountReserved:      amount,
		RemainingBalance:    decimal.Zero,
	}, nil
}

func (m *MockLedger) ConfirmReservation(ctx context.Context, walletID, walletTransactionID uuid.UUID, providerTransactionID, providerName string) error {
	if m.ConfirmFn != nil {
		return m.ConfirmFn(ctx, walletID, walletTransactionID, providerTransactionID, providerName)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Confirmed = append(m.Confirmed, walletTransactionID)
	return nil
}

func (m *MockLedger) CancelReservation(ctx context.Context, walletID, walletTransactionID uuid.UUID) error {
	if m.CancelFn != nil {
		return m.CancelFn(ctx, walletID, walletTransactionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cancelled = append(m.Cancelled, walletTransactionID)
	return nil
}
