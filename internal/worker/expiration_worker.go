package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/payflowhq/payflow/internal/application"
	"github.com/payflowhq/payflow/internal/domain"
)

// ExpirationWorker moves payments that were initiated but never processed
// to EXPIRED once they exceed the TTL. An expired payment's client request
// id becomes reusable for a fresh initiation.
type ExpirationWorker struct {
	payments  application.PaymentRepository
	interval  time.Duration
	batchSize int
	ttl       time.Duration
	logger    *slog.Logger
}

func NewExpirationWorker(
	payments application.PaymentRepository,
	interval time.Duration,
	batchSize int,
	ttl time.Duration,
	logger *slog.Logger,
) *ExpirationWorker {
	return &ExpirationWorker{
		payments:  payments,
		interval:  interval,
		batchSize: batchSize,
		ttl:       ttl,
		logger:    logger,
	}
}

func (w *ExpirationWorker) Start(ctx context.Context) {
	w.logger.Info("expiration worker started", "interval", w.interval, "ttl", w.ttl)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiration worker stopping")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single expiration sweep.
func (w *ExpirationWorker) RunOnce(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.ttl)

	stale, err := w.payments.FindInitiatedBefore(ctx, cutoff, w.batchSize)
	if err != nil {
		w.logger.Error("failed to fetch stale initiated payments", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	var expired int
	for _, payment := range stale {
		if err := w.expire(ctx, payment); err != nil {
			w.logger.Error("failed to expire payment",
				"payment_id", payment.ID,
				"error", err)
			continue
		}
		expired++
	}

	w.logger.Info("expiration sweep finished",
		"candidates", len(stale),
		"expired", expired)
}

func (w *ExpirationWorker) expire(ctx context.Context, payment *domain.Payment) error {
	if err := payment.MarkExpired(); err != nil {
		return err
	}
	// The version guard on Update drops the expiry if the payment moved on
	// concurrently, which is exactly what we want.
	return w.payments.Update(ctx, payment)
}
