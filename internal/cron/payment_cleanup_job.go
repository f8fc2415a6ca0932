package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/sokohub-labs/sokohub-backend/pkg/logger"
)

const paymentCleanupJobName = "payment_cleanup"

type stalePaymentExpirer interface {
	ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error)
}

// PaymentCleanupJob cancels pending payments that outlived the settlement
// window so their orders can open a fresh attempt.
type PaymentCleanupJob struct {
	logg     *logger.Logger
	payments stalePaymentExpirer
	ttl      time.Duration
}

func NewPaymentCleanupJob(logg *logger.Logger, payments stalePaymentExpirer, ttl time.Duration) (*PaymentCleanupJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("pending ttl must be positive")
	}
	return &PaymentCleanupJob{logg: logg, payments: payments, ttl: ttl}, nil
}

func (j *PaymentCleanupJob) Name() string { return paymentCleanupJobName }

func (j *PaymentCleanupJob) Run(ctx context.Context) error {
	expired, err := j.payments.ExpireStalePending(ctx, j.ttl)
	if err != nil {
		return fmt.Errorf("expire stale payments: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "expired", expired), "stale pending payments expired")
	return nil
}
