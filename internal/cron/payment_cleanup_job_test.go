package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sokohub-labs/sokohub-backend/pkg/logger"
)

type expirerStub struct {
	expired int
	err     error
	gotTTL  time.Duration
}

func (e *expirerStub) ExpireStalePending(_ context.Context, olderThan time.Duration) (int, error) {
	e.gotTTL = olderThan
	return e.expired, e.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Level: zerolog.Disabled})
}

func TestPaymentCleanupJobPassesTTL(t *testing.T) {
	expirer := &expirerStub{expired: 3}
	job, err := NewPaymentCleanupJob(testLogger(), expirer, 45*time.Minute)
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if expirer.gotTTL != 45*time.Minute {
		t.Fatalf("ttl = %s, want 45m", expirer.gotTTL)
	}
}

func TestPaymentCleanupJobPropagatesError(t *testing.T) {
	job, err := NewPaymentCleanupJob(testLogger(), &expirerStub{err: errors.New("db down")}, time.Hour)
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestPaymentCleanupJobRejectsZeroTTL(t *testing.T) {
	if _, err := NewPaymentCleanupJob(testLogger(), &expirerStub{}, 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}
