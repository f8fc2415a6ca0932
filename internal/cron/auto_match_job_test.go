package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/sokohub-labs/sokohub-backend/internal/deliveries"
)

type matcherStub struct {
	report *deliveries.AutoMatchReport
	err    error
}

func (m *matcherStub) AutoMatch(context.Context) (*deliveries.AutoMatchReport, error) {
	return m.report, m.err
}

func TestAutoMatchJobSucceedsWithCleanReport(t *testing.T) {
	job, err := NewAutoMatchJob(testLogger(), &matcherStub{report: &deliveries.AutoMatchReport{
		Assigned: []deliveries.AssignedPair{{DeliveryID: uuid.New(), DriverID: uuid.New()}},
	}})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestAutoMatchJobReportsPairFailures(t *testing.T) {
	report := &deliveries.AutoMatchReport{
		Failed: multierr.Combine(errors.New("driver went busy")),
	}
	job, err := NewAutoMatchJob(testLogger(), &matcherStub{report: report})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected pair failures to surface")
	}
}
