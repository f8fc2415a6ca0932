package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/sokohub-labs/sokohub-backend/internal/deliveries"
	"github.com/sokohub-labs/sokohub-backend/pkg/logger"
)

const autoMatchJobName = "delivery_auto_match"

type deliveryMatcher interface {
	AutoMatch(ctx context.Context) (*deliveries.AutoMatchReport, error)
}

// AutoMatchJob pairs unassigned deliveries with idle drivers each cycle.
// Per-pair failures surface as a job failure without stopping the batch.
type AutoMatchJob struct {
	logg    *logger.Logger
	matcher deliveryMatcher
}

func NewAutoMatchJob(logg *logger.Logger, matcher deliveryMatcher) (*AutoMatchJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if matcher == nil {
		return nil, fmt.Errorf("delivery matcher required")
	}
	return &AutoMatchJob{logg: logg, matcher: matcher}, nil
}

func (j *AutoMatchJob) Name() string { return autoMatchJobName }

func (j *AutoMatchJob) Run(ctx context.Context) error {
	report, err := j.matcher.AutoMatch(ctx)
	if err != nil {
		return fmt.Errorf("auto match: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "assigned", len(report.Assigned)), "auto-match assignments applied")
	if failures := multierr.Errors(report.Failed); len(failures) > 0 {
		return fmt.Errorf("%d of %d pairs failed: %w",
			len(failures), len(failures)+len(report.Assigned), report.Failed)
	}
	return nil
}
