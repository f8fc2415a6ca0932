package fraud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/internal/audit"
	"github.com/sokohub-labs/sokohub-backend/internal/users"
	"github.com/sokohub-labs/sokohub-backend/pkg/db/models"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub-labs/sokohub-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// EvaluateInput ties a scoring request to the transaction under review.
type EvaluateInput struct {
	Signals   Signals
	OrderID   *uuid.UUID
	PaymentID *uuid.UUID
}

// ResolveInput carries an administrative incident resolution.
type ResolveInput struct {
	IncidentID uuid.UUID
	Resolution enums.IncidentStatus
	ResolvedBy uuid.UUID
	Notes      *string
}

// Service is the fraud gate: score, persist incidents, suspend on block,
// and handle administrative resolution.
type Service interface {
	Evaluate(ctx context.Context, input EvaluateInput) (*Assessment, error)
	ResolveIncident(ctx context.Context, input ResolveInput) (*models.FraudIncident, error)
	ListIncidents(ctx context.Context, status enums.IncidentStatus, limit int) ([]models.FraudIncident, error)
}

type service struct {
	scorer *Scorer
	repo   Repository
	users  users.Repository
	tx     txRunner
	audit  audit.Recorder
}

// NewService builds the fraud gate with its required dependencies.
func NewService(scorer *Scorer, repo Repository, userRepo users.Repository, tx txRunner, auditor audit.Recorder) (Service, error) {
	if scorer == nil {
		return nil, fmt.Errorf("scorer required")
	}
	if repo == nil {
		return nil, fmt.Errorf("fraud repository required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{scorer: scorer, repo: repo, users: userRepo, tx: tx, audit: auditor}, nil
}

// Evaluate scores the transaction. flag/review/block persist an incident;
// block additionally suspends the actor unless a confirmed incident already
// stands against them (the account is then already dealt with).
func (s *service) Evaluate(ctx context.Context, input EvaluateInput) (*Assessment, error) {
	if input.Signals.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}

	if input.Signals.PriorIncidents == 0 {
		confirmed, err := s.repo.CountByActorAndStatus(ctx, input.Signals.ActorID, enums.IncidentStatusConfirmed)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count prior incidents")
		}
		input.Signals.PriorIncidents = int(confirmed)
	}

	assessment := s.scorer.Score(input.Signals)
	if assessment.RecommendedAction == enums.FraudActionAllow {
		return &assessment, nil
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		incident := &models.FraudIncident{
			ActorID:           input.Signals.ActorID,
			OrderID:           input.OrderID,
			PaymentID:         input.PaymentID,
			RiskScore:         assessment.RiskScore,
			TriggeredRules:    pq.StringArray(assessment.TriggeredRules),
			RecommendedAction: assessment.RecommendedAction,
			Status:            enums.IncidentStatusPending,
		}
		if err := repo.Insert(ctx, incident); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist fraud incident")
		}

		if assessment.RecommendedAction != enums.FraudActionBlock {
			return nil
		}

		confirmed, err := repo.CountByActorAndStatus(ctx, input.Signals.ActorID, enums.IncidentStatusConfirmed)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count confirmed incidents")
		}
		if confirmed > 0 {
			return nil
		}
		if err := s.users.WithTx(tx).SetStatus(ctx, input.Signals.ActorID, enums.AccountStatusSuspended); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "suspend account")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	severity := enums.AuditSeverityWarning
	if assessment.RecommendedAction == enums.FraudActionBlock {
		severity = enums.AuditSeverityCritical
	}
	s.audit.Record(ctx, audit.Entry{
		EventType: "fraud." + assessment.RecommendedAction.String(),
		Category:  enums.AuditCategoryFraud,
		Severity:  severity,
		ActorID:   &input.Signals.ActorID,
		Data: map[string]any{
			"risk_score":      assessment.RiskScore,
			"triggered_rules": assessment.TriggeredRules,
		},
	})
	return &assessment, nil
}

// ResolveIncident settles a pending incident. false_positive reactivates a
// suspended actor only when no other confirmed incident remains.
func (s *service) ResolveIncident(ctx context.Context, input ResolveInput) (*models.FraudIncident, error) {
	if input.IncidentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "incident id required")
	}
	if input.Resolution != enums.IncidentStatusConfirmed && input.Resolution != enums.IncidentStatusFalsePositive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolution must be confirmed or false_positive")
	}
	if input.ResolvedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "resolver identity missing")
	}

	var resolved *models.FraudIncident
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		incident, err := repo.FindByID(ctx, input.IncidentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "incident not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load incident")
		}
		if incident.Status != enums.IncidentStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "incident already resolved")
		}

		now := time.Now().UTC()
		incident.Status = input.Resolution
		incident.ResolvedBy = &input.ResolvedBy
		incident.ResolvedAt = &now
		incident.Notes = input.Notes
		if err := repo.Update(ctx, incident); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update incident")
		}
		resolved = incident

		if input.Resolution != enums.IncidentStatusFalsePositive {
			return nil
		}
		confirmed, err := repo.CountByActorAndStatus(ctx, incident.ActorID, enums.IncidentStatusConfirmed)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count confirmed incidents")
		}
		if confirmed > 0 {
			return nil
		}
		if err := s.users.WithTx(tx).SetStatus(ctx, incident.ActorID, enums.AccountStatusActive); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reactivate account")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		EventType: "fraud.incident_resolved",
		Category:  enums.AuditCategoryFraud,
		Severity:  enums.AuditSeverityInfo,
		ActorID:   &input.ResolvedBy,
		TargetID:  resolved.ID.String(),
		Data:      map[string]any{"resolution": input.Resolution.String()},
	})
	return resolved, nil
}

func (s *service) ListIncidents(ctx context.Context, status enums.IncidentStatus, limit int) ([]models.FraudIncident, error) {
	incidents, err := s.repo.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list incidents")
	}
	return incidents, nil
}
