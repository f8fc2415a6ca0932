package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/pkg/db/models"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	"github.com/sokohub-labs/sokohub-backend/pkg/logger"
)

// Entry describes one pipeline event worth an audit row.
type Entry struct {
	EventType string
	Category  enums.AuditCategory
	Severity  enums.AuditSeverity
	ActorID   *uuid.UUID
	TargetID  string
	Data      any
	Failed    bool
}

// Recorder is the fire-and-forget audit surface services depend on. A
// failed write must never fail the business operation that triggered it.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// Repository persists audit rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, event *models.AuditEvent) error
	ListByTarget(ctx context.Context, targetID string, limit int) ([]models.AuditEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an audit repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, event *models.AuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListByTarget(ctx context.Context, targetID string, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var events []models.AuditEvent
	err := r.db.WithContext(ctx).
		Where("target_id = ?", targetID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds the audit recorder. Insert failures degrade to a log
// warning carrying the full entry.
func NewService(repo Repository, logg *logger.Logger) (Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Record(ctx context.Context, entry Entry) {
	if entry.EventType == "" {
		return
	}
	severity := entry.Severity
	if !severity.IsValid() {
		severity = enums.AuditSeverityInfo
	}

	var data json.RawMessage
	if entry.Data != nil {
		encoded, err := json.Marshal(entry.Data)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "event_type", entry.EventType),
				"audit event data not serializable, dropping payload")
		} else {
			data = encoded
		}
	}

	event := &models.AuditEvent{
		EventType: entry.EventType,
		Category:  entry.Category,
		Severity:  severity,
		ActorID:   entry.ActorID,
		EventData: data,
		Success:   !entry.Failed,
	}
	if entry.TargetID != "" {
		target := entry.TargetID
		event.TargetID = &target
	}

	if err := s.repo.Insert(ctx, event); err != nil {
		fields := map[string]any{"event_type": entry.EventType, "target_id": entry.TargetID}
		s.logg.Warn(s.logg.WithFields(ctx, fields), "audit event write failed: "+err.Error())
	}
}
