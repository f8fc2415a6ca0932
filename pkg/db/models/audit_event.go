package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
)

// AuditEvent records a pipeline state transition for administrative review.
// Writes are fire-and-forget; a failed insert never fails the business op.
type AuditEvent struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	EventType string              `gorm:"column:event_type;not null;index"`
	Category  enums.AuditCategory `gorm:"column:category;not null"`
	Severity  enums.AuditSeverity `gorm:"column:severity;not null;default:'info'"`
	ActorID   *uuid.UUID          `gorm:"column:actor_id;type:uuid;index"`
	TargetID  *string             `gorm:"column:target_id;index"`
	EventData json.RawMessage     `gorm:"column:event_data;type:jsonb"`
	Success   bool                `gorm:"column:success;not null"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (a *AuditEvent) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
