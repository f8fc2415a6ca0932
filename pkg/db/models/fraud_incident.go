package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
)

// FraudIncident is persisted when a scored transaction crosses the flag
// threshold. Resolution is an administrative operation.
type FraudIncident struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ActorID           uuid.UUID            `gorm:"column:actor_id;type:uuid;not null;index"`
	OrderID           *uuid.UUID           `gorm:"column:order_id;type:uuid"`
	PaymentID         *uuid.UUID           `gorm:"column:payment_id;type:uuid"`
	RiskScore         int                  `gorm:"column:risk_score;not null"`
	TriggeredRules    pq.StringArray       `gorm:"column:triggered_rules;type:text[]"`
	RecommendedAction enums.FraudAction    `gorm:"column:recommended_action;not null"`
	Status            enums.IncidentStatus `gorm:"column:status;not null;default:'pending'"`
	ResolvedBy        *uuid.UUID           `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt        *time.Time           `gorm:"column:resolved_at"`
	Notes             *string              `gorm:"column:notes"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (f *FraudIncident) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
