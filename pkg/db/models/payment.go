package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	"github.com/sokohub-labs/sokohub-backend/pkg/types"
)

// Payment is one settlement attempt against an order. Reference is globally
// unique and doubles as the idempotency key correlating gateway callbacks.
type Payment struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID               uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Reference             string              `gorm:"column:reference;not null;uniqueIndex"`
	Method                enums.PaymentMethod `gorm:"column:method;not null"`
	Status                enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	Amount                types.Money         `gorm:"column:amount;type:numeric(14,2);not null"`
	ExternalTransactionID *string             `gorm:"column:external_transaction_id"`
	GatewayResponse       json.RawMessage     `gorm:"column:gateway_response;type:jsonb"`
	ErrorDetails          *string             `gorm:"column:error_details"`
	CompletedAt           *time.Time          `gorm:"column:completed_at"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
