package payments

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/sokohub-labs/sokohub-backend/pkg/db/models"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
)

// Actor identifies the caller for role-scoped settlement operations.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// CustomerInfo is the payer contact detail forwarded to the gateway.
type CustomerInfo struct {
	Phone string
	Name  string
	Email string
}

// InitiateInput carries everything settlement initiation needs.
type InitiateInput struct {
	OrderID           uuid.UUID
	Method            enums.PaymentMethod
	Customer          CustomerInfo
	OTPCode           string
	Actor             Actor
	IPAddress         string
	DeviceFingerprint string
}

// InitiateResult is the initiation outcome handed back to the caller. The
// payment URL is only set for gateway redirect flows.
type InitiateResult struct {
	Payment    *models.Payment
	PaymentURL string
}

// WebhookNotification is the parsed gateway callback body.
type WebhookNotification struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	ErrorMessage  string `json:"error_message"`
}

// terminalEvent is one reconciliation outcome to apply to a payment,
// regardless of whether it arrived by webhook, pull verification, or an
// offline settlement confirmation.
type terminalEvent struct {
	target        enums.PaymentStatus
	transactionID string
	errorMessage  string
	rawResponse   json.RawMessage
	source        string
}
