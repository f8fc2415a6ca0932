package deliveries

import (
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub-labs/sokohub-backend/pkg/errors"
)

// deliveryTransitions is the driver-facing state machine. failed → pending is
// the sole backward edge: it re-queues the delivery for reassignment.
var deliveryTransitions = map[enums.DeliveryStatus][]enums.DeliveryStatus{
	enums.DeliveryStatusPending:   {enums.DeliveryStatusAssigned},
	enums.DeliveryStatusAssigned:  {enums.DeliveryStatusPickedUp, enums.DeliveryStatusFailed},
	enums.DeliveryStatusPickedUp:  {enums.DeliveryStatusInTransit, enums.DeliveryStatusFailed},
	enums.DeliveryStatusInTransit: {enums.DeliveryStatusDelivered, enums.DeliveryStatusFailed},
	enums.DeliveryStatusFailed:    {enums.DeliveryStatusPending},
}

// CanTransition reports whether from→to is a legal delivery status edge.
func CanTransition(from, to enums.DeliveryStatus) bool {
	for _, next := range deliveryTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func invalidTransition(from, to enums.DeliveryStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery status transition not allowed").
		WithDetails(map[string]any{"from": from.String(), "to": to.String()})
}
