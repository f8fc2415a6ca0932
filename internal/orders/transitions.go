package orders

import (
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub-labs/sokohub-backend/pkg/errors"
)

// orderTransitions is the closed set of legal status edges. Anything not
// listed fails with a state conflict naming both ends.
var orderTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:  {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
}

// CanTransition reports whether from→to is a legal order status edge.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// pathToDelivered resolves the table-legal edge sequence from the current
// status to delivered. Each hop is validated against orderTransitions, so a
// status with no forward route (terminal or unknown) reports false.
func pathToDelivered(from enums.OrderStatus) ([]enums.OrderStatus, bool) {
	forward := map[enums.OrderStatus]enums.OrderStatus{
		enums.OrderStatusPending:    enums.OrderStatusConfirmed,
		enums.OrderStatusConfirmed:  enums.OrderStatusProcessing,
		enums.OrderStatusProcessing: enums.OrderStatusDelivered,
	}

	path := []enums.OrderStatus{}
	for from != enums.OrderStatusDelivered {
		next, ok := forward[from]
		if !ok || !CanTransition(from, next) {
			return nil, false
		}
		path = append(path, next)
		from = next
	}
	return path, true
}

func invalidTransition(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid order status transition").
		WithDetails(map[string]any{"from": from.String(), "to": to.String()})
}
