package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sokohub-labs/sokohub-backend/api/responses"
	"github.com/sokohub-labs/sokohub-backend/api/validators"
	deliverysvc "github.com/sokohub-labs/sokohub-backend/internal/deliveries"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	"github.com/sokohub-labs/sokohub-backend/pkg/logger"
	"github.com/sokohub-labs/sokohub-backend/pkg/pagination"
)

type assignDeliveryRequest struct {
	DriverID uuid.UUID `json:"driver_id" validate:"required"`
}

type updateDeliveryStatusRequest struct {
	Status         enums.DeliveryStatus `json:"status" validate:"required"`
	ProofSignature string               `json:"proof_signature" validate:"omitempty,max=120"`
	ProofPhotoURL  string               `json:"proof_photo_url" validate:"omitempty,url"`
	Notes          string               `json:"notes" validate:"omitempty,max=500"`
}

// DeliveryAssign is the admin path: hand a pending delivery to a named driver.
func DeliveryAssign(svc deliverysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		deliveryID, err := uuidParam(r, "deliveryID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload assignDeliveryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		delivery, err := svc.Assign(r.Context(), deliverysvc.Actor{UserID: caller.UserID, Role: caller.Role}, deliveryID, payload.DriverID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, delivery)
	}
}

// DeliveryAccept is the driver path: claim an unassigned delivery.
func DeliveryAccept(svc deliverysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		deliveryID, err := uuidParam(r, "deliveryID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		delivery, err := svc.Accept(r.Context(), caller.UserID, deliveryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, delivery)
	}
}

func DeliveryUpdateStatus(svc deliverysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		deliveryID, err := uuidParam(r, "deliveryID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateDeliveryStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		delivery, err := svc.UpdateStatus(r.Context(),
			deliverysvc.Actor{UserID: caller.UserID, Role: caller.Role},
			deliveryID, payload.Status,
			deliverysvc.Proof{
				Signature: payload.ProofSignature,
				PhotoURL:  payload.ProofPhotoURL,
				Notes:     payload.Notes,
			})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, delivery)
	}
}

func DeliveryFetchByOrder(svc deliverysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := uuidParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		delivery, err := svc.GetByOrder(r.Context(), deliverysvc.Actor{UserID: caller.UserID, Role: caller.Role}, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, delivery)
	}
}

// DeliveryAutoMatch runs one batch pairing of pending deliveries against
// idle drivers and reports what was assigned and what failed.
func DeliveryAutoMatch(svc deliverysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := svc.AutoMatch(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		body := map[string]any{"assigned": report.Assigned}
		if report.Failed != nil {
			body["failed"] = report.Failed.Error()
		}
		responses.WriteSuccess(w, body)
	}
}

// DeliveryListMine pages through the calling driver's deliveries.
func DeliveryListMine(svc deliverysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListDriverDeliveries(r.Context(), caller.UserID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
