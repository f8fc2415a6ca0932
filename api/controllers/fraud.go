package controllers

import (
	"net/http"

	"github.com/sokohub-labs/sokohub-backend/api/responses"
	"github.com/sokohub-labs/sokohub-backend/api/validators"
	fraudsvc "github.com/sokohub-labs/sokohub-backend/internal/fraud"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub-labs/sokohub-backend/pkg/errors"
	"github.com/sokohub-labs/sokohub-backend/pkg/logger"
)

type resolveIncidentRequest struct {
	Resolution enums.IncidentStatus `json:"resolution" validate:"required"`
	Notes      *string              `json:"notes" validate:"omitempty,max=1000"`
}

// FraudIncidentList returns incidents for review, newest first.
func FraudIncidentList(svc fraudsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := enums.IncidentStatus(r.URL.Query().Get("status"))
		if status != "" && !status.IsValid() {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "unknown incident status").
					WithDetails(map[string]any{"status": string(status)}))
			return
		}

		incidents, err := svc.ListIncidents(r.Context(), status, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, incidents)
	}
}

// FraudIncidentResolve records an admin verdict on a pending incident.
func FraudIncidentResolve(svc fraudsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		incidentID, err := uuidParam(r, "incidentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload resolveIncidentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		incident, err := svc.ResolveIncident(r.Context(), fraudsvc.ResolveInput{
			IncidentID: incidentID,
			Resolution: payload.Resolution,
			ResolvedBy: caller.UserID,
			Notes:      payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, incident)
	}
}
