package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sokohub-labs/sokohub-backend/api/middleware"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub-labs/sokohub-backend/pkg/errors"
)

type actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

func actorFromRequest(r *http.Request) (actor, error) {
	userID := middleware.UserIDFromContext(r.Context())
	role := middleware.RoleFromContext(r.Context())
	if userID == uuid.Nil || !role.IsValid() {
		return actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	return actor{UserID: userID, Role: role}, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid identifier").
			WithDetails(map[string]any{"param": name})
	}
	return id, nil
}
