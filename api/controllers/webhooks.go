package controllers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sokohub-labs/sokohub-backend/api/responses"
	paysvc "github.com/sokohub-labs/sokohub-backend/internal/payments"
	pkgerrors "github.com/sokohub-labs/sokohub-backend/pkg/errors"
	"github.com/sokohub-labs/sokohub-backend/pkg/logger"
)

const (
	momoSignatureHeader = "X-Momo-Signature"
	maxWebhookBody      = 1 << 20
)

func referenceParam(r *http.Request) string {
	return chi.URLParam(r, "reference")
}

// MomoWebhook ingests asynchronous settlement notifications from the
// mobile-money gateway. The raw body is read before any decoding so the
// signature covers exactly the bytes the gateway signed.
func MomoWebhook(svc paysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable webhook body"))
			return
		}
		if len(body) == 0 {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "empty webhook body"))
			return
		}

		if err := svc.HandleWebhook(r.Context(), body, r.Header.Get(momoSignatureHeader)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "accepted"})
	}
}
