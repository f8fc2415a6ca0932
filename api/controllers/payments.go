package controllers

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sokohub-labs/sokohub-backend/api/responses"
	"github.com/sokohub-labs/sokohub-backend/api/validators"
	paysvc "github.com/sokohub-labs/sokohub-backend/internal/payments"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	"github.com/sokohub-labs/sokohub-backend/pkg/logger"
)

const deviceFingerprintHeader = "X-Device-Fingerprint"

type initiatePaymentRequest struct {
	OrderID       uuid.UUID           `json:"order_id" validate:"required"`
	Method        enums.PaymentMethod `json:"method" validate:"required"`
	CustomerPhone string              `json:"customer_phone" validate:"omitempty,max=20"`
	CustomerName  string              `json:"customer_name" validate:"omitempty,max=120"`
	CustomerEmail string              `json:"customer_email" validate:"omitempty,email"`
	OTPCode       string              `json:"otp_code" validate:"omitempty,max=10"`
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// PaymentInitiate opens a settlement attempt for an order.
func PaymentInitiate(svc paysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload initiatePaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Initiate(r.Context(), paysvc.InitiateInput{
			OrderID: payload.OrderID,
			Method:  payload.Method,
			Customer: paysvc.CustomerInfo{
				Phone: payload.CustomerPhone,
				Name:  payload.CustomerName,
				Email: payload.CustomerEmail,
			},
			OTPCode:           payload.OTPCode,
			Actor:             paysvc.Actor{UserID: caller.UserID, Role: caller.Role},
			IPAddress:         clientIP(r),
			DeviceFingerprint: r.Header.Get(deviceFingerprintHeader),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func PaymentFetch(svc paysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payment, err := svc.GetByReference(r.Context(), paysvc.Actor{UserID: caller.UserID, Role: caller.Role}, referenceParam(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

// PaymentVerify re-reads the gateway and reconciles local state.
func PaymentVerify(svc paysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payment, err := svc.VerifyPayment(r.Context(), referenceParam(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

// PaymentConfirm settles a cash-on-delivery or bank transfer attempt.
func PaymentConfirm(svc paysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payment, err := svc.ConfirmOfflineSettlement(r.Context(), paysvc.Actor{UserID: caller.UserID, Role: caller.Role}, referenceParam(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

func PaymentRefund(svc paysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payment, err := svc.Refund(r.Context(), paysvc.Actor{UserID: caller.UserID, Role: caller.Role}, referenceParam(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}
