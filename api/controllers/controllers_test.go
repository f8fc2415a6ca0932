package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/api/middleware"
	deliverysvc "github.com/sokohub-labs/sokohub-backend/internal/deliveries"
	paysvc "github.com/sokohub-labs/sokohub-backend/internal/payments"
	"github.com/sokohub-labs/sokohub-backend/pkg/db/models"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	"github.com/sokohub-labs/sokohub-backend/pkg/logger"
	"github.com/sokohub-labs/sokohub-backend/pkg/pagination"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "controllers-test", Level: zerolog.Disabled})
}

func asActor(r *http.Request, userID uuid.UUID, role enums.Role) *http.Request {
	return r.WithContext(middleware.WithActor(r.Context(), userID, role))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

type capturePaymentsService struct {
	initiate   paysvc.InitiateInput
	payload    []byte
	signature  string
	webhookErr error
}

func (s *capturePaymentsService) Initiate(_ context.Context, input paysvc.InitiateInput) (*paysvc.InitiateResult, error) {
	s.initiate = input
	return &paysvc.InitiateResult{Payment: &models.Payment{Reference: "PAY-CAPTURED"}}, nil
}
func (s *capturePaymentsService) HandleWebhook(_ context.Context, payload []byte, signature string) error {
	s.payload = payload
	s.signature = signature
	return s.webhookErr
}
func (s *capturePaymentsService) VerifyPayment(context.Context, string) (*models.Payment, error) {
	return &models.Payment{}, nil
}
func (s *capturePaymentsService) ConfirmOfflineSettlement(context.Context, paysvc.Actor, string) (*models.Payment, error) {
	return &models.Payment{}, nil
}
func (s *capturePaymentsService) Refund(context.Context, paysvc.Actor, string) (*models.Payment, error) {
	return &models.Payment{}, nil
}
func (s *capturePaymentsService) GetByReference(context.Context, paysvc.Actor, string) (*models.Payment, error) {
	return &models.Payment{}, nil
}
func (s *capturePaymentsService) ExpireStalePending(context.Context, time.Duration) (int, error) {
	return 0, nil
}

func TestPaymentInitiateForwardsClientSignals(t *testing.T) {
	svc := &capturePaymentsService{}
	handler := PaymentInitiate(svc, testLogger())

	orderID := uuid.New()
	buyerID := uuid.New()
	body := `{"order_id":"` + orderID.String() + `","method":"mobile_money","customer_phone":"+254712000111"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	req.Header.Set("X-Forwarded-For", "41.90.64.15, 10.0.0.2")
	req.Header.Set("X-Device-Fingerprint", "dev-fp-7c2a")
	req = asActor(req, buyerID, enums.RoleBuyer)

	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, orderID, svc.initiate.OrderID)
	assert.Equal(t, enums.PaymentMethodMobileMoney, svc.initiate.Method)
	assert.Equal(t, "+254712000111", svc.initiate.Customer.Phone)
	assert.Equal(t, "41.90.64.15", svc.initiate.IPAddress)
	assert.Equal(t, "dev-fp-7c2a", svc.initiate.DeviceFingerprint)
	assert.Equal(t, buyerID, svc.initiate.Actor.UserID)
}

func TestPaymentInitiateRejectsUnknownFields(t *testing.T) {
	svc := &capturePaymentsService{}
	handler := PaymentInitiate(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments",
		strings.NewReader(`{"order_id":"`+uuid.NewString()+`","method":"mobile_money","amount":"99.00"}`))
	req = asActor(req, uuid.New(), enums.RoleBuyer)

	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, uuid.Nil, svc.initiate.OrderID)
}

func TestMomoWebhookPassesRawBodyAndSignature(t *testing.T) {
	svc := &capturePaymentsService{}
	handler := MomoWebhook(svc, testLogger())

	payload := `{"reference":"PAY-ABC123","status":"completed","transaction_id":"MM-881"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/momo", strings.NewReader(payload))
	req.Header.Set("X-Momo-Signature", "deadbeef")

	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, string(svc.payload))
	assert.Equal(t, "deadbeef", svc.signature)
}

func TestClientIPFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:49152"
	assert.Equal(t, "198.51.100.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}

type captureDeliveriesService struct {
	stubDeliveries
	target enums.DeliveryStatus
	proof  deliverysvc.Proof
}

type stubDeliveries struct{}

func (stubDeliveries) CreateForOrder(context.Context, *gorm.DB, *models.Order) error { return nil }
func (stubDeliveries) Assign(context.Context, deliverysvc.Actor, uuid.UUID, uuid.UUID) (*models.Delivery, error) {
	return &models.Delivery{}, nil
}
func (stubDeliveries) Accept(context.Context, uuid.UUID, uuid.UUID) (*models.Delivery, error) {
	return &models.Delivery{}, nil
}
func (stubDeliveries) UpdateStatus(context.Context, deliverysvc.Actor, uuid.UUID, enums.DeliveryStatus, deliverysvc.Proof) (*models.Delivery, error) {
	return &models.Delivery{}, nil
}
func (stubDeliveries) GetByOrder(context.Context, deliverysvc.Actor, uuid.UUID) (*models.Delivery, error) {
	return &models.Delivery{}, nil
}
func (stubDeliveries) ListDriverDeliveries(context.Context, uuid.UUID, pagination.Params) (*deliverysvc.DeliveryList, error) {
	return &deliverysvc.DeliveryList{}, nil
}
func (stubDeliveries) AutoMatch(context.Context) (*deliverysvc.AutoMatchReport, error) {
	return &deliverysvc.AutoMatchReport{}, nil
}

func (s *captureDeliveriesService) UpdateStatus(_ context.Context, _ deliverysvc.Actor, _ uuid.UUID, target enums.DeliveryStatus, proof deliverysvc.Proof) (*models.Delivery, error) {
	s.target = target
	s.proof = proof
	return &models.Delivery{Status: target}, nil
}

func TestDeliveryUpdateStatusCarriesProof(t *testing.T) {
	svc := &captureDeliveriesService{}
	handler := DeliveryUpdateStatus(svc, testLogger())

	body := `{"status":"delivered","proof_signature":"W. Kamau","notes":"left with guard"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/deliveries/x/status", strings.NewReader(body))
	req = asActor(req, uuid.New(), enums.RoleDriver)
	req = withURLParam(req, "deliveryID", uuid.NewString())

	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.DeliveryStatusDelivered, svc.target)
	assert.Equal(t, "W. Kamau", svc.proof.Signature)
	assert.Equal(t, "left with guard", svc.proof.Notes)
}

func TestDeliveryUpdateStatusRejectsBadDeliveryID(t *testing.T) {
	svc := &captureDeliveriesService{}
	handler := DeliveryUpdateStatus(svc, testLogger())

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/deliveries/nope/status",
		strings.NewReader(`{"status":"delivered"}`))
	req = asActor(req, uuid.New(), enums.RoleDriver)
	req = withURLParam(req, "deliveryID", "not-a-uuid")

	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope struct {
		Error struct {
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.Equal(t, "deliveryID", envelope.Error.Details["param"])
}

func TestActorFromRequestRequiresIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := actorFromRequest(req)
	require.Error(t, err)

	caller, err := actorFromRequest(asActor(req, uuid.New(), enums.RoleAdmin))
	require.NoError(t, err)
	assert.Equal(t, enums.RoleAdmin, caller.Role)
}
