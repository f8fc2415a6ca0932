package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	cartsvc "github.com/sokohub-labs/sokohub-backend/internal/cart"
	deliverysvc "github.com/sokohub-labs/sokohub-backend/internal/deliveries"
	fraudsvc "github.com/sokohub-labs/sokohub-backend/internal/fraud"
	ordersvc "github.com/sokohub-labs/sokohub-backend/internal/orders"
	paysvc "github.com/sokohub-labs/sokohub-backend/internal/payments"
	pkgauth "github.com/sokohub-labs/sokohub-backend/pkg/auth"
	"github.com/sokohub-labs/sokohub-backend/pkg/config"
	"github.com/sokohub-labs/sokohub-backend/pkg/db/models"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	"github.com/sokohub-labs/sokohub-backend/pkg/logger"
	"github.com/sokohub-labs/sokohub-backend/pkg/pagination"

	"github.com/rs/zerolog"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubCartService struct{}

func (stubCartService) GetCart(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error) {
	return &models.Cart{BuyerID: buyerID}, nil
}
func (stubCartService) AddItem(context.Context, uuid.UUID, uuid.UUID, int) (*models.Cart, error) {
	return &models.Cart{}, nil
}
func (stubCartService) UpdateItem(context.Context, uuid.UUID, uuid.UUID, int) (*models.Cart, error) {
	return &models.Cart{}, nil
}
func (stubCartService) RemoveItem(context.Context, uuid.UUID, uuid.UUID) (*models.Cart, error) {
	return &models.Cart{}, nil
}
func (stubCartService) Clear(context.Context, uuid.UUID) error { return nil }
func (stubCartService) ValidateForCheckout(context.Context, uuid.UUID) (*cartsvc.CheckoutValidation, error) {
	return &cartsvc.CheckoutValidation{}, nil
}

type stubOrdersService struct{}

func (stubOrdersService) Create(context.Context, ordersvc.CreateOrderInput) (*models.Order, error) {
	return &models.Order{}, nil
}
func (stubOrdersService) GetOrder(context.Context, ordersvc.Actor, uuid.UUID) (*models.Order, error) {
	return &models.Order{}, nil
}
func (stubOrdersService) GetVendorView(context.Context, ordersvc.Actor, uuid.UUID) (*ordersvc.VendorOrderView, error) {
	return &ordersvc.VendorOrderView{}, nil
}
func (stubOrdersService) ListBuyerOrders(context.Context, uuid.UUID, pagination.Params) (*ordersvc.OrderList, error) {
	return &ordersvc.OrderList{}, nil
}
func (stubOrdersService) UpdateStatus(context.Context, ordersvc.Actor, uuid.UUID, enums.OrderStatus) error {
	return nil
}
func (stubOrdersService) Cancel(context.Context, ordersvc.Actor, uuid.UUID, string) error {
	return nil
}
func (stubOrdersService) MarkDelivered(context.Context, *gorm.DB, uuid.UUID) error { return nil }

type stubPaymentsService struct {
	webhooks int
}

func (s *stubPaymentsService) Initiate(context.Context, paysvc.InitiateInput) (*paysvc.InitiateResult, error) {
	return &paysvc.InitiateResult{Payment: &models.Payment{}}, nil
}
func (s *stubPaymentsService) HandleWebhook(context.Context, []byte, string) error {
	s.webhooks++
	return nil
}
func (s *stubPaymentsService) VerifyPayment(context.Context, string) (*models.Payment, error) {
	return &models.Payment{}, nil
}
func (s *stubPaymentsService) ConfirmOfflineSettlement(context.Context, paysvc.Actor, string) (*models.Payment, error) {
	return &models.Payment{}, nil
}
func (s *stubPaymentsService) Refund(context.Context, paysvc.Actor, string) (*models.Payment, error) {
	return &models.Payment{}, nil
}
func (s *stubPaymentsService) GetByReference(context.Context, paysvc.Actor, string) (*models.Payment, error) {
	return &models.Payment{}, nil
}
func (s *stubPaymentsService) ExpireStalePending(context.Context, time.Duration) (int, error) {
	return 0, nil
}

type stubDeliveriesService struct{}

func (stubDeliveriesService) CreateForOrder(context.Context, *gorm.DB, *models.Order) error {
	return nil
}
func (stubDeliveriesService) Assign(context.Context, deliverysvc.Actor, uuid.UUID, uuid.UUID) (*models.Delivery, error) {
	return &models.Delivery{}, nil
}
func (stubDeliveriesService) Accept(context.Context, uuid.UUID, uuid.UUID) (*models.Delivery, error) {
	return &models.Delivery{}, nil
}
func (stubDeliveriesService) UpdateStatus(context.Context, deliverysvc.Actor, uuid.UUID, enums.DeliveryStatus, deliverysvc.Proof) (*models.Delivery, error) {
	return &models.Delivery{}, nil
}
func (stubDeliveriesService) GetByOrder(context.Context, deliverysvc.Actor, uuid.UUID) (*models.Delivery, error) {
	return &models.Delivery{}, nil
}
func (stubDeliveriesService) ListDriverDeliveries(context.Context, uuid.UUID, pagination.Params) (*deliverysvc.DeliveryList, error) {
	return &deliverysvc.DeliveryList{}, nil
}
func (stubDeliveriesService) AutoMatch(context.Context) (*deliverysvc.AutoMatchReport, error) {
	return &deliverysvc.AutoMatchReport{}, nil
}

type stubFraudService struct{}

func (stubFraudService) Evaluate(context.Context, fraudsvc.EvaluateInput) (*fraudsvc.Assessment, error) {
	return &fraudsvc.Assessment{}, nil
}
func (stubFraudService) ResolveIncident(context.Context, fraudsvc.ResolveInput) (*models.FraudIncident, error) {
	return &models.FraudIncident{}, nil
}
func (stubFraudService) ListIncidents(context.Context, enums.IncidentStatus, int) ([]models.FraudIncident, error) {
	return []models.FraudIncident{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{Secret: "router-test-secret", Issuer: "sokohub-test"},
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "routes-test", Level: zerolog.Disabled})
}

func newTestRouter(t *testing.T, payments paysvc.Service) http.Handler {
	t.Helper()
	if payments == nil {
		payments = &stubPaymentsService{}
	}
	return NewRouter(
		testConfig(),
		testLogger(),
		stubPinger{},
		stubPinger{},
		stubCartService{},
		stubOrdersService{},
		payments,
		stubDeliveriesService{},
		stubFraudService{},
	)
}

func bearerFor(t *testing.T, cfg *config.Config, role enums.Role) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), uuid.New(), role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthLiveIsPublic(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Sokohub-Env"))
}

func TestHealthReadyReportsChecks(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "postgres")
	assert.Contains(t, string(body), "redis")
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	router := newTestRouter(t, nil)

	for _, path := range []string{"/api/v1/cart", "/api/v1/orders"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestBuyerCanFetchCart(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", bearerFor(t, testConfig(), enums.RoleBuyer))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVendorCannotTouchCart(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", bearerFor(t, testConfig(), enums.RoleVendor))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFraudRoutesAreAdminOnly(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/fraud/incidents", nil)
	req.Header.Set("Authorization", bearerFor(t, testConfig(), enums.RoleBuyer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/fraud/incidents", nil)
	req.Header.Set("Authorization", bearerFor(t, testConfig(), enums.RoleAdmin))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAutoMatchRouteIsAdminOnly(t *testing.T) {
	router := newTestRouter(t, nil)
	cfg := testConfig()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/deliveries/auto-match", nil)
	req.Header.Set("Authorization", bearerFor(t, cfg, enums.RoleDriver))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/deliveries/auto-match", nil)
	req.Header.Set("Authorization", bearerFor(t, cfg, enums.RoleAdmin))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMomoWebhookSkipsBearerAuth(t *testing.T) {
	payments := &stubPaymentsService{}
	router := newTestRouter(t, payments)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/momo",
		strings.NewReader(`{"reference":"PAY-TEST","status":"completed"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, payments.webhooks)
}

func TestMomoWebhookRejectsEmptyBody(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/momo", strings.NewReader("")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDriverDeliveryRoutes(t *testing.T) {
	router := newTestRouter(t, nil)
	cfg := testConfig()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deliveries/mine", nil)
	req.Header.Set("Authorization", bearerFor(t, cfg, enums.RoleDriver))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/deliveries/"+uuid.NewString()+"/assign",
		strings.NewReader(`{"driver_id":"`+uuid.NewString()+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerFor(t, cfg, enums.RoleDriver))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestErrorEnvelopeShape(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.Equal(t, "UNAUTHORIZED", envelope.Error.Code)
	assert.NotEmpty(t, envelope.Error.Message)
}
