package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sokohub-labs/sokohub-backend/api/controllers"
	"github.com/sokohub-labs/sokohub-backend/api/middleware"
	"github.com/sokohub-labs/sokohub-backend/internal/cart"
	"github.com/sokohub-labs/sokohub-backend/internal/deliveries"
	"github.com/sokohub-labs/sokohub-backend/internal/fraud"
	"github.com/sokohub-labs/sokohub-backend/internal/orders"
	"github.com/sokohub-labs/sokohub-backend/internal/payments"
	"github.com/sokohub-labs/sokohub-backend/pkg/config"
	"github.com/sokohub-labs/sokohub-backend/pkg/db"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	"github.com/sokohub-labs/sokohub-backend/pkg/logger"
	"github.com/sokohub-labs/sokohub-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	cartService cart.Service,
	ordersService orders.Service,
	paymentsService payments.Service,
	deliveriesService deliveries.Service,
	fraudService fraud.Service,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"postgres": dbP,
			"redis":    redisP,
		}))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Gateway callbacks authenticate by signature, not bearer token.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/momo", controllers.MomoWebhook(paymentsService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.RoleBuyer, logg))
			r.Get("/", controllers.CartFetch(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
			r.Post("/items", controllers.CartAddItem(cartService, logg))
			r.Patch("/items/{itemID}", controllers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{itemID}", controllers.CartRemoveItem(cartService, logg))
			r.Post("/validate", controllers.CartValidate(cartService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RequireRole(enums.RoleBuyer, logg)).Post("/", controllers.OrderCreate(ordersService, logg))
			r.With(middleware.RequireRole(enums.RoleBuyer, logg)).Get("/", controllers.OrderList(ordersService, logg))
			r.Get("/{orderID}", controllers.OrderFetch(ordersService, logg))
			r.With(middleware.RequireRole(enums.RoleVendor, logg)).Get("/{orderID}/vendor-view", controllers.OrderVendorView(ordersService, logg))
			r.With(middleware.RequireAnyRole(logg, enums.RoleVendor, enums.RoleAdmin)).Patch("/{orderID}/status", controllers.OrderUpdateStatus(ordersService, logg))
			r.Post("/{orderID}/cancel", controllers.OrderCancel(ordersService, logg))
			r.Get("/{orderID}/delivery", controllers.DeliveryFetchByOrder(deliveriesService, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.With(middleware.RequireAnyRole(logg, enums.RoleBuyer, enums.RoleAdmin)).Post("/", controllers.PaymentInitiate(paymentsService, logg))
			r.Get("/{reference}", controllers.PaymentFetch(paymentsService, logg))
			r.Post("/{reference}/verify", controllers.PaymentVerify(paymentsService, logg))
			r.With(middleware.RequireAnyRole(logg, enums.RoleDriver, enums.RoleAdmin)).Post("/{reference}/confirm", controllers.PaymentConfirm(paymentsService, logg))
			r.With(middleware.RequireRole(enums.RoleAdmin, logg)).Post("/{reference}/refund", controllers.PaymentRefund(paymentsService, logg))
		})

		r.Route("/deliveries", func(r chi.Router) {
			r.With(middleware.RequireRole(enums.RoleDriver, logg)).Get("/mine", controllers.DeliveryListMine(deliveriesService, logg))
			r.With(middleware.RequireRole(enums.RoleDriver, logg)).Post("/{deliveryID}/accept", controllers.DeliveryAccept(deliveriesService, logg))
			r.With(middleware.RequireRole(enums.RoleAdmin, logg)).Post("/{deliveryID}/assign", controllers.DeliveryAssign(deliveriesService, logg))
			r.With(middleware.RequireAnyRole(logg, enums.RoleDriver, enums.RoleAdmin)).Patch("/{deliveryID}/status", controllers.DeliveryUpdateStatus(deliveriesService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.RoleAdmin, logg))
			r.Post("/deliveries/auto-match", controllers.DeliveryAutoMatch(deliveriesService, logg))
			r.Route("/fraud", func(r chi.Router) {
				r.Get("/incidents", controllers.FraudIncidentList(fraudService, logg))
				r.Post("/incidents/{incidentID}/resolve", controllers.FraudIncidentResolve(fraudService, logg))
			})
		})
	})

	return r
}
