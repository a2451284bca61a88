package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pixsoft/tienda-backend/api/controllers"
	cartcontroller "github.com/pixsoft/tienda-backend/api/controllers/cart"
	orderscontroller "github.com/pixsoft/tienda-backend/api/controllers/orders"
	paymentscontroller "github.com/pixsoft/tienda-backend/api/controllers/payments"
	"github.com/pixsoft/tienda-backend/api/controllers/webhooks"
	"github.com/pixsoft/tienda-backend/api/middleware"
	internalcart "github.com/pixsoft/tienda-backend/internal/cart"
	internalorders "github.com/pixsoft/tienda-backend/internal/orders"
	internalpayments "github.com/pixsoft/tienda-backend/internal/payments"
	"github.com/pixsoft/tienda-backend/pkg/config"
	"github.com/pixsoft/tienda-backend/pkg/enums"
	"github.com/pixsoft/tienda-backend/pkg/logger"
	"github.com/pixsoft/tienda-backend/pkg/metrics"
)

// Deps collects everything the router wires into handlers.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	Orders       internalorders.Service
	Cart         internalcart.Service
	Payments     internalpayments.Service
	WebhookGuard webhooks.DuplicateGuard
	HTTPMetrics  *metrics.HTTPMetrics
	Registry     *prometheus.Registry
	DBPinger     controllers.Pinger
	CachePinger  controllers.Pinger
}

// New assembles the HTTP surface.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer(deps.Logger))
	r.Use(middleware.RequestID(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Middleware)
	}

	r.Get("/health/live", controllers.HealthLive(deps.Config))
	r.Get("/health/ready", controllers.HealthReady(deps.Config, deps.Logger, deps.DBPinger, deps.CachePinger))
	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Post("/webhooks/mercadopago", webhooks.MercadoPago(deps.Payments, deps.WebhookGuard, deps.Logger))

	r.Route("/api/v1", func(r chi.Router) {
		// Provider return pages look orders up by number without a session.
		r.Get("/payments/order-status/{orderNumber}", paymentscontroller.StatusByNumber(deps.Payments, deps.Logger))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.Config.JWT, deps.Logger))

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", orderscontroller.Create(deps.Orders, deps.Logger))
				r.Get("/", orderscontroller.List(deps.Orders, deps.Logger))
				r.Get("/{orderId}", orderscontroller.Get(deps.Orders, deps.Logger))
				r.Put("/{orderId}/cancel", orderscontroller.Cancel(deps.Orders, deps.Logger))
				r.Put("/{orderId}/payment-method", orderscontroller.UpdatePaymentMethod(deps.Orders, deps.Logger))
				r.Delete("/{orderId}", orderscontroller.Delete(deps.Orders, deps.Logger))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAnyRole(deps.Logger, string(enums.RoleOperator), string(enums.RoleAdmin)))
					r.Put("/{orderId}/status", orderscontroller.UpdateStatus(deps.Orders, deps.Logger))
				})
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontroller.Get(deps.Cart, deps.Logger))
				r.Post("/items", cartcontroller.AddItem(deps.Cart, deps.Logger))
			})

			r.Post("/checkout/summary", paymentscontroller.CheckoutSummary(deps.Payments, deps.Logger))
			r.Post("/payments/preference", paymentscontroller.CreatePreference(deps.Payments, deps.Logger))
			r.Get("/payments/status/{orderId}", paymentscontroller.StatusByOrder(deps.Payments, deps.Logger))
		})
	})

	return r
}
