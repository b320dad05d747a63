package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iamnithishraja/klinic-sub000/api/controllers"
	authcontrollers "github.com/iamnithishraja/klinic-sub000/api/controllers/auth"
	ordercontrollers "github.com/iamnithishraja/klinic-sub000/api/controllers/orders"
	"github.com/iamnithishraja/klinic-sub000/api/middleware"
	"github.com/iamnithishraja/klinic-sub000/internal/auth"
	"github.com/iamnithishraja/klinic-sub000/internal/delivery"
	"github.com/iamnithishraja/klinic-sub000/internal/laboratories"
	"github.com/iamnithishraja/klinic-sub000/internal/orders"
	"github.com/iamnithishraja/klinic-sub000/internal/tracking"
	products "github.com/iamnithishraja/klinic-sub000/internal/products"
	"github.com/iamnithishraja/klinic-sub000/pkg/auth/session"
	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
	"github.com/iamnithishraja/klinic-sub000/pkg/redis"
)

// Deps carries everything the HTTP surface is wired to. Pingers, Metrics,
// Uploads, Hub and DeadLetters are optional.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Redis    *redis.Client
	Sessions session.AccessSessionChecker
	Pingers  map[string]controllers.Pinger
	Metrics  prometheus.Gatherer

	Auth          auth.Service
	Register      auth.RegisterService
	AdminRegister auth.AdminRegisterService
	Products      products.Service
	Laboratories  laboratories.Service
	Delivery      delivery.Service
	Orders        orders.Service
	Payments      controllers.PaymentService
	Uploads       controllers.PrescriptionPresigner
	Hub           *tracking.Hub
	DeadLetters   ordercontrollers.DeadLetterLister
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	// a nil *redis.Client must not reach the middleware as a non-nil interface
	rateLimit := func(policy middleware.AuthRateLimitPolicy) func(http.Handler) http.Handler {
		if d.Redis == nil {
			return passthrough
		}
		return middleware.AuthRateLimit(policy, d.Redis, logg)
	}
	idempotency := passthrough
	if d.Redis != nil {
		idempotency = middleware.Idempotency(d.Redis, cfg.Redis.IdempotencyTTL, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, d.Pingers, logg))
	})

	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(rateLimit(registerPolicy)).Post("/register", authcontrollers.Register(d.Register, d.Auth, logg))
			r.With(rateLimit(loginPolicy)).Post("/login", authcontrollers.Login(d.Auth, logg))
			r.Post("/refresh", authcontrollers.Refresh(d.Auth, logg))
			r.With(middleware.Auth(cfg.JWT, d.Sessions, logg)).Post("/logout", authcontrollers.Logout(d.Auth, logg))
		})

		if !cfg.App.IsProd() {
			r.With(rateLimit(registerPolicy)).Post("/admin/auth/register", authcontrollers.AdminRegister(d.AdminRegister, d.Auth, cfg, logg))
		}

		r.Get("/products", controllers.CatalogList(d.Products, logg))
		r.Get("/products/{productId}", controllers.CatalogGet(d.Products, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
			r.Use(idempotency)

			r.Route("/lab", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleLaboratory))
				r.Get("/products", controllers.LabListProducts(d.Products, logg))
				r.Post("/products", controllers.LabCreateProduct(d.Products, logg))
				r.Patch("/products/{productId}", controllers.LabUpdateProduct(d.Products, logg))
				r.Delete("/products/{productId}", controllers.LabDeleteProduct(d.Products, logg))
				r.Get("/profile", controllers.LabProfileGet(d.Laboratories, logg))
				r.Put("/profile", controllers.LabProfileUpsert(d.Laboratories, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				patient := middleware.RequireRole(logg, enums.UserRolePatient)
				lab := middleware.RequireRole(logg, enums.UserRoleLaboratory)

				r.With(patient).Post("/", ordercontrollers.Create(d.Orders, logg))
				r.With(patient).Post("/cod", ordercontrollers.CreateCOD(d.Orders, logg))
				r.With(patient).Get("/mine", ordercontrollers.Mine(d.Orders, logg))
				r.With(lab).Get("/lab", ordercontrollers.LabList(d.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(d.Orders, logg))
				r.Patch("/{orderId}/status", ordercontrollers.UpdateStatus(d.Orders, logg))
				r.With(lab).Post("/{orderId}/claim", ordercontrollers.Claim(d.Orders, logg))
				r.With(lab).Post("/{orderId}/assign-delivery", ordercontrollers.AssignDelivery(d.Orders, logg))
				r.With(patient).Delete("/{orderId}/cancel-unpaid", ordercontrollers.CancelUnpaid(d.Orders, logg))
				if d.Hub != nil && cfg.FeatureFlags.Tracking {
					r.Get("/{orderId}/track", ordercontrollers.Track(d.Orders, d.Hub, cfg.App.AllowedOrigins(), logg))
				}
			})

			r.Route("/delivery", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleDeliveryPartner))
				r.Get("/profile", controllers.DeliveryProfileGet(d.Delivery, logg))
				r.Put("/profile", controllers.DeliveryProfileUpsert(d.Delivery, logg))
				r.Get("/orders", ordercontrollers.DeliveryList(d.Orders, logg))
				r.Post("/orders/{orderId}/accept", ordercontrollers.Accept(d.Orders, logg))
				r.Post("/orders/{orderId}/reject", ordercontrollers.Reject(d.Orders, logg))
				r.Patch("/orders/{orderId}/status", ordercontrollers.DeliveryStatus(d.Orders, logg))
			})

			r.Route("/payments", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRolePatient))
				r.Post("/orders", controllers.PaymentCreateOrder(d.Payments, logg))
				r.Post("/verify", controllers.PaymentVerify(d.Payments, logg))
			})

			r.With(middleware.RequireRole(logg, enums.UserRolePatient)).
				Post("/uploads/prescriptions", controllers.PrescriptionUpload(d.Uploads, logg))

			r.Route("/admin/orders", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
				r.Get("/", ordercontrollers.AdminList(d.Orders, logg))
				r.Post("/{orderId}/assign-lab", ordercontrollers.AdminAssignLab(d.Orders, logg))
				r.Post("/{orderId}/assign-delivery", ordercontrollers.AssignDelivery(d.Orders, logg))
				r.Patch("/{orderId}/payment", ordercontrollers.AdminPayment(d.Orders, logg))
				r.Get("/{orderId}/dead-letters", ordercontrollers.AdminDeadLetters(d.DeadLetters, logg))
			})
		})
	})

	return r
}

func passthrough(next http.Handler) http.Handler { return next }
