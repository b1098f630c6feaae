package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/kiwari-pos/floorops/internal/config"
	"github.com/kiwari-pos/floorops/internal/enum"
	"github.com/kiwari-pos/floorops/internal/handler"
	mw "github.com/kiwari-pos/floorops/internal/middleware"
	"github.com/kiwari-pos/floorops/internal/ws"
)

// Services are the application services the HTTP surface is built on.
type Services struct {
	Orders interface {
		handler.OrderServicer
		handler.KitchenServicer
		handler.PaymentServicer
		handler.TableServicer
	}
	Shifts  handler.ShiftServicer
	Reports handler.ReportServicer
}

// New creates a Chi router with all application routes wired up.
// Applies authentication, tenant scoping, rate limiting and role-based
// middleware as needed. limiter may be nil.
func New(cfg *config.Config, svc Services, hub *ws.Hub, limiter *mw.TenantRateLimiter, log logrus.FieldLogger) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(log))
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/restaurants/{rid}/events", ws.Handler(hub, cfg.JWTSecret))

	orders := handler.NewOrderHandler(svc.Orders, log)
	kitchen := handler.NewKitchenHandler(svc.Orders, log)
	payments := handler.NewPaymentHandler(svc.Orders, log)
	tables := handler.NewTableHandler(svc.Orders, log)
	shifts := handler.NewShiftHandler(svc.Shifts, log)
	reports := handler.NewReportsHandler(svc.Reports, log)

	// Tenant-scoped routes (require authentication)
	r.Route("/restaurants/{rid}", func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Use(mw.RequireTenant)
		if limiter != nil {
			r.Use(limiter.Middleware)
		}

		// Any staff role
		r.Get("/orders", orders.List)
		r.Get("/orders/{id}", orders.Get)
		r.Patch("/orders/{id}/status", orders.UpdateStatus)
		r.Get("/orders/{id}/tickets", kitchen.Tickets)
		r.Get("/orders/{id}/payments", payments.List)
		r.Get("/kitchen/tickets", kitchen.Queue)
		r.Get("/tables", tables.List)

		// Floor staff
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.FloorRoles...))
			r.Post("/orders", orders.Create)
			r.Put("/orders/{id}/items", orders.EditItems)
			r.Post("/tables/{number}/clear", tables.Clear)
		})

		// Kitchen progress
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.KitchenRoles...))
			r.Patch("/orders/{id}/tickets/{seq}/status", kitchen.UpdateStatus)
		})

		// Cashier
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.CashierRoles...))
			r.Post("/orders/{id}/payments", payments.Add)
			r.Post("/shifts", shifts.Start)
			r.Get("/shifts/current", shifts.Current)
			r.Post("/shifts/current/close", shifts.End)
		})

		// Manager / owner
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.SupervisorRoles...))
			r.Post("/orders/{id}/void", orders.Void)
			r.Get("/reports/sales", reports.Sales)
		})
	})

	return r
}
