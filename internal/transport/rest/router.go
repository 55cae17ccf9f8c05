package rest

import (
	"database/sql"
	"log/slog"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/booking-ledger/internal/auth"
	"github.com/frahmantamala/booking-ledger/internal/booking"
	"github.com/frahmantamala/booking-ledger/internal/ledger"
	"github.com/frahmantamala/booking-ledger/internal/payment"
	"github.com/frahmantamala/booking-ledger/internal/transport/middleware"
	"github.com/frahmantamala/booking-ledger/internal/transport/swagger"
)

// Handlers groups everything RegisterAllRoutes mounts. Nil handlers leave
// their routes unregistered.
type Handlers struct {
	DB            *sql.DB
	Health        *HealthHandler
	Tokens        auth.TokenValidator
	Payment       *payment.Handler
	Webhook       *payment.WebhookHandler
	Ledger        *ledger.Handler
	Booking       *booking.Handler
	EnableSwagger bool
}

// WebhookPath is the gateway callback. Its body is only read by the handler,
// after the callback credentials check out.
const WebhookPath = "/api/v1/payments/webhook"

func RegisterAllRoutes(router chi.Router, h Handlers, logger *slog.Logger) {
	healthHandler := h.Health
	if healthHandler == nil {
		healthHandler = NewHealthHandler(h.DB)
	}

	// Apply global middleware
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger, middleware.WithoutBodies(WebhookPath)))

	if h.EnableSwagger {
		router.Handle(swagger.SpecPath, swagger.SpecHandler())
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Check)
		r.Get("/ping", healthHandler.Ping)

		r.Route("/payments", func(p chi.Router) {
			// gateway callbacks authenticate with the shared webhook credential
			if h.Webhook != nil {
				p.Post("/webhook", h.Webhook.HandleNotification)
			}
			if h.Tokens == nil {
				return
			}

			p.Group(func(pr chi.Router) {
				pr.Use(middleware.Authenticate(h.Tokens, logger))
				if h.Payment != nil {
					pr.Post("/bookings", h.Payment.InitiateBooking)
					pr.Post("/bookings/{id}/pay", h.Payment.PayBalance)
					pr.Post("/bookings/{id}/extensions", h.Payment.RequestExtension)
					pr.Get("/orders/{merchantOrderId}/status", h.Payment.GetOrderStatus)
				}
				if h.Ledger != nil {
					pr.Get("/transactions/{id}/refund-info", h.Ledger.GetRefundInfo)
				}
			})
		})

		if h.Tokens == nil {
			return
		}

		r.Route("/admin", func(ar chi.Router) {
			ar.Use(middleware.Authenticate(h.Tokens, logger))
			if h.Booking != nil {
				ar.With(middleware.RequireAdmin(logger, auth.PermissionAssignRooms)).
					Patch("/bookings/{id}/room", h.Booking.AssignRoom)
			}
			if h.Payment != nil {
				ar.With(middleware.RequireAdmin(logger, auth.PermissionIssueRefunds)).
					Post("/payments/transactions/{id}/refunds", h.Payment.InitiateRefund)
			}
			if h.Ledger != nil {
				ar.With(middleware.RequireAdmin(logger, auth.PermissionViewReports)).
					Get("/payments/attention", h.Ledger.GetAttentionReport)
			}
		})
	})
}
