package wire

import (
	"net/http"

	"hostel-booking/internal/adaptor"
	"hostel-booking/pkg/middleware"
	"hostel-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wirePayment(
	r chi.Router,
	paymentHandler *adaptor.PaymentHandler,
	auth func(http.Handler) http.Handler,
	limiter *middleware.RateLimiter,
	config *utils.Config,
	log *zap.Logger,
) {
	// ==================== PROTECTED ROUTES ====================
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Use(auth)

		// POST /api/reservations/{id}/payment - start an STK push (202)
		r.Post("/api/reservations/{id}/payment", paymentHandler.Initiate)

		// GET /api/reservations/{id}/payments - payment attempts
		r.Get("/api/reservations/{id}/payments", paymentHandler.ListByReservation)
	})

	// ==================== GATEWAY WEBHOOK ====================
	// Not rate limited: the gateway retries on anything but 200.
	r.With(middleware.WebhookSignature(config.Webhook.Secret, log)).
		Post("/api/payments/mpesa/callback", paymentHandler.Callback)

	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin/payments", func(r chi.Router) {
		r.Use(auth)
		r.Use(middleware.Admin(log))

		// POST /api/admin/payments/sweep - run the timeout sweep now
		r.Post("/sweep", paymentHandler.Sweep)
	})
}
