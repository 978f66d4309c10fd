package wire

import (
	"net/http"

	"hostel-booking/internal/adaptor"
	"hostel-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
)

func wireReservation(
	r chi.Router,
	reservationHandler *adaptor.ReservationHandler,
	auth func(http.Handler) http.Handler,
	limiter *middleware.RateLimiter,
) {
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)

		// GET /api/rooms/{id}/availability - derived from the active reservation (public)
		r.Get("/api/rooms/{id}/availability", reservationHandler.Availability)

		r.Group(func(r chi.Router) {
			r.Use(auth)

			// POST /api/reservations - claim a room (students)
			r.Post("/api/reservations", reservationHandler.Create)

			// GET /api/reservations - own, landlord's or all, by capability
			r.Get("/api/reservations", reservationHandler.List)

			// GET /api/reservations/{id}
			r.Get("/api/reservations/{id}", reservationHandler.Get)

			// POST /api/reservations/{id}/cancel - owner, landlord or admin
			r.Post("/api/reservations/{id}/cancel", reservationHandler.Cancel)
		})
	})
}
