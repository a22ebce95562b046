package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dcastellon/staybook-backend/api/controllers"
	"github.com/dcastellon/staybook-backend/api/middleware"
	"github.com/dcastellon/staybook-backend/pkg/config"
	"github.com/dcastellon/staybook-backend/pkg/logger"
)

// NewRouter wires middleware, health checks, and the booking endpoints.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	deps map[string]controllers.Pinger,
	bookingService controllers.BookingService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	r.Route("/api/v1/bookings", func(r chi.Router) {
		r.Post("/", controllers.CreateBooking(bookingService, logg))
		r.Route("/{bookingID}", func(r chi.Router) {
			r.Get("/", controllers.GetBooking(bookingService, logg))
			r.Get("/refund-preview", controllers.PreviewRefund(bookingService, logg))
			r.Post("/confirm", controllers.ConfirmBooking(bookingService, logg))
			r.Post("/review", controllers.ReviewBooking(bookingService, logg))
			r.Post("/payment", controllers.ConfirmPayment(bookingService, logg))
			r.Post("/cancel", controllers.CancelBooking(bookingService, logg))
		})
	})

	return r
}
