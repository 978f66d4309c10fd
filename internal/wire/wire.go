package wire

import (
	"net/http"

	"hostel-booking/internal/adaptor"
	"hostel-booking/internal/data/repository"
	"hostel-booking/internal/gateway"
	"hostel-booking/internal/usecase"
	"hostel-booking/pkg/metrics"
	"hostel-booking/pkg/middleware"
	"hostel-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// App holds what main needs after wiring.
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring builds services, handlers and the router.
func Wiring(repo *repository.Repository, gw gateway.Client, config *utils.Config, m *metrics.Metrics, logger *zap.Logger) *App {
	service := usecase.NewService(repo, gw, config, m, logger)
	handler := adaptor.NewHandler(service, logger)

	return &App{
		Router:  setupRouter(handler, repo, config, m, logger),
		Service: service,
	}
}

func setupRouter(
	handler *adaptor.Handler,
	repo *repository.Repository,
	config *utils.Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Metrics(m))

	limiter := middleware.NewRateLimiter(config.RateLimit, logger)
	auth := middleware.AuthSession(repo.Session, repo.Profile, logger)

	wireReservation(r, handler.Reservation, auth, limiter)
	wirePayment(r, handler.Payment, auth, limiter, config, logger)

	r.Handle("/metrics", m.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
