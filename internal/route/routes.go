package route

import (
	"net/http"

	"homewatch/internal/config"
	"homewatch/internal/handler"
	"homewatch/internal/logger"
	"homewatch/internal/middleware"
	"homewatch/internal/repository"
	"homewatch/internal/service"
)

// Deps holds what the HTTP routes serve.
type Deps struct {
	Manager         *service.Manager
	ObservationRepo repository.ObservationRepository
	DetectionRepo   repository.DetectionRepository
	Presence        handler.ModelStatus
	Activity        handler.ModelStatus
}

// SetupRoutes registers the API, websocket and log endpoints and wraps the
// mux with the token middleware.
func SetupRoutes(deps Deps, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("GET /api/view", handler.ViewWebsocketHandler(deps.Manager.GetWebsocketService(), logger))
	mux.HandleFunc("GET /api/observations", handler.GetObservationsHandler(deps.ObservationRepo, logger))
	mux.HandleFunc("GET /api/observations/latest", handler.GetLatestObservationsHandler(deps.ObservationRepo, logger))
	mux.HandleFunc("GET /api/observations/stats", handler.GetObservationStatsHandler(deps.ObservationRepo, logger))
	mux.HandleFunc("GET /api/observations/{id}", handler.GetObservationHandler(deps.ObservationRepo, deps.DetectionRepo, logger))
	mux.HandleFunc("GET /api/cameras", handler.GetCamerasHandler(deps.ObservationRepo, logger))

	// Log endpoints
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(logger))
	mux.HandleFunc("POST /logs/{level}/clear", handler.ClearLogsHandler(logger))

	mux.HandleFunc("GET /health", handler.HealthHandler(deps.Presence, deps.Activity,
		deps.Manager.GetWebsocketService().GetClientCount,
		deps.Manager.GetBufferService().Pending,
		logger))

	return middleware.AuthMiddleware(cfg.APIToken, mux)
}
