package routes

import (
	"net/http"

	"firewatch/internal/config"
	"firewatch/internal/handler"
	"firewatch/internal/logger"
	"firewatch/internal/metrics"
	"firewatch/internal/middleware"
	"firewatch/internal/service/monitor"
	"firewatch/internal/service/status"
)

// SetupRoutes registers the camera API, the status feed, logs and auth
// endpoints, and wraps the mux with the authentication middleware.
func SetupRoutes(manager *monitor.Manager, sink *status.Sink, m *metrics.Metrics, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Camera API
	mux.HandleFunc("POST /api/cameras", handler.RegisterCameraHandler(manager, logger))
	mux.HandleFunc("GET /api/cameras", handler.ListCamerasHandler(manager, logger))
	mux.HandleFunc("PUT /api/cameras/{id}", handler.UpdateCameraHandler(manager, logger))
	mux.HandleFunc("DELETE /api/cameras/{id}", handler.DeregisterCameraHandler(manager, logger))
	mux.HandleFunc("GET /api/cameras/{id}/status", handler.CameraStatusHandler(manager, logger))
	mux.HandleFunc("POST /api/cameras/{id}/check", handler.TriggerCheckHandler(manager, logger))
	mux.HandleFunc("GET /api/cameras/{id}/frame", handler.CameraFrameHandler(manager, logger))
	mux.HandleFunc("GET /api/statuses", handler.ListStatusesHandler(manager, logger))

	// Subscription feed
	mux.HandleFunc("GET /ws", handler.StatusFeedHandler(manager.Snapshot, sink, logger))

	// Log endpoints
	for _, name := range []string{"info", "warning", "error"} {
		file := name + ".log"
		mux.HandleFunc("GET /logs/"+name, handler.ShowLogsHandler(logger, file))
		mux.HandleFunc("POST /logs/"+name+"/clear", handler.ClearLogsHandler(logger, file))
	}

	// Auth endpoints
	mux.HandleFunc("GET /login", handler.LoginPageHandler)
	mux.HandleFunc("POST /auth/login", handler.LoginHandler(cfg, logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	mux.HandleFunc("GET /health", handler.HealthHandler(func() int { return len(manager.Running()) }, logger))
	mux.Handle("GET /metrics", m.Handler())

	return middleware.AuthMiddleware(cfg.Password, mux)
}
