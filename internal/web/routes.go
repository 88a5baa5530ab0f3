package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	backend := s.services.Backend

	attendanceHandler := handlers.NewAttendanceHandler(
		s.services.Engine, s.services.Guard, s.services.Stats, backend.Commits, backend.Profiles,
	)
	identitiesHandler := handlers.NewIdentitiesHandler(s.services.Enroller, backend.Profiles)
	configHandler := handlers.NewConfigHandler(s.config, backend.Index)

	gatherer := s.services.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/config", configHandler.Get)

		// Kiosk endpoints
		r.Post("/verify", attendanceHandler.Verify)
		r.Post("/attendance/mark", attendanceHandler.Mark)
		r.Post("/attendance/identify", attendanceHandler.Identify)

		// Reports
		r.Get("/attendance/records", attendanceHandler.Records)
		r.Get("/attendance/statistics", attendanceHandler.Statistics)
		r.Get("/attendance/summary", attendanceHandler.Summary)
		r.Get("/identities", identitiesHandler.List)
		r.Get("/identities/{id}", identitiesHandler.Get)

		// Administrative writes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAPIToken(s.config.Web.APIToken))

			r.Post("/identities", identitiesHandler.Create)
			r.Post("/attendance/manual", attendanceHandler.Manual)
		})
	})
}
