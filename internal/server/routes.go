package server

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/mentxuapp/backend/internal/handler/health"
)

func addRoutes(r chi.Router, logger *slog.Logger, d Deps) {
	requireAdmin := adminAuthMiddleware(d.Admins)

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("MentxuApp API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(logger, d.Health).Routes())

	r.Route("/api", func(r chi.Router) {
		// Stops: reads are public, writes require an admin.
		r.Get("/stops", handleListStops(logger, d.Catalog))
		r.Get("/stops/{id}", handleGetStop(logger, d.Catalog))
		r.Get("/stops/{id}/stats", handleStopStats(logger, d.Ledger))
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Post("/stops", handleCreateStop(logger, d.Ledger))
			r.Put("/stops/{id}", handleUpdateStop(logger, d.Ledger))
			r.Delete("/stops/{id}", handleDeleteStop(logger, d.Ledger))
			r.Post("/stops/{id}/image", handleUploadStopImage(logger, d.Catalog, d.Ledger, d.Images))
		})

		// Mobile client.
		r.With(rateLimitMiddleware(d.Limiter)).Post("/users/register", handleRegister(logger, d.Ledger))
		r.Get("/users/{id}", handleGetUser(logger, d.Catalog))
		r.Get("/users/{id}/progress", handleUserProgress(logger, d.Ledger))
		r.Post("/progress/complete", handleComplete(logger, d.Ledger))
		r.Put("/progress/{id}", handleUpdateMetrics(logger, d.Ledger))
		r.Get("/stats", handleSystemStats(logger, d.Ledger))

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/users", handleListUsers(logger, d.Catalog))
			r.Delete("/users/{id}", handleDeleteUser(logger, d.Ledger))
		})

		// Admin auth and dashboard.
		r.Post("/admin/login", handleAdminLogin(logger, d.Admins, d.SessionTTL))
		r.Post("/admin/logout", handleAdminLogout(logger, d.Admins))
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/admin/me", handleAdminMe())
			r.Get("/admin/dashboard", handleDashboard(logger, d.Ledger, d.Catalog))
			r.Get("/admin/config", handleAdminConfig(d.MapsAPIKey))
		})
	})

	if d.SPADir != "" {
		if info, err := os.Stat(d.SPADir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", d.SPADir)
			r.NotFound(handleSPA(d.SPADir))
		}
	}
}
