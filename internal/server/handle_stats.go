package server

import (
	"log/slog"
	"net/http"

	"github.com/mentxuapp/backend/internal/mentxu"
)

const dashboardRecentUsers = 10

type DashboardResponse struct {
	Stats           mentxu.SystemStats `json:"stats"`
	RecentUsers     []mentxu.User      `json:"recentUsers"`
	StopCompletions []mentxu.StopCount `json:"stopCompletions"`
}

type AdminConfigResponse struct {
	GoogleMapsAPIKey string `json:"googleMapsApiKey"`
}

func handleSystemStats(logger *slog.Logger, l Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := l.SystemStats(r.Context())
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleStopStats(logger *slog.Logger, l Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid stop id")
			return
		}
		st, err := l.StopStats(r.Context(), id)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleDashboard(logger *slog.Logger, l Ledger, catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		st, err := l.SystemStats(ctx)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		users, err := catalog.ListUsers(ctx, dashboardRecentUsers, 0)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		counts, err := catalog.StopCompletionCounts(ctx)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, DashboardResponse{
			Stats:           st,
			RecentUsers:     users,
			StopCompletions: counts,
		})
	}
}

func handleAdminConfig(mapsAPIKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, AdminConfigResponse{GoogleMapsAPIKey: mapsAPIKey})
	}
}
