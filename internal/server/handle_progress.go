package server

import (
	"log/slog"
	"net/http"

	"github.com/mentxuapp/backend/internal/ledger"
	"github.com/mentxuapp/backend/internal/mentxu"
)

// CompleteRequest is the request body for POST /api/progress/complete.
type CompleteRequest struct {
	UserID         int64 `json:"userId"`
	StopID         int64 `json:"stopId"`
	Score          *int  `json:"score,omitempty"`
	ElapsedSeconds *int  `json:"elapsedSeconds,omitempty"`
	Attempts       *int  `json:"attempts,omitempty"`
}

type CompleteResponse struct {
	Message          string          `json:"message"`
	Progress         mentxu.Progress `json:"progress"`
	NextStopID       *int64          `json:"nextStopId"`
	AlreadyCompleted bool            `json:"alreadyCompleted"`
}

// MetricsRequest is the request body for PUT /api/progress/{id}.
type MetricsRequest struct {
	Score          *int `json:"score,omitempty"`
	ElapsedSeconds *int `json:"elapsedSeconds,omitempty"`
	Attempts       *int `json:"attempts,omitempty"`
}

func handleComplete(logger *slog.Logger, l Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CompleteRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.UserID < 1 || req.StopID < 1 {
			writeError(w, http.StatusBadRequest, "userId and stopId are required")
			return
		}

		res, err := l.Complete(r.Context(), ledger.Completion{
			UserID: req.UserID,
			StopID: req.StopID,
			Metrics: mentxu.Metrics{
				Score:          req.Score,
				ElapsedSeconds: req.ElapsedSeconds,
				Attempts:       req.Attempts,
			},
		})
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		msg := "stop completed"
		if res.AlreadyCompleted {
			msg = "stop already completed"
		}
		writeJSON(w, http.StatusOK, CompleteResponse{
			Message:          msg,
			Progress:         res.Progress,
			NextStopID:       res.NextStopID,
			AlreadyCompleted: res.AlreadyCompleted,
		})
	}
}

func handleUpdateMetrics(logger *slog.Logger, l Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid progress id")
			return
		}
		var req MetricsRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		p, err := l.UpdateMetrics(r.Context(), id, mentxu.Metrics{
			Score:          req.Score,
			ElapsedSeconds: req.ElapsedSeconds,
			Attempts:       req.Attempts,
		})
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}
