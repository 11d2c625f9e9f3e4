package server

import (
	"log/slog"
	"net/http"

	"github.com/mentxuapp/backend/internal/media"
	"github.com/mentxuapp/backend/internal/mentxu"
)

const maxImageBytes = 10 << 20

// StopRequest is the request body for creating or updating a stop. Omitted
// fields are left unchanged on update.
type StopRequest struct {
	Name        *string  `json:"name"`
	ShortName   *string  `json:"shortName,omitempty"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Description *string  `json:"description,omitempty"`
	GameType    *string  `json:"gameType,omitempty"`
	Order       *int     `json:"order"`
	ImageURL    *string  `json:"imageUrl,omitempty"`
}

func (req StopRequest) patch() mentxu.StopPatch {
	return mentxu.StopPatch{
		Name:        req.Name,
		ShortName:   req.ShortName,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Description: req.Description,
		GameType:    req.GameType,
		Order:       req.Order,
		ImageURL:    req.ImageURL,
	}
}

// MessageResponse acknowledges operations without a body of their own.
type MessageResponse struct {
	Message string `json:"message"`
}

func handleListStops(logger *slog.Logger, catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stops, err := catalog.ListStops(r.Context())
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, stops)
	}
}

func handleGetStop(logger *slog.Logger, catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid stop id")
			return
		}
		stop, err := catalog.GetStop(r.Context(), id)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, stop)
	}
}

func handleCreateStop(logger *slog.Logger, l Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StopRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Name == nil || req.Latitude == nil || req.Longitude == nil || req.Order == nil {
			writeError(w, http.StatusBadRequest, "name, latitude, longitude and order are required")
			return
		}

		var s mentxu.Stop
		req.patch().Apply(&s)
		stop, err := l.AddStop(r.Context(), s)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, stop)
	}
}

func handleUpdateStop(logger *slog.Logger, l Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid stop id")
			return
		}
		var req StopRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		stop, err := l.UpdateStop(r.Context(), id, req.patch())
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, stop)
	}
}

func handleDeleteStop(logger *slog.Logger, l Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid stop id")
			return
		}
		if err := l.RemoveStop(r.Context(), id); err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: "stop deleted"})
	}
}

// handleUploadStopImage stores a multipart "image" file in object storage
// and records its public URL on the stop.
func handleUploadStopImage(logger *slog.Logger, catalog Catalog, l Ledger, images media.Uploader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if images == nil {
			writeError(w, http.StatusServiceUnavailable, "image storage is not configured")
			return
		}
		id, ok := idParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid stop id")
			return
		}
		stop, err := catalog.GetStop(r.Context(), id)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
		if err := r.ParseMultipartForm(maxImageBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			writeError(w, http.StatusBadRequest, "image file is required")
			return
		}
		defer file.Close()

		key, err := media.StopImageKey(stop.ShortName, header.Filename)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		url, err := images.Upload(r.Context(), key, header.Header.Get("Content-Type"), file, header.Size)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		stop, err = l.UpdateStop(r.Context(), id, mentxu.StopPatch{ImageURL: &url})
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		logger.Info("stop image uploaded", "stop_id", id, "key", key)
		writeJSON(w, http.StatusOK, stop)
	}
}
