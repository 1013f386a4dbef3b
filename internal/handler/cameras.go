package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"firewatch/internal/logger"
	"firewatch/internal/model"
	"firewatch/internal/service/monitor"
)

// RegisterCameraHandler handles POST /api/cameras.
func RegisterCameraHandler(manager *monitor.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req monitor.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}

		cam, err := manager.Register(r.Context(), req)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, cam)
	}
}

// ListCamerasHandler handles GET /api/cameras?kind=&owner=.
func ListCamerasHandler(manager *monitor.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := model.CameraFilter{
			Kind:  model.CameraKind(q.Get("kind")),
			Owner: q.Get("owner"),
		}

		cams, err := manager.ListCameras(r.Context(), filter)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, cams)
	}
}

// UpdateCameraHandler handles PUT /api/cameras/{id}.
func UpdateCameraHandler(manager *monitor.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var upd monitor.CameraUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}

		cam, err := manager.UpdateCamera(r.Context(), r.PathValue("id"), upd)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, cam)
	}
}

// DeregisterCameraHandler handles DELETE /api/cameras/{id}.
func DeregisterCameraHandler(manager *monitor.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := manager.Deregister(r.Context(), r.PathValue("id")); err != nil {
			writeError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// CameraStatusHandler handles GET /api/cameras/{id}/status.
func CameraStatusHandler(manager *monitor.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := manager.GetStatus(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, st)
	}
}

// ListStatusesHandler handles GET /api/statuses?fire=true|false.
func ListStatusesHandler(manager *monitor.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter model.StatusFilter
		if v := r.URL.Query().Get("fire"); v != "" {
			fire, err := strconv.ParseBool(v)
			if err != nil {
				http.Error(w, "Invalid fire filter", http.StatusBadRequest)
				return
			}
			filter.FireDetected = &fire
		}

		statuses, err := manager.ListStatuses(r.Context(), filter)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, statuses)
	}
}

// TriggerCheckHandler handles POST /api/cameras/{id}/check.
func TriggerCheckHandler(manager *monitor.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := manager.TriggerCheckNow(r.PathValue("id")); err != nil {
			writeError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// CameraFrameHandler handles GET /api/cameras/{id}/frame and serves the
// latest captured JPEG.
func CameraFrameHandler(manager *monitor.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frame, ok, err := manager.CurrentFrame(r.PathValue("id"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if !ok {
			http.Error(w, "No frame captured yet", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Last-Modified", frame.CapturedAt.UTC().Format(http.TimeFormat))
		if _, err := w.Write(frame.Data); err != nil {
			logger.Warning("Failed to write frame", "camera", r.PathValue("id"), "error", err)
		}
	}
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response", "error", err)
	}
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, logger *logger.Logger, err error) {
	switch {
	case errors.Is(err, monitor.ErrInvalidCamera):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, monitor.ErrCameraNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, monitor.ErrCameraExists):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logger.Error("Request failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
