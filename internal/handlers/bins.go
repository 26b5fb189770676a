package handlers

import (
	"encoding/json"
	"net/http"

	"smartbin-backend/internal/lifecycle"
	"smartbin-backend/internal/middleware"
	"smartbin-backend/internal/mirror"
	"smartbin-backend/internal/models"
	"smartbin-backend/internal/serial"
	"smartbin-backend/internal/websocket"
	"smartbin-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// GetBins serves the dashboard list from the client mirror, so no store
// round trip happens per render.
func GetBins(mir *mirror.Mirror) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, mir.Snapshot())
	}
}

// CreateBinRequest is the request body for POST /api/bins
type CreateBinRequest struct {
	Name         string `json:"name"`
	Capacity     int    `json:"capacity"`
	Threshold    int    `json:"threshold"`
	Location     string `json:"location"`
	ImageURL     string `json:"imageUrl"`
	SensorStatus string `json:"sensorStatus"`
}

func CreateBin(serials *serial.Service, mir *mirror.Mirror, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		bin := models.Bin{
			Name:         req.Name,
			Capacity:     req.Capacity,
			Threshold:    req.Threshold,
			Location:     req.Location,
			ImageURL:     req.ImageURL,
			SensorStatus: req.SensorStatus,
		}
		if err := bin.Validate(); err != nil {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}

		created, err := serials.Reserve(r.Context(), bin, user.UserID)
		if err != nil {
			respondLifecycleError(w, "", err)
			return
		}

		mir.ApplyCreate(created)
		hub.BroadcastEvent(websocket.EventBinCreated, created)
		utils.RespondJSON(w, http.StatusCreated, created)
	}
}

func ConfigureBin(manager *lifecycle.Manager, mir *mirror.Mirror, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		binID := chi.URLParam(r, "id")
		if binID == "" {
			utils.RespondError(w, http.StatusBadRequest, "Bin id is required")
			return
		}

		var cfg lifecycle.BinConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := cfg.Validate(); err != nil {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}

		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		updated, err := manager.Configure(r.Context(), binID, cfg, user.UserID)
		if err != nil {
			respondLifecycleError(w, binID, err)
			return
		}

		mir.ApplyConfigure(updated)
		hub.BroadcastEvent(websocket.EventBinConfigured, updated)
		utils.RespondJSON(w, http.StatusOK, updated)
	}
}

// ArchiveBinRequest is the request body for POST /api/bins/{id}/archive.
// KeepLastActive carries the caller's policy on archiving the final bin.
type ArchiveBinRequest struct {
	Reason         string `json:"reason"`
	KeepLastActive bool   `json:"keepLastActive"`
}

func ArchiveBin(manager *lifecycle.Manager, mir *mirror.Mirror, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		binID := chi.URLParam(r, "id")
		if binID == "" {
			utils.RespondError(w, http.StatusBadRequest, "Bin id is required")
			return
		}

		var req ArchiveBinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Reason == "" {
			utils.RespondError(w, http.StatusBadRequest, "Archive reason is required")
			return
		}

		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		archived, err := manager.Archive(r.Context(), binID, req.Reason, user.UserID, lifecycle.ArchiveOptions{
			KeepLastActive: req.KeepLastActive,
		})
		if err != nil {
			respondLifecycleError(w, binID, err)
			return
		}

		mir.ApplyArchive(binID)
		hub.BroadcastEvent(websocket.EventBinArchived, archived)
		utils.RespondJSON(w, http.StatusOK, archived)
	}
}
