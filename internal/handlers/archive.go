package handlers

import (
	"encoding/json"
	"net/http"

	"smartbin-backend/internal/lifecycle"
	"smartbin-backend/internal/middleware"
	"smartbin-backend/internal/mirror"
	"smartbin-backend/internal/websocket"
	"smartbin-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

func GetArchive(manager *lifecycle.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		archived, err := manager.ListArchive(r.Context())
		if err != nil {
			respondLifecycleError(w, "", err)
			return
		}
		utils.RespondJSON(w, http.StatusOK, archived)
	}
}

func RestoreBin(manager *lifecycle.Manager, mir *mirror.Mirror, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		binID := chi.URLParam(r, "id")
		if binID == "" {
			utils.RespondError(w, http.StatusBadRequest, "Bin id is required")
			return
		}

		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		restored, err := manager.Restore(r.Context(), binID, user.UserID)
		if err != nil {
			respondLifecycleError(w, binID, err)
			return
		}

		mir.ApplyRestore(restored)
		hub.BroadcastEvent(websocket.EventBinRestored, restored)
		utils.RespondJSON(w, http.StatusOK, restored)
	}
}

func SoftDeleteBin(manager *lifecycle.Manager, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		binID := chi.URLParam(r, "id")
		if binID == "" {
			utils.RespondError(w, http.StatusBadRequest, "Bin id is required")
			return
		}

		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		deleted, err := manager.SoftDelete(r.Context(), binID, user.UserID)
		if err != nil {
			respondLifecycleError(w, binID, err)
			return
		}

		hub.BroadcastEvent(websocket.EventBinDeleted, deleted)
		utils.RespondJSON(w, http.StatusOK, deleted)
	}
}

// BatchRequest is the request body for the batch restore/delete endpoints.
type BatchRequest struct {
	BinIDs []string `json:"binIds"`
}

func BatchRestore(manager *lifecycle.Manager, mir *mirror.Mirror, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if len(req.BinIDs) == 0 {
			utils.RespondError(w, http.StatusBadRequest, "binIds is required")
			return
		}

		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		result, err := manager.BatchRestore(r.Context(), req.BinIDs, user.UserID)
		if err != nil {
			respondLifecycleError(w, "", err)
			return
		}

		// Re-sync the mirror from the authoritative list after a bulk move.
		if bins, err := manager.ListBins(r.Context()); err == nil {
			mir.Reconcile(bins)
		}
		hub.BroadcastEvent(websocket.EventBinRestored, result)
		utils.RespondJSON(w, http.StatusOK, result)
	}
}

func BatchSoftDelete(manager *lifecycle.Manager, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if len(req.BinIDs) == 0 {
			utils.RespondError(w, http.StatusBadRequest, "binIds is required")
			return
		}

		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		result, err := manager.BatchSoftDelete(r.Context(), req.BinIDs, user.UserID)
		if err != nil {
			respondLifecycleError(w, "", err)
			return
		}

		hub.BroadcastEvent(websocket.EventBinDeleted, result)
		utils.RespondJSON(w, http.StatusOK, result)
	}
}
