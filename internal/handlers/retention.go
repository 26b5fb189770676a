package handlers

import (
	"net/http"

	"smartbin-backend/internal/lifecycle"
	"smartbin-backend/internal/sweeper"
	"smartbin-backend/internal/websocket"
	"smartbin-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

func GetDeleted(manager *lifecycle.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := manager.ListDeleted(r.Context())
		if err != nil {
			respondLifecycleError(w, "", err)
			return
		}
		utils.RespondJSON(w, http.StatusOK, deleted)
	}
}

// PurgeBin permanently erases a soft-deleted bin. Idempotent: purging an
// already-absent bin still returns 204.
func PurgeBin(manager *lifecycle.Manager, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		binID := chi.URLParam(r, "id")
		if binID == "" {
			utils.RespondError(w, http.StatusBadRequest, "Bin id is required")
			return
		}

		if err := manager.Purge(r.Context(), binID); err != nil {
			respondLifecycleError(w, binID, err)
			return
		}

		hub.BroadcastEvent(websocket.EventBinPurged, map[string]string{"serial": binID})
		w.WriteHeader(http.StatusNoContent)
	}
}

// SweepNow triggers a retention sweep on demand, outside the schedule.
func SweepNow(sw *sweeper.Sweeper, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := sw.Sweep(r.Context())
		if err != nil {
			respondLifecycleError(w, "", err)
			return
		}

		hub.BroadcastEvent(websocket.EventSweepComplete, result)
		utils.RespondJSON(w, http.StatusOK, result)
	}
}
