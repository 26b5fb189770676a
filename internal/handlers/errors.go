package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"smartbin-backend/internal/lifecycle"
	"smartbin-backend/internal/models"
	"smartbin-backend/internal/serial"
	"smartbin-backend/pkg/utils"
)

// respondLifecycleError maps the lifecycle error taxonomy onto HTTP
// statuses. Benign races surface as 404/409 with the bin named, never as a
// generic 500.
func respondLifecycleError(w http.ResponseWriter, binID string, err error) {
	var schemaErr *models.SchemaError
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, fmt.Sprintf("Bin %s not found", binID))
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		utils.RespondError(w, http.StatusConflict, fmt.Sprintf("Bin %s was already restored or deleted", binID))
	case errors.Is(err, lifecycle.ErrLastActiveBin):
		utils.RespondError(w, http.StatusConflict, "Cannot archive the last active bin")
	case errors.Is(err, lifecycle.ErrConflict):
		utils.RespondError(w, http.StatusConflict, fmt.Sprintf("Bin %s was modified concurrently, please retry", binID))
	case errors.Is(err, serial.ErrExhausted):
		utils.RespondError(w, http.StatusServiceUnavailable, "Could not reserve a bin serial, please retry")
	case errors.As(err, &schemaErr):
		log.Printf("❌ Malformed document: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "Stored document is malformed")
	default:
		log.Printf("❌ Lifecycle operation failed for %s: %v", binID, err)
		utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
