package handlers

import (
	"encoding/json"
	"net/http"

	"taskboard-project/backend/apperrors"
	"taskboard-project/backend/logging"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps a service error to its HTTP status. Errors outside the
// taxonomy are logged and reported as 500 without leaking detail.
func writeError(w http.ResponseWriter, err error) {
	status := apperrors.StatusCode(err)
	if status == http.StatusInternalServerError {
		logging.Logger.Errorf("Event ID: INTERNAL_ERROR, Description: %v", err)
		http.Error(w, "Internal server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}
