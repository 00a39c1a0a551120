package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/nhle/smarttask/internal/credential"
	"github.com/nhle/smarttask/internal/model"
	"github.com/nhle/smarttask/internal/notify"
	"github.com/nhle/smarttask/internal/store"
	"github.com/nhle/smarttask/internal/tasks"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return false
	}
	return true
}

// writeServiceError maps service errors to status codes. Anything unknown is
// logged and reported as a 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tasks.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, tasks.ErrInvalidRequest),
		errors.Is(err, model.ErrEmptyText),
		errors.Is(err, model.ErrInvalidTimeOfDay),
		errors.Is(err, notify.ErrDestinationRequired),
		errors.Is(err, notify.ErrInvalidNumber):
		writeError(w, http.StatusBadRequest, err.Error())
	case credential.IsCryptoError(err):
		log.Printf("[http] %s %s: credential failure: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "stored credentials could not be read")
	default:
		log.Printf("[http] %s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "server error")
	}
}
