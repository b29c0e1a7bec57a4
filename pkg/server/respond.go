package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/osbuild/ibmetrics/pkg/metrics"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps engine errors onto HTTP status codes and writes a JSON
// error envelope.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, metrics.ErrInvalidWindow):
		status = http.StatusBadRequest
	case errors.Is(err, metrics.ErrEmptyDataset):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
