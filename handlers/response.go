package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"mediastream/internal/httprange"
	"mediastream/models"
	"mediastream/services/streaming"
)

var (
	failMethod      = models.Fail("method not allowed")
	failUnavailable = models.Fail("stream provider not configured")
)

// mapStreamError decides the status and message for errors raised before
// any body byte is written.
func mapStreamError(err error) (int, string) {
	switch {
	case errors.Is(err, streaming.ErrNotFound):
		return http.StatusNotFound, "video not found"
	case errors.Is(err, streaming.ErrRangeNotSatisfiable):
		return http.StatusRequestedRangeNotSatisfiable, "requested range not satisfiable"
	default:
		return http.StatusInternalServerError, "unable to stream video"
	}
}

// writeStreamError writes the JSON error envelope for err.
func writeStreamError(w http.ResponseWriter, r *http.Request, err error) int {
	status, message := mapStreamError(err)

	var rangeErr *streaming.RangeError
	if errors.As(err, &rangeErr) {
		w.Header().Set("Content-Range", httprange.UnsatisfiedContentRange(rangeErr.Size))
		w.Header().Set("Accept-Ranges", httprange.Unit)
	}
	writeEnvelope(w, r, status, models.Fail(message))
	return status
}

// writeEnvelope writes the envelope; HEAD responses carry no body.
func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, env models.ErrorEnvelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	_ = json.NewEncoder(w).Encode(env)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
