package handlers

import (
	"net/http"

	"mediastream/models"
)

// StreamLister reports in-flight streams.
type StreamLister interface {
	Snapshot() []models.StreamInfo
}

// AdminHandler provides administrative endpoints for monitoring the server
type AdminHandler struct {
	streams StreamLister
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(streams StreamLister) *AdminHandler {
	return &AdminHandler{streams: streams}
}

// GetActiveStreams returns all streams currently holding a read handle.
func (h *AdminHandler) GetActiveStreams(w http.ResponseWriter, r *http.Request) {
	response := models.StreamsResponse{Streams: []models.StreamInfo{}}

	if h.streams != nil {
		for _, info := range h.streams.Snapshot() {
			response.Streams = append(response.Streams, info)
			if info.Partial {
				response.Partial++
			} else {
				response.Full++
			}
		}
	}
	response.Count = len(response.Streams)

	writeJSON(w, http.StatusOK, response)
}
