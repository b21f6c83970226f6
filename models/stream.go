package models

import "time"

// StreamInfo describes an in-flight stream for the admin endpoint.
type StreamInfo struct {
	ID            string    `json:"id"`
	ResourceID    string    `json:"resource_id"`
	Path          string    `json:"path"`
	Start         int64     `json:"start"`
	End           int64     `json:"end"`
	ContentLength int64     `json:"content_length"`
	BytesStreamed int64     `json:"bytes_streamed"`
	Partial       bool      `json:"partial"`
	ClientIP      string    `json:"client_ip,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastAccess    time.Time `json:"last_access"`
}

// StreamsResponse is the response for the streams endpoint.
type StreamsResponse struct {
	Streams []StreamInfo `json:"streams"`
	Count   int          `json:"count"`
	Partial int          `json:"partial_count"`
	Full    int          `json:"full_count"`
}
