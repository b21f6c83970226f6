package models

import "time"

// MediaResource is a resolved, streamable byte sequence.
type MediaResource struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"sizeBytes"`
	MimeType  string    `json:"mimeType"`
	ModTime   time.Time `json:"modTime,omitempty"`
}
