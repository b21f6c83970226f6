package media

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMimeType is served when nothing better is known.
const DefaultMimeType = "video/mp4"

// sniffLimit matches the read limit mimetype uses for detection.
const sniffLimit = 3072

var extensionTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".ogv":  "video/ogg",
	".ts":   "video/mp2t",
}

// TypeByExtension returns the fixed MIME type for a known video extension.
func TypeByExtension(name string) (string, bool) {
	ct, ok := extensionTypes[strings.ToLower(path.Ext(name))]
	return ct, ok
}

// SniffType detects the MIME type from the leading bytes of r.
func SniffType(r io.Reader) (string, error) {
	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return "", err
	}
	return mt.String(), nil
}

// detectType picks the MIME type: extension table, then store metadata,
// then content sniffing. The sniffing handle is closed before returning.
func detectType(ctx context.Context, store Store, name string, info Info) string {
	if ct, ok := TypeByExtension(name); ok {
		return ct
	}
	if info.ContentType != "" && info.ContentType != "application/octet-stream" {
		return info.ContentType
	}
	if info.Size <= 0 {
		return DefaultMimeType
	}

	rc, err := store.OpenRange(ctx, name, 0, min(info.Size, sniffLimit)-1)
	if err != nil {
		return DefaultMimeType
	}
	defer rc.Close()

	ct, err := SniffType(rc)
	if err != nil || ct == "" {
		return DefaultMimeType
	}
	return ct
}
