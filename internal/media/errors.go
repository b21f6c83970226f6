package media

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("media not found")
	ErrNotRegularFile  = errors.New("media is not a regular file")
	ErrUnreadable      = errors.New("media is not readable")
	ErrInvalidRange    = errors.New("read range outside resource")
	ErrStoreNotReady   = errors.New("media store not configured")
	ErrInvalidResource = errors.New("invalid resource id")
)

// StreamIOError represents a bounded read that failed after streaming began.
type StreamIOError struct {
	Path      string
	Offset    int64
	BytesRead int64
	Expected  int64
	Err       error
}

func (e *StreamIOError) Error() string {
	return fmt.Sprintf("stream %s: read %d/%d bytes from offset %d: %v", e.Path, e.BytesRead, e.Expected, e.Offset, e.Err)
}

func (e *StreamIOError) Unwrap() error {
	return e.Err
}
