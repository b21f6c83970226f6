package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"mediastream/internal/httprange"
	"mediastream/models"
)

var (
	ErrNotFound            = errors.New("stream not found")
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
)

// RangeError reports a Range header that cannot be served for a resource.
type RangeError struct {
	Header string
	Size   int64
	Err    error
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range %q not satisfiable for %d bytes: %v", e.Header, e.Size, e.Err)
}

func (e *RangeError) Unwrap() []error {
	return []error{ErrRangeNotSatisfiable, e.Err}
}

// Request encapsulates a streaming request coming from the handler layer.
type Request struct {
	ResourceID  string
	RangeHeader string
	Method      string
	ClientIP    string
	UserAgent   string
}

// Response wraps the streaming body and metadata needed by the HTTP layer.
type Response struct {
	Body          io.ReadCloser
	Headers       http.Header
	Status        int
	ContentLength int64
	Window        httprange.Window
	Resource      models.MediaResource
}

// Close closes the underlying response body if present.
func (r *Response) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// Partial reports whether the response carries a sub-range of the resource.
func (r *Response) Partial() bool {
	return r != nil && r.Status == http.StatusPartialContent
}

// Provider supplies streaming data for a given request.
type Provider interface {
	Stream(ctx context.Context, req Request) (*Response, error)
}
