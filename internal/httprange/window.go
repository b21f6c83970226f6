package httprange

import "fmt"

// Window is an inclusive byte range [Start, End] that is actually served.
type Window struct {
	Start int64
	End   int64
}

// NewWindow bounds a response beginning at start to at most chunk bytes
// and to the last byte of a resource of the given size.
func NewWindow(start, size, chunk int64) (Window, error) {
	if chunk <= 0 {
		return Window{}, fmt.Errorf("chunk size must be positive, got %d", chunk)
	}
	if start < 0 || start >= size {
		return Window{}, fmt.Errorf("%w: start %d, size %d", ErrUnsatisfiable, start, size)
	}

	end := size - 1
	// Windows hold at most chunk bytes, so the last offset is start+chunk-1.
	// limit wraps negative on overflow, leaving end at size-1.
	if limit := start + chunk - 1; limit >= start && limit < end {
		end = limit
	}
	return Window{Start: start, End: end}, nil
}

// FullWindow covers a whole resource. An empty resource yields an empty window.
func FullWindow(size int64) Window {
	return Window{Start: 0, End: size - 1}
}

// Length is the number of bytes in the window.
func (w Window) Length() int64 {
	if w.End < w.Start {
		return 0
	}
	return w.End - w.Start + 1
}

// Clamp narrows the window to a client-supplied inclusive end.
func (w Window) Clamp(clientEnd int64) (Window, error) {
	if clientEnd < w.Start {
		return Window{}, fmt.Errorf("%w: end %d before start %d", ErrUnsatisfiable, clientEnd, w.Start)
	}
	if clientEnd < w.End {
		w.End = clientEnd
	}
	return w, nil
}

// ContentRange renders the Content-Range header value for this window.
func (w Window) ContentRange(size int64) string {
	return fmt.Sprintf("%s %d-%d/%d", Unit, w.Start, w.End, size)
}

// UnsatisfiedContentRange renders the Content-Range value sent with a 416.
func UnsatisfiedContentRange(size int64) string {
	return fmt.Sprintf("%s */%d", Unit, size)
}
