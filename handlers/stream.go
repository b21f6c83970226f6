package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"mediastream/internal/media"
	"mediastream/internal/metrics"
	"mediastream/services/streaming"
)

const (
	defaultStreamTimeout = 30 * time.Minute
	copyBufferSize       = 512 * 1024
)

var copyBuffers = sync.Pool{
	New: func() any {
		buf := make([]byte, copyBufferSize)
		return &buf
	},
}

// StreamHandler serves a single video resource with byte-range support.
type StreamHandler struct {
	streamer streaming.Provider
	timeout  time.Duration
	logger   *slog.Logger
}

// NewStreamHandler returns a handler backed by provider. A zero timeout uses 30 minutes.
func NewStreamHandler(provider streaming.Provider, timeout time.Duration, logger *slog.Logger) *StreamHandler {
	if timeout <= 0 {
		timeout = defaultStreamTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{streamer: provider, timeout: timeout, logger: logger}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Allow", "GET, HEAD, OPTIONS")
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet, http.MethodHead:
		// Supported below
	default:
		w.Header().Set("Allow", "GET, HEAD, OPTIONS")
		writeEnvelope(w, r, http.StatusMethodNotAllowed, failMethod)
		return
	}

	if h.streamer == nil {
		writeEnvelope(w, r, http.StatusServiceUnavailable, failUnavailable)
		return
	}

	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		metrics.Requests.WithLabelValues(metrics.OutcomeNotFound).Inc()
		writeStreamError(w, r, streaming.ErrNotFound)
		return
	}

	rangeHeader := r.Header.Get("Range")
	log := h.logger.With(
		"request_id", RequestIDFromContext(r.Context()),
		"resource", id,
		"method", r.Method,
		"range", rangeHeader,
	)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp, err := h.streamer.Stream(ctx, streaming.Request{
		ResourceID:  id,
		RangeHeader: rangeHeader,
		Method:      r.Method,
		ClientIP:    clientIP(r),
		UserAgent:   r.UserAgent(),
	})
	if err != nil {
		status := writeStreamError(w, r, err)
		metrics.Requests.WithLabelValues(outcomeForStatus(status)).Inc()
		if status >= http.StatusInternalServerError {
			log.Error("stream.failed", "err", err)
		} else {
			log.Info("stream.rejected", "status", status, "err", err)
		}
		return
	}
	defer resp.Close()

	// Propagate provider headers.
	for key, values := range resp.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}

	w.WriteHeader(resp.Status)
	if r.Method == http.MethodHead || resp.Body == nil {
		metrics.Requests.WithLabelValues(outcomeForStatus(resp.Status)).Inc()
		return
	}

	written, err := h.copyBody(w, resp.Body)
	switch {
	case err == nil:
		metrics.Requests.WithLabelValues(outcomeForStatus(resp.Status)).Inc()
		log.Debug("stream.completed", "status", resp.Status, "bytes", written)
	case isClientGone(ctx, err):
		metrics.Requests.WithLabelValues(metrics.OutcomeDisconnected).Inc()
		log.Info("stream.client_disconnected", "bytes", written, "expected", resp.ContentLength, "err", err)
	default:
		metrics.Requests.WithLabelValues(metrics.OutcomeAborted).Inc()
		metrics.StreamErrors.WithLabelValues(errorKind(err)).Inc()
		log.Error("stream.aborted", "bytes", written, "expected", resp.ContentLength, "err", err)
		// Headers are committed. Drop the connection so a truncated body is
		// never mistaken for a complete one; the deferred Close still runs.
		panic(http.ErrAbortHandler)
	}
}

// copyBody writes body to w in increasing offset order, flushing after each write.
func (h *StreamHandler) copyBody(w http.ResponseWriter, body io.Reader) (int64, error) {
	bufp := copyBuffers.Get().(*[]byte)
	defer copyBuffers.Put(bufp)
	buf := *bufp

	flusher, _ := w.(http.Flusher)

	var written int64
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			m, writeErr := w.Write(buf[:n])
			written += int64(m)
			if writeErr != nil {
				return written, &clientWriteError{err: writeErr}
			}
			if flusher != nil {
				flusher.Flush()
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				return written, nil
			}
			return written, readErr
		}
	}
}

// clientWriteError marks failures writing to the client connection.
type clientWriteError struct {
	err error
}

func (e *clientWriteError) Error() string { return "write to client: " + e.err.Error() }
func (e *clientWriteError) Unwrap() error { return e.err }

func isClientGone(ctx context.Context, err error) bool {
	var cwe *clientWriteError
	if errors.As(err, &cwe) {
		return true
	}
	return errors.Is(err, context.Canceled) && ctx.Err() != nil
}

func errorKind(err error) string {
	var ioErr *media.StreamIOError
	switch {
	case errors.As(err, &ioErr):
		return "io"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "other"
	}
}

func outcomeForStatus(status int) string {
	switch status {
	case http.StatusOK:
		return metrics.OutcomeFull
	case http.StatusPartialContent:
		return metrics.OutcomePartial
	case http.StatusNotFound:
		return metrics.OutcomeNotFound
	case http.StatusRequestedRangeNotSatisfiable:
		return metrics.OutcomeUnsatisfied
	default:
		return metrics.OutcomeError
	}
}

func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
