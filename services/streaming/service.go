package streaming

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"mediastream/internal/httprange"
	"mediastream/internal/media"
	"mediastream/internal/metrics"
)

// Config is fixed at startup and shared read-only by every request.
type Config struct {
	// ChunkSizeBytes caps the bytes returned by a single ranged response.
	ChunkSizeBytes int64
	// HonorClientEnd narrows windows to the end offset the client sent.
	// Off by default: clients receive chunk-sized windows regardless.
	HonorClientEnd bool
	// MaxBytesPerSecond paces each stream when positive.
	MaxBytesPerSecond int64
}

// Service resolves resources and produces bounded full or partial streams.
type Service struct {
	resolver media.Resolver
	store    media.Store
	cfg      Config
	tracker  *Tracker
	logger   *slog.Logger
}

var _ Provider = (*Service)(nil)

// NewService wires a streaming service. tracker may be nil.
func NewService(resolver media.Resolver, store media.Store, cfg Config, tracker *Tracker, logger *slog.Logger) (*Service, error) {
	if resolver == nil || store == nil {
		return nil, fmt.Errorf("streaming service requires a resolver and a store")
	}
	if cfg.ChunkSizeBytes <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSizeBytes)
	}
	if tracker == nil {
		tracker = NewTracker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver: resolver,
		store:    store,
		cfg:      cfg,
		tracker:  tracker,
		logger:   logger,
	}, nil
}

// Tracker exposes the in-flight stream registry.
func (s *Service) Tracker() *Tracker {
	return s.tracker
}

// ChunkSize returns the configured window size.
func (s *Service) ChunkSize() int64 {
	return s.cfg.ChunkSizeBytes
}

// Stream resolves req.ResourceID and returns a response whose body yields
// exactly ContentLength bytes. The caller must Close the response.
func (s *Service) Stream(ctx context.Context, req Request) (*Response, error) {
	res, err := s.resolver.Resolve(ctx, req.ResourceID)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, req.ResourceID, err)
		}
		return nil, fmt.Errorf("resolve %s: %w", req.ResourceID, err)
	}

	headers := make(http.Header)
	headers.Set("Accept-Ranges", httprange.Unit)
	headers.Set("Content-Type", res.MimeType)

	status := http.StatusOK
	window := httprange.FullWindow(res.SizeBytes)

	rangeHeader := strings.TrimSpace(req.RangeHeader)
	if rangeHeader != "" {
		window, err = s.partialWindow(rangeHeader, res.SizeBytes)
		if err != nil {
			return nil, &RangeError{Header: rangeHeader, Size: res.SizeBytes, Err: err}
		}
		status = http.StatusPartialContent
		headers.Set("Content-Range", window.ContentRange(res.SizeBytes))
	}
	headers.Set("Content-Length", strconv.FormatInt(window.Length(), 10))

	resp := &Response{
		Headers:       headers,
		Status:        status,
		ContentLength: window.Length(),
		Window:        window,
		Resource:      res,
	}

	if strings.EqualFold(req.Method, http.MethodHead) || window.Length() == 0 {
		resp.Body = http.NoBody
		return resp, nil
	}

	rc, err := s.store.OpenRange(ctx, res.Path, window.Start, window.End)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, req.ResourceID, err)
		}
		return nil, fmt.Errorf("open %s: %w", res.Path, err)
	}

	streamID, record, done := s.tracker.register(req, res, window, resp.Partial())
	metrics.ActiveStreams.Inc()
	metrics.WindowBytes.Observe(float64(window.Length()))

	s.logger.Debug("stream.opened",
		"stream_id", streamID,
		"resource", res.ID,
		"path", res.Path,
		"start", window.Start,
		"end", window.End,
		"size", res.SizeBytes,
	)

	resp.Body = &body{
		ctx:     ctx,
		rc:      rc,
		path:    res.Path,
		window:  window,
		limiter: newLimiter(s.cfg.MaxBytesPerSecond),
		onRead: func(n int) {
			record(n)
			metrics.BytesStreamed.Add(float64(n))
		},
		onClose: func(read int64) {
			done()
			metrics.ActiveStreams.Dec()
			s.logger.Debug("stream.released",
				"stream_id", streamID,
				"resource", res.ID,
				"bytes", read,
				"expected", window.Length(),
			)
		},
	}
	return resp, nil
}

// partialWindow parses the header and bounds the window by the chunk size.
func (s *Service) partialWindow(rangeHeader string, size int64) (httprange.Window, error) {
	rr, err := httprange.ParseRangeHeader(rangeHeader)
	if err != nil {
		return httprange.Window{}, err
	}
	window, err := httprange.NewWindow(rr.Start, size, s.cfg.ChunkSizeBytes)
	if err != nil {
		return httprange.Window{}, err
	}
	if s.cfg.HonorClientEnd && rr.HasClientEnd() {
		return window.Clamp(rr.ClientEnd)
	}
	return window, nil
}
