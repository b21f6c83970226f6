// Package media resolves resource identifiers to stored byte sequences and
// opens bounded reads over them.
package media

//go:generate mockgen -destination=mocks/mock_resolver.go -package=mocks mediastream/internal/media Resolver

import (
	"context"
	"io"
	"time"

	"mediastream/models"
)

// Info is the metadata a store reports for a stored object.
type Info struct {
	Size        int64
	ModTime     time.Time
	Regular     bool
	ContentType string
}

// Store provides bounded reads over an underlying byte store.
type Store interface {
	// Stat reports metadata for path, or ErrNotFound.
	Stat(ctx context.Context, path string) (Info, error)
	// OpenRange opens a reader over the inclusive range [start, end] of path.
	// The caller must Close the returned reader exactly once.
	OpenRange(ctx context.Context, path string, start, end int64) (io.ReadCloser, error)
	Ping(ctx context.Context) error
}

// Resolver maps an opaque resource id to a streamable resource.
type Resolver interface {
	Resolve(ctx context.Context, id string) (models.MediaResource, error)
}

// ResolverFunc adapts a function into a Resolver.
type ResolverFunc func(ctx context.Context, id string) (models.MediaResource, error)

func (f ResolverFunc) Resolve(ctx context.Context, id string) (models.MediaResource, error) {
	return f(ctx, id)
}

// rangeReadCloser limits reads to the window and closes the owning handle.
type rangeReadCloser struct {
	io.Reader
	closer io.Closer
}

func (r *rangeReadCloser) Close() error {
	return r.closer.Close()
}
