package media

import (
	"context"
	"fmt"
	"path"
	"strings"

	"mediastream/models"
)

// DirResolver maps resource ids onto relative paths within a Store.
type DirResolver struct {
	Store            Store
	DefaultExtension string
}

// NewDirResolver constructs a resolver that appends ".mp4" to ids without an extension.
func NewDirResolver(store Store) *DirResolver {
	return &DirResolver{Store: store, DefaultExtension: ".mp4"}
}

// Resolve stats the resource fresh on every call; sizes are never cached.
func (r *DirResolver) Resolve(ctx context.Context, id string) (models.MediaResource, error) {
	if r == nil || r.Store == nil {
		return models.MediaResource{}, ErrStoreNotReady
	}

	name, err := r.pathFor(id)
	if err != nil {
		return models.MediaResource{}, err
	}

	return StatResource(ctx, r.Store, id, name, "")
}

func (r *DirResolver) pathFor(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty id", ErrNotFound)
	}
	cleaned := path.Clean("/" + id)
	if cleaned == "/" {
		return "", fmt.Errorf("%w: %w: %q", ErrNotFound, ErrInvalidResource, id)
	}
	if path.Ext(cleaned) == "" && r.DefaultExtension != "" {
		cleaned += r.DefaultExtension
	}
	return cleaned, nil
}

// StatResource builds a resource for a path already known to the caller.
func StatResource(ctx context.Context, store Store, id, name, mimeType string) (models.MediaResource, error) {
	info, err := store.Stat(ctx, name)
	if err != nil {
		return models.MediaResource{}, err
	}
	if !info.Regular {
		return models.MediaResource{}, fmt.Errorf("%w: %w: %s", ErrNotFound, ErrNotRegularFile, name)
	}
	if mimeType == "" {
		mimeType = detectType(ctx, store, name, info)
	}
	return models.MediaResource{
		ID:        id,
		Path:      name,
		SizeBytes: info.Size,
		MimeType:  mimeType,
		ModTime:   info.ModTime,
	}, nil
}
