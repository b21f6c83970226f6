package catalog

import (
	"context"
	"errors"
	"fmt"

	"mediastream/internal/media"
	"mediastream/models"
)

// Resolver looks ids up in the catalog and stats the stored path on every
// call, so sizes are never served from the catalog.
type Resolver struct {
	repo  *Repository
	store media.Store
}

var _ media.Resolver = (*Resolver)(nil)

func NewResolver(repo *Repository, store media.Store) *Resolver {
	return &Resolver{repo: repo, store: store}
}

func (r *Resolver) Resolve(ctx context.Context, id string) (models.MediaResource, error) {
	entry, err := r.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.MediaResource{}, fmt.Errorf("%w: %w", media.ErrNotFound, err)
		}
		return models.MediaResource{}, fmt.Errorf("catalog lookup %s: %w", id, err)
	}
	return media.StatResource(ctx, r.store, entry.ID, entry.Path, entry.MimeType)
}
