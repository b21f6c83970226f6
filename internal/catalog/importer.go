package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"github.com/spf13/afero"

	"mediastream/internal/media"
)

// ImportResult summarises an import run.
type ImportResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Importer registers video files found on a filesystem. Paths are rooted
// at "/" the same way the media FileStore sees them.
type Importer struct {
	fs     afero.Fs
	repo   *Repository
	logger *slog.Logger
}

func NewImporter(fsys afero.Fs, repo *Repository, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{fs: fsys, repo: repo, logger: logger}
}

// errSkipped marks files that are not videos.
var errSkipped = errors.New("not a video file")

// Import walks root and registers every video file below it.
func (im *Importer) Import(ctx context.Context, root string) (ImportResult, error) {
	var result ImportResult
	root = path.Clean("/" + root)

	err := afero.Walk(im.fs, root, func(name string, info fs.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			im.logger.Warn("catalog.import.walk_error", "path", name, "err", walkErr)
			return nil
		}
		base := path.Base(name)
		if info.IsDir() {
			if name != root && strings.HasPrefix(base, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(base, ".") {
			result.Skipped++
			return nil
		}

		_, created, err := im.ImportFile(ctx, name)
		switch {
		case errors.Is(err, errSkipped):
			result.Skipped++
		case err != nil:
			return err
		case created:
			result.Added++
		default:
			result.Updated++
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("import %s: %w", root, err)
	}

	im.logger.Info("catalog.import.completed",
		"root", root,
		"added", result.Added,
		"updated", result.Updated,
		"skipped", result.Skipped,
	)
	return result, nil
}

// ImportFile registers a single file. It reports whether a new entry was
// created; non-video files return an error matching errSkipped.
func (im *Importer) ImportFile(ctx context.Context, name string) (Entry, bool, error) {
	name = path.Clean("/" + name)

	info, err := im.fs.Stat(name)
	if err != nil {
		return Entry{}, false, fmt.Errorf("stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return Entry{}, false, fmt.Errorf("%w: %s", errSkipped, name)
	}

	mimeType, err := im.videoType(name)
	if err != nil {
		return Entry{}, false, err
	}

	existing, err := im.repo.GetByPath(ctx, name)
	created := errors.Is(err, ErrNotFound)
	if err != nil && !created {
		return Entry{}, false, err
	}

	id := existing.ID
	if created {
		id, err = im.freeID(ctx, name)
		if err != nil {
			return Entry{}, false, err
		}
	}

	entry, err := im.repo.Upsert(ctx, Entry{
		ID:       id,
		Path:     name,
		MimeType: mimeType,
		Title:    titleForPath(name),
		SizeHint: info.Size(),
	})
	if err != nil {
		return Entry{}, false, err
	}
	im.logger.Debug("catalog.import.file", "id", entry.ID, "path", name, "created", created)
	return entry, created, nil
}

// videoType decides from the extension, sniffing content when the
// extension is unknown.
func (im *Importer) videoType(name string) (string, error) {
	if mimeType, ok := media.TypeByExtension(name); ok {
		return mimeType, nil
	}

	f, err := im.fs.Open(name)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	mimeType, err := media.SniffType(f)
	if err != nil {
		return "", fmt.Errorf("sniff %s: %w", name, err)
	}
	if !strings.HasPrefix(mimeType, "video/") {
		return "", fmt.Errorf("%w: %s is %s", errSkipped, name, mimeType)
	}
	return mimeType, nil
}

// freeID picks the slug id for name, falling back to a slug that keeps the
// extension when another path already owns it.
func (im *Importer) freeID(ctx context.Context, name string) (string, error) {
	candidates := []string{IDForPath(name), Slug(strings.TrimPrefix(name, "/"))}
	for _, id := range candidates {
		if id == "" {
			continue
		}
		_, err := im.repo.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free id for %s", name)
}
