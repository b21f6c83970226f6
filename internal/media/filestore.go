package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// FileStore serves resources from an afero filesystem.
type FileStore struct {
	fs     afero.Fs
	logger *slog.Logger
}

// NewFileStore constructs a store over fsys. Production code passes an
// afero.BasePathFs rooted at the media directory.
func NewFileStore(fsys afero.Fs, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{fs: fsys, logger: logger}
}

// NewOSFileStore roots a FileStore at dir on the local disk.
func NewOSFileStore(dir string, logger *slog.Logger) *FileStore {
	return NewFileStore(afero.NewBasePathFs(afero.NewOsFs(), dir), logger)
}

// Fs exposes the underlying filesystem for importers and watchers.
func (s *FileStore) Fs() afero.Fs {
	return s.fs
}

func (s *FileStore) Stat(_ context.Context, name string) (Info, error) {
	fi, err := s.fs.Stat(normalizePath(name))
	if err != nil {
		return Info{}, mapFileError("stat", name, err)
	}
	return Info{
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
		Regular: fi.Mode().IsRegular(),
	}, nil
}

func (s *FileStore) OpenRange(ctx context.Context, name string, start, end int64) (io.ReadCloser, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: %d-%d", ErrInvalidRange, start, end)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.fs.Open(normalizePath(name))
	if err != nil {
		return nil, mapFileError("open", name, err)
	}

	if start > 0 {
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("seek %s to %d: %w", name, start, err)
		}
	}

	s.logger.Debug("media.filestore.open",
		"path", name,
		"start", start,
		"end", end,
	)

	return &rangeReadCloser{Reader: io.LimitReader(f, end-start+1), closer: f}, nil
}

// Ping verifies the root of the filesystem is reachable.
func (s *FileStore) Ping(context.Context) error {
	fi, err := s.fs.Stat("/")
	if err != nil {
		return fmt.Errorf("stat media root: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("media root is not a directory")
	}
	return nil
}

// mapFileError reports missing and unreadable files as ErrNotFound.
func mapFileError(op, name string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w: %s: %w", ErrNotFound, ErrUnreadable, name, err)
	default:
		return fmt.Errorf("%s %s: %w", op, name, err)
	}
}

func normalizePath(name string) string {
	cleaned := path.Clean("/" + strings.TrimSpace(name))
	if cleaned == "." {
		return "/"
	}
	return cleaned
}
