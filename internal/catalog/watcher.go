package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher keeps the catalog in sync with a media directory on disk.
type Watcher struct {
	root     string
	importer *Importer
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
}

// NewWatcher watches root and every directory below it. The importer must
// read from a filesystem rooted at root.
func NewWatcher(root string, importer *Importer, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve media root: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{root: abs, importer: importer, watcher: fw, logger: logger}
	if err := w.addTree(abs); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

// Run applies filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("catalog.watch.error", "err", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	name, ok := w.storePath(ev.Name)
	if !ok || strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return
	}
	log := w.logger.With("path", name, "op", ev.Op.String())

	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		n, err := w.importer.repo.DeleteByPath(ctx, name)
		if err != nil {
			log.Warn("catalog.watch.delete_failed", "err", err)
			return
		}
		if n > 0 {
			log.Info("catalog.watch.removed", "entries", n)
		}
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				log.Warn("catalog.watch.add_failed", "err", err)
				return
			}
			if _, err := w.importer.Import(ctx, name); err != nil {
				log.Warn("catalog.watch.import_failed", "err", err)
			}
			return
		}
		entry, _, err := w.importer.ImportFile(ctx, name)
		switch {
		case errors.Is(err, errSkipped):
		case err != nil:
			log.Warn("catalog.watch.import_failed", "err", err)
		default:
			log.Debug("catalog.watch.imported", "id", entry.ID)
		}
	}
}

// storePath converts an OS path under root into the "/"-rooted store path.
func (w *Watcher) storePath(osPath string) (string, bool) {
	rel, err := filepath.Rel(w.root, osPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return "/" + filepath.ToSlash(rel), true
}
