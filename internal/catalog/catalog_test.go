package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediastream/internal/media"
)

var mp4Header = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'i', 's', 'o', '2'}

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(Config{DatabasePath: filepath.Join(t.TempDir(), "catalog", "media.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDBRunsMigrationsIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "media.db")

	db, err := NewDB(Config{DatabasePath: path})
	require.NoError(t, err)
	require.NoError(t, db.Ping(context.Background()))
	require.NoError(t, db.Close())

	db, err = NewDB(Config{DatabasePath: path})
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestDB(t).Repository

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	repo.now = func() time.Time { return first }

	e, err := repo.Upsert(ctx, Entry{ID: "movie", Path: "/movie.mp4", MimeType: "video/mp4", Title: "movie", SizeHint: 10})
	require.NoError(t, err)
	assert.Equal(t, first, e.CreatedAt)

	repo.now = func() time.Time { return first.Add(time.Hour) }
	e, err = repo.Upsert(ctx, Entry{ID: "movie", Path: "/movie.mp4", MimeType: "video/mp4", Title: "Movie", SizeHint: 20})
	require.NoError(t, err)
	assert.Equal(t, first, e.CreatedAt, "created_at survives updates")
	assert.Equal(t, first.Add(time.Hour), e.UpdatedAt)
	assert.EqualValues(t, 20, e.SizeHint)

	byPath, err := repo.GetByPath(ctx, "/movie.mp4")
	require.NoError(t, err)
	assert.Equal(t, "Movie", byPath.Title)

	_, err = repo.Upsert(ctx, Entry{ID: "a", Path: "/shows/a.mp4"})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, Entry{ID: "b", Path: "/shows/b.mp4"})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, Entry{ID: "c", Path: "/shows_extra/c.mp4"})
	require.NoError(t, err)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "a", all[0].ID)

	n, err := repo.DeleteByPath(ctx, "/shows")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n, "directory delete must not match /shows_extra")

	_, err = repo.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Get(ctx, "c")
	assert.NoError(t, err)

	_, err = repo.Upsert(ctx, Entry{Path: "/x.mp4"})
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Café Noir":            "cafe-noir",
		"  The  Movie (2019) ": "the-movie-2019",
		"shows/Season 01/E02":  "shows-season-01-e02",
		"Привет":               "privet",
		"---":                  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slug(in), "Slug(%q)", in)
	}
	assert.Equal(t, "shows-cafe-noir", IDForPath("/shows/Café Noir.mp4"))
	assert.Equal(t, "Caf\u00e9", titleForPath("/Cafe\u0301.mp4"), "titles are NFC")
}

func TestImporterImport(t *testing.T) {
	ctx := context.Background()
	repo := newTestDB(t).Repository

	fsys := afero.NewMemMapFs()
	files := map[string][]byte{
		"/movies/Café Noir.mp4": []byte("data"),
		"/movies/raw":           mp4Header,
		"/movies/notes.txt":     []byte("plain words here"),
		"/.cache/hidden.mp4":    []byte("data"),
		"/movie.mp4":            []byte("one"),
		"/movie.mkv":            []byte("two"),
	}
	for name, data := range files {
		require.NoError(t, afero.WriteFile(fsys, name, data, 0o644))
	}

	importer := NewImporter(fsys, repo, nil)
	result, err := importer.Import(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Added: 4, Skipped: 1}, result)

	e, err := repo.Get(ctx, "movies-cafe-noir")
	require.NoError(t, err)
	assert.Equal(t, "/movies/Café Noir.mp4", e.Path)
	assert.Equal(t, "video/mp4", e.MimeType)
	assert.Equal(t, "Café Noir", e.Title)

	raw, err := repo.Get(ctx, "movies-raw")
	require.NoError(t, err)
	assert.Contains(t, raw.MimeType, "video/")

	mp4, err := repo.GetByPath(ctx, "/movie.mp4")
	require.NoError(t, err)
	mkv, err := repo.GetByPath(ctx, "/movie.mkv")
	require.NoError(t, err)
	assert.Equal(t, "movie", mkv.ID, "walk is lexical so the mkv claims the bare slug")
	assert.Equal(t, "movie-mp4", mp4.ID)

	_, err = repo.GetByPath(ctx, "/.cache/hidden.mp4")
	assert.ErrorIs(t, err, ErrNotFound)

	result, err = importer.Import(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Updated: 4, Skipped: 1}, result)
}

func TestImportFileSkipsNonVideo(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/readme.txt", []byte("hello there"), 0o644))

	_, _, err := NewImporter(fsys, newTestDB(t).Repository, nil).ImportFile(context.Background(), "readme.txt")
	assert.ErrorIs(t, err, errSkipped)
}

func TestResolverStatsFreshly(t *testing.T) {
	ctx := context.Background()
	repo := newTestDB(t).Repository

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/film.webm", make([]byte, 100), 0o644))
	_, err := repo.Upsert(ctx, Entry{ID: "film", Path: "/film.webm", MimeType: "video/webm", SizeHint: 1})
	require.NoError(t, err)

	resolver := NewResolver(repo, media.NewFileStore(fsys, nil))

	res, err := resolver.Resolve(ctx, "film")
	require.NoError(t, err)
	assert.EqualValues(t, 100, res.SizeBytes, "size comes from the store, not the catalog")
	assert.Equal(t, "video/webm", res.MimeType)

	require.NoError(t, afero.WriteFile(fsys, "/film.webm", make([]byte, 250), 0o644))
	res, err = resolver.Resolve(ctx, "film")
	require.NoError(t, err)
	assert.EqualValues(t, 250, res.SizeBytes)

	_, err = resolver.Resolve(ctx, "unknown")
	assert.ErrorIs(t, err, media.ErrNotFound)

	require.NoError(t, fsys.Remove("/film.webm"))
	_, err = resolver.Resolve(ctx, "film")
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func TestWatcherTracksDirectory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := t.TempDir()
	repo := newTestDB(t).Repository
	importer := NewImporter(afero.NewBasePathFs(afero.NewOsFs(), root), repo, nil)

	w, err := NewWatcher(root, importer, nil)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(root, "clip.mp4"), []byte("frames"), 0o644))
	require.Eventually(t, func() bool {
		_, err := repo.Get(ctx, "clip")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(root, "clip.mp4")))
	require.Eventually(t, func() bool {
		_, err := repo.Get(ctx, "clip")
		return err != nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
