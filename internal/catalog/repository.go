package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no catalog entry matches.
var ErrNotFound = errors.New("catalog: entry not found")

// Entry is one catalogued video.
type Entry struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	MimeType  string    `json:"mime_type"`
	Title     string    `json:"title"`
	SizeHint  int64     `json:"size_hint"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository provides access to the media table.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

const selectColumns = "SELECT id, path, mime_type, title, size_hint, created_at, updated_at FROM media"

// Upsert inserts e or updates the row with the same id. CreatedAt is kept
// on update.
func (r *Repository) Upsert(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" || e.Path == "" {
		return Entry{}, fmt.Errorf("catalog entry needs id and path")
	}
	now := r.now().UTC().Truncate(time.Second)
	query := `
		INSERT INTO media (id, path, mime_type, title, size_hint, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			mime_type = excluded.mime_type,
			title = excluded.title,
			size_hint = excluded.size_hint,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.Path, e.MimeType, e.Title, e.SizeHint, now.Unix(), now.Unix())
	if err != nil {
		return Entry{}, fmt.Errorf("upsert %s: %w", e.ID, err)
	}
	return r.Get(ctx, e.ID)
}

// Get returns the entry for id.
func (r *Repository) Get(ctx context.Context, id string) (Entry, error) {
	return r.queryOne(ctx, selectColumns+" WHERE id = ?", id)
}

// GetByPath returns the entry for a store path.
func (r *Repository) GetByPath(ctx context.Context, path string) (Entry, error) {
	return r.queryOne(ctx, selectColumns+" WHERE path = ?", path)
}

// List returns every entry ordered by id.
func (r *Repository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteByPath removes the entry at path and any entry below it when path
// is a directory. It returns the number of rows removed.
func (r *Repository) DeleteByPath(ctx context.Context, path string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM media WHERE path = ? OR path LIKE ? ESCAPE '\\'",
		path, escapeLike(path)+"/%")
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", path, err)
	}
	return res.RowsAffected()
}

func (r *Repository) queryOne(ctx context.Context, query string, arg string) (Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, arg)
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e                Entry
		created, updated int64
	)
	if err := s.Scan(&e.ID, &e.Path, &e.MimeType, &e.Title, &e.SizeHint, &created, &updated); err != nil {
		return Entry{}, err
	}
	e.CreatedAt = time.Unix(created, 0).UTC()
	e.UpdatedAt = time.Unix(updated, 0).UTC()
	return e, nil
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
