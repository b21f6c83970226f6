package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediastream/handlers"
	"mediastream/internal/media"
	"mediastream/models"
	"mediastream/services/streaming"
)

const movieSize = 5_000_000

func movieBytes() []byte {
	data := make([]byte, movieSize)
	for i := range data {
		data[i] = byte((i * 7) % 253)
	}
	return data
}

type testServer struct {
	*httptest.Server
	svc  *streaming.Service
	data []byte
}

func newTestServer(t *testing.T, resolver media.Resolver) *testServer {
	t.Helper()
	data := movieBytes()
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/movie.mp4", data, 0o644))
	require.NoError(t, afero.WriteFile(mem, "/short.mp4", data[:50], 0o644))
	store := media.NewFileStore(mem, nil)
	if resolver == nil {
		resolver = media.NewDirResolver(store)
	}

	svc, err := streaming.NewService(resolver, store, streaming.Config{ChunkSizeBytes: 1 << 20}, nil, nil)
	require.NoError(t, err)

	router := NewRouter(Routes{
		Stream: handlers.NewStreamHandler(svc, time.Minute, nil),
		Health: handlers.NewHealthHandler(map[string]handlers.Pinger{"store": store}, nil),
		Admin:  handlers.NewAdminHandler(svc.Tracker()),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, svc: svc, data: data}
}

func (s *testServer) get(t *testing.T, path, rangeHeader string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.URL+path, nil)
	require.NoError(t, err)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	res, err := s.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, body
}

func TestRouterStreamsMovie(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name         string
		rangeHeader  string
		status       int
		contentRange string
		start, end   int
	}{
		{name: "full", status: http.StatusOK, start: 0, end: movieSize - 1},
		{name: "chunk from zero", rangeHeader: "bytes=0-", status: http.StatusPartialContent, contentRange: "bytes 0-1048575/5000000", start: 0, end: 1048575},
		{name: "client end ignored", rangeHeader: "bytes=100-199", status: http.StatusPartialContent, contentRange: "bytes 100-1048675/5000000", start: 100, end: 1048675},
		{name: "tail", rangeHeader: "bytes=4000000-", status: http.StatusPartialContent, contentRange: "bytes 4000000-4999999/5000000", start: 4000000, end: 4999999},
		{name: "last byte", rangeHeader: "bytes=4999999-", status: http.StatusPartialContent, contentRange: "bytes 4999999-4999999/5000000", start: 4999999, end: 4999999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, body := srv.get(t, "/videos/movie", tt.rangeHeader)
			require.Equal(t, tt.status, res.StatusCode)
			assert.Equal(t, "bytes", res.Header.Get("Accept-Ranges"))
			assert.Equal(t, "video/mp4", res.Header.Get("Content-Type"))
			assert.Equal(t, tt.contentRange, res.Header.Get("Content-Range"))
			assert.Equal(t, fmt.Sprint(tt.end-tt.start+1), res.Header.Get("Content-Length"))
			assert.Equal(t, srv.data[tt.start:tt.end+1], body)
			assert.NotEmpty(t, res.Header.Get(handlers.RequestIDHeader))
		})
	}
}

func TestRouterRejections(t *testing.T) {
	srv := newTestServer(t, nil)

	res, body := srv.get(t, "/videos/movie", "bytes=5000000-")
	require.Equal(t, http.StatusRequestedRangeNotSatisfiable, res.StatusCode)
	assert.Equal(t, "bytes */5000000", res.Header.Get("Content-Range"))
	var env models.ErrorEnvelope
	require.NoError(t, json.Unmarshal(body, &env))
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Message)

	res, body = srv.get(t, "/videos/missing", "")
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.NoError(t, json.Unmarshal(body, &env))
	assert.False(t, env.Success)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/videos/movie", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	assert.Zero(t, srv.svc.Tracker().Active())
}

func TestRouterCORSPreflight(t *testing.T) {
	srv := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/videos/movie", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://player.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, res.Header.Get("Access-Control-Allow-Headers"), "Range")
	assert.Contains(t, res.Header.Get("Access-Control-Expose-Headers"), "Content-Range")
}

func TestRouterHealthAndAdmin(t *testing.T) {
	srv := newTestServer(t, nil)

	res, _ := srv.get(t, "/health", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res, _ = srv.get(t, "/ready", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, body := srv.get(t, "/admin/streams", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var streams models.StreamsResponse
	require.NoError(t, json.Unmarshal(body, &streams))
	assert.Zero(t, streams.Count)
}

func TestRouterAbortsTruncatedStream(t *testing.T) {
	// The resolver reports a size larger than what the store can deliver.
	resolver := media.ResolverFunc(func(ctx context.Context, id string) (models.MediaResource, error) {
		return models.MediaResource{ID: id, Path: "/short.mp4", SizeBytes: 100, MimeType: "video/mp4"}, nil
	})
	srv := newTestServer(t, resolver)

	res, err := srv.Client().Get(srv.URL + "/videos/short")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.EqualValues(t, 100, res.ContentLength)

	body, err := io.ReadAll(res.Body)
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "got %v", err)
	assert.Less(t, len(body), 100)

	require.Eventually(t, func() bool { return srv.svc.Tracker().Active() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRouterClientDisconnectReleasesStream(t *testing.T) {
	srv := newTestServer(t, nil)

	res, err := srv.Client().Get(srv.URL + "/videos/movie")
	require.NoError(t, err)
	buf := make([]byte, 1024)
	_, err = io.ReadFull(res.Body, buf)
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())

	require.Eventually(t, func() bool { return srv.svc.Tracker().Active() == 0 }, 5*time.Second, 10*time.Millisecond)
}

// unreadableFs fails Stat or Open with a permission error.
type unreadableFs struct {
	afero.Fs
	failStat bool
}

func (u *unreadableFs) Stat(name string) (fs.FileInfo, error) {
	if u.failStat {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrPermission}
	}
	return u.Fs.Stat(name)
}

func (u *unreadableFs) Open(name string) (afero.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
}

func TestRouterUnreadableVideoIsNotFound(t *testing.T) {
	for _, failStat := range []bool{true, false} {
		mem := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(mem, "/locked.mp4", []byte("frames"), 0o644))
		store := media.NewFileStore(&unreadableFs{Fs: mem, failStat: failStat}, nil)

		svc, err := streaming.NewService(media.NewDirResolver(store), store, streaming.Config{ChunkSizeBytes: 1 << 20}, nil, nil)
		require.NoError(t, err)
		srv := httptest.NewServer(NewRouter(Routes{Stream: handlers.NewStreamHandler(svc, time.Minute, nil)}))

		res, err := srv.Client().Get(srv.URL + "/videos/locked")
		require.NoError(t, err)
		body, err := io.ReadAll(res.Body)
		res.Body.Close()
		srv.Close()
		require.NoError(t, err)

		assert.Equal(t, http.StatusNotFound, res.StatusCode, "failStat=%v", failStat)
		var env models.ErrorEnvelope
		require.NoError(t, json.Unmarshal(body, &env))
		assert.False(t, env.Success)
		assert.Equal(t, "video not found", env.Message)
	}
}
