package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mediastream/models"
)

type fakePinger struct {
	err    error
	called bool
}

func (f *fakePinger) Ping(ctx context.Context) error {
	f.called = true
	return f.err
}

func TestHealthHandlerReadiness(t *testing.T) {
	store := &fakePinger{}
	handler := NewHealthHandler(map[string]Pinger{"store": store}, nil)

	rec := httptest.NewRecorder()
	handler.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !store.called {
		t.Fatalf("expected store to be pinged")
	}
}

func TestHealthHandlerNotReady(t *testing.T) {
	handler := NewHealthHandler(map[string]Pinger{"catalog": &fakePinger{err: errors.New("locked")}}, nil)

	rec := httptest.NewRecorder()
	handler.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	var env models.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if env.Success || env.Message != "catalog not ready" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestHealthHandlerLiveness(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(nil, nil).Liveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

type fakeStreamLister struct {
	streams []models.StreamInfo
}

func (f *fakeStreamLister) Snapshot() []models.StreamInfo { return f.streams }

func TestAdminHandlerGetActiveStreams(t *testing.T) {
	now := time.Now()
	lister := &fakeStreamLister{streams: []models.StreamInfo{
		{ID: "a", ResourceID: "movie", Partial: true, CreatedAt: now},
		{ID: "b", ResourceID: "movie", Partial: false, CreatedAt: now},
		{ID: "c", ResourceID: "trailer", Partial: true, CreatedAt: now},
	}}

	rec := httptest.NewRecorder()
	NewAdminHandler(lister).GetActiveStreams(rec, httptest.NewRequest(http.MethodGet, "/admin/streams", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp models.StreamsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 3 || resp.Partial != 2 || resp.Full != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestWithRequestID(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("generated id %q, header %q", seen, rec.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc-123" {
		t.Fatalf("inbound id not reused: %q", seen)
	}
}
