package streaming

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mediastream/internal/httprange"
	"mediastream/models"
)

// Tracker records in-flight streams. An entry lives from the moment a read
// handle is opened until that handle is released.
type Tracker struct {
	mu      sync.RWMutex
	streams map[string]*trackedStream
	now     func() time.Time
}

type trackedStream struct {
	info       models.StreamInfo
	bytes      atomic.Int64
	lastAccess atomic.Int64
}

func NewTracker() *Tracker {
	return &Tracker{
		streams: make(map[string]*trackedStream),
		now:     time.Now,
	}
}

// register adds a stream and returns its id together with the hooks the
// body calls on every read and on release.
func (t *Tracker) register(req Request, res models.MediaResource, w httprange.Window, partial bool) (string, func(int), func()) {
	now := t.now()
	ts := &trackedStream{
		info: models.StreamInfo{
			ID:            uuid.NewString(),
			ResourceID:    res.ID,
			Path:          res.Path,
			Start:         w.Start,
			End:           w.End,
			ContentLength: w.Length(),
			Partial:       partial,
			ClientIP:      req.ClientIP,
			UserAgent:     req.UserAgent,
			CreatedAt:     now,
		},
	}
	ts.lastAccess.Store(now.UnixNano())

	t.mu.Lock()
	t.streams[ts.info.ID] = ts
	t.mu.Unlock()

	record := func(n int) {
		ts.bytes.Add(int64(n))
		ts.lastAccess.Store(t.now().UnixNano())
	}
	done := func() {
		t.mu.Lock()
		delete(t.streams, ts.info.ID)
		t.mu.Unlock()
	}
	return ts.info.ID, record, done
}

// Active returns the number of streams holding an open read handle.
func (t *Tracker) Active() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.streams)
}

// Snapshot returns the in-flight streams ordered by start time.
func (t *Tracker) Snapshot() []models.StreamInfo {
	t.mu.RLock()
	out := make([]models.StreamInfo, 0, len(t.streams))
	for _, ts := range t.streams {
		info := ts.info
		info.BytesStreamed = ts.bytes.Load()
		info.LastAccess = time.Unix(0, ts.lastAccess.Load())
		out = append(out, info)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
