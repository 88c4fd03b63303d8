// file: internal/realtime/hub.go
// version: 1.6.0
// guid: 4907a383-42e0-42da-824b-a7121c7f5ccb

// Package realtime fans out record store mutations to live subscribers.
// Each subscriber gets one full snapshot, then coalesced per-id deltas:
// rapid mutations to the same id inside the batching window collapse to
// the latest value only. Slow subscribers never block store mutations;
// on buffer overflow the subscriber is flagged and the next flush
// resends a full snapshot instead of the lost deltas.
package realtime

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jdfalk/playlist-archiver/internal/metrics"
	"github.com/jdfalk/playlist-archiver/internal/models"
)

// DefaultBatchWindow is how long deltas are coalesced before delivery.
const DefaultBatchWindow = 100 * time.Millisecond

// defaultBufferSize bounds the per-subscriber batch queue.
const defaultBufferSize = 32

// Batch is one delivery unit. Snapshot batches replace the subscriber's
// whole view; delta batches merge by video id using LastUpdate as the
// client-side tie-break.
type Batch struct {
	Snapshot bool           `json:"snapshot"`
	Videos   []models.Video `json:"videos"`
}

// Subscriber is one connected observer with an independent cursor.
type Subscriber struct {
	ID string
	C  <-chan Batch

	ch      chan Batch
	mu      sync.Mutex
	pending map[string]models.Video
	timer   *time.Timer
	lost    bool
	closed  bool
}

// SnapshotFunc supplies the current full store state.
type SnapshotFunc func() []models.Video

// Hub manages subscribers. It implements library.Publisher.
type Hub struct {
	mu       sync.RWMutex
	subs     map[string]*Subscriber
	window   time.Duration
	snapshot SnapshotFunc
}

// NewHub creates a hub. The snapshot function is called once per
// subscription and again whenever a subscriber overflowed.
func NewHub(snapshot SnapshotFunc, window time.Duration) *Hub {
	if window <= 0 {
		window = DefaultBatchWindow
	}
	return &Hub{
		subs:     make(map[string]*Subscriber),
		window:   window,
		snapshot: snapshot,
	}
}

// Subscribe registers a subscriber and queues its initial snapshot. The
// snapshot reflects store state at subscription time and is delivered
// before any delta.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		ID:      uuid.NewString(),
		ch:      make(chan Batch, defaultBufferSize),
		pending: make(map[string]models.Video),
	}
	sub.C = sub.ch

	// Snapshot goes into the channel before the subscriber is visible to
	// Publish, so no delta can overtake it.
	sub.ch <- Batch{Snapshot: true, Videos: h.snapshot()}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	h.mu.Unlock()
	metrics.SetSubscribers(h.Count())
	log.Printf("Subscriber %s registered, total: %d", sub.ID, h.Count())
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if !ok {
		return
	}

	sub.mu.Lock()
	sub.closed = true
	if sub.timer != nil {
		sub.timer.Stop()
	}
	sub.mu.Unlock()
	close(sub.ch)
	metrics.SetSubscribers(h.Count())
	log.Printf("Subscriber %s unregistered, remaining: %d", id, h.Count())
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish records a committed mutation for every subscriber. Called
// synchronously from the store; it only buffers and arms timers, so it
// never blocks on subscriber I/O.
func (h *Hub) Publish(v models.Video) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		sub.enqueue(v, h.window, h)
	}
}

func (s *Subscriber) enqueue(v models.Video, window time.Duration, h *Hub) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	// Latest value per id wins inside the window.
	s.pending[v.ID] = v
	if s.timer == nil {
		s.timer = time.AfterFunc(window, func() { s.flush(h) })
	}
}

func (s *Subscriber) flush(h *Hub) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	lost := s.lost
	s.lost = false
	videos := make([]models.Video, 0, len(s.pending))
	for _, v := range s.pending {
		videos = append(videos, v)
	}
	s.pending = make(map[string]models.Video)
	s.mu.Unlock()

	// The snapshot call reaches back into the store, so it must not run
	// under the subscriber lock (Publish holds locks the other way).
	var batch Batch
	if lost {
		batch = Batch{Snapshot: true, Videos: h.snapshot()}
	} else {
		batch = Batch{Videos: videos}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- batch:
	default:
		// Subscriber is not draining. Drop everything and schedule a
		// snapshot resend for when it catches up.
		s.lost = true
		if s.timer == nil {
			s.timer = time.AfterFunc(h.window, func() { s.flush(h) })
		}
		log.Printf("Subscriber %s buffer full, will resend snapshot", s.ID)
	}
}
