// file: internal/library/store.go
// version: 1.4.0
// guid: 18946ff0-3ff7-4497-95a8-a1d71f2ee79c

// Package library holds the authoritative in-process view of every
// tracked video. All mutations flow through Upsert, which validates the
// lifecycle transition, stamps a strictly-increasing LastUpdate, persists
// the record, and publishes the committed value to subscribers.
package library

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jdfalk/playlist-archiver/internal/database"
	"github.com/jdfalk/playlist-archiver/internal/models"
)

// Publisher receives every committed mutation, in per-id commit order.
type Publisher interface {
	Publish(v models.Video)
}

// Mutator transforms a scratch copy of a video. Returning an error
// aborts the upsert without touching stored state.
type Mutator func(v *models.Video) error

// claim is one in-flight per-id operation. Waiters block on done.
type claim struct {
	done          chan struct{}
	pendingDelete bool
}

// Store is the record store. The mutex guards the map and claim table;
// it is never held across I/O other than the SQLite write inside Upsert,
// which is expected to be fast.
type Store struct {
	mu     sync.Mutex
	db     database.Store
	videos map[string]*models.Video
	claims map[string]*claim

	pub          Publisher
	onLateDelete func(id string)
}

// NewStore loads all persisted videos into memory.
func NewStore(db database.Store, pub Publisher) (*Store, error) {
	persisted, err := db.ListVideos()
	if err != nil {
		return nil, fmt.Errorf("failed to load video records: %w", err)
	}
	videos := make(map[string]*models.Video, len(persisted))
	for i := range persisted {
		v := persisted[i]
		videos[v.ID] = &v
	}
	return &Store{
		db:     db,
		videos: videos,
		claims: make(map[string]*claim),
		pub:    pub,
	}, nil
}

// OnLateDelete registers the callback invoked when a delete was requested
// while the id was claimed and the claim has now been released.
func (s *Store) OnLateDelete(fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLateDelete = fn
}

// Get returns a copy of one video.
func (s *Store) Get(id string) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return v.Clone(), nil
}

// List returns a copy of every video.
func (s *Store) List() []models.Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Video, 0, len(s.videos))
	for _, v := range s.videos {
		out = append(out, *v.Clone())
	}
	return out
}

// ListByStatus returns the ids of all videos in the given status.
func (s *Store) ListByStatus(status models.Status) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id, v := range s.videos {
		if v.Status == status {
			out = append(out, id)
		}
	}
	return out
}

// Create inserts a new video at NotFetched. It is a no-op returning
// false when the id is already tracked, so discovery never revisits
// existing items.
func (s *Store) Create(id string, seed Mutator) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[id]; ok {
		return false, nil
	}
	v := models.NewVideo(id)
	if seed != nil {
		if err := seed(v); err != nil {
			return false, err
		}
	}
	v.LastUpdate = s.nextUpdateTime(time.Time{})
	if err := s.db.SaveVideo(v); err != nil {
		return false, err
	}
	s.videos[id] = v
	if s.pub != nil {
		s.pub.Publish(*v.Clone())
	}
	return true, nil
}

// Upsert atomically applies the mutator to the video. An illegal status
// transition fails with models.ErrConflict; any mutator error propagates
// unchanged. On success the committed value has already been handed to
// the publisher, so subscribers see mutations in commit order per id.
func (s *Store) Upsert(id string, mutate Mutator) (old, updated *models.Video, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.videos[id]
	if !ok {
		return nil, nil, models.ErrNotFound
	}
	next := cur.Clone()
	if err := mutate(next); err != nil {
		return nil, nil, err
	}
	if next.ID != cur.ID {
		return nil, nil, fmt.Errorf("mutator must not change the video id")
	}
	if !cur.Status.CanTransition(next.Status) {
		return nil, nil, fmt.Errorf("%w: %s -> %s for %s",
			models.ErrConflict, cur.Status, next.Status, id)
	}
	next.LastUpdate = s.nextUpdateTime(cur.LastUpdate)
	if err := s.db.SaveVideo(next); err != nil {
		return nil, nil, err
	}
	old = cur
	s.videos[id] = next
	if s.pub != nil {
		s.pub.Publish(*next.Clone())
	}
	return old, next.Clone(), nil
}

// nextUpdateTime produces a timestamp strictly greater than prev even
// when the wall clock has not advanced between mutations.
func (s *Store) nextUpdateTime(prev time.Time) time.Time {
	now := time.Now()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

// Acquire takes the per-id claim, blocking while another stage operation
// or manual command holds it. The returned release function must be
// called exactly once.
func (s *Store) Acquire(ctx context.Context, id string) (func(), error) {
	for {
		s.mu.Lock()
		if c, held := s.claims[id]; held {
			done := c.done
			s.mu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		c := &claim{done: make(chan struct{})}
		s.claims[id] = c
		s.mu.Unlock()
		return func() { s.release(id, c) }, nil
	}
}

func (s *Store) release(id string, c *claim) {
	s.mu.Lock()
	late := c.pendingDelete
	fn := s.onLateDelete
	delete(s.claims, id)
	close(c.done)
	s.mu.Unlock()

	if late {
		if fn == nil {
			log.Printf("Deferred delete for %s dropped: no handler registered", id)
			return
		}
		// Applied after the in-flight operation committed, overriding
		// whatever status it set.
		go fn(id)
	}
}

// TryAcquireOrDefer is the claim path for delete commands. When the id
// is free it takes the claim and returns a release function. When the id
// is held by an in-flight operation it marks the claim instead; the
// registered late-delete handler runs once the claim is released, and
// the returned release is nil with deferred true.
func (s *Store) TryAcquireOrDefer(id string) (release func(), deferred bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, held := s.claims[id]; held {
		c.pendingDelete = true
		return nil, true
	}
	c := &claim{done: make(chan struct{})}
	s.claims[id] = c
	return func() { s.release(id, c) }, false
}
