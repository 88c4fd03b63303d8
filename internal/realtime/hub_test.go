// file: internal/realtime/hub_test.go
// version: 1.3.0
// guid: 9ad4c48c-5862-4bd1-81db-19f2394b33cf

package realtime

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jdfalk/playlist-archiver/internal/metrics"
	"github.com/jdfalk/playlist-archiver/internal/models"
)

func video(id string, status models.Status, seq int) models.Video {
	return models.Video{
		ID:         id,
		Status:     status,
		LastUpdate: time.Unix(0, int64(seq)),
	}
}

func collect(t *testing.T, c <-chan Batch, timeout time.Duration) Batch {
	t.Helper()
	select {
	case b, ok := <-c:
		if !ok {
			t.Fatal("subscriber channel closed")
		}
		return b
	case <-time.After(timeout):
		t.Fatal("timed out waiting for batch")
		return Batch{}
	}
}

func TestSubscribeDeliversSnapshotFirst(t *testing.T) {
	state := []models.Video{video("a", models.StatusCategorized, 1)}
	hub := NewHub(func() []models.Video { return state }, 5*time.Millisecond)

	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub.ID)

	// A delta published immediately after subscribing must not overtake
	// the snapshot.
	hub.Publish(video("b", models.StatusFetched, 2))

	first := collect(t, sub.C, time.Second)
	if !first.Snapshot {
		t.Fatal("first batch was not a snapshot")
	}
	if len(first.Videos) != 1 || first.Videos[0].ID != "a" {
		t.Fatalf("snapshot content: %+v", first.Videos)
	}

	second := collect(t, sub.C, time.Second)
	if second.Snapshot {
		t.Fatal("second batch should be a delta")
	}
	if len(second.Videos) != 1 || second.Videos[0].ID != "b" {
		t.Fatalf("delta content: %+v", second.Videos)
	}
}

func TestCoalescingKeepsLatestPerID(t *testing.T) {
	hub := NewHub(func() []models.Video { return nil }, 50*time.Millisecond)
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub.ID)
	collect(t, sub.C, time.Second) // initial snapshot

	for i := 0; i < 10; i++ {
		hub.Publish(video("a", models.StatusNotFetched, i))
	}
	hub.Publish(video("a", models.StatusFetched, 10))
	hub.Publish(video("b", models.StatusNotFetched, 11))

	batch := collect(t, sub.C, time.Second)
	if batch.Snapshot {
		t.Fatal("expected a delta batch")
	}
	if len(batch.Videos) != 2 {
		t.Fatalf("expected 2 coalesced videos, got %d", len(batch.Videos))
	}
	for _, v := range batch.Videos {
		if v.ID == "a" && v.Status != models.StatusFetched {
			t.Errorf("coalescing kept stale value for a: %s", v.Status)
		}
	}
}

func TestOverflowResendsSnapshot(t *testing.T) {
	state := []models.Video{video("current", models.StatusCategorized, 99)}
	hub := NewHub(func() []models.Video { return state }, time.Millisecond)

	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub.ID)

	// Do not drain. Publishing distinct ids across many windows fills
	// the buffered channel until a flush is dropped.
	for i := 0; i < defaultBufferSize+16; i++ {
		hub.Publish(video("v"+string(rune('a'+i%26))+string(rune('a'+i/26)), models.StatusFetched, i))
		time.Sleep(3 * time.Millisecond)
	}

	// Drain everything currently queued, then wait for the recovery
	// snapshot that the overflow scheduled.
	deadline := time.After(2 * time.Second)
	sawInitial := false
	for {
		select {
		case b := <-sub.C:
			if b.Snapshot {
				if sawInitial {
					if len(b.Videos) != 1 || b.Videos[0].ID != "current" {
						t.Fatalf("recovery snapshot content: %+v", b.Videos)
					}
					return
				}
				sawInitial = true
			}
		case <-deadline:
			t.Fatal("never received recovery snapshot after overflow")
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(func() []models.Video { return nil }, time.Millisecond)
	sub := hub.Subscribe()
	if hub.Count() != 1 {
		t.Fatalf("count = %d, want 1", hub.Count())
	}

	hub.Unsubscribe(sub.ID)
	if hub.Count() != 0 {
		t.Fatalf("count = %d, want 0", hub.Count())
	}

	// Publishing after unsubscribe must not panic on the closed channel.
	hub.Publish(video("a", models.StatusFetched, 1))
	time.Sleep(10 * time.Millisecond)
}

func subscribersGaugeValue(t *testing.T) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() == "playlist_archiver_subscribers" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("subscribers gauge not registered")
	return 0
}

func TestSubscriberGaugeTracksConnections(t *testing.T) {
	metrics.Register()
	hub := NewHub(func() []models.Video { return nil }, time.Millisecond)
	base := subscribersGaugeValue(t)

	first := hub.Subscribe()
	second := hub.Subscribe()
	if got := subscribersGaugeValue(t); got != base+2 {
		t.Fatalf("gauge after two subscriptions = %v, want %v", got, base+2)
	}

	hub.Unsubscribe(first.ID)
	if got := subscribersGaugeValue(t); got != base+1 {
		t.Fatalf("gauge after one unsubscribe = %v, want %v", got, base+1)
	}
	hub.Unsubscribe(second.ID)
	if got := subscribersGaugeValue(t); got != base {
		t.Fatalf("gauge after all unsubscribed = %v, want %v", got, base)
	}
}
