// file: internal/downloader/ytdlp_test.go
// version: 1.2.0
// guid: c248cd44-55aa-498b-9186-6f6d53888a25

package downloader

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jdfalk/playlist-archiver/internal/database"
)

func TestFetchShortCircuitsOnCache(t *testing.T) {
	scratchDir := t.TempDir()
	db := &database.MockStore{}

	cached := Result{ID: "vid1", Title: "Song", Channel: "Chan"}
	raw, _ := json.Marshal(cached)
	if err := db.SetDownloadCache("vid1", string(raw)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(scratchDir, "vid1.opus"), []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The binary path is bogus; reaching the extractor would fail loud.
	d := New(db, "/nonexistent/yt-dlp", scratchDir, time.Millisecond, time.Second)

	res, err := d.Fetch(context.Background(), "vid1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Title != "Song" || res.Channel != "Chan" {
		t.Errorf("cached result: %+v", res)
	}
}

func TestFetchIgnoresCacheWithoutFile(t *testing.T) {
	db := &database.MockStore{}
	raw, _ := json.Marshal(Result{ID: "vid1", Title: "Song"})
	if err := db.SetDownloadCache("vid1", string(raw)); err != nil {
		t.Fatal(err)
	}

	d := New(db, "/nonexistent/yt-dlp", t.TempDir(), time.Millisecond, time.Second)
	if _, err := d.Fetch(context.Background(), "vid1"); err == nil {
		t.Fatal("expected failure when cached metadata has no audio file")
	}
}

func TestCachedMetadata(t *testing.T) {
	db := &database.MockStore{}
	d := New(db, "", t.TempDir(), 0, 0)

	if _, ok := d.CachedMetadata("missing"); ok {
		t.Error("expected cache miss")
	}

	if err := db.SetDownloadCache("bad", "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.CachedMetadata("bad"); ok {
		t.Error("expected miss for corrupt cache entry")
	}

	raw, _ := json.Marshal(Result{ID: "vid1", Track: strPtr("Proper Title")})
	if err := db.SetDownloadCache("vid1", string(raw)); err != nil {
		t.Fatal(err)
	}
	res, ok := d.CachedMetadata("vid1")
	if !ok || res.Track == nil || *res.Track != "Proper Title" {
		t.Errorf("cached metadata: ok=%v res=%+v", ok, res)
	}
}

func TestFindScratchFile(t *testing.T) {
	scratchDir := t.TempDir()
	d := New(&database.MockStore{}, "", scratchDir, 0, 0)

	if _, ok := d.FindScratchFile("vid1"); ok {
		t.Error("expected no file")
	}

	path := filepath.Join(scratchDir, "vid1.opus")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, ok := d.FindScratchFile("vid1")
	if !ok || got != path {
		t.Errorf("got %q ok=%v, want %q", got, ok, path)
	}

	// A staged partial download must not be visible.
	if _, ok := d.FindScratchFile("vid2"); ok {
		t.Error("unexpected match")
	}
	staged := filepath.Join(scratchDir, stagingDirName)
	if err := os.MkdirAll(staged, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(staged, "vid2.opus"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.FindScratchFile("vid2"); ok {
		t.Error("staging file leaked into scratch lookup")
	}
}

func TestPromote(t *testing.T) {
	scratchDir := t.TempDir()
	d := New(&database.MockStore{}, "", scratchDir, 0, 0)

	staging := filepath.Join(scratchDir, stagingDirName)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(staging, "vid1.opus"), []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := d.promote("vid1", staging); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if _, ok := d.FindScratchFile("vid1"); !ok {
		t.Error("promoted file not found in scratch")
	}

	if err := d.promote("vid-none", staging); err == nil {
		t.Error("expected error when extractor produced no file")
	}
}

func TestParseResult(t *testing.T) {
	res, err := parseResult([]byte(`{"id":"vid1","title":"Song","duration":180,"artist":"Alice"}`))
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != "vid1" || res.Duration != 180 || *res.Artist != "Alice" {
		t.Errorf("parsed: %+v", res)
	}

	if _, err := parseResult([]byte(`{"title":"no id"}`)); err == nil {
		t.Error("expected error for output without id")
	}
	if _, err := parseResult([]byte("garbage")); err == nil {
		t.Error("expected error for non-JSON output")
	}
}

func TestCompactMetadata(t *testing.T) {
	in := `{"id":"vid1","formats":[{"big":"blob"}],"thumbnails":[1,2],"title":"Song"}`
	out := compactMetadata([]byte(in))

	var m map[string]any
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("compacted output is not JSON: %v", err)
	}
	if _, ok := m["formats"]; ok {
		t.Error("formats not stripped")
	}
	if _, ok := m["thumbnails"]; ok {
		t.Error("thumbnails not stripped")
	}
	if m["id"] != "vid1" || m["title"] != "Song" {
		t.Errorf("payload fields lost: %v", m)
	}

	// Non-JSON input passes through untouched.
	if got := compactMetadata([]byte("raw")); got != "raw" {
		t.Errorf("passthrough: %q", got)
	}
}

func strPtr(s string) *string { return &s }
