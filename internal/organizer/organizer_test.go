// file: internal/organizer/organizer_test.go
// version: 1.3.0
// guid: 6b583598-59da-4321-ae13-6a710b6f2ebe

package organizer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jdfalk/playlist-archiver/internal/models"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean name", "My Song", "My Song"},
		{"path separators", "AC/DC", "AC_DC"},
		{"reserved chars", `Song: "Live"?`, "Song_ _Live__"},
		{"control chars stripped", "he\x00llo\x1f", "hello"},
		{"trailing dots trimmed", "Song...", "Song"},
		{"empty becomes untitled", "   ", "untitled"},
		{"long name capped", strings.Repeat("a", 250), strings.Repeat("a", 200)},
		{"long multibyte capped on rune boundary", strings.Repeat("界", 100), strings.Repeat("界", 66)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeName(tt.input); got != tt.expected {
				t.Errorf("sanitizeName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLibraryPath(t *testing.T) {
	org := New("/library", "/scratch")

	meta := &models.Metadata{
		Title:  "Song",
		Artist: []string{"Alice", "Bob"},
		Album:  models.StringPtr("Hits"),
	}
	got := org.LibraryPath(meta, "/scratch/vid.opus")
	want := filepath.Join("/library", "Alice; Bob", "Hits", "Song.opus")
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	// No album falls back to the title, no extension falls back to mp3.
	meta = &models.Metadata{Title: "Song", Artist: []string{"Alice"}}
	got = org.LibraryPath(meta, "/scratch/vid")
	want = filepath.Join("/library", "Alice", "Song", "Song.mp3")
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestMoveToLibrary(t *testing.T) {
	libraryDir := t.TempDir()
	scratchDir := t.TempDir()
	org := New(libraryDir, scratchDir)

	src := filepath.Join(scratchDir, "vid.opus")
	if err := os.WriteFile(src, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	meta := &models.Metadata{Title: "Song", Artist: []string{"Alice"}, Album: models.StringPtr("Hits")}
	dst, err := org.MoveToLibrary(src, meta)
	if err != nil {
		t.Fatalf("move: %v", err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source file still present after move")
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("destination missing: %v", err)
	}
	if string(data) != "audio" {
		t.Errorf("destination content: %q", data)
	}
	if want := filepath.Join(libraryDir, "Alice", "Hits", "Song.opus"); dst != want {
		t.Errorf("destination %s, want %s", dst, want)
	}
}

func TestRemoveRefusesOutsideManagedRoots(t *testing.T) {
	libraryDir := t.TempDir()
	scratchDir := t.TempDir()
	outside := t.TempDir()
	org := New(libraryDir, scratchDir)

	victim := filepath.Join(outside, "precious.txt")
	if err := os.WriteFile(victim, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := org.Remove(victim); err == nil {
		t.Fatal("expected refusal for path outside managed roots")
	}
	if _, err := os.Stat(victim); err != nil {
		t.Error("file outside managed roots was deleted")
	}

	// The roots themselves are off limits too.
	if err := org.Remove(libraryDir); err == nil {
		t.Error("expected refusal for the root itself")
	}
}

func TestRemovePrunesEmptyDirs(t *testing.T) {
	libraryDir := t.TempDir()
	org := New(libraryDir, t.TempDir())

	nested := filepath.Join(libraryDir, "Alice", "Hits")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(nested, "Song.opus")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := org.Remove(file); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(libraryDir, "Alice")); !os.IsNotExist(err) {
		t.Error("empty artist directory not pruned")
	}
	if _, err := os.Stat(libraryDir); err != nil {
		t.Error("library root must survive pruning")
	}

	// Removing an already-gone file is not an error.
	if err := org.Remove(file); err != nil {
		t.Errorf("second remove: %v", err)
	}
}
