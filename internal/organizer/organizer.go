// file: internal/organizer/organizer.go
// version: 1.4.0
// guid: 1e7add67-8cd8-4a39-ab02-895b8b0cd603

// Package organizer owns the final library tree. Files land under
// Artist/Album/Title.ext, moved atomically when possible, and file
// removal is restricted to the managed roots.
package organizer

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jdfalk/playlist-archiver/internal/models"
	"github.com/jdfalk/playlist-archiver/internal/tagger"
)

// Organizer manages the library and scratch storage roots.
type Organizer struct {
	libraryDir string
	scratchDir string
}

// New creates an organizer over the two managed roots.
func New(libraryDir, scratchDir string) *Organizer {
	return &Organizer{libraryDir: libraryDir, scratchDir: scratchDir}
}

// LibraryPath computes the destination for a resolved recording,
// keeping the source file's extension.
func (o *Organizer) LibraryPath(meta *models.Metadata, srcPath string) string {
	title := sanitizeName(meta.Title)
	artist := sanitizeName(strings.Join(meta.Artist, "; "))
	album := title
	if meta.Album != nil {
		album = sanitizeName(*meta.Album)
	}
	ext := strings.TrimPrefix(filepath.Ext(srcPath), ".")
	if ext == "" {
		ext = "mp3"
	}
	return filepath.Join(o.libraryDir, artist, album, fmt.Sprintf("%s.%s", title, ext))
}

// MoveToLibrary relocates a tagged file into its final location.
// Rename is tried first; cross-device moves fall back to copy+remove.
// Either way there is never a moment where a partial file sits at the
// destination path under its final name.
func (o *Organizer) MoveToLibrary(srcPath string, meta *models.Metadata) (string, error) {
	dst := o.LibraryPath(meta, srcPath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create library directory: %w", err)
	}

	if err := os.Rename(srcPath, dst); err == nil {
		o.cleanupDirs(srcPath)
		return dst, nil
	}

	if err := copyFileAtomic(srcPath, dst); err != nil {
		return "", fmt.Errorf("failed to move file into library: %w", err)
	}
	if err := o.Remove(srcPath); err != nil {
		return "", fmt.Errorf("failed to remove source after copy: %w", err)
	}
	return dst, nil
}

// copyFileAtomic copies via a temp name in the destination directory and
// renames into place when the copy is complete.
func copyFileAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".copy-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, dst)
}

// Remove deletes a file and prunes any directories it leaves empty.
// Paths outside the managed roots are refused.
func (o *Organizer) Remove(path string) error {
	if !o.managed(path) {
		return fmt.Errorf("refusing to delete %s: outside managed storage", path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	o.cleanupDirs(path)
	return nil
}

// FindLibraryFile scans the library tree for the file carrying the
// given embedded video id.
func (o *Organizer) FindLibraryFile(videoID string) (string, bool) {
	var found string
	_ = filepath.WalkDir(o.libraryDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || found != "" {
			return nil
		}
		if id, ok := tagger.ReadVideoID(path); ok && id == videoID {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	return found, found != ""
}

// managed reports whether path sits strictly inside a managed root.
func (o *Organizer) managed(path string) bool {
	for _, root := range []string{o.libraryDir, o.scratchDir} {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}
		if rel != "." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != ".." {
			return true
		}
	}
	return false
}

// cleanupDirs removes now-empty parent directories up to (but never
// including) a managed root.
func (o *Organizer) cleanupDirs(path string) {
	dir := filepath.Dir(path)
	for o.managed(dir) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// sanitizeName makes a metadata value safe as a path component.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20:
			// control characters dropped
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	out = strings.Trim(out, ".")
	if len(out) > 200 {
		cut := 200
		// Backing up keeps the truncation on a rune boundary.
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
	}
	if out == "" {
		out = "untitled"
	}
	return out
}
