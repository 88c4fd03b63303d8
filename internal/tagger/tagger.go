// file: internal/tagger/tagger.go
// version: 1.2.0
// guid: ecdc5a1a-f11e-4b8d-a3b9-c5e3695a8087

// Package tagger writes resolved metadata into audio files and reads it
// back. Writing goes through TagLib; reading uses the pure-Go tag parser
// so library scans don't pay the native call cost.
package tagger

import (
	"fmt"
	"os"
	"strings"

	"github.com/dhowden/tag"
	taglib "go.senan.xyz/taglib"

	"github.com/jdfalk/playlist-archiver/internal/models"
)

// Tag keys for provenance. VideoIDTag lets a library scan map an
// archived file back to its source video without a database lookup.
const (
	VideoIDTag     = "YOUTUBE_ID"
	RecordingIDTag = "MUSICBRAINZ_TRACKID"
)

// artistSeparator joins multiple artist credits into one tag value.
const artistSeparator = "; "

// WriteTags applies the resolved metadata to the audio file in place.
func WriteTags(path, videoID string, meta *models.Metadata) error {
	tags := map[string][]string{
		taglib.Title:  {meta.Title},
		taglib.Artist: {strings.Join(meta.Artist, artistSeparator)},
		VideoIDTag:    {videoID},
	}
	if meta.Album != nil {
		tags[taglib.Album] = []string{*meta.Album}
		tags[taglib.AlbumArtist] = []string{strings.Join(meta.Artist, artistSeparator)}
	}
	if meta.RecordingID != nil {
		tags[RecordingIDTag] = []string{*meta.RecordingID}
	}
	if err := taglib.WriteTags(path, tags, 0); err != nil {
		return fmt.Errorf("failed to write tags to %s: %w", path, err)
	}
	return nil
}

// ReadVideoID extracts the embedded source video id, if present.
func ReadVideoID(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return "", false
	}
	for key, value := range meta.Raw() {
		if !strings.EqualFold(normalizeRawKey(key), VideoIDTag) {
			continue
		}
		if s, ok := value.(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// normalizeRawKey strips container-specific key decoration, e.g. the
// "TXXX:" prefix ID3 uses for user-defined text frames.
func normalizeRawKey(key string) string {
	if idx := strings.LastIndex(key, ":"); idx >= 0 {
		return key[idx+1:]
	}
	return key
}
