// file: internal/downloader/ytdlp.go
// version: 1.3.0
// guid: b942355b-c24f-432e-91e7-e1bc71e12aa0

// Package downloader drives the external audio extraction tool. Files
// are produced in a staging directory and renamed into the scratch area
// only when complete, so later stages never see a partial download.
package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jdfalk/playlist-archiver/internal/database"
)

// stagingDirName lives inside the scratch root; renames out of it stay
// on the same filesystem and therefore atomic.
const stagingDirName = ".partial"

// Result is the extractor's metadata for a finished download.
type Result struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Channel  string  `json:"channel"`
	Duration int     `json:"duration"`
	Album    *string `json:"album"`
	Artist   *string `json:"artist"`
	Track    *string `json:"track"`
}

// Downloader invokes yt-dlp with a minimum delay between calls.
type Downloader struct {
	db         database.Store
	binary     string
	scratchDir string
	limiter    *rate.Limiter
	timeout    time.Duration
}

// New creates a downloader. minInterval is the minimum wait between
// extractor invocations; timeout bounds a single invocation.
func New(db database.Store, binary, scratchDir string, minInterval, timeout time.Duration) *Downloader {
	if binary == "" {
		binary = "yt-dlp"
	}
	if minInterval <= 0 {
		minInterval = 10 * time.Second
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Downloader{
		db:         db,
		binary:     binary,
		scratchDir: scratchDir,
		limiter:    rate.NewLimiter(rate.Every(minInterval), 1),
		timeout:    timeout,
	}
}

// CachedMetadata returns the stored extractor metadata, if any.
func (d *Downloader) CachedMetadata(videoID string) (*Result, bool) {
	raw, ok, err := d.db.GetDownloadCache(videoID)
	if err != nil || !ok {
		return nil, false
	}
	var res Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, false
	}
	return &res, true
}

// Fetch extracts the audio for one video into the scratch area and
// returns the tool's metadata. A cached metadata entry with the audio
// file still present short-circuits the call.
func (d *Downloader) Fetch(ctx context.Context, videoID string) (*Result, error) {
	if res, ok := d.CachedMetadata(videoID); ok {
		if _, found := d.FindScratchFile(videoID); found {
			return res, nil
		}
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	staging := filepath.Join(d.scratchDir, stagingDirName)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	log.Printf("Extracting audio for %s", videoID)
	cmd := exec.CommandContext(ctx, d.binary,
		"--quiet",
		"--dump-json",
		"--no-simulate",
		"--extract-audio",
		"--format", "ba",
		"--sponsorblock-remove", "music_offtopic",
		"--use-extractors", "youtube",
		"--output", "%(id)s.%(ext)s",
		fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID),
	)
	cmd.Dir = staging

	stdout, err := cmd.Output()
	if err != nil {
		detail := extractorError(err)
		log.Printf("Extractor failed for %s: %s", videoID, detail)
		return nil, fmt.Errorf("extractor failed: %s", detail)
	}

	res, err := parseResult(stdout)
	if err != nil {
		return nil, err
	}
	if err := d.db.SetDownloadCache(videoID, compactMetadata(stdout)); err != nil {
		log.Printf("Warning: failed to cache extractor metadata for %s: %v", videoID, err)
	}

	if err := d.promote(videoID, staging); err != nil {
		return nil, err
	}
	return res, nil
}

// promote moves the finished file from staging into the scratch root.
func (d *Downloader) promote(videoID, staging string) error {
	matches, err := filepath.Glob(filepath.Join(staging, videoID+".*"))
	if err != nil || len(matches) == 0 {
		return fmt.Errorf("extractor produced no file for %s", videoID)
	}
	for _, src := range matches {
		dst := filepath.Join(d.scratchDir, filepath.Base(src))
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("failed to promote %s: %w", src, err)
		}
	}
	return nil
}

// FindScratchFile locates the downloaded audio file for a video id.
func (d *Downloader) FindScratchFile(videoID string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(d.scratchDir, videoID+".*"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

func parseResult(stdout []byte) (*Result, error) {
	var res Result
	if err := json.Unmarshal(stdout, &res); err != nil {
		return nil, fmt.Errorf("failed to decode extractor output: %w", err)
	}
	if res.ID == "" {
		return nil, fmt.Errorf("extractor output missing video id")
	}
	return &res, nil
}

// compactMetadata strips the bulky format listings before caching.
func compactMetadata(stdout []byte) string {
	var full map[string]json.RawMessage
	if err := json.Unmarshal(stdout, &full); err != nil {
		return string(stdout)
	}
	for _, key := range []string{"formats", "heatmap", "requested_formats", "automatic_captions", "thumbnails"} {
		delete(full, key)
	}
	compact, err := json.Marshal(full)
	if err != nil {
		return string(stdout)
	}
	return string(compact)
}

func extractorError(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return strings.TrimSpace(string(exitErr.Stderr))
	}
	return err.Error()
}
