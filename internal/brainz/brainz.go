// file: internal/brainz/brainz.go
// version: 1.4.0
// guid: 4a6c4ecb-3716-47b7-b40f-fb5be1041f8e

// Package brainz resolves authoritative music metadata through the
// MusicBrainz recording search API. Responses are cached by request URL
// so retries and reindex runs do not re-hit the service.
package brainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/time/rate"

	"github.com/jdfalk/playlist-archiver/internal/database"
	"github.com/jdfalk/playlist-archiver/internal/models"
)

const defaultBaseURL = "https://musicbrainz.org/ws/2"

// userAgent follows the MusicBrainz API etiquette requirements.
const userAgent = "playlist-archiver/1.0 ( https://github.com/jdfalk/playlist-archiver )"

// serviceBusyWait is the backoff after a 503 from the rate limiter side.
const serviceBusyWait = 10 * time.Second

// ErrNoResult means the search completed but matched nothing.
var ErrNoResult = errors.New("no matching recording found")

// artistSplitRe breaks combined artist credits ("A feat. B", "A & B").
var artistSplitRe = regexp.MustCompile(`\bft\.?|\bfeat\.?|;|&`)

var bracketReplacer = strings.NewReplacer("(", "", ")", "", "[", "", "]", "", "【", "", "】", "")

// Client queries the recording search endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	db         database.Store
	limiter    *rate.Limiter
}

// NewClient creates a search client rate-limited to one request per
// 1.5 seconds, per the service's anonymous usage policy.
func NewClient(db database.Store) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		db:         db,
		limiter:    rate.NewLimiter(rate.Every(1500*time.Millisecond), 1),
	}
}

// NewClientWithBaseURL creates a client with a custom base URL (for testing).
func NewClientWithBaseURL(db database.Store, baseURL string) *Client {
	c := NewClient(db)
	c.baseURL = strings.TrimRight(baseURL, "/")
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

// term is one quoted Lucene search term.
type term struct {
	field string
	value string
}

func (t term) encode() string {
	return fmt.Sprintf("%s:%q", t.field, t.value)
}

// recordingSearch is one candidate query plan.
type recordingSearch struct {
	title  string
	artist []string
	album  string
}

func (r recordingSearch) lucene() (string, error) {
	var parts []string
	if r.title != "" {
		parts = append(parts, term{"recording", r.title}.encode())
	}
	for _, a := range r.artist {
		if a != "" {
			parts = append(parts, term{"artist", a}.encode())
		}
	}
	if r.album != "" {
		parts = append(parts, term{"release", r.album}.encode())
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no query parameters provided")
	}
	return strings.Join(parts, " AND "), nil
}

// Resolve runs the query plans for q in order and returns the first
// search that yields a recording. A trackid skips planning entirely.
func (c *Client) Resolve(ctx context.Context, q models.SearchQuery) (*models.Metadata, error) {
	if q.TrackID != nil {
		return c.fetch(ctx, fmt.Sprintf("rid:%s", *q.TrackID), q.Title)
	}

	searches := planSearches(q)
	if len(searches) == 0 {
		return nil, ErrNoResult
	}

	// Nightcore uploads are never in MusicBrainz; short-circuit with a
	// synthetic result so they still get archived consistently.
	for _, s := range searches {
		for _, a := range s.artist {
			if strings.Contains(strings.ToUpper(a), "NIGHTCORE") {
				album := "Nightcore"
				return &models.Metadata{
					Title:  s.title,
					Artist: []string{"Nightcore"},
					Album:  &album,
				}, nil
			}
		}
	}

	var lastErr error
	for _, s := range searches {
		query, err := s.lucene()
		if err != nil {
			continue
		}
		log.Printf("Searching recordings by %q", query)
		result, err := c.fetch(ctx, query, q.Title)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrNoResult
	}
	return nil, lastErr
}

// planSearches layers query plans from most to least specific, the same
// ladder a human would climb: native metadata first, then both ways of
// reading an "Artist - Title" string.
func planSearches(q models.SearchQuery) []recordingSearch {
	var searches []recordingSearch

	artist := ""
	if q.Artist != nil {
		artist = *q.Artist
	}
	album := ""
	if q.Album != nil {
		album = *q.Album
	}

	if artist != "" || album != "" {
		var artists []string
		for _, a := range strings.Split(artist, ",") {
			if a = strings.TrimSpace(a); a != "" {
				artists = append(artists, a)
			}
		}
		searches = append(searches,
			recordingSearch{title: q.Title, artist: artists, album: album},
			recordingSearch{title: q.Title, artist: artists},
		)
	}

	if strings.Contains(q.Title, " - ") {
		parts := strings.SplitN(q.Title, " - ", 2)
		searches = append(searches,
			recordingSearch{title: parts[1], artist: splitArtists(parts[0])},
			recordingSearch{title: parts[0], artist: splitArtists(parts[1])},
		)
	}

	if len(searches) == 0 && q.Title != "" {
		searches = append(searches, recordingSearch{title: q.Title})
	}
	return searches
}

func splitArtists(s string) []string {
	var out []string
	for _, part := range artistSplitRe.Split(s, -1) {
		part = bracketReplacer.Replace(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

type recordingResponse struct {
	Recordings []recording `json:"recordings"`
}

type recording struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ArtistCredit []struct {
		Name string `json:"name"`
	} `json:"artist-credit"`
	Releases []struct {
		Title string `json:"title"`
	} `json:"releases"`
}

func (c *Client) fetch(ctx context.Context, query, wantTitle string) (*models.Metadata, error) {
	reqURL := fmt.Sprintf("%s/recording/?limit=3&fmt=json&query=%s", c.baseURL, url.QueryEscape(query))

	body, cached, err := c.db.GetSearchCache(reqURL)
	if err != nil {
		log.Printf("Warning: search cache read failed: %v", err)
	}
	if !cached {
		body, err = c.fetchRemote(ctx, reqURL)
		if err != nil {
			return nil, err
		}
		if err := c.db.SetSearchCache(reqURL, body); err != nil {
			log.Printf("Warning: search cache write failed: %v", err)
		}
	}

	var parsed recordingResponse
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	best := pickRecording(parsed.Recordings, wantTitle)
	if best == nil {
		return nil, ErrNoResult
	}

	meta := &models.Metadata{
		RecordingID: models.StringPtr(best.ID),
		Title:       best.Title,
	}
	for _, credit := range best.ArtistCredit {
		meta.Artist = append(meta.Artist, credit.Name)
	}
	if len(best.Releases) > 0 {
		meta.Album = models.StringPtr(best.Releases[0].Title)
	}
	return meta, nil
}

func (c *Client) fetchRemote(ctx context.Context, reqURL string) (string, error) {
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("search request failed: %w", err)
		}
		if resp.StatusCode == http.StatusServiceUnavailable {
			resp.Body.Close()
			log.Printf("Search service busy, backing off %s", serviceBusyWait)
			select {
			case <-time.After(serviceBusyWait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return "", fmt.Errorf("failed to read search response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("search service returned %d", resp.StatusCode)
		}
		return string(body), nil
	}
}

// pickRecording prefers the candidate whose title fuzzily matches the
// query title; ties and no-match fall back to the service's own ranking.
func pickRecording(recordings []recording, wantTitle string) *recording {
	if len(recordings) == 0 {
		return nil
	}
	if wantTitle != "" {
		ranked := fuzzy.RankFindNormalizedFold(wantTitle, recordingTitles(recordings))
		if len(ranked) > 0 {
			best := ranked[0]
			for _, r := range ranked[1:] {
				if r.Distance < best.Distance {
					best = r
				}
			}
			return &recordings[best.OriginalIndex]
		}
	}
	return &recordings[0]
}

func recordingTitles(recordings []recording) []string {
	titles := make([]string, len(recordings))
	for i, r := range recordings {
		titles[i] = r.Title
	}
	return titles
}
