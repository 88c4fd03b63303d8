// file: internal/discovery/youtube.go
// version: 1.2.0
// guid: 8a580502-7579-451b-b9dd-51acc5013fe8

// Package discovery enumerates configured playlists through the YouTube
// Data API and yields an ordered, deduplicated sequence of video ids.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// pageSize is the API maximum for playlistItems.
const pageSize = 50

// Item is one enumerated playlist entry. Title and Channel seed the
// first automatic search query.
type Item struct {
	VideoID string
	Title   string
	Channel string
}

// Client calls the YouTube Data API with an API key.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a playlist enumeration client.
func NewClient(apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
	}
}

// NewClientWithBaseURL creates a client with a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type playlistItemsResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		Snippet struct {
			Title                  string `json:"title"`
			VideoOwnerChannelTitle string `json:"videoOwnerChannelTitle"`
			ResourceID             struct {
				VideoID string `json:"videoId"`
			} `json:"resourceId"`
		} `json:"snippet"`
	} `json:"items"`
}

// PlaylistItems enumerates every entry of a playlist, following page
// tokens, preserving playlist order and dropping duplicate video ids.
func (c *Client) PlaylistItems(ctx context.Context, playlistID string) ([]Item, error) {
	var (
		out       []Item
		seen      = make(map[string]bool)
		pageToken string
	)
	for {
		page, err := c.fetchPage(ctx, playlistID, pageToken)
		if err != nil {
			return nil, err
		}
		for _, entry := range page.Items {
			id := entry.Snippet.ResourceID.VideoID
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, Item{
				VideoID: id,
				Title:   entry.Snippet.Title,
				Channel: entry.Snippet.VideoOwnerChannelTitle,
			})
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) fetchPage(ctx context.Context, playlistID, pageToken string) (*playlistItemsResponse, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("playlistId", playlistID)
	params.Set("maxResults", fmt.Sprintf("%d", pageSize))
	params.Set("key", c.apiKey)
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	reqURL := fmt.Sprintf("%s/playlistItems?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlist %s: %w", playlistID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("playlist %s enumeration returned %d: %s",
			playlistID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var page playlistItemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode playlist response: %w", err)
	}
	return &page, nil
}
