// file: internal/models/video.go
// version: 1.3.0
// guid: 2f8d7209-40ba-4b5e-aa1b-8dd0a0c751db

package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a tracked video.
type Status int

const (
	StatusNotFetched Status = iota
	StatusFetched
	StatusFetchError
	StatusBrainzError
	StatusCategorized
	StatusDisabled
)

var statusNames = map[Status]string{
	StatusNotFetched:  "NotFetched",
	StatusFetched:     "Fetched",
	StatusFetchError:  "FetchError",
	StatusBrainzError: "BrainzError",
	StatusCategorized: "Categorized",
	StatusDisabled:    "Disabled",
}

// String returns the wire name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ParseStatus converts a wire name back into a Status.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return StatusNotFetched, fmt.Errorf("unknown status %q", name)
}

// MarshalJSON encodes the status by name.
func (s Status) MarshalJSON() ([]byte, error) {
	name, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("invalid status %d", int(s))
	}
	return json.Marshal(name)
}

// UnmarshalJSON decodes the status from its name.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Downloaded reports whether an audio file exists (or existed) for this status.
func (s Status) Downloaded() bool {
	return s != StatusNotFetched && s != StatusFetchError && s != StatusDisabled
}

// legalTransitions encodes the lifecycle graph. Same-status writes are
// always allowed so field-only mutations don't need a special case.
var legalTransitions = map[Status][]Status{
	StatusNotFetched:  {StatusFetched, StatusFetchError, StatusDisabled},
	StatusFetched:     {StatusCategorized, StatusBrainzError, StatusDisabled},
	StatusFetchError:  {StatusNotFetched, StatusDisabled},
	StatusBrainzError: {StatusNotFetched, StatusFetched, StatusDisabled},
	StatusCategorized: {StatusFetched, StatusDisabled},
	StatusDisabled:    {StatusNotFetched},
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SearchQuery is a metadata search request, either derived from the
// downloaded file or supplied by a human override.
type SearchQuery struct {
	TrackID *string `json:"trackid"`
	Title   string  `json:"title"`
	Artist  *string `json:"artist"`
	Album   *string `json:"album"`
}

// Metadata is a resolved MusicBrainz recording.
type Metadata struct {
	RecordingID *string  `json:"brainz_recording_id"`
	Title       string   `json:"title"`
	Artist      []string `json:"artist"`
	Album       *string  `json:"album"`
}

// Video is one tracked video/audio unit. LastQuery and LastResult are
// written only by the pipeline; OverrideQuery and OverrideResult only by
// manual commands. Nil override means "use the automatic path".
type Video struct {
	ID             string       `json:"video_id"`
	Status         Status       `json:"fetch_status"`
	FetchTime      *time.Time   `json:"fetch_time"`
	LastUpdate     time.Time    `json:"last_update"`
	LastQuery      *SearchQuery `json:"last_query"`
	LastResult     *Metadata    `json:"last_result"`
	LastError      *string      `json:"last_error"`
	OverrideQuery  *SearchQuery `json:"override_query"`
	OverrideResult *Metadata    `json:"override_result"`
}

// NewVideo creates a video at the initial lifecycle state.
func NewVideo(id string) *Video {
	return &Video{ID: id, Status: StatusNotFetched}
}

// Clone returns a deep copy so mutators can work on a scratch value.
func (v *Video) Clone() *Video {
	c := *v
	c.FetchTime = copyTime(v.FetchTime)
	c.LastQuery = v.LastQuery.clone()
	c.LastResult = v.LastResult.clone()
	c.LastError = copyString(v.LastError)
	c.OverrideQuery = v.OverrideQuery.clone()
	c.OverrideResult = v.OverrideResult.clone()
	return &c
}

func (q *SearchQuery) clone() *SearchQuery {
	if q == nil {
		return nil
	}
	c := *q
	c.TrackID = copyString(q.TrackID)
	c.Artist = copyString(q.Artist)
	c.Album = copyString(q.Album)
	return &c
}

func (m *Metadata) clone() *Metadata {
	if m == nil {
		return nil
	}
	c := *m
	c.RecordingID = copyString(m.RecordingID)
	c.Album = copyString(m.Album)
	c.Artist = append([]string(nil), m.Artist...)
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// StringPtr returns a pointer to s, or nil when s is empty after trimming.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
