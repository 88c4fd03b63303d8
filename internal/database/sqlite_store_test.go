// file: internal/database/sqlite_store_test.go
// version: 1.2.0
// guid: ca1ab7a9-40b4-4a0e-8876-9f690547dd0f

package database

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/jdfalk/playlist-archiver/internal/models"
)

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestVideoRoundTrip(t *testing.T) {
	store := newSQLite(t)

	fetchTime := time.Now().Truncate(time.Microsecond)
	v := &models.Video{
		ID:         "abc",
		Status:     models.StatusBrainzError,
		FetchTime:  &fetchTime,
		LastUpdate: fetchTime.Add(time.Second),
		LastQuery: &models.SearchQuery{
			Title:  "Alice - Song",
			Artist: models.StringPtr("AliceVEVO"),
		},
		LastError:      models.StringPtr("no matching recording found"),
		OverrideResult: &models.Metadata{Title: "X", Artist: []string{"Y", "Z"}},
	}
	if err := store.SaveVideo(v); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.GetVideo("abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got.LastQuery, v.LastQuery) {
		t.Errorf("lastQuery: %+v, want %+v", got.LastQuery, v.LastQuery)
	}
	if !reflect.DeepEqual(got.OverrideResult, v.OverrideResult) {
		t.Errorf("overrideResult: %+v, want %+v", got.OverrideResult, v.OverrideResult)
	}
	if got.Status != models.StatusBrainzError {
		t.Errorf("status: %s", got.Status)
	}
	if got.FetchTime == nil || !got.FetchTime.Equal(fetchTime) {
		t.Errorf("fetchTime: %v, want %v", got.FetchTime, fetchTime)
	}
	if !got.LastUpdate.Equal(v.LastUpdate) {
		t.Errorf("lastUpdate: %v, want %v", got.LastUpdate, v.LastUpdate)
	}
	if got.LastResult != nil || got.OverrideQuery != nil {
		t.Errorf("nil columns came back non-nil: %+v", got)
	}

	// Save is an upsert.
	v.Status = models.StatusNotFetched
	v.LastError = nil
	if err := store.SaveVideo(v); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetVideo("abc")
	if got.Status != models.StatusNotFetched || got.LastError != nil {
		t.Errorf("upsert did not replace: %+v", got)
	}

	videos, err := store.ListVideos()
	if err != nil || len(videos) != 1 {
		t.Fatalf("list: %v (%d rows)", err, len(videos))
	}

	if _, err := store.GetVideo("nope"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing video: %v, want ErrNotFound", err)
	}
}

func TestUserCRUD(t *testing.T) {
	store := newSQLite(t)

	if err := store.CreateUser("admin", "hash1"); err != nil {
		t.Fatal(err)
	}
	u, err := store.GetUser("admin")
	if err != nil || u == nil || u.PasswordHash != "hash1" {
		t.Fatalf("get user: %+v, %v", u, err)
	}

	u, err = store.GetUser("ghost")
	if err != nil || u != nil {
		t.Fatalf("missing user should be nil, nil: %+v, %v", u, err)
	}

	n, err := store.DeleteUser("admin")
	if err != nil || n != 1 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}
	n, err = store.DeleteUser("admin")
	if err != nil || n != 0 {
		t.Fatalf("second delete: n=%d err=%v", n, err)
	}
}

func TestPlaylistConfigs(t *testing.T) {
	store := newSQLite(t)

	store.AddPlaylist(PlaylistConfig{PlaylistID: "PL2", Enabled: true})
	store.AddPlaylist(PlaylistConfig{PlaylistID: "PL1", Enabled: false})

	got, err := store.ListPlaylists()
	if err != nil {
		t.Fatal(err)
	}
	want := []PlaylistConfig{{PlaylistID: "PL1", Enabled: false}, {PlaylistID: "PL2", Enabled: true}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("playlists: %+v, want %+v", got, want)
	}

	if err := store.RemovePlaylist("PL1"); err != nil {
		t.Fatal(err)
	}
	got, _ = store.ListPlaylists()
	if len(got) != 1 || got[0].PlaylistID != "PL2" {
		t.Errorf("after remove: %+v", got)
	}
}

func TestCachesAndKeys(t *testing.T) {
	store := newSQLite(t)

	if _, ok, err := store.GetDownloadCache("vid"); ok || err != nil {
		t.Fatalf("empty download cache: ok=%v err=%v", ok, err)
	}
	store.SetDownloadCache("vid", `{"id":"vid"}`)
	if body, ok, _ := store.GetDownloadCache("vid"); !ok || body != `{"id":"vid"}` {
		t.Errorf("download cache: ok=%v body=%s", ok, body)
	}

	store.SetSearchCache("http://x/q=1", "resp")
	if body, ok, _ := store.GetSearchCache("http://x/q=1"); !ok || body != "resp" {
		t.Errorf("search cache: ok=%v body=%s", ok, body)
	}

	if _, ok, _ := store.GetKey("secret"); ok {
		t.Error("unexpected key")
	}
	store.SetKey("secret", "v1")
	store.SetKey("secret", "v2")
	if value, ok, _ := store.GetKey("secret"); !ok || value != "v2" {
		t.Errorf("key: ok=%v value=%s", ok, value)
	}
}
