// file: internal/database/mock_store.go
// version: 1.2.0
// guid: 3d311a36-44cd-4b85-bbbf-02acfb174950

package database

import (
	"sync"

	"github.com/jdfalk/playlist-archiver/internal/models"
)

// MockStore is an in-memory Store for tests. Every method can be
// overridden with a func field; unset fields fall back to a simple
// map-backed implementation, so stateful tests work out of the box.
type MockStore struct {
	GetVideoFunc   func(id string) (*models.Video, error)
	ListVideosFunc func() ([]models.Video, error)
	SaveVideoFunc  func(v *models.Video) error

	CreateUserFunc func(username, passwordHash string) error
	GetUserFunc    func(username string) (*User, error)
	DeleteUserFunc func(username string) (int, error)

	ListPlaylistsFunc  func() ([]PlaylistConfig, error)
	AddPlaylistFunc    func(cfg PlaylistConfig) error
	RemovePlaylistFunc func(playlistID string) error

	GetDownloadCacheFunc func(videoID string) (string, bool, error)
	SetDownloadCacheFunc func(videoID, response string) error
	GetSearchCacheFunc   func(url string) (string, bool, error)
	SetSearchCacheFunc   func(url, response string) error

	GetKeyFunc func(key string) (string, bool, error)
	SetKeyFunc func(key, value string) error

	mu            sync.Mutex
	videos        map[string]*models.Video
	users         map[string]User
	playlists     []PlaylistConfig
	downloadCache map[string]string
	searchCache   map[string]string
	kvp           map[string]string
}

var _ Store = (*MockStore)(nil)

func (m *MockStore) init() {
	if m.videos == nil {
		m.videos = make(map[string]*models.Video)
		m.users = make(map[string]User)
		m.downloadCache = make(map[string]string)
		m.searchCache = make(map[string]string)
		m.kvp = make(map[string]string)
	}
}

func (m *MockStore) GetVideo(id string) (*models.Video, error) {
	if m.GetVideoFunc != nil {
		return m.GetVideoFunc(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	v, ok := m.videos[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return v.Clone(), nil
}

func (m *MockStore) ListVideos() ([]models.Video, error) {
	if m.ListVideosFunc != nil {
		return m.ListVideosFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	out := make([]models.Video, 0, len(m.videos))
	for _, v := range m.videos {
		out = append(out, *v.Clone())
	}
	return out, nil
}

func (m *MockStore) SaveVideo(v *models.Video) error {
	if m.SaveVideoFunc != nil {
		return m.SaveVideoFunc(v)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	m.videos[v.ID] = v.Clone()
	return nil
}

func (m *MockStore) CreateUser(username, passwordHash string) error {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(username, passwordHash)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	m.users[username] = User{Username: username, PasswordHash: passwordHash}
	return nil
}

func (m *MockStore) GetUser(username string) (*User, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(username)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MockStore) DeleteUser(username string) (int, error) {
	if m.DeleteUserFunc != nil {
		return m.DeleteUserFunc(username)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	if _, ok := m.users[username]; !ok {
		return 0, nil
	}
	delete(m.users, username)
	return 1, nil
}

func (m *MockStore) ListPlaylists() ([]PlaylistConfig, error) {
	if m.ListPlaylistsFunc != nil {
		return m.ListPlaylistsFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	out := make([]PlaylistConfig, len(m.playlists))
	copy(out, m.playlists)
	return out, nil
}

func (m *MockStore) AddPlaylist(cfg PlaylistConfig) error {
	if m.AddPlaylistFunc != nil {
		return m.AddPlaylistFunc(cfg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	for i, p := range m.playlists {
		if p.PlaylistID == cfg.PlaylistID {
			m.playlists[i] = cfg
			return nil
		}
	}
	m.playlists = append(m.playlists, cfg)
	return nil
}

func (m *MockStore) RemovePlaylist(playlistID string) error {
	if m.RemovePlaylistFunc != nil {
		return m.RemovePlaylistFunc(playlistID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	for i, p := range m.playlists {
		if p.PlaylistID == playlistID {
			m.playlists = append(m.playlists[:i], m.playlists[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MockStore) GetDownloadCache(videoID string) (string, bool, error) {
	if m.GetDownloadCacheFunc != nil {
		return m.GetDownloadCacheFunc(videoID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	v, ok := m.downloadCache[videoID]
	return v, ok, nil
}

func (m *MockStore) SetDownloadCache(videoID, response string) error {
	if m.SetDownloadCacheFunc != nil {
		return m.SetDownloadCacheFunc(videoID, response)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	m.downloadCache[videoID] = response
	return nil
}

func (m *MockStore) GetSearchCache(url string) (string, bool, error) {
	if m.GetSearchCacheFunc != nil {
		return m.GetSearchCacheFunc(url)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	v, ok := m.searchCache[url]
	return v, ok, nil
}

func (m *MockStore) SetSearchCache(url, response string) error {
	if m.SetSearchCacheFunc != nil {
		return m.SetSearchCacheFunc(url, response)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	m.searchCache[url] = response
	return nil
}

func (m *MockStore) GetKey(key string) (string, bool, error) {
	if m.GetKeyFunc != nil {
		return m.GetKeyFunc(key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	v, ok := m.kvp[key]
	return v, ok, nil
}

func (m *MockStore) SetKey(key, value string) error {
	if m.SetKeyFunc != nil {
		return m.SetKeyFunc(key, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	m.kvp[key] = value
	return nil
}

func (m *MockStore) Close() error { return nil }
