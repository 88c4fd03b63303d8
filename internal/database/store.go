// file: internal/database/store.go
// version: 1.1.0
// guid: 1b362ac7-c637-4ece-93cc-7b6120b4cebe

package database

import "github.com/jdfalk/playlist-archiver/internal/models"

// User is an account allowed to issue manual commands.
type User struct {
	Username     string
	PasswordHash string
}

// PlaylistConfig is one configured discovery source.
type PlaylistConfig struct {
	PlaylistID string
	Enabled    bool
}

// Store defines persistence operations. It exists so handlers and the
// pipeline can be tested against a mock instead of a real SQLite file.
type Store interface {
	// Videos
	GetVideo(id string) (*models.Video, error)
	ListVideos() ([]models.Video, error)
	SaveVideo(v *models.Video) error

	// Users
	CreateUser(username, passwordHash string) error
	GetUser(username string) (*User, error)
	DeleteUser(username string) (int, error)

	// Discovery sources
	ListPlaylists() ([]PlaylistConfig, error)
	AddPlaylist(cfg PlaylistConfig) error
	RemovePlaylist(playlistID string) error

	// External-service response caches
	GetDownloadCache(videoID string) (string, bool, error)
	SetDownloadCache(videoID, response string) error
	GetSearchCache(url string) (string, bool, error)
	SetSearchCache(url, response string) error

	// Key/value settings (signing secret lives here)
	GetKey(key string) (string, bool, error)
	SetKey(key, value string) error

	Close() error
}
