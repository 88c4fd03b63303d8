// file: internal/database/sqlite_store.go
// version: 1.3.0
// guid: 148ef55b-1b6f-4374-90a8-fdce44458353

package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jdfalk/playlist-archiver/internal/models"
)

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// churn under the worker pools.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS videos (
			video_id TEXT PRIMARY KEY,
			fetch_status INTEGER NOT NULL DEFAULT 0,
			fetch_time INTEGER,
			last_update INTEGER,
			last_query TEXT,
			last_result TEXT,
			last_error TEXT,
			override_query TEXT,
			override_result TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS playlists (
			playlist_id TEXT PRIMARY KEY,
			enabled INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS download_cache (
			video_id TEXT PRIMARY KEY,
			response TEXT NOT NULL,
			fetched_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS search_cache (
			url TEXT PRIMARY KEY,
			response TEXT NOT NULL,
			fetched_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS kvp (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetVideo loads one video. Returns models.ErrNotFound for unknown ids.
func (s *SQLiteStore) GetVideo(id string) (*models.Video, error) {
	row := s.db.QueryRow(`SELECT video_id, fetch_status, fetch_time, last_update,
		last_query, last_result, last_error, override_query, override_result
		FROM videos WHERE video_id = ?`, id)
	v, err := scanVideo(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load video %s: %w", id, err)
	}
	return v, nil
}

// ListVideos returns every tracked video.
func (s *SQLiteStore) ListVideos() ([]models.Video, error) {
	rows, err := s.db.Query(`SELECT video_id, fetch_status, fetch_time, last_update,
		last_query, last_result, last_error, override_query, override_result
		FROM videos ORDER BY video_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var out []models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video row: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// SaveVideo inserts or replaces the full record.
func (s *SQLiteStore) SaveVideo(v *models.Video) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO videos
		(video_id, fetch_status, fetch_time, last_update, last_query,
		 last_result, last_error, override_query, override_result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, int(v.Status), timeToMicros(v.FetchTime), unixMicros(v.LastUpdate),
		marshalNullable(v.LastQuery), marshalNullable(v.LastResult),
		v.LastError, marshalNullable(v.OverrideQuery), marshalNullable(v.OverrideResult))
	if err != nil {
		return fmt.Errorf("failed to save video %s: %w", v.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(r rowScanner) (*models.Video, error) {
	var (
		v                        models.Video
		status                   int
		fetchTime, lastUpdate    sql.NullInt64
		lastQuery, lastResult    sql.NullString
		lastError                sql.NullString
		overrideQ, overrideR     sql.NullString
	)
	if err := r.Scan(&v.ID, &status, &fetchTime, &lastUpdate, &lastQuery,
		&lastResult, &lastError, &overrideQ, &overrideR); err != nil {
		return nil, err
	}
	v.Status = models.Status(status)
	if fetchTime.Valid {
		t := time.UnixMicro(fetchTime.Int64)
		v.FetchTime = &t
	}
	if lastUpdate.Valid {
		v.LastUpdate = time.UnixMicro(lastUpdate.Int64)
	}
	if lastError.Valid {
		v.LastError = &lastError.String
	}
	if err := unmarshalNullable(lastQuery, &v.LastQuery); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(lastResult, &v.LastResult); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(overrideQ, &v.OverrideQuery); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(overrideR, &v.OverrideResult); err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateUser stores a user with an already-hashed password.
func (s *SQLiteStore) CreateUser(username, passwordHash string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", username, err)
	}
	return nil
}

// GetUser loads a user by name; nil when absent.
func (s *SQLiteStore) GetUser(username string) (*User, error) {
	var u User
	err := s.db.QueryRow(`SELECT username, password_hash FROM users WHERE username = ?`,
		username).Scan(&u.Username, &u.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", username, err)
	}
	return &u, nil
}

// DeleteUser removes a user and returns the number of rows deleted.
func (s *SQLiteStore) DeleteUser(username string) (int, error) {
	res, err := s.db.Exec(`DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user %s: %w", username, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ListPlaylists returns every configured discovery source.
func (s *SQLiteStore) ListPlaylists() ([]PlaylistConfig, error) {
	rows, err := s.db.Query(`SELECT playlist_id, enabled FROM playlists ORDER BY playlist_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	defer rows.Close()

	var out []PlaylistConfig
	for rows.Next() {
		var cfg PlaylistConfig
		if err := rows.Scan(&cfg.PlaylistID, &cfg.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan playlist row: %w", err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// AddPlaylist registers a discovery source.
func (s *SQLiteStore) AddPlaylist(cfg PlaylistConfig) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO playlists (playlist_id, enabled) VALUES (?, ?)`,
		cfg.PlaylistID, cfg.Enabled)
	if err != nil {
		return fmt.Errorf("failed to add playlist %s: %w", cfg.PlaylistID, err)
	}
	return nil
}

// RemovePlaylist unregisters a discovery source.
func (s *SQLiteStore) RemovePlaylist(playlistID string) error {
	_, err := s.db.Exec(`DELETE FROM playlists WHERE playlist_id = ?`, playlistID)
	if err != nil {
		return fmt.Errorf("failed to remove playlist %s: %w", playlistID, err)
	}
	return nil
}

// GetDownloadCache returns the cached extractor JSON for a video.
func (s *SQLiteStore) GetDownloadCache(videoID string) (string, bool, error) {
	return s.cacheGet(`SELECT response FROM download_cache WHERE video_id = ?`, videoID)
}

// SetDownloadCache stores the extractor JSON for a video.
func (s *SQLiteStore) SetDownloadCache(videoID, response string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO download_cache (video_id, response, fetched_at)
		VALUES (?, ?, ?)`, videoID, response, time.Now().UnixMicro())
	if err != nil {
		return fmt.Errorf("failed to cache download response: %w", err)
	}
	return nil
}

// GetSearchCache returns the cached search response for a request URL.
func (s *SQLiteStore) GetSearchCache(url string) (string, bool, error) {
	return s.cacheGet(`SELECT response FROM search_cache WHERE url = ?`, url)
}

// SetSearchCache stores a search response keyed by request URL.
func (s *SQLiteStore) SetSearchCache(url, response string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO search_cache (url, response, fetched_at)
		VALUES (?, ?, ?)`, url, response, time.Now().UnixMicro())
	if err != nil {
		return fmt.Errorf("failed to cache search response: %w", err)
	}
	return nil
}

func (s *SQLiteStore) cacheGet(query, key string) (string, bool, error) {
	var response string
	err := s.db.QueryRow(query, key).Scan(&response)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cache: %w", err)
	}
	return response, true, nil
}

// GetKey reads a setting from the kv table.
func (s *SQLiteStore) GetKey(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kvp WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return value, true, nil
}

// SetKey writes a setting to the kv table.
func (s *SQLiteStore) SetKey(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO kvp (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

func marshalNullable(v any) any {
	switch t := v.(type) {
	case *models.SearchQuery:
		if t == nil {
			return nil
		}
	case *models.Metadata:
		if t == nil {
			return nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(data)
}

func unmarshalNullable[T any](col sql.NullString, dst **T) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	var v T
	if err := json.Unmarshal([]byte(col.String), &v); err != nil {
		return fmt.Errorf("failed to decode stored JSON: %w", err)
	}
	*dst = &v
	return nil
}

func timeToMicros(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMicro()
}

func unixMicros(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMicro()
}
