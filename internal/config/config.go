// file: internal/config/config.go
// version: 1.2.0
// guid: be510ad3-799c-41dd-9d6f-4f163288e8f2

package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	LibraryDir   string
	ScratchDir   string
	DatabasePath string

	ListenHost string
	ListenPort int

	YouTubeAPIKey string
	ExtractorPath string

	DownloadWorkers int
	MatchWorkers    int

	SyncInterval     time.Duration
	MatchInterval    time.Duration
	ExtractorRate    time.Duration
	ExtractorTimeout time.Duration

	TokenTTL time.Duration
}

var AppConfig Config

// InitConfig initializes the application configuration
func InitConfig() {
	viper.SetDefault("library_dir", "music")
	viper.SetDefault("scratch_dir", "temp")
	viper.SetDefault("database_path", "playlist-archiver.db")
	viper.SetDefault("listen_host", "0.0.0.0")
	viper.SetDefault("listen_port", 3001)
	viper.SetDefault("extractor_path", "yt-dlp")
	viper.SetDefault("download_workers", 2)
	viper.SetDefault("match_workers", 2)
	viper.SetDefault("sync_interval", 5*time.Minute)
	viper.SetDefault("match_interval", time.Hour)
	viper.SetDefault("extractor_rate", 10*time.Second)
	viper.SetDefault("extractor_timeout", 10*time.Minute)
	viper.SetDefault("token_ttl", 24*time.Hour)

	AppConfig = Config{
		LibraryDir:       viper.GetString("library_dir"),
		ScratchDir:       viper.GetString("scratch_dir"),
		DatabasePath:     viper.GetString("database_path"),
		ListenHost:       viper.GetString("listen_host"),
		ListenPort:       viper.GetInt("listen_port"),
		YouTubeAPIKey:    viper.GetString("youtube_api_key"),
		ExtractorPath:    viper.GetString("extractor_path"),
		DownloadWorkers:  viper.GetInt("download_workers"),
		MatchWorkers:     viper.GetInt("match_workers"),
		SyncInterval:     viper.GetDuration("sync_interval"),
		MatchInterval:    viper.GetDuration("match_interval"),
		ExtractorRate:    viper.GetDuration("extractor_rate"),
		ExtractorTimeout: viper.GetDuration("extractor_timeout"),
		TokenTTL:         viper.GetDuration("token_ttl"),
	}

	if AppConfig.DownloadWorkers <= 0 {
		AppConfig.DownloadWorkers = 1
	}
	if AppConfig.MatchWorkers <= 0 {
		AppConfig.MatchWorkers = 1
	}
}
