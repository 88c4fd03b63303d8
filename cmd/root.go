// file: cmd/root.go
// version: 1.5.0
// guid: 44eaa2a9-00a1-4da7-9334-b57e0fbc647c

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jdfalk/playlist-archiver/internal/auth"
	"github.com/jdfalk/playlist-archiver/internal/brainz"
	"github.com/jdfalk/playlist-archiver/internal/config"
	"github.com/jdfalk/playlist-archiver/internal/database"
	"github.com/jdfalk/playlist-archiver/internal/discovery"
	"github.com/jdfalk/playlist-archiver/internal/downloader"
	"github.com/jdfalk/playlist-archiver/internal/library"
	"github.com/jdfalk/playlist-archiver/internal/models"
	"github.com/jdfalk/playlist-archiver/internal/organizer"
	"github.com/jdfalk/playlist-archiver/internal/pipeline"
	"github.com/jdfalk/playlist-archiver/internal/realtime"
	"github.com/jdfalk/playlist-archiver/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "playlist-archiver",
	Short: "Archive playlist audio with resolved music metadata",
	Long: `Playlist Archiver watches configured source playlists, extracts each
entry's audio into a scratch area, resolves proper track metadata against
MusicBrainz, tags the file, and archives it into an Artist/Album tree.

A web API exposes manual corrections, retries and a live change stream.`,
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the archiver daemon and web API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.AppConfig

		db, err := database.NewSQLiteStore(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		fmt.Printf("Using database: %s\n", cfg.DatabasePath)

		// The hub snapshots the store and the store publishes to the
		// hub, so the snapshot closure binds the store late.
		var store *library.Store
		hub := realtime.NewHub(func() []models.Video { return store.List() }, 0)
		store, err = library.NewStore(db, hub)
		if err != nil {
			return fmt.Errorf("failed to load video records: %w", err)
		}
		fmt.Printf("Tracking %d videos\n", len(store.List()))

		fetcher := downloader.New(db, cfg.ExtractorPath, cfg.ScratchDir, cfg.ExtractorRate, cfg.ExtractorTimeout)
		resolver := brainz.NewClient(db)
		enum := discovery.NewClient(cfg.YouTubeAPIKey)
		org := organizer.New(cfg.LibraryDir, cfg.ScratchDir)
		gate := auth.NewGate(db, cfg.TokenTTL)

		pipe := pipeline.New(store, db, enum, fetcher, resolver, org, pipeline.Config{
			DownloadWorkers: cfg.DownloadWorkers,
			MatchWorkers:    cfg.MatchWorkers,
			SyncInterval:    cfg.SyncInterval,
			MatchInterval:   cfg.MatchInterval,
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			pipe.Run(ctx)
		}()

		srv := server.New(gate, pipe, store, hub)
		srv.Start(server.Config{Host: cfg.ListenHost, Port: cfg.ListenPort})

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		if err := srv.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		cancel()
		<-done
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.playlist-archiver.yaml)")
	rootCmd.PersistentFlags().String("library", "", "directory for the archived music tree")
	rootCmd.PersistentFlags().String("scratch", "", "directory for downloaded, not yet archived audio")
	rootCmd.PersistentFlags().String("db", "", "path to the sqlite database")

	viper.BindPFlag("library_dir", rootCmd.PersistentFlags().Lookup("library"))
	viper.BindPFlag("scratch_dir", rootCmd.PersistentFlags().Lookup("scratch"))
	viper.BindPFlag("database_path", rootCmd.PersistentFlags().Lookup("db"))

	serveCmd.Flags().String("host", "", "host to bind the web server to")
	serveCmd.Flags().Int("port", 0, "port to run the web server on")
	viper.BindPFlag("listen_host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("listen_port", serveCmd.Flags().Lookup("port"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(playlistCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".playlist-archiver")
	}

	viper.SetEnvPrefix("ARCHIVER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}

	config.InitConfig()
}
