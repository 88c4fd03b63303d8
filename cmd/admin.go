// file: cmd/admin.go
// version: 1.2.0
// guid: 04f52250-5a14-4f1a-8f92-cd1820cbdd8c

package cmd

import (
	"fmt"
	"os"

	"github.com/jdfalk/playlist-archiver/internal/auth"
	"github.com/jdfalk/playlist-archiver/internal/config"
	"github.com/jdfalk/playlist-archiver/internal/database"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// userCmd groups the account management subcommands
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage web API accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create an account, prompting for a password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.NewSQLiteStore(config.AppConfig.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		hash, err := auth.HashPassword(string(password))
		if err != nil {
			return err
		}
		if err := db.CreateUser(args[0], hash); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		fmt.Printf("Created user %s\n", args[0])
		return nil
	},
}

var userRemoveCmd = &cobra.Command{
	Use:   "remove <username>",
	Short: "Delete an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.NewSQLiteStore(config.AppConfig.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		n, err := db.DeleteUser(args[0])
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		if n == 0 {
			fmt.Printf("No such user %s\n", args[0])
			return nil
		}
		fmt.Printf("Removed user %s\n", args[0])
		return nil
	},
}

// playlistCmd groups the source playlist subcommands
var playlistCmd = &cobra.Command{
	Use:   "playlist",
	Short: "Manage watched source playlists",
}

var playlistAddCmd = &cobra.Command{
	Use:   "add <playlist-id>",
	Short: "Watch a playlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.NewSQLiteStore(config.AppConfig.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.AddPlaylist(database.PlaylistConfig{PlaylistID: args[0], Enabled: true}); err != nil {
			return fmt.Errorf("failed to add playlist: %w", err)
		}
		fmt.Printf("Watching playlist %s\n", args[0])
		return nil
	},
}

var playlistRemoveCmd = &cobra.Command{
	Use:   "remove <playlist-id>",
	Short: "Stop watching a playlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.NewSQLiteStore(config.AppConfig.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.RemovePlaylist(args[0]); err != nil {
			return fmt.Errorf("failed to remove playlist: %w", err)
		}
		fmt.Printf("Stopped watching playlist %s\n", args[0])
		return nil
	},
}

var playlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched playlists",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.NewSQLiteStore(config.AppConfig.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		playlists, err := db.ListPlaylists()
		if err != nil {
			return fmt.Errorf("failed to list playlists: %w", err)
		}
		if len(playlists) == 0 {
			fmt.Println("No playlists configured")
			return nil
		}
		for _, p := range playlists {
			state := "enabled"
			if !p.Enabled {
				state = "disabled"
			}
			fmt.Printf("%s\t%s\n", p.PlaylistID, state)
		}
		return nil
	},
}

func init() {
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userRemoveCmd)
	playlistCmd.AddCommand(playlistAddCmd)
	playlistCmd.AddCommand(playlistRemoveCmd)
	playlistCmd.AddCommand(playlistListCmd)
}
