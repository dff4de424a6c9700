package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose     bool
	serverFlag  string
	tokenFlag   string
	profileFlag string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notes",
	Short: "Personal notes from the terminal",
	Long: `notes keeps your notes on a notes server.
Sign in once with "notes login", then list, create, favourite, edit and
delete notes, or watch changes made from other devices as they happen.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Notes server URL (overrides the profile)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Session token (overrides NOTES_TOKEN and the profile)")
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "Profile file (default ~/.config/notes/profile.yaml)")
}
