// Package cmd provides command-line interface functionality for the venue2spotify application.
//
// This package implements the root command and manages the command-line interface
// using the cobra library. It handles configuration, logging setup, and command
// execution for the venue2spotify application.
//
// The package integrates with several components:
//   - Configuration management through pkg/config
//   - Scraping, resolution and reconciliation through internal/pipeline
//   - The browser front end through internal/web
//   - Manual pages through pkg/man
//   - Version information through pkg/version
//
// Example usage:
//
//	import "github.com/toozej/venue2spotify/cmd/venue2spotify"
//
//	func main() {
//		cmd.Execute()
//	}
package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/toozej/venue2spotify/pkg/config"
	"github.com/toozej/venue2spotify/pkg/man"
	"github.com/toozej/venue2spotify/pkg/version"
)

// conf holds the application configuration loaded from environment variables.
// It is populated before any command runs and flags override parts of it.
var (
	conf config.Config
	// debug controls the logging level for the application.
	// When true, debug-level logging is enabled through logrus.
	debug bool
)

// rootCmd defines the base command for the venue2spotify CLI application.
// It serves as the entry point for all command-line operations and establishes
// the application's structure, flags, and subcommands.
var rootCmd = &cobra.Command{
	Use:              "venue2spotify",
	Short:            "Add a venue's upcoming artists to a Spotify playlist",
	Long:             `venue2spotify scrapes a concert venue's web page for upcoming artists, looks up each artist's top tracks on Spotify, and adds the ones missing from a playlist you own or collaborate on. It runs once from the command line or as a small web application.`,
	Args:             cobra.ExactArgs(0),
	PersistentPreRun: rootCmdPreRun,
	Run:              rootCmdRun,
}

// rootCmdRun is the main execution function for the root command.
// It points the user at the subcommands.
func rootCmdRun(cmd *cobra.Command, args []string) {
	log.Info("Use 'venue2spotify sync' to add a venue's artists to a Spotify playlist")
	log.Info("Use 'venue2spotify serve' to start the web application")
}

// rootCmdPreRun performs setup operations before executing the root command.
// This function is called before both the root command and any subcommands.
//
// It loads configuration and, when debug mode is enabled, sets logrus to
// DebugLevel for detailed logging output.
func rootCmdPreRun(cmd *cobra.Command, args []string) {
	conf = config.GetEnvVars()
	if debug {
		log.SetLevel(log.DebugLevel)
	}
}

// Execute starts the command-line interface execution.
// This is the main entry point called from main.go to begin command processing.
//
// If command execution fails, it prints the error message to stdout and
// exits the program with status code 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}

// init defines the persistent flags and registers the subcommands.
//
// The debug flag (-d, --debug) enables debug-level logging and is persistent,
// meaning it's inherited by all subcommands.
func init() {
	// create rootCmd-level flags
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug-level logging")

	// add sub-commands
	rootCmd.AddCommand(
		newSyncCmd(),
		newClearCmd(),
		newArtistsCmd(),
		newPlaylistsCmd(),
		newServeCmd(),
		man.NewManCmd(),
		version.Command(),
	)
}
