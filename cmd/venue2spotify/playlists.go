package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/toozej/venue2spotify/internal/report"
	"github.com/toozej/venue2spotify/internal/search"
	"github.com/toozej/venue2spotify/internal/types"
)

// newPlaylistsCmd creates the playlists command.
func newPlaylistsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playlists [query]",
		Short: "List the Spotify playlists you can add tracks to",
		Long: `List the playlists you own or collaborate on, with their IDs for use with
--playlist. An optional query fuzzy-filters by name.`,
		Args: cobra.MaximumNArgs(1),
		Run:  runPlaylists,
	}
	addFormatFlag(cmd)
	return cmd
}

// runPlaylists executes the playlists command.
func runPlaylists(cmd *cobra.Command, args []string) {
	query := ""
	if len(args) > 0 {
		query = strings.TrimSpace(args[0])
	}

	format, err := report.ValidateFormat(flagOr(cmd, "format", report.FormatText))
	if err != nil {
		log.WithError(err).Fatal("Invalid playlists options")
		return
	}

	ctx := context.Background()
	spotifySession, err := connectSpotify(ctx)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Spotify")
		return
	}
	defer spotifySession.Close()

	if err := executePlaylists(ctx, spotifySession.catalog, query, format, os.Stdout); err != nil {
		spotifySession.Close()
		log.WithError(err).Fatal("Failed to list playlists")
	}
}

// executePlaylists lists and writes the modifiable playlists matching query
func executePlaylists(ctx context.Context, browser types.PlaylistBrowser, query, format string, out io.Writer) error {
	playlists, err := browser.ModifiablePlaylists(ctx)
	if err != nil {
		return fmt.Errorf("failed to list playlists: %w", err)
	}
	return report.Playlists(out, format, search.FilterPlaylists(query, playlists))
}
