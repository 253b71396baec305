package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/toozej/venue2spotify/internal/pipeline"
	"github.com/toozej/venue2spotify/internal/report"
	"github.com/toozej/venue2spotify/pkg/config"
)

// newClearCmd creates the clear command for emptying a playlist.
func newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every track from a Spotify playlist",
		Long: `Remove every track from a playlist you own or collaborate on. Playlists
you can only follow are refused before anything is changed.`,
		Args: cobra.NoArgs,
		Run:  runClear,
	}

	cmd.Flags().StringP("playlist", "p", "", "Target playlist ID (default $SPOTIFY_PLAYLIST_ID)")
	addFormatFlag(cmd)

	return cmd
}

// runClear executes the clear command.
func runClear(cmd *cobra.Command, args []string) {
	playlistID := flagOr(cmd, "playlist", conf.Spotify.PlaylistID)
	if playlistID == "" {
		log.WithError(config.ErrMissingPlaylistID).Fatal("Invalid clear options")
		return
	}
	format, err := report.ValidateFormat(flagOr(cmd, "format", report.FormatText))
	if err != nil {
		log.WithError(err).Fatal("Invalid clear options")
		return
	}

	ctx := context.Background()
	spotifySession, err := connectSpotify(ctx)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Spotify")
		return
	}
	defer spotifySession.Close()

	if err := executeClear(ctx, newPipeline(spotifySession.catalog), playlistID, format, os.Stdout); err != nil {
		spotifySession.Close()
		log.WithError(err).Fatal("Clear failed")
	}
}

// executeClear clears the playlist and writes the outcome
func executeClear(ctx context.Context, p *pipeline.Pipeline, playlistID, format string, out io.Writer) error {
	outcome, err := p.Clear(ctx, playlistID)
	if err != nil {
		return fmt.Errorf("failed to clear playlist %s: %w", playlistID, err)
	}
	return report.Outcome(out, format, playlistID, outcome)
}
