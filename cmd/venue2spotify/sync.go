package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/toozej/venue2spotify/internal/pipeline"
	"github.com/toozej/venue2spotify/internal/report"
	"github.com/toozej/venue2spotify/internal/types"
	"github.com/toozej/venue2spotify/pkg/config"
)

// newSyncCmd creates the sync command for adding a venue's artists to a playlist.
func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Add a venue's upcoming artists to a Spotify playlist",
		Long: `Scrape the venue page for upcoming artists, look up each artist's top
tracks on Spotify and add the tracks missing from the playlist. Tracks already
in the playlist are never added twice, so running sync again is safe.`,
		Args: cobra.NoArgs,
		Run:  runSync,
	}

	cmd.Flags().StringP("url", "u", "", "Venue page URL (default $VENUE_URL)")
	cmd.Flags().StringP("selector", "s", "", "CSS selector for artist names (default $VENUE_SELECTOR)")
	cmd.Flags().StringP("playlist", "p", "", "Target playlist ID (default $SPOTIFY_PLAYLIST_ID)")
	cmd.Flags().BoolP("dry-run", "n", false, "Show what would be added without changing the playlist")
	cmd.Flags().Bool("clear", false, "Remove every track from the playlist before adding")
	cmd.Flags().String("new-playlist", "", "Create a private playlist with this name and add the tracks to it")
	cmd.Flags().IntP("limit", "l", 0, "Only process the first N artists (0 for all)")
	addFormatFlag(cmd)

	return cmd
}

// addFormatFlag registers the shared --format flag
func addFormatFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", report.FormatText, "Output format: "+strings.Join(report.Formats, ", "))
}

// flagOr returns the flag's value, or fallback when the flag is empty
func flagOr(cmd *cobra.Command, name, fallback string) string {
	value, _ := cmd.Flags().GetString(name)
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

// syncRequestFromFlags builds the sync request from flags, falling back to configuration
func syncRequestFromFlags(cmd *cobra.Command) (pipeline.Request, string, error) {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	clearFirst, _ := cmd.Flags().GetBool("clear")
	limit, _ := cmd.Flags().GetInt("limit")

	req := pipeline.Request{
		URL:        flagOr(cmd, "url", conf.Venue.URL),
		Selector:   flagOr(cmd, "selector", conf.Venue.Selector),
		PlaylistID: flagOr(cmd, "playlist", conf.Spotify.PlaylistID),
		DryRun:     dryRun,
		Clear:      clearFirst,
		Limit:      limit,
	}

	format, err := report.ValidateFormat(flagOr(cmd, "format", report.FormatText))
	if err != nil {
		return req, "", err
	}
	if req.URL == "" {
		return req, "", config.ErrMissingVenueURL
	}
	if cmd.Flags().Changed("new-playlist") {
		if cmd.Flags().Changed("playlist") || clearFirst {
			return req, "", errors.New("--new-playlist cannot be combined with --playlist or --clear")
		}
		req.PlaylistID = ""
		req.NewPlaylist = flagOr(cmd, "new-playlist", types.DefaultPlaylistName)
	}
	if req.PlaylistID == "" && req.NewPlaylist == "" {
		return req, "", config.ErrMissingPlaylistID
	}
	if limit < 0 {
		return req, "", errors.New("--limit must not be negative")
	}
	return req, format, nil
}

// runSync executes the sync command.
func runSync(cmd *cobra.Command, args []string) {
	req, format, err := syncRequestFromFlags(cmd)
	if err != nil {
		log.WithError(err).Fatal("Invalid sync options")
		return
	}

	log.WithFields(log.Fields{
		"url":          req.URL,
		"playlist_id":  req.PlaylistID,
		"new_playlist": req.NewPlaylist,
		"dry_run":      req.DryRun,
		"clear":        req.Clear,
	}).Info("Starting venue to Spotify sync")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	spotifySession, err := connectSpotify(ctx)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Spotify")
		return
	}
	defer spotifySession.Close()

	if err := executeSync(ctx, newPipeline(spotifySession.catalog), req, format, os.Stdout); err != nil {
		spotifySession.Close()
		log.WithError(err).Fatal("Sync failed")
	}
}

// executeSync runs the pipeline and writes the result. The result is written
// even when a later step failed, so partial progress is visible.
func executeSync(ctx context.Context, p *pipeline.Pipeline, req pipeline.Request, format string, out io.Writer) error {
	result, runErr := p.Run(ctx, req)

	if result != nil && (len(result.Artists) > 0 || runErr == nil) {
		if err := report.Result(out, format, result); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	return runErr
}
