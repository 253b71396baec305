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
	"github.com/toozej/venue2spotify/pkg/config"
)

// newArtistsCmd creates the artists command for listing a venue's artists.
func newArtistsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artists [query]",
		Short: "List the artists found on a venue page",
		Long: `Scrape the venue page and list the artist names found, without touching
Spotify. An optional query fuzzy-filters the list, which helps check a CSS
selector before running sync.`,
		Args: cobra.MaximumNArgs(1),
		Run:  runArtists,
	}

	cmd.Flags().StringP("url", "u", "", "Venue page URL (default $VENUE_URL)")
	cmd.Flags().StringP("selector", "s", "", "CSS selector for artist names (default $VENUE_SELECTOR)")
	addFormatFlag(cmd)

	return cmd
}

// runArtists executes the artists command.
func runArtists(cmd *cobra.Command, args []string) {
	query := ""
	if len(args) > 0 {
		query = strings.TrimSpace(args[0])
	}

	format, err := report.ValidateFormat(flagOr(cmd, "format", report.FormatText))
	if err != nil {
		log.WithError(err).Fatal("Invalid artists options")
		return
	}

	pageURL := flagOr(cmd, "url", conf.Venue.URL)
	selector := flagOr(cmd, "selector", conf.Venue.Selector)

	log.WithFields(log.Fields{"url": pageURL, "query": query}).Info("Listing venue artists")

	if err := executeArtists(context.Background(), newArtistSource(), pageURL, selector, query, format, os.Stdout); err != nil {
		log.WithError(err).Fatal("Failed to list artists")
	}
}

// executeArtists scrapes and writes the (optionally filtered) artist names
func executeArtists(ctx context.Context, source types.ArtistSource, pageURL, selector, query, format string, out io.Writer) error {
	if pageURL == "" {
		return config.ErrMissingVenueURL
	}

	artists := source.Scrape(ctx, pageURL, selector)
	if len(artists) == 0 {
		return fmt.Errorf("%w: %s", types.ErrSourceUnavailable, pageURL)
	}

	matches := search.FilterNames(query, artists)
	if len(matches) == 0 {
		log.WithField("query", query).Warn("No matching artists found")
	}
	return report.Artists(out, format, matches)
}
