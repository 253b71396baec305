package cmd

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/toozej/venue2spotify/internal/pipeline"
	"github.com/toozej/venue2spotify/internal/spotify"
	"github.com/toozej/venue2spotify/internal/types"
	"github.com/toozej/venue2spotify/internal/venue"
)

// spotifySession is an authenticated catalog plus a hook that saves the
// token if it was refreshed while in use
type spotifySession struct {
	client  *spotify.Client
	catalog *spotify.Catalog
}

// Close persists a refreshed token
func (s *spotifySession) Close() {
	s.client.PersistRefreshed(s.catalog)
}

// connectSpotify loads the saved token, running the browser flow when there is
// none, and returns a catalog acting as the user.
func connectSpotify(ctx context.Context) (*spotifySession, error) {
	client, err := spotify.NewClient(conf.Spotify, log.StandardLogger())
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify client: %w", err)
	}

	if !client.HasToken() {
		log.Info("Spotify authentication required. Starting authentication flow...")
		if err := authenticateSpotify(ctx, client, conf.Server.Address()); err != nil {
			return nil, fmt.Errorf("failed to authenticate with Spotify: %w", err)
		}
		log.Info("Spotify authentication completed successfully")
	}

	catalog, err := client.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return &spotifySession{client: client, catalog: catalog}, nil
}

// newArtistSource builds the venue scraper from configuration
func newArtistSource() types.ArtistSource {
	return venue.NewScraper(conf.Venue, log.StandardLogger())
}

// newPipeline wires the venue scraper to catalog using configuration
func newPipeline(catalog types.CatalogClient) *pipeline.Pipeline {
	return pipeline.New(newArtistSource(), catalog, conf.Sync, nil, log.StandardLogger())
}
