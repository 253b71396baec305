package spotify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/toozej/venue2spotify/internal/types"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// pageSize is the largest page the playlist items endpoint returns
const pageSize = 100

// Options tune how the catalog adapter talks to the Web API.
type Options struct {
	// Market is the country code for top tracks, e.g. "US".
	Market string
	// CallTimeout bounds every API call. Zero disables it.
	CallTimeout time.Duration
	// RateLimit is requests per second; zero disables client-side limiting.
	RateLimit float64
}

// Catalog adapts a zmb3 client to types.CatalogClient and types.PlaylistBrowser.
type Catalog struct {
	client      *spotify.Client
	market      string
	callTimeout time.Duration
	limiter     *rate.Limiter
	logger      *logrus.Logger
}

// NewCatalog wraps an authenticated client
func NewCatalog(client *spotify.Client, opts Options, logger *logrus.Logger) *Catalog {
	c := &Catalog{
		client:      client,
		market:      opts.Market,
		callTimeout: opts.CallTimeout,
		logger:      logger,
	}
	if c.market == "" {
		c.market = spotify.CountryUSA
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(1, int(opts.RateLimit)))
	}
	return c
}

// Token returns the client's current token, which may have been refreshed
// since the client was built.
func (c *Catalog) Token() (*oauth2.Token, error) {
	return c.client.Token()
}

// begin applies the per-call timeout and waits for a rate limiter slot
func (c *Catalog) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	var cancel context.CancelFunc
	if c.callTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			cancel()
			return nil, nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}
	return ctx, cancel, nil
}

// SearchArtist returns the top artist match for name, or nil when there is none
func (c *Catalog) SearchArtist(ctx context.Context, name string) (*types.Artist, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	results, err := c.client.Search(ctx, name, spotify.SearchTypeArtist, spotify.Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to search for artist %q: %w", name, err)
	}

	if results.Artists == nil || len(results.Artists.Artists) == 0 {
		c.logger.WithFields(logrus.Fields{
			"component": "spotify_catalog",
			"operation": "search_artist",
			"query":     name,
		}).Debug("No artists found")
		return nil, nil
	}

	top := results.Artists.Artists[0]
	c.logger.WithFields(logrus.Fields{
		"component":      "spotify_catalog",
		"operation":      "search_artist",
		"query":          name,
		"matched_artist": top.Name,
		"artist_id":      top.ID,
	}).Debug("Artist found")

	return &types.Artist{
		ID:   string(top.ID),
		Name: top.Name,
		URI:  string(top.URI),
	}, nil
}

// TopTracks returns up to limit of the artist's top tracks in catalog order
func (c *Catalog) TopTracks(ctx context.Context, artistID string, limit int) ([]types.Track, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	topTracks, err := c.client.GetArtistsTopTracks(ctx, spotify.ID(artistID), c.market)
	if err != nil {
		return nil, fmt.Errorf("failed to get top tracks for artist %s: %w", artistID, err)
	}

	if limit > 0 && len(topTracks) > limit {
		topTracks = topTracks[:limit]
	}

	tracks := make([]types.Track, len(topTracks))
	for i, t := range topTracks {
		tracks[i] = types.Track{
			ID:    string(t.ID),
			Name:  t.Name,
			Album: t.Album.Name,
			URI:   string(t.URI),
		}
	}
	return tracks, nil
}

// CurrentUserID returns the ID of the authenticated user
func (c *Catalog) CurrentUserID(ctx context.Context) (string, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	user, err := c.client.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	return user.ID, nil
}

// GetPlaylist fetches a fresh playlist snapshot
func (c *Catalog) GetPlaylist(ctx context.Context, playlistID string) (*types.Playlist, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	p, err := c.client.GetPlaylist(ctx, spotify.ID(playlistID))
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist %s: %w", playlistID, err)
	}

	return &types.Playlist{
		ID:            string(p.ID),
		OwnerID:       p.Owner.ID,
		Name:          p.Name,
		Public:        p.IsPublic,
		Collaborative: p.Collaborative,
		TrackCount:    int(p.Tracks.Total),
	}, nil
}

// ListPlaylistItems returns one page of item URIs. The cursor is the page
// offset; an empty next cursor means there are no more pages.
func (c *Catalog) ListPlaylistItems(ctx context.Context, playlistID, cursor string) ([]string, string, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return nil, "", fmt.Errorf("invalid playlist cursor %q", cursor)
		}
		offset = n
	}

	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, "", err
	}
	defer cancel()

	page, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(pageSize), spotify.Offset(offset))
	if err != nil {
		return nil, "", fmt.Errorf("failed to get playlist items at offset %d: %w", offset, err)
	}

	uris := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		switch {
		case item.Track.Track != nil:
			uris = append(uris, string(item.Track.Track.URI))
		case item.Track.Episode != nil:
			uris = append(uris, string(item.Track.Episode.URI))
		}
	}

	next := ""
	if page.Next != "" && len(page.Items) > 0 {
		next = strconv.Itoa(offset + len(page.Items))
	}
	return uris, next, nil
}

// AddItems appends track URIs to the playlist in one request
func (c *Catalog) AddItems(ctx context.Context, playlistID string, uris []string) error {
	ids, err := trackIDs(uris)
	if err != nil {
		return err
	}

	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if _, err := c.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...); err != nil {
		return fmt.Errorf("failed to add %d tracks to playlist %s: %w", len(ids), playlistID, err)
	}
	return nil
}

// RemoveItems removes every occurrence of the given track URIs from the playlist
func (c *Catalog) RemoveItems(ctx context.Context, playlistID string, uris []string) error {
	ids, err := trackIDs(uris)
	if err != nil {
		return err
	}

	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if _, err := c.client.RemoveTracksFromPlaylist(ctx, spotify.ID(playlistID), ids...); err != nil {
		return fmt.Errorf("failed to remove %d tracks from playlist %s: %w", len(ids), playlistID, err)
	}
	return nil
}

// ModifiablePlaylists pages through the user's playlists and keeps those the
// user owns or that are collaborative.
func (c *Catalog) ModifiablePlaylists(ctx context.Context) ([]types.Playlist, error) {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	callCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	page, err := c.client.CurrentUsersPlaylists(callCtx, spotify.Limit(50))
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to get user playlists: %w", err)
	}

	var playlists []types.Playlist
	for {
		for _, p := range page.Playlists {
			if p.Owner.ID != userID && !p.Collaborative {
				continue
			}
			playlists = append(playlists, types.Playlist{
				ID:            string(p.ID),
				OwnerID:       p.Owner.ID,
				Name:          p.Name,
				Public:        p.IsPublic,
				Collaborative: p.Collaborative,
				TrackCount:    int(p.Tracks.Total),
			})
		}

		// each page is its own call: rate limited and timed out separately
		callCtx, cancel, err := c.begin(ctx)
		if err != nil {
			return nil, err
		}
		err = c.client.NextPage(callCtx, page)
		cancel()
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to page user playlists: %w", err)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"component":      "spotify_catalog",
		"operation":      "modifiable_playlists",
		"playlist_count": len(playlists),
	}).Debug("Listed modifiable playlists")

	return playlists, nil
}

// CreatePlaylist creates a private playlist owned by the current user
func (c *Catalog) CreatePlaylist(ctx context.Context, name, description string) (*types.Playlist, error) {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"component":     "spotify_catalog",
		"operation":     "create_playlist",
		"playlist_name": name,
	}).Debug("Creating new playlist")

	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	p, err := c.client.CreatePlaylistForUser(ctx, userID, name, description, false, false)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"component":     "spotify_catalog",
			"operation":     "create_playlist",
			"playlist_name": name,
		}).WithError(err).Error("Failed to create playlist")
		return nil, fmt.Errorf("failed to create playlist %q: %w", name, err)
	}

	c.logger.WithFields(logrus.Fields{
		"component":     "spotify_catalog",
		"operation":     "create_playlist",
		"playlist_id":   p.ID,
		"playlist_name": p.Name,
	}).Info("Successfully created playlist")

	return &types.Playlist{
		ID:            string(p.ID),
		OwnerID:       p.Owner.ID,
		Name:          p.Name,
		Public:        p.IsPublic,
		Collaborative: p.Collaborative,
		TrackCount:    int(p.Tracks.Total),
	}, nil
}

// trackIDs converts spotify:track: URIs to bare IDs for the mutation endpoints
func trackIDs(uris []string) ([]spotify.ID, error) {
	ids := make([]spotify.ID, len(uris))
	for i, uri := range uris {
		if !types.IsValidTrackURI(uri) {
			return nil, fmt.Errorf("not a track URI: %q", uri)
		}
		ids[i] = spotify.ID(strings.TrimPrefix(uri, types.TrackURIPrefix))
	}
	return ids, nil
}
