// Package pipeline runs a venue sync end to end: scrape artist names, resolve
// them to tracks, then reconcile the tracks into a playlist. The CLI and the
// web handlers both drive it, step by step or all at once.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/toozej/venue2spotify/internal/duplicate"
	"github.com/toozej/venue2spotify/internal/playlist"
	"github.com/toozej/venue2spotify/internal/resolve"
	"github.com/toozej/venue2spotify/internal/types"
	"github.com/toozej/venue2spotify/pkg/config"
)

// Pipeline wires an artist source to a catalog
type Pipeline struct {
	source          types.ArtistSource
	catalog         types.CatalogClient
	resolver        *resolve.Resolver
	reconciler      *playlist.Reconciler
	tracksPerArtist int
	logger          *log.Logger
}

// Request describes one sync run
type Request struct {
	URL        string
	Selector   string
	PlaylistID string
	// NewPlaylist, when set, creates a playlist with this name and syncs
	// into it instead of PlaylistID.
	NewPlaylist string
	DryRun      bool
	Clear       bool
	// Limit caps how many scraped artists are resolved. Zero means all.
	Limit int
}

// Result is everything a sync run produced, including partial state when a
// later step failed.
type Result struct {
	Artists  []string                  `json:"artists" yaml:"artists" toml:"artists"`
	Resolved []types.ResolvedArtist    `json:"resolved" yaml:"resolved" toml:"resolved"`
	Created  *types.Playlist           `json:"created,omitempty" yaml:"created,omitempty" toml:"created,omitempty"`
	Cleared  *types.Outcome            `json:"cleared,omitempty" yaml:"cleared,omitempty" toml:"cleared,omitempty"`
	Plan     *types.ReconciliationPlan `json:"plan,omitempty" yaml:"plan,omitempty" toml:"plan,omitempty"`
}

// NothingResolved reports a run that found artists but no tracks for any of
// them. Such a run leaves the playlist alone and is not a failure.
func (r *Result) NothingResolved() bool {
	return len(r.Artists) > 0 && len(r.Resolved) == 0
}

// ErrCannotCreatePlaylist is returned when the catalog has no way to create playlists
var ErrCannotCreatePlaylist = errors.New("catalog cannot create playlists")

// New creates a pipeline. locks may be nil, in which case the pipeline only
// serializes its own operations.
func New(source types.ArtistSource, catalog types.CatalogClient, cfg config.SyncConfig, locks *playlist.Locks, logger *log.Logger) *Pipeline {
	tracksPerArtist := cfg.TracksPerArtist
	if tracksPerArtist <= 0 {
		tracksPerArtist = types.DefaultTracksPerArtist
	}
	return &Pipeline{
		source:          source,
		catalog:         catalog,
		resolver:        resolve.NewResolver(catalog, cfg.Concurrency, logger),
		reconciler:      playlist.NewReconciler(catalog, cfg.BatchSize, logger).WithLocks(locks),
		tracksPerArtist: tracksPerArtist,
		logger:          logger,
	}
}

// Discover scrapes artist names from the venue page
func (p *Pipeline) Discover(ctx context.Context, pageURL, selector string) ([]string, error) {
	if strings.TrimSpace(pageURL) == "" {
		return nil, config.ErrMissingVenueURL
	}

	artists := p.source.Scrape(ctx, pageURL, selector)
	if len(artists) == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrSourceUnavailable, pageURL)
	}

	p.logger.WithFields(log.Fields{
		"component":    "pipeline",
		"operation":    "discover",
		"url":          pageURL,
		"artist_count": len(artists),
	}).Info("Discovered artists")
	return artists, nil
}

// Resolve looks up top tracks for the given artists
func (p *Pipeline) Resolve(ctx context.Context, artists []string) ([]types.ResolvedArtist, error) {
	resolved := p.resolver.Resolve(ctx, artists, p.tracksPerArtist)
	if len(resolved) == 0 {
		return nil, types.ErrNoTracksResolved
	}
	return resolved, nil
}

// Preview computes the reconciliation plan without changing the playlist
func (p *Pipeline) Preview(ctx context.Context, playlistID string, resolved []types.ResolvedArtist) (*types.ReconciliationPlan, error) {
	return p.reconciler.Reconcile(ctx, playlistID, types.DesiredTracks(resolved), true)
}

// Commit adds whatever resolved tracks the playlist is missing
func (p *Pipeline) Commit(ctx context.Context, playlistID string, resolved []types.ResolvedArtist) (*types.ReconciliationPlan, error) {
	return p.reconciler.Reconcile(ctx, playlistID, types.DesiredTracks(resolved), false)
}

// Clear removes every track from the playlist
func (p *Pipeline) Clear(ctx context.Context, playlistID string) (types.Outcome, error) {
	return p.reconciler.Clear(ctx, playlistID)
}

// CreatePlaylist creates a private playlist for the current user. An empty
// name uses types.DefaultPlaylistName.
func (p *Pipeline) CreatePlaylist(ctx context.Context, name string) (*types.Playlist, error) {
	browser, ok := p.catalog.(types.PlaylistBrowser)
	if !ok {
		return nil, ErrCannotCreatePlaylist
	}
	if strings.TrimSpace(name) == "" {
		name = types.DefaultPlaylistName
	}
	created, err := browser.CreatePlaylist(ctx, strings.TrimSpace(name), types.NewPlaylistDescription)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	return created, nil
}

// Run performs a whole sync. The returned result is non-nil even on error and
// holds whatever completed. When no artist resolves to any track the run stops
// before touching the playlist and returns a nil error; see
// Result.NothingResolved.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	result := &Result{}

	newPlaylist := strings.TrimSpace(req.NewPlaylist)
	if strings.TrimSpace(req.PlaylistID) == "" && newPlaylist == "" {
		return result, config.ErrMissingPlaylistID
	}

	artists, err := p.Discover(ctx, req.URL, req.Selector)
	if err != nil {
		return result, err
	}
	if req.Limit > 0 && len(artists) > req.Limit {
		artists = artists[:req.Limit]
	}
	result.Artists = artists

	resolved, err := p.Resolve(ctx, artists)
	if errors.Is(err, types.ErrNoTracksResolved) {
		p.logger.WithFields(log.Fields{
			"component": "pipeline",
			"operation": "run",
			"artists":   len(artists),
		}).Warn("No tracks resolved for any artist, leaving playlist unchanged")
		result.Resolved = []types.ResolvedArtist{}
		return result, nil
	}
	if err != nil {
		return result, err
	}
	result.Resolved = resolved

	if newPlaylist != "" {
		return p.runNewPlaylist(ctx, req, newPlaylist, result)
	}

	if req.Clear && req.DryRun {
		plan, err := p.Preview(ctx, req.PlaylistID, resolved)
		if plan != nil {
			// after a clear nothing would already be present
			plan.ToAdd = duplicate.Desired(types.DesiredTracks(resolved))
			plan.AlreadyPresent = []types.Track{}
		}
		result.Cleared = &types.Outcome{}
		result.Plan = plan
		return result, err
	}

	if req.Clear {
		cleared, err := p.Clear(ctx, req.PlaylistID)
		result.Cleared = &cleared
		if err != nil {
			return result, fmt.Errorf("failed to clear playlist: %w", err)
		}
	}

	var plan *types.ReconciliationPlan
	if req.DryRun {
		plan, err = p.Preview(ctx, req.PlaylistID, resolved)
	} else {
		plan, err = p.Commit(ctx, req.PlaylistID, resolved)
	}
	result.Plan = plan
	if err != nil {
		return result, err
	}

	p.logComplete(req.PlaylistID, req.DryRun, result)
	return result, nil
}

// runNewPlaylist creates the named playlist and adds every resolved track. A
// dry run creates nothing and plans the full add against an unnamed playlist.
func (p *Pipeline) runNewPlaylist(ctx context.Context, req Request, name string, result *Result) (*Result, error) {
	if req.DryRun {
		result.Plan = &types.ReconciliationPlan{
			Playlist:       types.Playlist{Name: name},
			DryRun:         true,
			ToAdd:          duplicate.Desired(types.DesiredTracks(result.Resolved)),
			AlreadyPresent: []types.Track{},
		}
		return result, nil
	}

	created, err := p.CreatePlaylist(ctx, name)
	if err != nil {
		return result, err
	}
	result.Created = created

	plan, err := p.Commit(ctx, created.ID, result.Resolved)
	result.Plan = plan
	if err != nil {
		return result, err
	}

	p.logComplete(created.ID, false, result)
	return result, nil
}

func (p *Pipeline) logComplete(playlistID string, dryRun bool, result *Result) {
	p.logger.WithFields(log.Fields{
		"component":   "pipeline",
		"operation":   "run",
		"playlist_id": playlistID,
		"artists":     len(result.Artists),
		"resolved":    len(result.Resolved),
		"to_add":      len(result.Plan.ToAdd),
		"dry_run":     dryRun,
	}).Info("Sync complete")
}
