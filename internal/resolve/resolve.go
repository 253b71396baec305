// Package resolve maps scraped artist names to catalog artists and their top
// tracks.
package resolve

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/toozej/venue2spotify/internal/search"
	"github.com/toozej/venue2spotify/internal/types"
	"golang.org/x/sync/errgroup"
)

// Resolver looks up artists and their top tracks. Lookups for different
// artists may run concurrently but results are always in input order.
type Resolver struct {
	catalog     types.CatalogClient
	concurrency int
	logger      *log.Logger
}

// NewResolver creates a resolver that runs up to concurrency lookups at once.
// Values below 1 mean sequential.
func NewResolver(catalog types.CatalogClient, concurrency int, logger *log.Logger) *Resolver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Resolver{
		catalog:     catalog,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Resolve returns one entry per input name that matched an artist with at
// least one track, in input order. Per-artist failures are logged and
// skipped. An empty result is not an error.
func (r *Resolver) Resolve(ctx context.Context, names []string, perArtistLimit int) []types.ResolvedArtist {
	if perArtistLimit <= 0 {
		perArtistLimit = types.DefaultTracksPerArtist
	}

	slots := make([]*types.ResolvedArtist, len(names))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, name := range names {
		g.Go(func() error {
			slots[i] = r.resolveOne(ctx, name, perArtistLimit)
			return nil
		})
	}
	_ = g.Wait()

	resolved := make([]types.ResolvedArtist, 0, len(names))
	for _, slot := range slots {
		if slot != nil {
			resolved = append(resolved, *slot)
		}
	}

	r.logger.WithFields(log.Fields{
		"component":      "resolver",
		"operation":      "resolve",
		"artist_count":   len(names),
		"resolved_count": len(resolved),
	}).Info("Resolved artists to tracks")

	return resolved
}

func (r *Resolver) resolveOne(ctx context.Context, name string, limit int) *types.ResolvedArtist {
	fields := log.Fields{
		"component":   "resolver",
		"operation":   "resolve_artist",
		"artist_name": name,
	}

	if err := ctx.Err(); err != nil {
		r.logger.WithError(err).WithFields(fields).Warn("Skipping artist, context done")
		return nil
	}

	artist, err := r.catalog.SearchArtist(ctx, name)
	if err != nil {
		r.logger.WithError(err).WithFields(fields).Warn("Artist search failed")
		return nil
	}
	if artist == nil {
		r.logger.WithFields(fields).Info("No artist match")
		return nil
	}
	if confidence := search.MatchConfidence(name, artist.Name); confidence < search.LowConfidence {
		// top result stays authoritative
		r.logger.WithFields(fields).WithFields(log.Fields{
			"matched_artist": artist.Name,
			"confidence":     confidence,
		}).Warn("Low confidence artist match")
	}

	tracks, err := r.catalog.TopTracks(ctx, artist.ID, limit)
	if err != nil {
		r.logger.WithError(err).WithFields(fields).WithField("artist_id", artist.ID).Warn("Top tracks lookup failed")
		return nil
	}
	if len(tracks) > limit {
		tracks = tracks[:limit]
	}
	if len(tracks) == 0 {
		r.logger.WithFields(fields).WithField("artist_id", artist.ID).Info("Artist has no top tracks")
		return nil
	}

	r.logger.WithFields(fields).WithFields(log.Fields{
		"artist_id":   artist.ID,
		"track_count": len(tracks),
	}).Debug("Resolved artist")

	return &types.ResolvedArtist{Name: name, Tracks: tracks}
}
