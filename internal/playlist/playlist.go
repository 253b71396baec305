package playlist

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/toozej/venue2spotify/internal/duplicate"
	"github.com/toozej/venue2spotify/internal/types"
)

// Locks hands out one mutex per playlist ID. Reconcilers sharing a Locks
// never interleave operations on the same playlist.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocks creates an empty lock registry
func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*sync.Mutex)}
}

// For returns the mutex for playlistID
func (l *Locks) For(playlistID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[playlistID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[playlistID] = m
	}
	return m
}

// Reconciler makes a playlist contain a desired set of tracks without
// duplicating anything already there, and clears playlists on request.
type Reconciler struct {
	catalog   types.CatalogClient
	batchSize int
	logger    *log.Logger
	locks     *Locks
}

// NewReconciler creates a reconciler. A batchSize outside 1..100 falls back
// to the catalog maximum.
func NewReconciler(catalog types.CatalogClient, batchSize int, logger *log.Logger) *Reconciler {
	if batchSize <= 0 || batchSize > types.MaxBatchSize {
		batchSize = types.MaxBatchSize
	}
	return &Reconciler{
		catalog:   catalog,
		batchSize: batchSize,
		logger:    logger,
		locks:     NewLocks(),
	}
}

// WithLocks makes the reconciler serialize through a shared registry
func (r *Reconciler) WithLocks(locks *Locks) *Reconciler {
	if locks != nil {
		r.locks = locks
	}
	return r
}

// CanModify reports whether userID may change the playlist: either they own
// it or it is collaborative.
func CanModify(p *types.Playlist, userID string) bool {
	if p == nil {
		return false
	}
	return (userID != "" && p.OwnerID == userID) || p.Collaborative
}

// verifyPermission fetches a fresh playlist snapshot and checks it against
// the current user.
func (r *Reconciler) verifyPermission(ctx context.Context, playlistID string) (*types.Playlist, error) {
	userID, err := r.catalog.CurrentUserID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	p, err := r.catalog.GetPlaylist(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist %s: %w", playlistID, err)
	}

	if !CanModify(p, userID) {
		r.logger.WithFields(log.Fields{
			"component":     "playlist_reconciler",
			"operation":     "verify_permission",
			"playlist_id":   playlistID,
			"owner_id":      p.OwnerID,
			"user_id":       userID,
			"collaborative": p.Collaborative,
		}).Warn("Current user cannot modify playlist")
		return p, fmt.Errorf("%w: %s", types.ErrPermissionDenied, p.Name)
	}

	return p, nil
}

// listAll walks every page of the playlist and returns item URIs in order.
// Any page failure discards what was gathered.
func (r *Reconciler) listAll(ctx context.Context, playlistID string) ([]string, error) {
	var uris []string
	cursor := ""
	for page := 1; ; page++ {
		items, next, err := r.catalog.ListPlaylistItems(ctx, playlistID, cursor)
		if err != nil {
			r.logger.WithError(err).WithFields(log.Fields{
				"component":   "playlist_reconciler",
				"operation":   "list_items",
				"playlist_id": playlistID,
				"page":        page,
			}).Error("Failed to list playlist page")
			return nil, fmt.Errorf("%w: page %d of playlist %s: %w", types.ErrPagination, page, playlistID, err)
		}
		uris = append(uris, items...)

		if next == "" {
			r.logger.WithFields(log.Fields{
				"component":   "playlist_reconciler",
				"operation":   "list_items",
				"playlist_id": playlistID,
				"pages":       page,
				"item_count":  len(uris),
			}).Debug("Listed playlist items")
			return uris, nil
		}
		if next == cursor {
			return nil, fmt.Errorf("%w: cursor %q did not advance on page %d", types.ErrPagination, cursor, page)
		}
		cursor = next
	}
}

// FetchMembership returns the full set of item URIs currently in the playlist
func (r *Reconciler) FetchMembership(ctx context.Context, playlistID string) (types.Membership, error) {
	uris, err := r.listAll(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	membership := make(types.Membership, len(uris))
	for _, uri := range uris {
		membership[uri] = struct{}{}
	}
	return membership, nil
}

// validURIs keeps only well-formed track URIs and reports how many were dropped
func (r *Reconciler) validURIs(playlistID, op string, uris []string) ([]string, int) {
	valid := make([]string, 0, len(uris))
	for _, uri := range uris {
		if types.IsValidTrackURI(uri) {
			valid = append(valid, uri)
		}
	}

	dropped := len(uris) - len(valid)
	if dropped > 0 {
		r.logger.WithFields(log.Fields{
			"component":   "playlist_reconciler",
			"operation":   op,
			"playlist_id": playlistID,
			"dropped":     dropped,
		}).Warn("Dropped invalid track URIs")
	}
	return valid, dropped
}

// mutateInBatches submits uris in order in batches of the configured size and
// stops at the first failing batch. Earlier batches stay applied.
func (r *Reconciler) mutateInBatches(ctx context.Context, op, playlistID string, uris []string,
	mutate func(ctx context.Context, playlistID string, uris []string) error) (types.Outcome, error) {
	batches := (len(uris) + r.batchSize - 1) / r.batchSize
	outcome := types.Outcome{}

	for i := 0; i < batches; i++ {
		start := i * r.batchSize
		end := min(start+r.batchSize, len(uris))

		if err := mutate(ctx, playlistID, uris[start:end]); err != nil {
			r.logger.WithError(err).WithFields(log.Fields{
				"component":   "playlist_reconciler",
				"operation":   op,
				"playlist_id": playlistID,
				"batch":       i + 1,
				"batches":     batches,
				"applied":     outcome.Submitted,
			}).Error("Playlist batch failed")
			return outcome, &types.BatchError{Op: op, Batch: i, Batches: batches, Applied: outcome.Submitted, Err: err}
		}

		outcome.Batches++
		outcome.Submitted += end - start
	}

	outcome.Applied = true
	return outcome, nil
}

// ApplyAdd appends tracks to the playlist. Tracks with invalid URIs are
// dropped and counted in the outcome.
func (r *Reconciler) ApplyAdd(ctx context.Context, playlistID string, tracks []types.Track) (types.Outcome, error) {
	valid, dropped := r.validURIs(playlistID, "add", duplicate.URIs(tracks))

	outcome, err := r.mutateInBatches(ctx, "add", playlistID, valid, r.catalog.AddItems)
	outcome.Dropped = dropped
	if err != nil {
		return outcome, err
	}

	r.logger.WithFields(log.Fields{
		"component":   "playlist_reconciler",
		"operation":   "add",
		"playlist_id": playlistID,
		"track_count": outcome.Submitted,
		"batches":     outcome.Batches,
	}).Info("Added tracks to playlist")
	return outcome, nil
}

// ClearAll removes every track from the playlist. An empty playlist
// succeeds without any removal call.
func (r *Reconciler) ClearAll(ctx context.Context, playlistID string) (types.Outcome, error) {
	uris, err := r.listAll(ctx, playlistID)
	if err != nil {
		return types.Outcome{}, err
	}

	valid, dropped := r.validURIs(playlistID, "remove", duplicate.UniqueURIs(uris))
	outcome, err := r.mutateInBatches(ctx, "remove", playlistID, valid, r.catalog.RemoveItems)
	outcome.Dropped = dropped
	if err != nil {
		return outcome, err
	}

	r.logger.WithFields(log.Fields{
		"component":   "playlist_reconciler",
		"operation":   "clear",
		"playlist_id": playlistID,
		"track_count": outcome.Submitted,
		"batches":     outcome.Batches,
	}).Info("Cleared playlist")
	return outcome, nil
}

// Reconcile computes which desired tracks are missing from the playlist and,
// unless dryRun is set, adds them. The returned plan is non-nil whenever the
// playlist could be read, including after a failed batch.
func (r *Reconciler) Reconcile(ctx context.Context, playlistID string, desired []types.Track, dryRun bool) (*types.ReconciliationPlan, error) {
	lock := r.locks.For(playlistID)
	lock.Lock()
	defer lock.Unlock()

	r.logger.WithFields(log.Fields{
		"component":     "playlist_reconciler",
		"operation":     "reconcile",
		"playlist_id":   playlistID,
		"desired_count": len(desired),
		"dry_run":       dryRun,
	}).Debug("Starting reconciliation")

	p, err := r.verifyPermission(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	existing, err := r.FetchMembership(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	plan := duplicate.ComputePlan(duplicate.Desired(desired), existing)
	plan.Playlist = *p
	plan.DryRun = dryRun

	r.logger.WithFields(log.Fields{
		"component":       "playlist_reconciler",
		"operation":       "reconcile",
		"playlist_id":     playlistID,
		"to_add":          len(plan.ToAdd),
		"already_present": len(plan.AlreadyPresent),
	}).Info("Computed reconciliation plan")

	if dryRun {
		return &plan, nil
	}

	outcome, err := r.ApplyAdd(ctx, playlistID, plan.ToAdd)
	plan.Outcome = outcome
	if err != nil {
		return &plan, err
	}
	return &plan, nil
}

// Clear empties a playlist the current user may modify
func (r *Reconciler) Clear(ctx context.Context, playlistID string) (types.Outcome, error) {
	lock := r.locks.For(playlistID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := r.verifyPermission(ctx, playlistID); err != nil {
		return types.Outcome{}, err
	}
	return r.ClearAll(ctx, playlistID)
}
