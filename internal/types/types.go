package types

import (
	"context"
	"strings"
)

// TrackURIPrefix is the scheme every submittable track identifier must carry.
const TrackURIPrefix = "spotify:track:"

// DefaultTracksPerArtist is the number of top tracks taken per artist when unset.
const DefaultTracksPerArtist = 2

// MaxBatchSize is the catalog's documented per-call mutation limit.
const MaxBatchSize = 100

// DefaultPlaylistName names a new playlist when the user gives no name.
const DefaultPlaylistName = "Upcoming Shows Playlist"

// NewPlaylistDescription is set on every playlist this application creates.
const NewPlaylistDescription = "Created by venue2spotify"

// ArtistSource defines the interface for producing artist names from a venue page.
// Implementations never fail past this boundary: problems are logged and yield
// an empty result.
type ArtistSource interface {
	Scrape(ctx context.Context, pageURL, selector string) []string
}

// CatalogClient defines the interface for the remote music catalog operations
// needed by the resolution and reconciliation engines.
type CatalogClient interface {
	// SearchArtist returns the top artist match for name, or nil when there is none.
	SearchArtist(ctx context.Context, name string) (*Artist, error)
	TopTracks(ctx context.Context, artistID string, limit int) ([]Track, error)
	CurrentUserID(ctx context.Context) (string, error)
	GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error)
	// ListPlaylistItems returns one page of item URIs and the cursor for the
	// next page. An empty next cursor means the listing is exhausted.
	ListPlaylistItems(ctx context.Context, playlistID, cursor string) ([]string, string, error)
	AddItems(ctx context.Context, playlistID string, uris []string) error
	RemoveItems(ctx context.Context, playlistID string, uris []string) error
}

// PlaylistBrowser lists the playlists the current user is allowed to modify
// and creates new ones.
type PlaylistBrowser interface {
	ModifiablePlaylists(ctx context.Context) ([]Playlist, error)
	// CreatePlaylist creates a private playlist owned by the current user.
	CreatePlaylist(ctx context.Context, name, description string) (*Playlist, error)
}

// Core data models

// Artist represents a catalog artist
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// Track represents a catalog track. Two tracks are equal iff their URIs are equal.
type Track struct {
	ID    string `json:"id" yaml:"id" toml:"id"`
	Name  string `json:"name" yaml:"name" toml:"name"`
	Album string `json:"album" yaml:"album" toml:"album"`
	URI   string `json:"uri" yaml:"uri" toml:"uri"`
}

// String returns a display form of the track
func (t Track) String() string {
	if t.Album != "" {
		return t.Name + " (" + t.Album + ")"
	}
	return t.Name
}

// IsValidTrackURI reports whether uri is a non-empty track identifier with the
// expected scheme.
func IsValidTrackURI(uri string) bool {
	return uri != "" && strings.HasPrefix(uri, TrackURIPrefix)
}

// ResolvedArtist represents an artist name and the top tracks found for it
type ResolvedArtist struct {
	Name   string  `json:"name" yaml:"name" toml:"name"`
	Tracks []Track `json:"tracks" yaml:"tracks" toml:"tracks"`
}

// Playlist represents a snapshot of a catalog playlist
type Playlist struct {
	ID            string `json:"id" yaml:"id" toml:"id"`
	OwnerID       string `json:"owner_id" yaml:"owner_id" toml:"owner_id"`
	Name          string `json:"name" yaml:"name" toml:"name"`
	Public        bool   `json:"public" yaml:"public" toml:"public"`
	Collaborative bool   `json:"collaborative" yaml:"collaborative" toml:"collaborative"`
	TrackCount    int    `json:"track_count" yaml:"track_count" toml:"track_count"`
}

// Membership is the set of item URIs present in a playlist at fetch time.
type Membership map[string]struct{}

// Contains reports whether uri is in the membership set
func (m Membership) Contains(uri string) bool {
	_, ok := m[uri]
	return ok
}

// Outcome records what a mutating operation actually did.
type Outcome struct {
	Applied   bool `json:"applied" yaml:"applied" toml:"applied"`
	Submitted int  `json:"submitted" yaml:"submitted" toml:"submitted"`
	Dropped   int  `json:"dropped" yaml:"dropped" toml:"dropped"`
	Batches   int  `json:"batches" yaml:"batches" toml:"batches"`
}

// ReconciliationPlan represents the difference between desired tracks and a
// playlist's current contents.
type ReconciliationPlan struct {
	Playlist       Playlist `json:"playlist" yaml:"playlist" toml:"playlist"`
	DryRun         bool     `json:"dry_run" yaml:"dry_run" toml:"dry_run"`
	ToAdd          []Track  `json:"to_add" yaml:"to_add" toml:"to_add"`
	AlreadyPresent []Track  `json:"already_present" yaml:"already_present" toml:"already_present"`
	Outcome        Outcome  `json:"outcome" yaml:"outcome" toml:"outcome"`
}

// HasChanges reports whether the plan would add anything
func (p *ReconciliationPlan) HasChanges() bool {
	return len(p.ToAdd) > 0
}

// DesiredTracks flattens resolved artists into one ordered track sequence.
// Deduplication is left to the caller.
func DesiredTracks(artists []ResolvedArtist) []Track {
	var tracks []Track
	for _, artist := range artists {
		tracks = append(tracks, artist.Tracks...)
	}
	return tracks
}
