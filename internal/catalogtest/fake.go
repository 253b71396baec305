// Package catalogtest provides an in-memory catalog for tests of the
// resolution, reconciliation and web layers.
package catalogtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/toozej/venue2spotify/internal/types"
)

// ErrNotFound is returned for unknown playlists
var ErrNotFound = errors.New("catalogtest: not found")

// Fake is an in-memory types.CatalogClient and types.PlaylistBrowser.
// Failures are injected per call number (1-based) so tests can stop a batch
// or pagination loop at a known point.
type Fake struct {
	mu sync.Mutex

	UserID    string
	PageSize  int
	Playlists map[string]*types.Playlist
	Items     map[string][]string
	Artists   map[string]*types.Artist
	Tracks    map[string][]types.Track

	SearchErrs   map[string]error
	TopTrackErrs map[string]error
	UserErr      error

	CreateErr error

	FailListOnCall   int
	FailAddOnCall    int
	FailRemoveOnCall int
	Err              error

	ListCalls   int
	AddCalls    [][]string
	RemoveCalls [][]string
	SearchCalls []string
	Created     []types.Playlist
}

// New returns an empty fake for userID with the catalog's default page size
func New(userID string) *Fake {
	return &Fake{
		UserID:       userID,
		PageSize:     100,
		Playlists:    map[string]*types.Playlist{},
		Items:        map[string][]string{},
		Artists:      map[string]*types.Artist{},
		Tracks:       map[string][]types.Track{},
		SearchErrs:   map[string]error{},
		TopTrackErrs: map[string]error{},
		Err:          errors.New("catalogtest: injected failure"),
	}
}

// AddPlaylist registers a playlist with the given items
func (f *Fake) AddPlaylist(p types.Playlist, items ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Playlists[p.ID] = &p
	f.Items[p.ID] = append([]string(nil), items...)
}

// AddArtist registers an artist searchable by name with its top tracks
func (f *Fake) AddArtist(name string, tracks ...types.Track) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := "artist-" + strconv.Itoa(len(f.Artists)+1)
	f.Artists[name] = &types.Artist{ID: id, Name: name, URI: "spotify:artist:" + id}
	f.Tracks[id] = tracks
}

// PlaylistItems returns a copy of a playlist's current items
func (f *Fake) PlaylistItems(playlistID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Items[playlistID]...)
}

func (f *Fake) SearchArtist(_ context.Context, name string) (*types.Artist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SearchCalls = append(f.SearchCalls, name)
	if err := f.SearchErrs[name]; err != nil {
		return nil, err
	}
	artist, ok := f.Artists[name]
	if !ok {
		return nil, nil
	}
	a := *artist
	return &a, nil
}

func (f *Fake) TopTracks(_ context.Context, artistID string, limit int) ([]types.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.TopTrackErrs[artistID]; err != nil {
		return nil, err
	}
	tracks := f.Tracks[artistID]
	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return append([]types.Track(nil), tracks...), nil
}

func (f *Fake) CurrentUserID(_ context.Context) (string, error) {
	if f.UserErr != nil {
		return "", f.UserErr
	}
	return f.UserID, nil
}

func (f *Fake) GetPlaylist(_ context.Context, playlistID string) (*types.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: playlist %s", ErrNotFound, playlistID)
	}
	snapshot := *p
	snapshot.TrackCount = len(f.Items[playlistID])
	return &snapshot, nil
}

func (f *Fake) ListPlaylistItems(_ context.Context, playlistID, cursor string) ([]string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if f.FailListOnCall > 0 && f.ListCalls == f.FailListOnCall {
		return nil, "", f.Err
	}
	if _, ok := f.Playlists[playlistID]; !ok {
		return nil, "", fmt.Errorf("%w: playlist %s", ErrNotFound, playlistID)
	}

	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("catalogtest: bad cursor %q", cursor)
		}
		offset = n
	}

	items := f.Items[playlistID]
	if offset > len(items) {
		offset = len(items)
	}
	end := offset + f.PageSize
	if end > len(items) {
		end = len(items)
	}

	next := ""
	if end < len(items) {
		next = strconv.Itoa(end)
	}
	return append([]string(nil), items[offset:end]...), next, nil
}

func (f *Fake) AddItems(_ context.Context, playlistID string, uris []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailAddOnCall > 0 && len(f.AddCalls)+1 == f.FailAddOnCall {
		f.AddCalls = append(f.AddCalls, nil)
		return f.Err
	}
	f.AddCalls = append(f.AddCalls, append([]string(nil), uris...))
	f.Items[playlistID] = append(f.Items[playlistID], uris...)
	return nil
}

func (f *Fake) RemoveItems(_ context.Context, playlistID string, uris []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailRemoveOnCall > 0 && len(f.RemoveCalls)+1 == f.FailRemoveOnCall {
		f.RemoveCalls = append(f.RemoveCalls, nil)
		return f.Err
	}
	f.RemoveCalls = append(f.RemoveCalls, append([]string(nil), uris...))

	remove := make(map[string]struct{}, len(uris))
	for _, uri := range uris {
		remove[uri] = struct{}{}
	}
	kept := f.Items[playlistID][:0]
	for _, uri := range f.Items[playlistID] {
		if _, ok := remove[uri]; !ok {
			kept = append(kept, uri)
		}
	}
	f.Items[playlistID] = kept
	return nil
}

func (f *Fake) ModifiablePlaylists(_ context.Context) ([]types.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UserErr != nil {
		return nil, f.UserErr
	}
	var playlists []types.Playlist
	for id, p := range f.Playlists {
		if p.OwnerID == f.UserID || p.Collaborative {
			snapshot := *p
			snapshot.TrackCount = len(f.Items[id])
			playlists = append(playlists, snapshot)
		}
	}
	sort.Slice(playlists, func(i, j int) bool { return playlists[i].Name < playlists[j].Name })
	return playlists, nil
}

// CreatePlaylist registers an empty private playlist owned by the fake's user
func (f *Fake) CreatePlaylist(_ context.Context, name, _ string) (*types.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	p := types.Playlist{ID: "created-" + strconv.Itoa(len(f.Created)+1), OwnerID: f.UserID, Name: name}
	f.Playlists[p.ID] = &p
	f.Items[p.ID] = nil
	f.Created = append(f.Created, p)
	created := p
	return &created, nil
}
