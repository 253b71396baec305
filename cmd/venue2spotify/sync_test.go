package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toozej/venue2spotify/internal/catalogtest"
	"github.com/toozej/venue2spotify/internal/pipeline"
	"github.com/toozej/venue2spotify/internal/report"
	"github.com/toozej/venue2spotify/internal/types"
	"github.com/toozej/venue2spotify/pkg/config"
)

// MockArtistSource returns a fixed list of artist names
type MockArtistSource struct {
	Artists []string
}

func (m *MockArtistSource) Scrape(_ context.Context, _, _ string) []string {
	return m.Artists
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func track(id string) types.Track {
	return types.Track{ID: id, Name: "Song " + id, URI: types.TrackURIPrefix + id}
}

func newTestCatalog() *catalogtest.Fake {
	fake := catalogtest.New("me")
	fake.AddArtist("Khruangbin", track("k1"), track("k2"), track("k3"))
	fake.AddArtist("Men I Trust", track("m1"), track("m2"))
	fake.AddPlaylist(types.Playlist{ID: "pl1", OwnerID: "me", Name: "Venue Mix"}, types.TrackURIPrefix+"m1")
	fake.AddPlaylist(types.Playlist{ID: "collab", OwnerID: "someone", Name: "Shared", Collaborative: true})
	fake.AddPlaylist(types.Playlist{ID: "theirs", OwnerID: "someone", Name: "Not Mine"})
	return fake
}

func newTestPipeline(source types.ArtistSource, fake *catalogtest.Fake) *pipeline.Pipeline {
	cfg := config.SyncConfig{TracksPerArtist: 2, BatchSize: 100, Concurrency: 2}
	return pipeline.New(source, fake, cfg, nil, quietLogger())
}

// withConf swaps the package configuration for the duration of a test
func withConf(t *testing.T, c config.Config) {
	t.Helper()
	orig := conf
	conf = c
	t.Cleanup(func() { conf = orig })
}

func TestNewSyncCmd(t *testing.T) {
	cmd := newSyncCmd()

	assert.Equal(t, "sync", cmd.Use)
	assert.Equal(t, "Add a venue's upcoming artists to a Spotify playlist", cmd.Short)
	assert.Contains(t, cmd.Long, "never added twice")
	assert.NotNil(t, cmd.Run)

	for _, name := range []string{"url", "selector", "playlist", "dry-run", "clear", "new-playlist", "limit", "format"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
	assert.Equal(t, "n", cmd.Flags().Lookup("dry-run").Shorthand)
}

func TestSyncRequestFromFlags(t *testing.T) {
	withConf(t, config.Config{
		Spotify: config.SpotifyConfig{PlaylistID: "default-pl"},
		Venue:   config.VenueConfig{URL: "https://venue.example/events", Selector: "div.artist"},
	})

	t.Run("defaults from configuration", func(t *testing.T) {
		cmd := newSyncCmd()
		req, format, err := syncRequestFromFlags(cmd)
		require.NoError(t, err)
		assert.Equal(t, report.FormatText, format)
		assert.Equal(t, pipeline.Request{
			URL:        "https://venue.example/events",
			Selector:   "div.artist",
			PlaylistID: "default-pl",
		}, req)
	})

	t.Run("flags override configuration", func(t *testing.T) {
		cmd := newSyncCmd()
		require.NoError(t, cmd.Flags().Set("url", " https://other.example "))
		require.NoError(t, cmd.Flags().Set("playlist", "pl2"))
		require.NoError(t, cmd.Flags().Set("dry-run", "true"))
		require.NoError(t, cmd.Flags().Set("clear", "true"))
		require.NoError(t, cmd.Flags().Set("limit", "3"))
		require.NoError(t, cmd.Flags().Set("format", "JSON"))

		req, format, err := syncRequestFromFlags(cmd)
		require.NoError(t, err)
		assert.Equal(t, report.FormatJSON, format)
		assert.Equal(t, "https://other.example", req.URL)
		assert.Equal(t, "div.artist", req.Selector)
		assert.Equal(t, "pl2", req.PlaylistID)
		assert.True(t, req.DryRun)
		assert.True(t, req.Clear)
		assert.Equal(t, 3, req.Limit)
	})

	t.Run("unknown format", func(t *testing.T) {
		cmd := newSyncCmd()
		require.NoError(t, cmd.Flags().Set("format", "xml"))
		_, _, err := syncRequestFromFlags(cmd)
		assert.ErrorIs(t, err, report.ErrUnknownFormat)
	})

	t.Run("new playlist ignores configured playlist", func(t *testing.T) {
		cmd := newSyncCmd()
		require.NoError(t, cmd.Flags().Set("new-playlist", " Friday Lineup "))
		req, _, err := syncRequestFromFlags(cmd)
		require.NoError(t, err)
		assert.Empty(t, req.PlaylistID)
		assert.Equal(t, "Friday Lineup", req.NewPlaylist)
	})

	t.Run("empty new playlist name uses default", func(t *testing.T) {
		cmd := newSyncCmd()
		require.NoError(t, cmd.Flags().Set("new-playlist", ""))
		req, _, err := syncRequestFromFlags(cmd)
		require.NoError(t, err)
		assert.Equal(t, types.DefaultPlaylistName, req.NewPlaylist)
	})

	t.Run("new playlist conflicts", func(t *testing.T) {
		for _, flag := range []string{"playlist", "clear"} {
			cmd := newSyncCmd()
			require.NoError(t, cmd.Flags().Set("new-playlist", "Friday Lineup"))
			value := "pl2"
			if flag == "clear" {
				value = "true"
			}
			require.NoError(t, cmd.Flags().Set(flag, value))
			_, _, err := syncRequestFromFlags(cmd)
			assert.Error(t, err, flag)
		}
	})

	t.Run("negative limit", func(t *testing.T) {
		cmd := newSyncCmd()
		require.NoError(t, cmd.Flags().Set("limit", "-1"))
		_, _, err := syncRequestFromFlags(cmd)
		assert.Error(t, err)
	})
}

func TestSyncRequestFromFlags_Missing(t *testing.T) {
	withConf(t, config.Config{})

	cmd := newSyncCmd()
	_, _, err := syncRequestFromFlags(cmd)
	assert.ErrorIs(t, err, config.ErrMissingVenueURL)

	require.NoError(t, cmd.Flags().Set("url", "https://venue.example"))
	_, _, err = syncRequestFromFlags(cmd)
	assert.ErrorIs(t, err, config.ErrMissingPlaylistID)
}

func TestExecuteSync(t *testing.T) {
	fake := newTestCatalog()
	p := newTestPipeline(&MockArtistSource{Artists: []string{"Khruangbin", "Men I Trust"}}, fake)
	req := pipeline.Request{URL: "https://venue.example/events", PlaylistID: "pl1"}

	var out bytes.Buffer
	require.NoError(t, executeSync(context.Background(), p, req, report.FormatJSON, &out))

	var result pipeline.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, []string{"Khruangbin", "Men I Trust"}, result.Artists)
	require.NotNil(t, result.Plan)
	assert.Len(t, result.Plan.ToAdd, 3)
	assert.Len(t, result.Plan.AlreadyPresent, 1)
	assert.True(t, result.Plan.Outcome.Applied)

	assert.ElementsMatch(t, []string{
		types.TrackURIPrefix + "m1",
		types.TrackURIPrefix + "k1",
		types.TrackURIPrefix + "k2",
		types.TrackURIPrefix + "m2",
	}, fake.PlaylistItems("pl1"))

	// a second run finds everything present
	out.Reset()
	require.NoError(t, executeSync(context.Background(), p, req, report.FormatText, &out))
	assert.Contains(t, out.String(), "Playlist already up to date")
}

func TestExecuteSync_DryRunText(t *testing.T) {
	fake := newTestCatalog()
	p := newTestPipeline(&MockArtistSource{Artists: []string{"Khruangbin"}}, fake)

	var out bytes.Buffer
	err := executeSync(context.Background(), p, pipeline.Request{URL: "https://venue.example", PlaylistID: "pl1", DryRun: true}, report.FormatText, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Found 1 artists")
	assert.Contains(t, out.String(), "Dry run: would add 2 tracks")
	assert.Empty(t, fake.AddCalls)
}

func TestExecuteSync_NothingResolved(t *testing.T) {
	fake := newTestCatalog()
	p := newTestPipeline(&MockArtistSource{Artists: []string{"Nobody Known"}}, fake)
	req := pipeline.Request{URL: "https://venue.example", PlaylistID: "pl1", Clear: true}

	var out bytes.Buffer
	require.NoError(t, executeSync(context.Background(), p, req, report.FormatText, &out))
	assert.Contains(t, out.String(), "Found 1 artists")
	assert.Contains(t, out.String(), "No tracks resolved for any artist")
	assert.Empty(t, fake.AddCalls)
	assert.Empty(t, fake.RemoveCalls)
	assert.Equal(t, []string{types.TrackURIPrefix + "m1"}, fake.PlaylistItems("pl1"))

	out.Reset()
	require.NoError(t, executeSync(context.Background(), p, req, report.FormatJSON, &out))
	var result pipeline.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, []string{"Nobody Known"}, result.Artists)
	assert.NotNil(t, result.Resolved)
	assert.Empty(t, result.Resolved)
	assert.Nil(t, result.Plan)
	assert.Contains(t, out.String(), `"resolved": []`)
}

func TestExecuteSync_NewPlaylist(t *testing.T) {
	fake := newTestCatalog()
	p := newTestPipeline(&MockArtistSource{Artists: []string{"Khruangbin", "Men I Trust"}}, fake)
	req := pipeline.Request{URL: "https://venue.example", NewPlaylist: "Friday Lineup"}

	var out bytes.Buffer
	require.NoError(t, executeSync(context.Background(), p, req, report.FormatText, &out))
	assert.Contains(t, out.String(), "Created playlist Friday Lineup (created-1)")
	assert.Contains(t, out.String(), "Added 4 tracks in 1 batches")

	require.Len(t, fake.Created, 1)
	assert.Len(t, fake.PlaylistItems("created-1"), 4)
	assert.Equal(t, []string{types.TrackURIPrefix + "m1"}, fake.PlaylistItems("pl1"))
}

func TestExecuteSync_Errors(t *testing.T) {
	t.Run("no artists found", func(t *testing.T) {
		p := newTestPipeline(&MockArtistSource{}, newTestCatalog())
		var out bytes.Buffer
		err := executeSync(context.Background(), p, pipeline.Request{URL: "https://venue.example", PlaylistID: "pl1"}, report.FormatText, &out)
		assert.ErrorIs(t, err, types.ErrSourceUnavailable)
		assert.Empty(t, out.String())
	})

	t.Run("playlist not modifiable", func(t *testing.T) {
		p := newTestPipeline(&MockArtistSource{Artists: []string{"Khruangbin"}}, newTestCatalog())
		var out bytes.Buffer
		err := executeSync(context.Background(), p, pipeline.Request{URL: "https://venue.example", PlaylistID: "theirs"}, report.FormatText, &out)
		assert.ErrorIs(t, err, types.ErrPermissionDenied)
		assert.Contains(t, out.String(), "Khruangbin")
	})
}
