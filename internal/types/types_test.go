package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidTrackURI(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected bool
	}{
		{name: "valid track uri", uri: "spotify:track:4uLU6hMCjMI75M1A2tKUQC", expected: true},
		{name: "bare prefix", uri: "spotify:track:", expected: true},
		{name: "empty string", uri: "", expected: false},
		{name: "plain garbage", uri: "bad", expected: false},
		{name: "episode uri", uri: "spotify:episode:512ojhOuo1ktJprKbVcKyQ", expected: false},
		{name: "local file uri", uri: "spotify:local:Artist:Album:Title:200", expected: false},
		{name: "uppercase scheme", uri: "SPOTIFY:TRACK:abc", expected: false},
		{name: "leading whitespace", uri: " spotify:track:abc", expected: false},
		{name: "open.spotify.com url", uri: "https://open.spotify.com/track/abc", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidTrackURI(tt.uri))
		})
	}
}

func TestTrack_String(t *testing.T) {
	assert.Equal(t, "So What (Kind of Blue)", Track{Name: "So What", Album: "Kind of Blue"}.String())
	assert.Equal(t, "So What", Track{Name: "So What"}.String())
}

func TestMembership_Contains(t *testing.T) {
	m := Membership{"spotify:track:a": {}}
	assert.True(t, m.Contains("spotify:track:a"))
	assert.False(t, m.Contains("spotify:track:b"))

	var empty Membership
	assert.False(t, empty.Contains("spotify:track:a"))
}

func TestDesiredTracks(t *testing.T) {
	artists := []ResolvedArtist{
		{Name: "Khruangbin", Tracks: []Track{{URI: "spotify:track:1"}, {URI: "spotify:track:2"}}},
		{Name: "Men I Trust", Tracks: []Track{{URI: "spotify:track:3"}}},
		{Name: "Duplicate Feature", Tracks: []Track{{URI: "spotify:track:1"}}},
	}

	tracks := DesiredTracks(artists)
	assert.Len(t, tracks, 4)
	assert.Equal(t, "spotify:track:1", tracks[0].URI)
	assert.Equal(t, "spotify:track:3", tracks[2].URI)
	assert.Equal(t, "spotify:track:1", tracks[3].URI)

	assert.Empty(t, DesiredTracks(nil))
}

func TestReconciliationPlan_HasChanges(t *testing.T) {
	assert.False(t, (&ReconciliationPlan{}).HasChanges())
	assert.True(t, (&ReconciliationPlan{ToAdd: []Track{{URI: "spotify:track:1"}}}).HasChanges())
}

func TestBatchError(t *testing.T) {
	cause := errors.New("429 too many requests")
	err := fmt.Errorf("apply additions: %w", &BatchError{Op: "add", Batch: 1, Batches: 3, Applied: 100, Err: cause})

	assert.True(t, errors.Is(err, ErrBatchMutation))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrPagination))

	var batchErr *BatchError
	if assert.True(t, errors.As(err, &batchErr)) {
		assert.Equal(t, 100, batchErr.Applied)
	}
	assert.Contains(t, err.Error(), "add batch 2/3 failed after 100 items applied")
}
