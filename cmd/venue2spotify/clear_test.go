package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toozej/venue2spotify/internal/report"
	"github.com/toozej/venue2spotify/internal/types"
)

func TestNewClearCmd(t *testing.T) {
	cmd := newClearCmd()

	assert.Equal(t, "clear", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("playlist"))
	assert.NotNil(t, cmd.Flags().Lookup("format"))
}

func TestExecuteClear(t *testing.T) {
	fake := newTestCatalog()
	p := newTestPipeline(&MockArtistSource{}, fake)

	var out bytes.Buffer
	require.NoError(t, executeClear(context.Background(), p, "pl1", report.FormatJSON, &out))

	var got struct {
		PlaylistID string        `json:"playlist_id"`
		Cleared    types.Outcome `json:"cleared"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "pl1", got.PlaylistID)
	assert.True(t, got.Cleared.Applied)
	assert.Equal(t, 1, got.Cleared.Submitted)
	assert.Empty(t, fake.PlaylistItems("pl1"))

	out.Reset()
	require.NoError(t, executeClear(context.Background(), p, "pl1", report.FormatText, &out))
	assert.Contains(t, out.String(), "Playlist was already empty")
}

func TestExecuteClear_PermissionDenied(t *testing.T) {
	fake := newTestCatalog()
	p := newTestPipeline(&MockArtistSource{}, fake)

	var out bytes.Buffer
	err := executeClear(context.Background(), p, "theirs", report.FormatText, &out)
	assert.ErrorIs(t, err, types.ErrPermissionDenied)
	assert.Empty(t, out.String())
	assert.Empty(t, fake.RemoveCalls)
}
