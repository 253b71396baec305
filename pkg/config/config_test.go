package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedVars = []string{
	"SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET", "SPOTIFY_PLAYLIST_ID", "SPOTIFY_CALL_TIMEOUT",
	"SPOTIFY_RATE_LIMIT", "VENUE_URL", "VENUE_SELECTOR", "SYNC_BATCH_SIZE", "SYNC_TRACKS_PER_ARTIST",
	"SYNC_CONCURRENCY", "SERVER_PORT", "SERVER_SESSION_LIFETIME",
}

func inTempDir(t *testing.T, envFile string) {
	t.Helper()

	originalDir, err := os.Getwd()
	require.NoError(t, err, "Failed to get current directory")

	tmpDir := t.TempDir()
	require.NoError(t, os.Chdir(tmpDir), "Failed to change to temp directory")
	t.Cleanup(func() {
		assert.NoError(t, os.Chdir(originalDir), "Failed to restore original directory")
	})

	// t.Setenv restores the previous value; Unsetenv clears anything a
	// previous .env load left behind.
	for _, key := range managedVars {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	if envFile != "" {
		err = os.WriteFile(filepath.Join(tmpDir, ".env"), []byte(envFile), 0600)
		require.NoError(t, err, "Failed to write mock .env file")
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name            string
		mockEnv         map[string]string
		mockEnvFile     string
		expectError     bool
		expectSpotifyID string
		expectVenueURL  string
	}{
		{
			name: "Valid environment variables",
			mockEnv: map[string]string{
				"SPOTIFY_CLIENT_ID": "test-spotify-id",
				"VENUE_URL":         "https://venue.example.com/calendar",
			},
			expectSpotifyID: "test-spotify-id",
			expectVenueURL:  "https://venue.example.com/calendar",
		},
		{
			name:            "Valid .env file",
			mockEnvFile:     "SPOTIFY_CLIENT_ID=test-env-spotify-id\nVENUE_URL=https://venue-env.example.com\n",
			expectSpotifyID: "test-env-spotify-id",
			expectVenueURL:  "https://venue-env.example.com",
		},
		{
			name: "Environment variable overrides .env file",
			mockEnv: map[string]string{
				"SPOTIFY_CLIENT_ID": "env-spotify-id",
				"VENUE_URL":         "https://override.example.com",
			},
			mockEnvFile:     "SPOTIFY_CLIENT_ID=file-spotify-id\nVENUE_URL=https://file.example.com\n",
			expectSpotifyID: "env-spotify-id",
			expectVenueURL:  "https://override.example.com",
		},
		{
			name:        "Batch size above catalog limit",
			mockEnv:     map[string]string{"SYNC_BATCH_SIZE": "101"},
			expectError: true,
		},
		{
			name:        "Zero tracks per artist",
			mockEnv:     map[string]string{"SYNC_TRACKS_PER_ARTIST": "0"},
			expectError: true,
		},
		{
			name:        "Unparseable duration",
			mockEnv:     map[string]string{"SPOTIFY_CALL_TIMEOUT": "soon"},
			expectError: true,
		},
		{
			name:        "Invalid port",
			mockEnv:     map[string]string{"SERVER_PORT": "70000"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTempDir(t, tt.mockEnvFile)
			for key, value := range tt.mockEnv {
				t.Setenv(key, value)
			}

			conf, err := Load()
			if tt.expectError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectSpotifyID, conf.Spotify.ClientID)
			assert.Equal(t, tt.expectVenueURL, conf.Venue.URL)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t, "")

	conf, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "US", conf.Spotify.Market)
	assert.Equal(t, "http://127.0.0.1:8080/callback", conf.Spotify.RedirectURL)
	assert.Zero(t, conf.Spotify.CallTimeout)
	assert.InDelta(t, 10.0, conf.Spotify.RateLimit, 0.001)
	assert.Equal(t, "div.wPBHIIJzw9ltGDuXqcAD", conf.Venue.Selector)
	assert.Equal(t, 30*time.Second, conf.Venue.HTTPTimeoutDuration())
	assert.Equal(t, 3, conf.Venue.MaxRetries)
	assert.Equal(t, 2, conf.Sync.TracksPerArtist)
	assert.Equal(t, 100, conf.Sync.BatchSize)
	assert.Equal(t, 4, conf.Sync.Concurrency)
	assert.Equal(t, "127.0.0.1:8080", conf.Server.Address())
	assert.Equal(t, 2*time.Hour, conf.Server.SessionLifetime)
}

func TestLoad_InvalidWrapsSentinel(t *testing.T) {
	inTempDir(t, "")
	t.Setenv("SYNC_CONCURRENCY", "0")

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "sync concurrency must be at least 1")
}

func TestGetEnvVars(t *testing.T) {
	inTempDir(t, "VENUE_URL=https://venue.example.com\n")

	conf := GetEnvVars()
	assert.Equal(t, "https://venue.example.com", conf.Venue.URL)
}

func TestServerConfig_Address(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8080", ServerConfig{}.Address())
	assert.Equal(t, "0.0.0.0:9000", ServerConfig{Host: "0.0.0.0", Port: 9000}.Address())
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()

	path, err := ResolvePath(filepath.Join(dir, "nested", "deeper", "token.json"))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))

	info, err := os.Stat(filepath.Join(dir, "nested", "deeper"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = ResolvePath("")
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestResolvePath_Tilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := SpotifyConfig{TokenFilePath: "~/.config/venue2spotify/token.json"}.GetTokenFilePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "venue2spotify", "token.json"), path)
}

func TestGetSessionDBPath_Memory(t *testing.T) {
	path, err := ServerConfig{SessionDB: ":memory:"}.GetSessionDBPath()
	require.NoError(t, err)
	assert.Equal(t, ":memory:", path)
}
