package spotify

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toozej/venue2spotify/internal/types"
	"github.com/toozej/venue2spotify/pkg/config"
	"golang.org/x/oauth2"
)

func testConfig(t *testing.T) config.SpotifyConfig {
	t.Helper()
	return config.SpotifyConfig{
		ClientID:      "test-id",
		ClientSecret:  "test-secret",
		RedirectURL:   "http://127.0.0.1:8080/callback",
		TokenFilePath: filepath.Join(t.TempDir(), "venue2spotify", "spotify_token.json"),
		Market:        "US",
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*config.SpotifyConfig)
		expectErr error
	}{
		{name: "valid config", mutate: func(*config.SpotifyConfig) {}},
		{name: "missing client id", mutate: func(c *config.SpotifyConfig) { c.ClientID = "" }, expectErr: config.ErrMissingSpotifyCredentials},
		{name: "missing secret", mutate: func(c *config.SpotifyConfig) { c.ClientSecret = "" }, expectErr: config.ErrMissingSpotifyCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)

			client, err := NewClient(cfg, quietLogger())
			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			assert.False(t, client.HasToken())
		})
	}
}

func TestNewClient_MissingRedirect(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedirectURL = ""
	_, err := NewClient(cfg, quietLogger())
	assert.ErrorContains(t, err, "redirect URL is required")
}

func TestClient_AuthURL(t *testing.T) {
	client, err := NewClient(testConfig(t), quietLogger())
	require.NoError(t, err)

	u, err := url.Parse(client.AuthURL())
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "test-id", q.Get("client_id"))
	assert.Equal(t, "http://127.0.0.1:8080/callback", q.Get("redirect_uri"))
	assert.Equal(t, client.state, q.Get("state"))
	assert.Contains(t, q.Get("scope"), "playlist-modify-private")
	assert.Contains(t, q.Get("scope"), "playlist-read-collaborative")

	other, err := NewClient(testConfig(t), quietLogger())
	require.NoError(t, err)
	assert.NotEqual(t, client.state, other.state, "state is random per client")
}

func TestClient_CompleteAuth_StateMismatch(t *testing.T) {
	client, err := NewClient(testConfig(t), quietLogger())
	require.NoError(t, err)

	err = client.CompleteAuth(context.Background(), "code", "wrong-state")
	assert.ErrorContains(t, err, "invalid state")
	assert.False(t, client.HasToken())
}

func TestClient_Catalog_NotAuthenticated(t *testing.T) {
	client, err := NewClient(testConfig(t), quietLogger())
	require.NoError(t, err)

	_, err = client.Catalog(context.Background())
	assert.ErrorIs(t, err, types.ErrNotAuthenticated)
}

func TestClient_TokenRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	client, err := NewClient(cfg, quietLogger())
	require.NoError(t, err)

	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
	require.NoError(t, client.saveToken(token))

	info, err := os.Stat(cfg.TokenFilePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded, err := NewClient(cfg, quietLogger())
	require.NoError(t, err)
	require.True(t, reloaded.HasToken())
	assert.Equal(t, "access", reloaded.token.AccessToken)
	assert.Equal(t, "refresh", reloaded.token.RefreshToken)
	assert.True(t, token.Expiry.Equal(reloaded.token.Expiry))
}

func TestClient_LoadToken_Invalid(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.TokenFilePath), 0700))

	require.NoError(t, os.WriteFile(cfg.TokenFilePath, []byte("{not json"), 0600))
	client, err := NewClient(cfg, quietLogger())
	require.NoError(t, err)
	assert.False(t, client.HasToken())

	empty, _ := json.Marshal(TokenData{})
	require.NoError(t, os.WriteFile(cfg.TokenFilePath, empty, 0600))
	client, err = NewClient(cfg, quietLogger())
	require.NoError(t, err)
	assert.False(t, client.HasToken())
}

func TestClient_VerifyAndPersist(t *testing.T) {
	api := &fakeAPI{}
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	cfg := testConfig(t)
	client, err := NewClient(cfg, quietLogger())
	require.NoError(t, err)
	client.baseURL = server.URL + "/"
	client.token = &oauth2.Token{AccessToken: "access", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}

	userID, err := client.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "me", userID)

	// Unchanged token is not rewritten
	_, err = os.Stat(cfg.TokenFilePath)
	assert.True(t, os.IsNotExist(err))
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.SpotifyConfig{Market: "SE", CallTimeout: 3 * time.Second, RateLimit: 7}
	assert.Equal(t, Options{Market: "SE", CallTimeout: 3 * time.Second, RateLimit: 7}, OptionsFromConfig(cfg))
}
