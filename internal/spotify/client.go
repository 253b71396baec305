package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/toozej/venue2spotify/internal/types"
	"github.com/toozej/venue2spotify/pkg/config"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// Client manages the CLI's OAuth flow and the token persisted between runs.
type Client struct {
	auth      *spotifyauth.Authenticator
	opts      Options
	baseURL   string
	logger    *logrus.Logger
	state     string
	tokenFile string

	tokenMu sync.RWMutex
	token   *oauth2.Token
}

// TokenData represents the stored token information
type TokenData struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
}

// NewAuthenticator builds the authorization code flow with the scopes needed
// to read and modify the user's playlists.
func NewAuthenticator(cfg config.SpotifyConfig) *spotifyauth.Authenticator {
	return spotifyauth.New(
		spotifyauth.WithRedirectURL(cfg.RedirectURL),
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserReadPrivate,
			spotifyauth.ScopePlaylistReadPrivate,
			spotifyauth.ScopePlaylistReadCollaborative,
			spotifyauth.ScopePlaylistModifyPrivate,
			spotifyauth.ScopePlaylistModifyPublic,
		),
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
	)
}

// OptionsFromConfig maps configuration onto catalog options
func OptionsFromConfig(cfg config.SpotifyConfig) Options {
	return Options{
		Market:      cfg.Market,
		CallTimeout: cfg.CallTimeout,
		RateLimit:   cfg.RateLimit,
	}
}

// NewCatalogForToken builds a catalog whose HTTP client refreshes token as needed.
// An empty baseURL uses the public Web API.
func NewCatalogForToken(ctx context.Context, auth *spotifyauth.Authenticator, token *oauth2.Token, baseURL string, opts Options, logger *logrus.Logger) *Catalog {
	clientOpts := []spotify.ClientOption{spotify.WithRetry(true)}
	if baseURL != "" {
		clientOpts = append(clientOpts, spotify.WithBaseURL(baseURL))
	}
	return NewCatalog(spotify.New(auth.Client(ctx, token), clientOpts...), opts, logger)
}

// NewClient creates a CLI client and loads any token saved by a previous run
func NewClient(cfg config.SpotifyConfig, logger *logrus.Logger) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, config.ErrMissingSpotifyCredentials
	}
	if cfg.RedirectURL == "" {
		return nil, fmt.Errorf("redirect URL is required but not configured")
	}

	tokenFile, err := cfg.GetTokenFilePath()
	if err != nil {
		logger.WithError(err).Warn("Could not determine token file path, authentication will be required each time")
	}

	c := &Client{
		auth:      NewAuthenticator(cfg),
		opts:      OptionsFromConfig(cfg),
		logger:    logger,
		state:     uuid.NewString(),
		tokenFile: tokenFile,
	}

	if c.loadToken() {
		logger.WithField("token_file", tokenFile).Debug("Loaded existing Spotify authentication token")
	}

	return c, nil
}

// AuthURL returns the URL the user visits to grant access
func (c *Client) AuthURL() string {
	return c.auth.AuthURL(c.state)
}

// HasToken reports whether a token is available, either loaded or exchanged
func (c *Client) HasToken() bool {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.token != nil
}

// CompleteAuth exchanges the authorization code for a token and saves it
func (c *Client) CompleteAuth(ctx context.Context, code, state string) error {
	if state != c.state {
		return fmt.Errorf("invalid state parameter")
	}

	token, err := c.auth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code for token: %w", err)
	}

	c.tokenMu.Lock()
	c.token = token
	c.tokenMu.Unlock()

	if err := c.saveToken(token); err != nil {
		c.logger.WithError(err).Warn("Failed to save authentication token, will require re-authentication next time")
	} else {
		c.logger.WithField("token_file", c.tokenFile).Info("💾 Authentication token saved")
	}
	return nil
}

// Catalog returns a catalog adapter for the current token
func (c *Client) Catalog(ctx context.Context) (*Catalog, error) {
	c.tokenMu.RLock()
	token := c.token
	c.tokenMu.RUnlock()

	if token == nil {
		return nil, types.ErrNotAuthenticated
	}
	return NewCatalogForToken(ctx, c.auth, token, c.baseURL, c.opts, c.logger), nil
}

// Verify checks the token with a cheap call and returns the user ID
func (c *Client) Verify(ctx context.Context) (string, error) {
	cat, err := c.Catalog(ctx)
	if err != nil {
		return "", err
	}
	userID, err := cat.CurrentUserID(ctx)
	if err != nil {
		return "", fmt.Errorf("authentication verification failed: %w", err)
	}
	c.PersistRefreshed(cat)
	return userID, nil
}

// PersistRefreshed saves the catalog's token if it was refreshed during use
func (c *Client) PersistRefreshed(cat *Catalog) {
	current, err := cat.Token()
	if err != nil || current == nil {
		return
	}

	c.tokenMu.Lock()
	changed := c.token == nil || c.token.AccessToken != current.AccessToken
	c.token = current
	c.tokenMu.Unlock()

	if !changed {
		return
	}
	if err := c.saveToken(current); err != nil {
		c.logger.WithError(err).Warn("Failed to save refreshed token")
		return
	}
	c.logger.Debug("Refreshed token saved successfully")
}

// loadToken attempts to load a stored token from disk
func (c *Client) loadToken() bool {
	if c.tokenFile == "" {
		return false
	}

	data, err := os.ReadFile(c.tokenFile)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.WithError(err).Debug("Failed to read token file")
		}
		return false
	}

	var tokenData TokenData
	if err := json.Unmarshal(data, &tokenData); err != nil {
		c.logger.WithError(err).Debug("Failed to parse token file")
		return false
	}
	if tokenData.AccessToken == "" && tokenData.RefreshToken == "" {
		return false
	}

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	c.token = &oauth2.Token{
		AccessToken:  tokenData.AccessToken,
		RefreshToken: tokenData.RefreshToken,
		TokenType:    tokenData.TokenType,
		Expiry:       tokenData.Expiry,
	}
	return true
}

// saveToken writes the token to a temporary file and renames it into place
func (c *Client) saveToken(token *oauth2.Token) error {
	if c.tokenFile == "" || token == nil {
		return nil
	}

	data, err := json.MarshalIndent(TokenData{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token data: %w", err)
	}

	tempFile := c.tokenFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	if err := os.Rename(tempFile, c.tokenFile); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to rename token file: %w", err)
	}
	return nil
}
