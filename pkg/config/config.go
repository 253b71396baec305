// Package config provides secure configuration management for the venue2spotify application.
//
// This package handles loading configuration from environment variables and .env files
// with built-in security measures to prevent path traversal attacks. It uses the
// github.com/caarlos0/env library for environment variable parsing and
// github.com/joho/godotenv for .env file loading.
//
// The configuration loading follows a priority order:
//  1. Environment variables (highest priority)
//  2. .env file in current working directory
//  3. Default values (if any)
//
// Example usage:
//
//	import "github.com/toozej/venue2spotify/pkg/config"
//
//	func main() {
//		conf := config.GetEnvVars()
//		fmt.Printf("Venue: %s\n", conf.Venue.URL)
//	}
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config represents the main application configuration with nested service configurations.
type Config struct {
	Spotify SpotifyConfig `envPrefix:"SPOTIFY_"`
	Venue   VenueConfig   `envPrefix:"VENUE_"`
	Sync    SyncConfig    `envPrefix:"SYNC_"`
	Server  ServerConfig  `envPrefix:"SERVER_"`
}

// SpotifyConfig represents the configuration for Spotify API integration.
type SpotifyConfig struct {
	// ClientID is the Spotify application client ID.
	ClientID string `env:"CLIENT_ID"`

	// ClientSecret is the Spotify application client secret.
	ClientSecret string `env:"CLIENT_SECRET"` // #nosec G117 -- OAuth client secret, expected in config

	// RedirectURL is the callback URL for OAuth authentication.
	RedirectURL string `env:"REDIRECT_URI" envDefault:"http://127.0.0.1:8080/callback"`

	// TokenFilePath is where the CLI keeps its Spotify token between runs.
	TokenFilePath string `env:"TOKEN_FILE_PATH" envDefault:"~/.config/venue2spotify/spotify_token.json"`

	// PlaylistID is the default target playlist for CLI commands.
	PlaylistID string `env:"PLAYLIST_ID"`

	// Market is the country code used for artist top tracks.
	Market string `env:"MARKET" envDefault:"US"`

	// CallTimeout bounds each catalog call. Zero means no timeout.
	CallTimeout time.Duration `env:"CALL_TIMEOUT"`

	// RateLimit is the client-side request budget per second.
	RateLimit float64 `env:"RATE_LIMIT" envDefault:"10"`
}

// VenueConfig represents where and how artist names are scraped.
type VenueConfig struct {
	// URL is the default venue page.
	URL string `env:"URL"`

	// Selector is the CSS selector whose matched elements' text are artist names.
	Selector string `env:"SELECTOR" envDefault:"div.wPBHIIJzw9ltGDuXqcAD"`

	// HTTPTimeout is the timeout for page fetches in seconds.
	HTTPTimeout int `env:"HTTP_TIMEOUT" envDefault:"30"`

	// MaxRetries is the number of fetch attempts on gateway errors.
	MaxRetries int `env:"MAX_RETRIES" envDefault:"3"`
}

// SyncConfig tunes resolution and reconciliation.
type SyncConfig struct {
	TracksPerArtist int `env:"TRACKS_PER_ARTIST" envDefault:"2"`
	BatchSize       int `env:"BATCH_SIZE" envDefault:"100"`
	Concurrency     int `env:"CONCURRENCY" envDefault:"4"`
}

// ServerConfig represents the web server configuration.
type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"127.0.0.1"`
	Port            int           `env:"PORT" envDefault:"8080"`
	SessionDB       string        `env:"SESSION_DB" envDefault:"~/.config/venue2spotify/sessions.db"`
	SessionSecret   string        `env:"SESSION_SECRET"` // #nosec G117 -- cookie signing key, expected in config
	SessionLifetime time.Duration `env:"SESSION_LIFETIME" envDefault:"2h"`
}

// GetEnvVars loads and returns the application configuration from environment
// variables and .env files.
//
// The function will terminate the program with os.Exit(1) if any critical
// errors occur during configuration loading, such as:
//   - Current directory access failures
//   - Path traversal attempts detected
//   - .env file parsing errors
//   - Environment variable parsing failures
//   - Configuration validation errors
func GetEnvVars() Config {
	conf, err := Load()
	if err != nil {
		fmt.Printf("Configuration error: %s\n", err)
		fmt.Println("Please check your configuration and try again.")
		os.Exit(1)
	}
	return conf
}

// Load reads the .env file in the current directory, if any, then parses and
// validates the environment.
func Load() (Config, error) {
	// Get current working directory for secure file operations
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("getting current working directory: %w", err)
	}

	// Construct secure path for .env file within current directory
	envPath := filepath.Join(cwd, ".env")

	// Ensure the path is within our expected directory (prevent traversal)
	cleanEnvPath, err := filepath.Abs(envPath)
	if err != nil {
		return Config{}, fmt.Errorf("resolving .env file path: %w", err)
	}
	cleanCwd, err := filepath.Abs(cwd)
	if err != nil {
		return Config{}, fmt.Errorf("resolving current directory: %w", err)
	}
	relPath, err := filepath.Rel(cleanCwd, cleanEnvPath)
	if err != nil || strings.Contains(relPath, "..") {
		return Config{}, ErrPathTraversal
	}

	// Load .env file if it exists
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return Config{}, fmt.Errorf("loading .env file: %w", err)
		}
	}

	var conf Config
	if err := env.Parse(&conf); err != nil {
		return Config{}, fmt.Errorf("parsing configuration from environment: %w", err)
	}

	if err := validateConfig(&conf); err != nil {
		return Config{}, err
	}

	return conf, nil
}

// Address returns the server address
func (s ServerConfig) Address() string {
	if s.Host == "" {
		s.Host = "127.0.0.1"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GetSessionDBPath returns the resolved session database path
func (s ServerConfig) GetSessionDBPath() (string, error) {
	if s.SessionDB == ":memory:" {
		return s.SessionDB, nil
	}
	return ResolvePath(s.SessionDB)
}

// GetTokenFilePath returns the resolved token file path, handling tilde expansion
// and ensuring the directory exists.
func (s SpotifyConfig) GetTokenFilePath() (string, error) {
	return ResolvePath(s.TokenFilePath)
}

// HTTPTimeoutDuration returns the venue fetch timeout
func (v VenueConfig) HTTPTimeoutDuration() time.Duration {
	return time.Duration(v.HTTPTimeout) * time.Second
}

// ResolvePath expands a leading ~/, makes the path absolute and creates its
// parent directory.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	return absPath, nil
}

// validateConfig validates the configuration
func validateConfig(conf *Config) error {
	var errors []string

	if conf.Server.Port < 1 || conf.Server.Port > 65535 {
		errors = append(errors, "server port must be between 1 and 65535")
	}
	if conf.Server.SessionLifetime <= 0 {
		errors = append(errors, "server session lifetime must be greater than 0")
	}

	// Validate Spotify configuration (warn but don't fail)
	if conf.Spotify.ClientID == "" {
		fmt.Println("Warning: SPOTIFY_CLIENT_ID is not set. The application will not be able to connect to Spotify.")
		fmt.Println("Please set your Spotify credentials to use the application.")
	}
	if conf.Spotify.ClientSecret == "" {
		fmt.Println("Warning: SPOTIFY_CLIENT_SECRET is not set. The application will not be able to connect to Spotify.")
	}
	if conf.Spotify.CallTimeout < 0 {
		errors = append(errors, "spotify call timeout must not be negative")
	}
	if conf.Spotify.RateLimit <= 0 {
		errors = append(errors, "spotify rate limit must be greater than 0")
	}

	if conf.Venue.Selector == "" {
		errors = append(errors, "venue selector is required")
	}
	if conf.Venue.HTTPTimeout <= 0 {
		errors = append(errors, "venue HTTP timeout must be greater than 0")
	}
	if conf.Venue.MaxRetries < 1 {
		errors = append(errors, "venue max retries must be at least 1")
	}

	if conf.Sync.TracksPerArtist < 1 {
		errors = append(errors, "tracks per artist must be at least 1")
	}
	if conf.Sync.BatchSize < 1 || conf.Sync.BatchSize > 100 {
		errors = append(errors, "sync batch size must be between 1 and 100")
	}
	if conf.Sync.Concurrency < 1 {
		errors = append(errors, "sync concurrency must be at least 1")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%w:\n- %s", ErrInvalidConfig, strings.Join(errors, "\n- "))
	}

	return nil
}
