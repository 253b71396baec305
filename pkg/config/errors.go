// Package config provides error definitions for configuration-related errors.
package config

import "errors"

// Configuration validation errors
var (
	// ErrInvalidConfig wraps every validation failure reported by Load
	ErrInvalidConfig = errors.New("configuration errors")

	// ErrPathTraversal is returned when the .env path escapes the working directory
	ErrPathTraversal = errors.New(".env file path traversal detected")

	// ErrEmptyPath is returned when a file path setting is blank
	ErrEmptyPath = errors.New("path is empty")

	// ErrMissingSpotifyCredentials is returned when Spotify Client ID or secret is not provided
	ErrMissingSpotifyCredentials = errors.New("spotify client ID and secret are required")

	// ErrMissingPlaylistID is returned when no target playlist is given
	ErrMissingPlaylistID = errors.New("spotify playlist ID is required (--playlist or SPOTIFY_PLAYLIST_ID)")

	// ErrMissingVenueURL is returned when no venue page is given
	ErrMissingVenueURL = errors.New("venue URL is required (--url or VENUE_URL)")
)
