// Package useragent provides utilities for generating and managing user agent strings.
//
// Venue pages are often served through bot filters that reject obvious HTTP
// libraries, so page fetches present a current desktop Chrome user agent.
package useragent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// VersionHistoryURL lists the current stable Chrome releases for macOS
const VersionHistoryURL = "https://versionhistory.googleapis.com/v1/chrome/platforms/mac/channels/stable/versions?fields=versions(version)&filter=endtime=none"

// FallbackVersion is used whenever the version lookup fails
const FallbackVersion = "131.0.0.0"

// ChromeVersionResponse represents the response from Chrome version API
type ChromeVersionResponse struct {
	Versions []ChromeVersion `json:"versions"`
}

// ChromeVersion represents a Chrome version entry
type ChromeVersion struct {
	Version string `json:"version"`
}

// Provider looks up the latest Chrome version once and reuses the result.
type Provider struct {
	endpoint   string
	httpClient *http.Client

	once      sync.Once
	userAgent string
}

// NewProvider creates a provider querying endpoint. An empty endpoint uses
// VersionHistoryURL.
func NewProvider(endpoint string) *Provider {
	if endpoint == "" {
		endpoint = VersionHistoryURL
	}
	return &Provider{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

var defaultProvider = NewProvider("")

// GetLatestChromeUserAgent returns a macOS Chrome user agent using the
// package-wide cached provider.
func GetLatestChromeUserAgent(ctx context.Context) string {
	return defaultProvider.UserAgent(ctx)
}

// UserAgent returns the cached user agent, fetching the version on first use.
// Lookup failures fall back to FallbackVersion and are cached too.
func (p *Provider) UserAgent(ctx context.Context) string {
	p.once.Do(func() {
		version, err := p.latestVersion(ctx)
		if err != nil {
			log.WithError(err).Debug("Failed to fetch Chrome version, using fallback")
			version = FallbackVersion
		}
		p.userAgent = GetChromeUserAgentWithVersion(version)
		log.Debugf("Using Chrome user agent with version %s", version)
	})
	return p.userAgent
}

func (p *Provider) latestVersion(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := p.httpClient.Do(req) // #nosec G107 -- endpoint is a constant or test server
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chrome version API returned status %d", resp.StatusCode)
	}

	var versionResp ChromeVersionResponse
	if err := json.NewDecoder(resp.Body).Decode(&versionResp); err != nil {
		return "", fmt.Errorf("decoding chrome version response: %w", err)
	}
	if len(versionResp.Versions) == 0 || versionResp.Versions[0].Version == "" {
		return "", fmt.Errorf("no chrome versions in response")
	}

	return versionResp.Versions[0].Version, nil
}

// GetChromeUserAgentWithVersion constructs a Chrome user agent string with a specific version.
//
// Example:
//
//	userAgent := useragent.GetChromeUserAgentWithVersion("120.0.0.0")
//	// Returns: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
func GetChromeUserAgentWithVersion(version string) string {
	return fmt.Sprintf("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", version)
}
