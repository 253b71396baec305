// Package venue fetches a venue's event page and extracts the names of
// upcoming artists with a CSS selector.
//
// Names are the trimmed text of each matched element, de-duplicated in
// document order. Fetch or parse problems are logged; Scrape then returns an
// empty list so callers can report an unavailable source.
package venue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"

	"github.com/toozej/venue2spotify/pkg/config"
	"github.com/toozej/venue2spotify/pkg/useragent"
)

// Scraper handles fetching venue pages and extracting artist names.
type Scraper struct {
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	userAgent  func(ctx context.Context) string
	logger     *log.Entry
}

// NewScraper creates a scraper from the venue configuration
func NewScraper(cfg config.VenueConfig, logger *log.Logger) *Scraper {
	timeout := cfg.HTTPTimeoutDuration()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &Scraper{
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		backoff:    2 * time.Second,
		userAgent:  useragent.GetLatestChromeUserAgent,
		logger:     logger.WithField("component", "venue_scraper"),
	}
}

// Scrape returns the artist names on pageURL, or an empty list on any failure.
func (s *Scraper) Scrape(ctx context.Context, pageURL, selector string) []string {
	artists, err := s.FetchArtists(ctx, pageURL, selector)
	if err != nil {
		s.logger.WithError(err).WithField("url", pageURL).Error("Failed to scrape venue page")
		return []string{}
	}
	return artists
}

// FetchArtists is Scrape with the failure reported to the caller
func (s *Scraper) FetchArtists(ctx context.Context, pageURL, selector string) ([]string, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, errors.New("empty CSS selector")
	}

	doc, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	artists := extractArtists(doc, selector)

	s.logger.WithFields(log.Fields{
		"url":          pageURL,
		"selector":     selector,
		"artist_count": len(artists),
	}).Info("Extracted artists from venue page")
	return artists, nil
}

// fetch GETs the page, retrying transport errors and gateway statuses
func (s *Scraper) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	// Set headers to mimic a browser request
	req.Header.Set("User-Agent", s.userAgent(ctx))
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	var resp *http.Response
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		attemptStart := time.Now()
		resp, err = s.httpClient.Do(req) // #nosec G107 -- URL is user-supplied by design
		duration := time.Since(attemptStart)

		if err == nil && resp.StatusCode != http.StatusBadGateway && resp.StatusCode != http.StatusGatewayTimeout {
			break
		}

		status := 0
		if resp != nil {
			status = resp.StatusCode
			_ = resp.Body.Close()
			resp = nil
		}

		if attempt < s.maxRetries {
			waitTime := time.Duration(attempt) * s.backoff
			s.logger.WithFields(log.Fields{
				"attempt":     attempt,
				"max_retries": s.maxRetries,
				"wait_time":   waitTime,
				"status_code": status,
				"duration_ms": duration.Milliseconds(),
				"error":       err,
			}).Warn("Venue page request failed, retrying...")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(waitTime):
			}
			continue
		}

		if err == nil {
			err = fmt.Errorf("venue page returned status %d", status)
		}
		return nil, fmt.Errorf("failed to fetch venue page after %d attempts: %w", s.maxRetries, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("venue page returned status %d: %s", resp.StatusCode, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse venue page: %w", err)
	}
	return doc, nil
}

// extractArtists returns the trimmed, non-empty text of every element
// matching selector, without repeats, in document order. A selector that
// does not compile matches nothing.
func extractArtists(doc *goquery.Document, selector string) []string {
	seen := make(map[string]struct{})
	artists := []string{}
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.Text())
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		artists = append(artists, name)
	})
	return artists
}
