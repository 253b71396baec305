// Package search provides fuzzy filtering for the artist and playlist lists
// shown to the user, and a confidence score for how closely a catalog match
// resembles the scraped name. It never decides which catalog artist is used.
package search

import (
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/toozej/venue2spotify/internal/types"
)

// LowConfidence is the score below which a match is worth flagging
const LowConfidence = 0.5

// FilterNames returns the names fuzzy-matching query, best match first. An
// empty query returns names unchanged.
func FilterNames(query string, names []string) []string {
	if strings.TrimSpace(query) == "" {
		return names
	}

	matches := fuzzy.Find(strings.TrimSpace(query), names)
	filtered := make([]string, len(matches))
	for i, m := range matches {
		filtered[i] = m.Str
	}
	return filtered
}

// playlistSource adapts playlists to fuzzy.Source, matching on name
type playlistSource []types.Playlist

func (p playlistSource) String(i int) string { return p[i].Name }
func (p playlistSource) Len() int            { return len(p) }

// FilterPlaylists returns the playlists whose names fuzzy-match query, best
// match first. An empty query returns playlists unchanged.
func FilterPlaylists(query string, playlists []types.Playlist) []types.Playlist {
	if strings.TrimSpace(query) == "" {
		return playlists
	}

	matches := fuzzy.FindFrom(strings.TrimSpace(query), playlistSource(playlists))
	filtered := make([]types.Playlist, len(matches))
	for i, m := range matches {
		filtered[i] = playlists[m.Index]
	}
	return filtered
}

// MatchConfidence scores between 0.0 and 1.0 how well name matches query
func MatchConfidence(query, name string) float64 {
	normalizedQuery := strings.ToLower(strings.TrimSpace(query))
	normalizedName := strings.ToLower(strings.TrimSpace(name))

	if normalizedQuery == "" || normalizedName == "" {
		return 0.0
	}
	if normalizedQuery == normalizedName {
		return 1.0
	}

	// Query contained in name: 0.8 to 1.0 depending on coverage
	if strings.Contains(normalizedName, normalizedQuery) {
		ratio := float64(len(normalizedQuery)) / float64(len(normalizedName))
		return 0.8 + (ratio * 0.2)
	}

	// Name contained in query: 0.7 to 0.9
	if strings.Contains(normalizedQuery, normalizedName) {
		ratio := float64(len(normalizedName)) / float64(len(normalizedQuery))
		return 0.7 + (ratio * 0.2)
	}

	matches := fuzzy.Find(normalizedQuery, []string{normalizedName})
	if len(matches) == 0 {
		return 0.1
	}

	// Normalize the fuzzy score into 0.1 to 0.7
	maxExpectedScore := float64(len(normalizedQuery) * 2)
	confidence := (float64(matches[0].Score) / maxExpectedScore) * 0.7
	return min(max(confidence, 0.1), 0.7)
}
