// Package duplicate holds the pure, I/O-free part of playlist reconciliation:
// URI-based deduplication of desired tracks and the desired-vs-existing diff.
package duplicate

import (
	"github.com/toozej/venue2spotify/internal/types"
)

// Desired deduplicates tracks by URI, keeping the first occurrence of each
// and preserving input order.
func Desired(tracks []types.Track) []types.Track {
	seen := make(map[string]struct{}, len(tracks))
	desired := make([]types.Track, 0, len(tracks))
	for _, track := range tracks {
		if _, dup := seen[track.URI]; dup {
			continue
		}
		seen[track.URI] = struct{}{}
		desired = append(desired, track)
	}
	return desired
}

// ComputePlan splits desired into the tracks missing from existing (ToAdd) and
// the tracks already there (AlreadyPresent). Both keep desired's order.
func ComputePlan(desired []types.Track, existing types.Membership) types.ReconciliationPlan {
	plan := types.ReconciliationPlan{
		ToAdd:          []types.Track{},
		AlreadyPresent: []types.Track{},
	}
	for _, track := range desired {
		if existing.Contains(track.URI) {
			plan.AlreadyPresent = append(plan.AlreadyPresent, track)
		} else {
			plan.ToAdd = append(plan.ToAdd, track)
		}
	}
	return plan
}

// UniqueURIs returns uris without repeats, in first-seen order
func UniqueURIs(uris []string) []string {
	seen := make(map[string]struct{}, len(uris))
	unique := make([]string, 0, len(uris))
	for _, uri := range uris {
		if _, dup := seen[uri]; dup {
			continue
		}
		seen[uri] = struct{}{}
		unique = append(unique, uri)
	}
	return unique
}

// URIs extracts the URI of every track
func URIs(tracks []types.Track) []string {
	uris := make([]string, len(tracks))
	for i, track := range tracks {
		uris[i] = track.URI
	}
	return uris
}
