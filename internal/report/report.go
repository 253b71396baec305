// Package report renders sync results, artist lists and playlists for the
// terminal as styled text or as JSON, YAML or TOML.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
	"github.com/toozej/venue2spotify/internal/pipeline"
	"github.com/toozej/venue2spotify/internal/types"
	"gopkg.in/yaml.v3"
)

// Supported output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// Formats lists every accepted format name
var Formats = []string{FormatText, FormatJSON, FormatYAML, FormatTOML}

// ErrUnknownFormat is returned for a format outside Formats
var ErrUnknownFormat = errors.New("unknown output format")

// Palette holds the styles used by text output
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	warn  lipgloss.Style
	muted lipgloss.Style
}

var styles = NewPalette("#7D56F4", "#04B575", "#FFA500", "#626262")

// NewPalette builds a palette from title, success, warning and muted colors
func NewPalette(title, ok, warn, muted string) *Palette {
	return &Palette{
		title: lipgloss.NewStyle().Foreground(lipgloss.Color(title)).Bold(true),
		ok:    lipgloss.NewStyle().Foreground(lipgloss.Color(ok)).Bold(true),
		warn:  lipgloss.NewStyle().Foreground(lipgloss.Color(warn)),
		muted: lipgloss.NewStyle().Foreground(lipgloss.Color(muted)).Italic(true),
	}
}

// ValidateFormat normalizes format and rejects unknown names
func ValidateFormat(format string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "" {
		return FormatText, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w %q, expected one of %s", ErrUnknownFormat, format, strings.Join(Formats, ", "))
}

// Result writes a sync result in the given format
func Result(w io.Writer, format string, result *pipeline.Result) error {
	if result == nil {
		result = &pipeline.Result{}
	}
	return render(w, format, result, func(w io.Writer) error {
		return styles.result(w, result)
	})
}

type artistList struct {
	Artists []string `json:"artists" yaml:"artists" toml:"artists"`
}

// Artists writes a list of artist names in the given format
func Artists(w io.Writer, format string, artists []string) error {
	return render(w, format, artistList{Artists: artists}, func(w io.Writer) error {
		fmt.Fprintln(w, styles.title.Render(fmt.Sprintf("🎤 %d artists", len(artists))))
		for i, name := range artists {
			fmt.Fprintf(w, "%3d. %s\n", i+1, name)
		}
		return nil
	})
}

type playlistList struct {
	Playlists []types.Playlist `json:"playlists" yaml:"playlists" toml:"playlists"`
}

// Playlists writes a list of playlists in the given format
func Playlists(w io.Writer, format string, playlists []types.Playlist) error {
	return render(w, format, playlistList{Playlists: playlists}, func(w io.Writer) error {
		fmt.Fprintln(w, styles.title.Render(fmt.Sprintf("📋 %d playlists you can modify", len(playlists))))
		for _, p := range playlists {
			line := fmt.Sprintf("%s  %s (%d tracks)", p.ID, p.Name, p.TrackCount)
			if p.Collaborative {
				line += " " + styles.muted.Render("collaborative")
			}
			fmt.Fprintln(w, line)
		}
		return nil
	})
}

// Outcome writes the outcome of a clear
func Outcome(w io.Writer, format string, playlistID string, outcome types.Outcome) error {
	v := struct {
		PlaylistID string        `json:"playlist_id" yaml:"playlist_id" toml:"playlist_id"`
		Cleared    types.Outcome `json:"cleared" yaml:"cleared" toml:"cleared"`
	}{PlaylistID: playlistID, Cleared: outcome}

	return render(w, format, v, func(w io.Writer) error {
		styles.cleared(w, outcome)
		return nil
	})
}

func render(w io.Writer, format string, v any, text func(io.Writer) error) error {
	f, err := ValidateFormat(format)
	if err != nil {
		return err
	}

	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(v); err != nil {
			return fmt.Errorf("failed to encode toml: %w", err)
		}
		return nil
	default:
		return text(w)
	}
}

func (p *Palette) result(w io.Writer, result *pipeline.Result) error {
	fmt.Fprintln(w, p.title.Render(fmt.Sprintf("🎤 Found %d artists", len(result.Artists))))
	fmt.Fprintln(w, p.title.Render(fmt.Sprintf("🎵 Resolved %d artists", len(result.Resolved))))
	for _, artist := range result.Resolved {
		fmt.Fprintf(w, "  %s\n", artist.Name)
		for _, t := range artist.Tracks {
			fmt.Fprintf(w, "    • %s\n", t)
		}
	}

	if result.NothingResolved() {
		fmt.Fprintln(w, p.warn.Render("⚠️  No tracks resolved for any artist, playlist left unchanged"))
		return nil
	}

	if result.Created != nil {
		fmt.Fprintln(w, p.ok.Render(fmt.Sprintf("🆕 Created playlist %s (%s)", result.Created.Name, result.Created.ID)))
	}
	if result.Cleared != nil {
		p.cleared(w, *result.Cleared)
	}

	plan := result.Plan
	if plan == nil {
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, p.title.Render("📋 Playlist: "+plan.Playlist.Name))
	if len(plan.AlreadyPresent) > 0 {
		fmt.Fprintln(w, p.muted.Render(fmt.Sprintf("⏭️  %d tracks already in playlist", len(plan.AlreadyPresent))))
	}

	switch {
	case !plan.HasChanges():
		fmt.Fprintln(w, p.ok.Render("✅ Playlist already up to date"))
	case plan.DryRun:
		fmt.Fprintln(w, p.warn.Render(fmt.Sprintf("🔍 Dry run: would add %d tracks", len(plan.ToAdd))))
		for _, t := range plan.ToAdd {
			fmt.Fprintf(w, "    + %s\n", t)
		}
	case plan.Outcome.Applied:
		fmt.Fprintln(w, p.ok.Render(fmt.Sprintf("✅ Added %d tracks in %d batches", plan.Outcome.Submitted, plan.Outcome.Batches)))
	default:
		fmt.Fprintln(w, p.warn.Render(fmt.Sprintf("⚠️  Added %d of %d tracks before a failure", plan.Outcome.Submitted, len(plan.ToAdd))))
	}
	if plan.Outcome.Dropped > 0 {
		fmt.Fprintln(w, p.warn.Render(fmt.Sprintf("⚠️  Skipped %d tracks with invalid identifiers", plan.Outcome.Dropped)))
	}
	return nil
}

func (p *Palette) cleared(w io.Writer, outcome types.Outcome) {
	switch {
	case !outcome.Applied:
		fmt.Fprintln(w, p.warn.Render("🧹 Playlist would be cleared first"))
	case outcome.Submitted == 0 && outcome.Dropped == 0:
		fmt.Fprintln(w, p.muted.Render("🧹 Playlist was already empty"))
	default:
		fmt.Fprintln(w, p.ok.Render(fmt.Sprintf("🧹 Removed %d tracks", outcome.Submitted)))
	}
	if outcome.Dropped > 0 {
		fmt.Fprintln(w, p.warn.Render(fmt.Sprintf("⚠️  %d items that are not tracks were left in the playlist", outcome.Dropped)))
	}
}
