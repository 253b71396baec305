package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/toozej/venue2spotify/internal/pipeline"
	"github.com/toozej/venue2spotify/internal/search"
	"github.com/toozej/venue2spotify/internal/session"
	"github.com/toozej/venue2spotify/internal/types"
)

// pageData is what the templates render
type pageData struct {
	Configured    bool
	Authenticated bool
	AuthURL       string
	Flashes       []session.Flash

	URL      string
	Selector string
	Query    string

	Playlists []types.Playlist
	Artists   []string
	Resolved  []types.ResolvedArtist
	Selected  string
	Plan      *types.ReconciliationPlan
}

// newPlaylistOption is the playlist_id value asking for a fresh playlist
const newPlaylistOption = "new"

const permissionMessage = "You do not have permission to modify this playlist. Make sure you own the playlist or it is set as collaborative."

// flashMessage turns a run-level failure into something a user can act on
func flashMessage(err error) string {
	var batchErr *types.BatchError
	switch {
	case errors.Is(err, types.ErrPermissionDenied):
		return permissionMessage
	case errors.As(err, &batchErr):
		return fmt.Sprintf("Spotify stopped accepting changes after %d tracks. Please try again.", batchErr.Applied)
	case errors.Is(err, types.ErrSourceUnavailable):
		return "No artists found. Please check the URL."
	case errors.Is(err, types.ErrNoTracksResolved):
		return "None of the artists could be found on Spotify."
	case errors.Is(err, types.ErrPagination):
		return "Could not read the playlist from Spotify. Please try again."
	case errors.Is(err, types.ErrNotAuthenticated):
		return "Please connect to Spotify first."
	case errors.Is(err, pipeline.ErrCannotCreatePlaylist):
		return "Creating playlists is not supported with this Spotify connection."
	default:
		return "Spotify error: " + err.Error()
	}
}

func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.deps.Sessions.Get(r)
	if err != nil {
		s.logger.WithError(err).WithField("component", "web").Error("Failed to load session")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	return sess, true
}

func (s *Server) saveSession(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := s.deps.Sessions.Save(w, r, sess); err != nil {
		s.logger.WithError(err).WithField("component", "web").Error("Failed to save session")
	}
}

// redirect saves the session and sends the browser to target
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, sess *session.Session, target string) {
	s.saveSession(w, r, sess)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// fail logs a run-level failure, flashes it and redirects to the previous step
func (s *Server) fail(w http.ResponseWriter, r *http.Request, sess *session.Session, operation string, err error, target string) {
	s.logger.WithError(err).WithFields(log.Fields{
		"component": "web",
		"operation": operation,
	}).Warn("Request failed")
	sess.AddFlash(session.FlashError, flashMessage(err))
	s.redirect(w, r, sess, target)
}

func (s *Server) catalogFor(ctx context.Context, sess *session.Session) (Catalog, error) {
	if !sess.Authenticated() {
		return nil, types.ErrNotAuthenticated
	}
	return s.deps.Catalogs(ctx, sess.Data.Token)
}

// persistToken copies a refreshed token back into the session
func (s *Server) persistToken(sess *session.Session, cat Catalog) {
	ts, ok := cat.(tokenSource)
	if !ok {
		return
	}
	token, err := ts.Token()
	if err != nil || token == nil {
		return
	}
	if sess.Data.Token == nil || sess.Data.Token.AccessToken != token.AccessToken {
		sess.Data.Token = token
		s.logger.WithField("component", "web").Debug("Stored refreshed token in session")
	}
}

// baseData fills the fields every page shows. An unauthenticated session
// gets an OAuth state and authorization URL.
func (s *Server) baseData(sess *session.Session) pageData {
	data := pageData{
		Configured:    s.deps.Auth != nil,
		Authenticated: sess.Authenticated(),
		URL:           sess.Data.URL,
		Selector:      sess.Data.Selector,
	}
	if data.URL == "" {
		data.URL = s.deps.Venue.URL
	}
	if data.Selector == "" {
		data.Selector = s.deps.Venue.Selector
	}

	if data.Configured && !data.Authenticated {
		if sess.Data.OAuthState == "" {
			sess.Data.OAuthState = uuid.NewString()
		}
		data.AuthURL = s.deps.Auth.AuthURL(sess.Data.OAuthState)
	}
	return data
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	data := s.baseData(sess)
	data.Query = strings.TrimSpace(r.URL.Query().Get("q"))

	if data.Authenticated {
		cat, err := s.catalogFor(r.Context(), sess)
		if err == nil {
			var playlists []types.Playlist
			playlists, err = cat.ModifiablePlaylists(r.Context())
			data.Playlists = search.FilterPlaylists(data.Query, playlists)
			s.persistToken(sess, cat)
		}
		if err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"component": "web",
				"operation": "list_playlists",
			}).Warn("Failed to list playlists")
			sess.AddFlash(session.FlashError, flashMessage(err))
		}
	}

	data.Flashes = sess.PopFlashes()
	s.saveSession(w, r, sess)
	s.render(w, "index.html", data)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	if !sess.Authenticated() {
		sess.AddFlash(session.FlashError, "You must connect to Spotify before proceeding.")
		s.redirect(w, r, sess, "/")
		return
	}

	pageURL := strings.TrimSpace(r.FormValue("url"))
	if pageURL == "" {
		sess.AddFlash(session.FlashError, "Please enter a URL.")
		s.redirect(w, r, sess, "/")
		return
	}
	if u, err := url.Parse(pageURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		sess.AddFlash(session.FlashError, "Please enter a valid http or https URL.")
		s.redirect(w, r, sess, "/")
		return
	}

	selector := strings.TrimSpace(r.FormValue("selector"))
	if selector == "" {
		selector = s.deps.Venue.Selector
	}

	sess.Data.URL = pageURL
	sess.Data.Selector = selector
	sess.ClearResults()
	s.redirect(w, r, sess, "/results")
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	if s.deps.Auth == nil {
		sess.AddFlash(session.FlashError, "Spotify credentials are not configured.")
		s.redirect(w, r, sess, "/")
		return
	}

	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		sess.AddFlash(session.FlashError, "Spotify authentication error: "+errParam)
		s.redirect(w, r, sess, "/")
		return
	}

	expected := sess.Data.OAuthState
	if expected == "" || q.Get("state") != expected {
		s.logger.WithFields(log.Fields{
			"component": "web",
			"operation": "callback",
		}).Warn("OAuth state mismatch")
		sess.AddFlash(session.FlashError, "State mismatch. Please try authenticating again.")
		s.redirect(w, r, sess, "/")
		return
	}

	code := q.Get("code")
	if code == "" {
		sess.AddFlash(session.FlashError, "No authorization code received.")
		s.redirect(w, r, sess, "/")
		return
	}

	token, err := s.deps.Auth.Exchange(r.Context(), code)
	if err != nil {
		s.logger.WithError(err).WithField("component", "web").Error("Failed to exchange authorization code")
		sess.AddFlash(session.FlashError, "Error authenticating with Spotify. Please try again.")
		s.redirect(w, r, sess, "/")
		return
	}

	sess.Data.Token = token
	sess.Data.OAuthState = ""
	sess.AddFlash(session.FlashSuccess, "Successfully authenticated with Spotify!")
	s.logger.WithField("component", "web").Info("User authenticated with Spotify")
	s.redirect(w, r, sess, "/")
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	if sess.Data.URL == "" {
		sess.AddFlash(session.FlashError, "No URL provided.")
		s.redirect(w, r, sess, "/")
		return
	}

	cat, err := s.catalogFor(r.Context(), sess)
	if err != nil {
		s.fail(w, r, sess, "results", err, "/")
		return
	}
	p := s.pipelineFor(cat)

	if r.URL.Query().Get("reset") == "1" {
		sess.ClearResults()
	}

	if len(sess.Data.Artists) == 0 {
		artists, err := p.Discover(r.Context(), sess.Data.URL, sess.Data.Selector)
		if err != nil {
			s.fail(w, r, sess, "discover", err, "/")
			return
		}
		sess.Data.Artists = artists

		resolved, err := p.Resolve(r.Context(), artists)
		if err != nil && !errors.Is(err, types.ErrNoTracksResolved) {
			s.fail(w, r, sess, "resolve", err, "/")
			return
		}
		sess.Data.Resolved = resolved
	}
	if len(sess.Data.Resolved) == 0 {
		sess.AddFlash(session.FlashInfo, flashMessage(types.ErrNoTracksResolved))
	}

	data := s.baseData(sess)
	data.Artists = sess.Data.Artists
	data.Resolved = sess.Data.Resolved

	playlists, err := cat.ModifiablePlaylists(r.Context())
	if err != nil {
		s.logger.WithError(err).WithField("component", "web").Warn("Failed to list playlists")
		sess.AddFlash(session.FlashError, flashMessage(err))
	}
	data.Playlists = playlists

	if id := strings.TrimSpace(r.URL.Query().Get("playlist")); id != "" {
		plan, err := p.Preview(r.Context(), id, sess.Data.Resolved)
		if err != nil {
			s.persistToken(sess, cat)
			s.fail(w, r, sess, "preview", err, "/results")
			return
		}
		data.Selected = id
		data.Plan = plan
	}

	s.persistToken(sess, cat)
	data.Flashes = sess.PopFlashes()
	s.saveSession(w, r, sess)
	s.render(w, "results.html", data)
}

// playlistAction loads what add and clear both need, flashing and
// redirecting when something is missing.
func (s *Server) playlistAction(w http.ResponseWriter, r *http.Request) (*session.Session, Catalog, string, bool) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return nil, nil, "", false
	}

	cat, err := s.catalogFor(r.Context(), sess)
	if err != nil {
		s.fail(w, r, sess, "playlist_action", err, "/results")
		return nil, nil, "", false
	}

	playlistID := strings.TrimSpace(r.FormValue("playlist_id"))
	if playlistID == "" {
		sess.AddFlash(session.FlashError, "Please select a playlist.")
		s.redirect(w, r, sess, "/results")
		return nil, nil, "", false
	}
	return sess, cat, playlistID, true
}

func (s *Server) handleAddToPlaylist(w http.ResponseWriter, r *http.Request) {
	sess, cat, playlistID, ok := s.playlistAction(w, r)
	if !ok {
		return
	}
	if len(sess.Data.Resolved) == 0 {
		sess.AddFlash(session.FlashInfo, "No tracks found to add to the playlist. Please search for artists first.")
		s.redirect(w, r, sess, "/results")
		return
	}

	p := s.pipelineFor(cat)
	if playlistID == newPlaylistOption {
		created, err := p.CreatePlaylist(r.Context(), r.FormValue("new_playlist_name"))
		if err != nil {
			s.persistToken(sess, cat)
			s.fail(w, r, sess, "create_playlist", err, "/results")
			return
		}
		sess.AddFlash(session.FlashSuccess, fmt.Sprintf("Created playlist '%s'.", created.Name))
		playlistID = created.ID
	}
	target := "/results?playlist=" + url.QueryEscape(playlistID)

	plan, err := p.Commit(r.Context(), playlistID, sess.Data.Resolved)
	s.persistToken(sess, cat)
	if err != nil {
		s.fail(w, r, sess, "add_to_playlist", err, target)
		return
	}

	if !plan.HasChanges() {
		sess.AddFlash(session.FlashInfo, fmt.Sprintf("All %d tracks are already in '%s'.", len(plan.AlreadyPresent), plan.Playlist.Name))
	} else {
		sess.AddFlash(session.FlashSuccess, fmt.Sprintf("Added %d tracks from %d artists to '%s'!",
			plan.Outcome.Submitted, len(sess.Data.Resolved), plan.Playlist.Name))
	}
	s.redirect(w, r, sess, target)
}

func (s *Server) handleClearPlaylist(w http.ResponseWriter, r *http.Request) {
	sess, cat, playlistID, ok := s.playlistAction(w, r)
	if !ok {
		return
	}
	if playlistID == newPlaylistOption {
		sess.AddFlash(session.FlashError, "Please select an existing playlist to clear.")
		s.redirect(w, r, sess, "/results")
		return
	}
	target := "/results?playlist=" + url.QueryEscape(playlistID)

	outcome, err := s.pipelineFor(cat).Clear(r.Context(), playlistID)
	s.persistToken(sess, cat)
	if err != nil {
		s.fail(w, r, sess, "clear_playlist", err, target)
		return
	}

	msg := fmt.Sprintf("Cleared %d tracks from the playlist.", outcome.Submitted)
	if outcome.Dropped > 0 {
		msg += fmt.Sprintf(" %d items that are not tracks were left in the playlist.", outcome.Dropped)
	}
	sess.AddFlash(session.FlashSuccess, msg)
	s.redirect(w, r, sess, target)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	if err := s.deps.Sessions.Destroy(w, r, sess); err != nil {
		s.logger.WithError(err).WithField("component", "web").Warn("Failed to destroy session")
	}

	fresh := s.deps.Sessions.New()
	fresh.AddFlash(session.FlashSuccess, "Logged out from Spotify successfully.")
	s.redirect(w, r, fresh, "/")
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
