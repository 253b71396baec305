// Package web serves the browser front end: connect to Spotify, enter a venue
// page, preview the artists and tracks found, then add them to a playlist or
// clear one.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/toozej/venue2spotify/internal/pipeline"
	"github.com/toozej/venue2spotify/internal/playlist"
	"github.com/toozej/venue2spotify/internal/session"
	"github.com/toozej/venue2spotify/internal/types"
	"github.com/toozej/venue2spotify/pkg/config"
	"golang.org/x/oauth2"
)

//go:embed templates/*.html
var templateFS embed.FS

// Authenticator is the OAuth authorization code flow
type Authenticator interface {
	AuthURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

// Catalog is everything the handlers need from the music catalog
type Catalog interface {
	types.CatalogClient
	types.PlaylistBrowser
}

// tokenSource is implemented by catalogs whose token may refresh during use
type tokenSource interface {
	Token() (*oauth2.Token, error)
}

// CatalogFactory builds a catalog acting as the owner of token
type CatalogFactory func(ctx context.Context, token *oauth2.Token) (Catalog, error)

// Deps are the collaborators a Server is built from. Auth may be nil when no
// Spotify credentials are configured.
type Deps struct {
	Auth     Authenticator
	Catalogs CatalogFactory
	Source   types.ArtistSource
	Sessions *session.Store
	Venue    config.VenueConfig
	Sync     config.SyncConfig
	Logger   *log.Logger
}

// Server is the web application
type Server struct {
	deps      Deps
	locks     *playlist.Locks
	templates *template.Template
	mux       *http.ServeMux
	logger    *log.Logger
}

// NewServer parses the templates and registers the routes
func NewServer(deps Deps) (*Server, error) {
	if deps.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if deps.Catalogs == nil || deps.Source == nil {
		return nil, errors.New("catalog factory and artist source are required")
	}
	if deps.Logger == nil {
		deps.Logger = log.StandardLogger()
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"trackCount": func(artists []types.ResolvedArtist) int { return len(types.DesiredTracks(artists)) },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		deps:      deps,
		locks:     playlist.NewLocks(),
		templates: tmpl,
		mux:       http.NewServeMux(),
		logger:    deps.Logger,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /{$}", s.handleSubmit)
	s.mux.HandleFunc("GET /callback", s.handleCallback)
	s.mux.HandleFunc("GET /results", s.handleResults)
	s.mux.HandleFunc("POST /add-to-playlist", s.handleAddToPlaylist)
	s.mux.HandleFunc("POST /clear-playlist", s.handleClearPlaylist)
	s.mux.HandleFunc("GET /logout", s.handleLogout)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
}

// Handler returns the root handler with request logging
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		s.mux.ServeHTTP(rec, r)
		s.logger.WithFields(log.Fields{
			"component": "web",
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    rec.status,
			"duration":  time.Since(start),
		}).Debug("Handled request")
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
	}

	go s.deps.Sessions.RunCleanup(ctx, 10*time.Minute)

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("address", addr).Info("Starting web server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down web server: %w", err)
		}
		s.logger.Info("Web server stopped")
		return nil
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// render executes a named template into a buffer so a failure never leaves
// a half-written page.
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"component": "web",
			"template":  name,
		}).Error("Failed to render template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.WithError(err).Warn("Failed to write response")
	}
}

// pipelineFor builds a pipeline bound to the session user's catalog
func (s *Server) pipelineFor(cat Catalog) *pipeline.Pipeline {
	return pipeline.New(s.deps.Source, cat, s.deps.Sync, s.locks, s.logger)
}
