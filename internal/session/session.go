// Package session keeps web sessions in SQLite behind a signed cookie.
//
// A session holds the user's Spotify token, the venue search they asked
// for, the cached scrape and resolution results, and pending flash messages.
// Sessions expire after a fixed lifetime that restarts on every save.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
	"github.com/toozej/venue2spotify/internal/types"
	"golang.org/x/oauth2"
)

// CookieName is the name of the session cookie
const CookieName = "venue2spotify_session"

// Flash levels
const (
	FlashInfo    = "info"
	FlashSuccess = "success"
	FlashError   = "error"
)

// ErrNotFound is returned when a session ID has no live row
var ErrNotFound = errors.New("session not found")

// Flash is a one-time message shown on the next page render
type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Data is the per-user state carried between requests
type Data struct {
	Token      *oauth2.Token          `json:"token,omitempty"`
	OAuthState string                 `json:"oauth_state,omitempty"`
	URL        string                 `json:"url,omitempty"`
	Selector   string                 `json:"selector,omitempty"`
	Artists    []string               `json:"artists,omitempty"`
	Resolved   []types.ResolvedArtist `json:"resolved,omitempty"`
	Flashes    []Flash                `json:"flashes,omitempty"`
}

// Session is one user's server-side state
type Session struct {
	ID      string
	Data    Data
	Expires time.Time
}

// AddFlash queues a message for the next page render
func (s *Session) AddFlash(level, message string) {
	s.Data.Flashes = append(s.Data.Flashes, Flash{Level: level, Message: message})
}

// PopFlashes returns and clears the queued messages
func (s *Session) PopFlashes() []Flash {
	flashes := s.Data.Flashes
	s.Data.Flashes = nil
	return flashes
}

// ClearResults forgets the cached search so the next results page re-runs it
func (s *Session) ClearResults() {
	s.Data.Artists = nil
	s.Data.Resolved = nil
}

// Authenticated reports whether the session carries a Spotify token
func (s *Session) Authenticated() bool {
	return s.Data.Token != nil
}

// Store persists sessions in SQLite and tracks them with a signed cookie
type Store struct {
	db       *sql.DB
	codec    *securecookie.SecureCookie
	lifetime time.Duration
	secure   bool
	logger   *log.Logger
	now      func() time.Time
}

// Options configures a Store
type Options struct {
	// Path is the SQLite file, or ":memory:"
	Path string
	// Secret signs the cookie. An empty secret uses a random key, so sessions
	// do not survive a restart.
	Secret   string
	Lifetime time.Duration
	// Secure marks the cookie HTTPS-only
	Secure bool
}

// Open opens the session database and initializes the schema
func Open(opts Options, logger *log.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping session database: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize session schema: %w", err)
	}

	hashKey := []byte(opts.Secret)
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(64)
		logger.WithFields(log.Fields{
			"component": "session_store",
			"operation": "open",
		}).Warn("No session secret configured, sessions will not survive a restart")
	}

	lifetime := opts.Lifetime
	if lifetime <= 0 {
		lifetime = 2 * time.Hour
	}

	codec := securecookie.New(hashKey, nil)
	codec.MaxAge(int(lifetime.Seconds()))

	return &Store{
		db:       db,
		codec:    codec,
		lifetime: lifetime,
		secure:   opts.Secure,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// New returns a fresh, unsaved session
func (s *Store) New() *Session {
	return &Session{
		ID:      uuid.NewString(),
		Expires: s.now().Add(s.lifetime),
	}
}

// Get returns the session named by the request cookie, or a fresh session
// when the cookie is missing, forged or points at an expired row.
func (s *Store) Get(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return s.New(), nil
	}

	var id string
	if err := s.codec.Decode(CookieName, cookie.Value, &id); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"component": "session_store",
			"operation": "get",
		}).Debug("Ignoring invalid session cookie")
		return s.New(), nil
	}

	sess, err := s.Load(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return s.New(), nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Load reads a live session by ID
func (s *Store) Load(ctx context.Context, id string) (*Session, error) {
	var (
		raw       string
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, expires_at FROM sessions WHERE id = ?`, id,
	).Scan(&raw, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	expires := time.Unix(expiresAt, 0)
	if !s.now().Before(expires) {
		return nil, ErrNotFound
	}

	sess := &Session{ID: id, Expires: expires}
	if err := json.Unmarshal([]byte(raw), &sess.Data); err != nil {
		return nil, fmt.Errorf("failed to decode session data: %w", err)
	}
	return sess, nil
}

// Save writes the session, extends its expiry and sets the cookie
func (s *Store) Save(w http.ResponseWriter, r *http.Request, sess *Session) error {
	raw, err := json.Marshal(sess.Data)
	if err != nil {
		return fmt.Errorf("failed to encode session data: %w", err)
	}

	sess.Expires = s.now().Add(s.lifetime)
	_, err = s.db.ExecContext(r.Context(), `
		INSERT INTO sessions (id, data, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`,
		sess.ID, string(raw), sess.Expires.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	encoded, err := s.codec.Encode(CookieName, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to sign session cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    encoded,
		Path:     "/",
		Expires:  sess.Expires,
		MaxAge:   int(s.lifetime.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Destroy deletes the session row and expires the cookie
func (s *Store) Destroy(w http.ResponseWriter, r *http.Request, sess *Session) error {
	if _, err := s.db.ExecContext(r.Context(), `DELETE FROM sessions WHERE id = ?`, sess.ID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Cleanup deletes expired sessions and returns how many were removed
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.WithFields(log.Fields{
			"component": "session_store",
			"operation": "cleanup",
			"removed":   n,
		}).Debug("Removed expired sessions")
	}
	return n, nil
}

// RunCleanup calls Cleanup every interval until ctx is done
func (s *Store) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Cleanup(ctx); err != nil {
				s.logger.WithError(err).WithField("component", "session_store").Warn("Session cleanup failed")
			}
		}
	}
}
