package session

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toozej/venue2spotify/internal/types"
	"golang.org/x/oauth2"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func openTestStore(t *testing.T, secret string) *Store {
	t.Helper()
	store, err := Open(Options{Path: ":memory:", Secret: secret, Lifetime: time.Hour}, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// requestWithCookies replays the cookies set on rec onto a new request
func requestWithCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestStore_GetWithoutCookie(t *testing.T) {
	store := openTestStore(t, "secret")

	sess, err := store.Get(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.False(t, sess.Authenticated())
}

func TestStore_SaveAndGet(t *testing.T) {
	store := openTestStore(t, "secret")

	sess := store.New()
	sess.Data.Token = &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}
	sess.Data.URL = "https://venue.example/events"
	sess.Data.Selector = "div.artist"
	sess.Data.Artists = []string{"Khruangbin"}
	sess.Data.Resolved = []types.ResolvedArtist{{Name: "Khruangbin", Tracks: []types.Track{{ID: "k1", URI: "spotify:track:k1"}}}}
	sess.AddFlash(FlashSuccess, "Saved")

	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(rec, httptest.NewRequest(http.MethodGet, "/", nil), sess))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.NotContains(t, cookies[0].Value, sess.ID)

	loaded, err := store.Get(requestWithCookies(rec))
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.True(t, loaded.Authenticated())
	assert.Equal(t, "refresh", loaded.Data.Token.RefreshToken)
	assert.Equal(t, sess.Data.Resolved, loaded.Data.Resolved)
	assert.Equal(t, []Flash{{Level: FlashSuccess, Message: "Saved"}}, loaded.PopFlashes())
	assert.Empty(t, loaded.PopFlashes())
}

func TestStore_ForgedCookie(t *testing.T) {
	store := openTestStore(t, "secret")
	other := openTestStore(t, "different secret")

	sess := store.New()
	sess.Data.URL = "https://venue.example"
	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(rec, httptest.NewRequest(http.MethodGet, "/", nil), sess))

	loaded, err := other.Get(requestWithCookies(rec))
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, loaded.ID)
	assert.Empty(t, loaded.Data.URL)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: sess.ID})
	loaded, err = store.Get(req)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, loaded.ID)
}

func TestStore_Expiry(t *testing.T) {
	store := openTestStore(t, "secret")
	now := time.Now()
	store.now = func() time.Time { return now }

	sess := store.New()
	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(rec, httptest.NewRequest(http.MethodGet, "/", nil), sess))

	_, err := store.Load(context.Background(), sess.ID)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = store.Load(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	removed, err := store.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestStore_Destroy(t *testing.T) {
	store := openTestStore(t, "secret")

	sess := store.New()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, store.Save(rec, req, sess))

	rec = httptest.NewRecorder()
	require.NoError(t, store.Destroy(rec, req, sess))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)

	_, err := store.Load(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RandomSecretAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := Open(Options{Path: path}, quietLogger())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	assert.Equal(t, 2*time.Hour, store.lifetime)

	sess := store.New()
	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(rec, httptest.NewRequest(http.MethodGet, "/", nil), sess))

	loaded, err := store.Get(requestWithCookies(rec))
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.FileExists(t, path)
}

func TestSession_ClearResults(t *testing.T) {
	sess := &Session{Data: Data{
		URL:      "https://venue.example",
		Artists:  []string{"Khruangbin"},
		Resolved: []types.ResolvedArtist{{Name: "Khruangbin"}},
	}}
	sess.ClearResults()

	assert.Equal(t, "https://venue.example", sess.Data.URL)
	assert.Nil(t, sess.Data.Artists)
	assert.Nil(t, sess.Data.Resolved)
}
