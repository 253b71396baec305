package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// authTimeout bounds how long the CLI waits for the browser callback
const authTimeout = 5 * time.Minute

// authFlow is the part of the Spotify client the callback server drives
type authFlow interface {
	AuthURL() string
	CompleteAuth(ctx context.Context, code, state string) error
}

// authenticateSpotify handles the OAuth authentication flow by starting a temporary server
func authenticateSpotify(ctx context.Context, flow authFlow, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s for OAuth callback: %w", addr, err)
	}

	authURL := flow.AuthURL()
	log.WithField("auth_url", authURL).Info("Please visit this URL to authenticate with Spotify")
	fmt.Printf("\n🔐 Spotify Authentication Required\n")
	fmt.Printf("Please visit this URL to authenticate:\n%s\n\n", authURL)
	fmt.Printf("Waiting for authentication... (Press Ctrl+C to cancel)\n")

	return serveAuthCallback(ctx, flow, listener, authTimeout)
}

// serveAuthCallback serves /callback on listener until one callback completes,
// the timeout passes or ctx is cancelled.
func serveAuthCallback(ctx context.Context, flow authFlow, listener net.Listener, timeout time.Duration) error {
	// Create a channel to signal when authentication is complete
	authComplete := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		handleSpotifyCallback(w, r, flow, authComplete)
	})

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
	}

	go func() {
		log.WithField("address", listener.Addr().String()).Info("Starting temporary server for OAuth callback")
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case authComplete <- fmt.Errorf("server error: %w", err):
			default:
			}
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			log.WithError(shutdownErr).Warn("Error shutting down authentication server")
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-authComplete:
		if err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("authentication timeout after %v", timeout)
	}
}

// handleSpotifyCallback handles the OAuth callback from Spotify
func handleSpotifyCallback(w http.ResponseWriter, r *http.Request, flow authFlow, authComplete chan<- error) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	errorParam := r.URL.Query().Get("error")

	// only the first callback counts
	finish := func(err error) {
		select {
		case authComplete <- err:
		default:
		}
	}

	if errorParam != "" {
		log.WithField("error", errorParam).Error("Spotify authentication error")
		http.Error(w, "Authentication failed: "+errorParam, http.StatusBadRequest)
		finish(fmt.Errorf("spotify authentication error: %s", errorParam))
		return
	}

	if code == "" {
		log.Error("No authorization code received")
		http.Error(w, "No authorization code received", http.StatusBadRequest)
		finish(fmt.Errorf("no authorization code received"))
		return
	}

	if err := flow.CompleteAuth(r.Context(), code, state); err != nil {
		log.WithError(err).Error("Failed to complete Spotify authentication")
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		finish(fmt.Errorf("failed to complete authentication: %w", err))
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)

	successHTML := `
		<!DOCTYPE html>
		<html>
		<head>
			<title>Authentication Successful</title>
			<style>
				body { font-family: Arial, sans-serif; text-align: center; padding: 50px; }
				.success { color: #28a745; font-size: 24px; margin-bottom: 20px; }
				.message { color: #6c757d; font-size: 16px; }
			</style>
		</head>
		<body>
			<div class="success">✅ Authentication Successful!</div>
			<div class="message">You can now close this window and return to the terminal.</div>
		</body>
		</html>
	`

	if _, err := w.Write([]byte(successHTML)); err != nil {
		log.WithError(err).Warn("Failed to write success response")
	}

	log.Info("Spotify authentication completed successfully via callback")
	finish(nil)
}
