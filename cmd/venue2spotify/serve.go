package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/toozej/venue2spotify/internal/session"
	"github.com/toozej/venue2spotify/internal/spotify"
	"github.com/toozej/venue2spotify/internal/venue"
	"github.com/toozej/venue2spotify/internal/web"
	"github.com/toozej/venue2spotify/pkg/config"
)

// newServeCmd creates the serve command for running the web application.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web application",
		Long: `Serve the browser front end on $SERVER_HOST:$SERVER_PORT. Each visitor
connects their own Spotify account, previews the tracks found for a venue and
adds them to one of their playlists. Sessions are kept in SQLite.`,
		Args: cobra.NoArgs,
		Run:  runServe,
	}
	return cmd
}

// runServe executes the serve command.
func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, conf); err != nil {
		log.WithError(err).Fatal("Web server failed")
	}
}

// serve builds the web application from configuration and runs it until ctx ends
func serve(ctx context.Context, cfg config.Config) error {
	logger := log.StandardLogger()

	dbPath, err := cfg.Server.GetSessionDBPath()
	if err != nil {
		return fmt.Errorf("failed to resolve session database path: %w", err)
	}

	store, err := session.Open(session.Options{
		Path:     dbPath,
		Secret:   cfg.Server.SessionSecret,
		Lifetime: cfg.Server.SessionLifetime,
		Secure:   strings.HasPrefix(cfg.Spotify.RedirectURL, "https://"),
	}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	srv, err := web.NewServer(newWebDeps(cfg, store, logger))
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, cfg.Server.Address())
}

// newWebDeps wires the real Spotify and venue collaborators into the web server
func newWebDeps(cfg config.Config, store *session.Store, logger *log.Logger) web.Deps {
	authenticator := spotify.NewAuthenticator(cfg.Spotify)
	opts := spotify.OptionsFromConfig(cfg.Spotify)

	deps := web.Deps{
		Catalogs: func(ctx context.Context, token *oauth2.Token) (web.Catalog, error) {
			return spotify.NewCatalogForToken(ctx, authenticator, token, "", opts, logger), nil
		},
		Source:   venue.NewScraper(cfg.Venue, logger),
		Sessions: store,
		Venue:    cfg.Venue,
		Sync:     cfg.Sync,
		Logger:   logger,
	}

	if cfg.Spotify.ClientID != "" && cfg.Spotify.ClientSecret != "" {
		deps.Auth = authenticator
	} else {
		logger.Warn("Spotify credentials are not configured, users will not be able to connect")
	}
	return deps
}
