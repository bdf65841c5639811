package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-collab-server/auth"
	"github.com/jrsteele09/go-collab-server/identity"
	"github.com/jrsteele09/go-collab-server/internal/config"
	"github.com/jrsteele09/go-collab-server/server"
	"github.com/jrsteele09/go-collab-server/server/authflowrepo"
	"github.com/jrsteele09/go-collab-server/sessions"
	"github.com/jrsteele09/go-collab-server/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogger(c)
	displayAppname(c.GetAppName())
	if err := config.Validate(c); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, closeRegistry, err := sessionRegistry(ctx, c)
	if err != nil {
		return err
	}
	defer closeRegistry()

	authService, err := auth.NewService(
		token.NewHMACSigner(c.GetAccessTokenSecret()),
		token.NewHMACSigner(c.GetRenewalTokenSecret()),
		registry,
		auth.WithAccessTokenExpiry(c.GetAccessTokenExpiry()),
		auth.WithRenewalTokenExpiry(c.GetRenewalTokenExpiry()),
		auth.WithRenewalRotation(c.GetRotateRenewalTokens()),
	)
	if err != nil {
		return fmt.Errorf("auth.NewService: %w", err)
	}

	provider, err := identity.NewGoogleProvider(ctx, identity.GoogleConfig{
		ClientID:     c.GetGoogleClientID(),
		ClientSecret: c.GetGoogleClientSecret(),
		RedirectURL:  c.GetGoogleRedirectURL(),
		Scopes:       c.GetGoogleScopes(),
	})
	if err != nil {
		return fmt.Errorf("identity.NewGoogleProvider: %w", err)
	}

	authFlows := authflowrepo.NewInMemoryRepo(c.GetAuthFlowTimeout(), nil)
	go sweepAuthFlows(ctx, authFlows, c.GetAuthFlowTimeout())

	handler, err := server.New(c, server.Deps{
		Auth:      authService,
		Provider:  provider,
		AuthFlows: authFlows,
	})
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	// Shutdown does not touch hijacked websocket connections.
	log.Info().Int("relay_peers", handler.Hub().CloseAll()).Msg("shutting down")
	return shutdown(httpServer)
}

// sessionRegistry picks the session store named by SESSION_STORE.
func sessionRegistry(ctx context.Context, c config.Config) (sessions.Repo, func(), error) {
	switch c.GetSessionStore() {
	case config.SessionStoreRedis:
		redisCfg := c.GetRedis()
		repo, err := sessions.DialRedis(ctx, redisCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("sessions.DialRedis: %w", err)
		}
		log.Info().Str("addr", redisCfg.Addr).Msg("using redis session registry")
		return repo, func() { _ = repo.Close() }, nil
	default:
		log.Warn().Msg("using in-memory session registry; sessions are lost on restart")
		return sessions.NewInMemoryRepo(), func() {}, nil
	}
}

func sweepAuthFlows(ctx context.Context, repo authflowrepo.Repo, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := repo.DeleteExpired(); n > 0 {
				log.Debug().Int("count", n).Msg("expired login flows removed")
			}
		}
	}
}

func setupLogger(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stderr
	if c.GetEnv() == config.EnvDevelopment {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
