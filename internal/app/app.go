// Package app wires the store, core engine, and transport together.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/tcserver/tcserver/internal/banner"
	"github.com/tcserver/tcserver/internal/config"
	"github.com/tcserver/tcserver/internal/core"
	"github.com/tcserver/tcserver/internal/store"
	"github.com/tcserver/tcserver/internal/store/sqlite"
	"github.com/tcserver/tcserver/internal/transport/telnet"
)

const (
	rateLimit       = 2
	rateLimitWindow = time.Second
)

// App holds the assembled server.
type App struct {
	server  *telnet.Server
	console *telnet.Console
	store   store.Store
	log     *zerolog.Logger
}

// New constructs the application with the provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	engine, err := BuildEngine(context.Background(), st, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	welcome := banner.Load(cfg.BannerPath)
	server := telnet.NewServer(cfg, engine, st, welcome, logger)
	console := telnet.NewConsole(engine, os.Stdin, logger)

	return &App{
		server:  server,
		console: console,
		store:   st,
		log:     logger,
	}, nil
}

// BuildEngine assembles the core registries, limiter, router, and
// broadcaster on top of st. Extracted so tests can build an engine around
// an in-memory store.
func BuildEngine(ctx context.Context, st store.Store, logger *zerolog.Logger) (*core.Engine, error) {
	rooms, err := core.NewRooms(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("init rooms: %w", err)
	}

	conns := core.NewConnTable()
	sessions := core.NewSessions()

	// Admin identities are exempt from rate limiting; the role is derived
	// from the stored record, never cached on the session.
	exempt := func(id core.Identity) bool {
		username, ok := sessions.Username(id)
		if !ok || core.IsGuestName(username) {
			return false
		}
		role, err := st.RoleOf(context.Background(), username)
		return err == nil && role == store.RoleAdmin
	}
	limiter := core.NewLimiter(rateLimit, rateLimitWindow, exempt)

	cast := core.NewBroadcaster(conns, logger)
	router := core.NewRouter(sessions, rooms, st, st, limiter, logger)

	return core.NewEngine(conns, sessions, rooms, limiter, router, cast, logger), nil
}

// Run binds the listener, starts the console reader, and blocks until
// context cancellation or a fatal listener error.
func (a *App) Run(ctx context.Context) error {
	if err := a.server.Listen(); err != nil {
		a.cleanup()
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Serve(ctx)
	}()
	go a.console.Run(ctx)

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		a.log.Info().Msg("shutting down")
		err := <-serverErr
		a.cleanup()
		return err
	}
}

// cleanup closes the store.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
