package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/whiteboard-relay/internal/config"
	"github.com/vovakirdan/whiteboard-relay/internal/core"
	transporthttp "github.com/vovakirdan/whiteboard-relay/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	policy := core.PolicyFromConfig(cfg.Room)
	hub := core.NewHub(policy, logger)

	server, err := transporthttp.NewServer(hub, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init http server: %w", err)
	}

	logger.Info().
		Str("professor_mode", cfg.Room.ProfessorMode).
		Int("max_professors", policy.MaxProfessors).
		Int("max_students", policy.MaxStudents).
		Dur("grace_period", policy.GracePeriod).
		Msg("room policy")

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		a.hub.Run(hubCtx)
	}()
	defer func() {
		stopHub()
		<-hubDone
	}()

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		// Evicting clients first lets websocket handlers return so Shutdown does not wait on them.
		stopHub()
		<-hubDone

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}
