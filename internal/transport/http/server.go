package http

import (
	"context"
	"fmt"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/handlers"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/whiteboard-relay/internal/auth"
	"github.com/vovakirdan/whiteboard-relay/internal/config"
	"github.com/vovakirdan/whiteboard-relay/internal/core"
)

// Hub is what the HTTP layer needs from core.Hub.
type Hub interface {
	ClientHub
	HubReader
}

var _ Hub = (*core.Hub)(nil)

// NewServer builds the HTTP server with REST, websocket and polling routes.
// The polling reaper stops when the server is shut down.
func NewServer(hub Hub, cfg *config.Config, logger *zerolog.Logger) (*stdhttp.Server, error) {
	jwtConfig, err := auth.NewJWTConfig(cfg.PollTokenSecret, 0)
	if err != nil {
		return nil, fmt.Errorf("poll tokens: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	roomHandlers := NewRoomHandlers(hub, logger)
	router.GET("/health", roomHandlers.Health)

	api := router.Group("/api")
	{
		api.GET("/rooms", roomHandlers.ListRooms)
		api.GET("/rooms/:roomKey", roomHandlers.GetRoom)
	}

	router.GET("/ws", gin.WrapH(NewWSHandler(hub, *cfg, logger)))

	pollHandler := NewPollHandler(hub, *cfg, jwtConfig, logger)
	router.POST("/poll", pollHandler.Open)
	poll := router.Group("/poll/:sid")
	poll.Use(PollAuthMiddleware(jwtConfig, logger))
	{
		poll.GET("", pollHandler.Receive)
		poll.POST("", pollHandler.Send)
		poll.DELETE("", pollHandler.Close)
	}

	cors := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{stdhttp.MethodGet, stdhttp.MethodPost, stdhttp.MethodDelete, stdhttp.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
	)

	srv := &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           cors(router),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	reapCtx, stopReaper := context.WithCancel(context.Background())
	go pollHandler.Run(reapCtx)
	srv.RegisterOnShutdown(stopReaper)

	return srv, nil
}
