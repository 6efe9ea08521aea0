// Package server exposes a store.Store over HTTP so players on different
// machines share room documents. It is a dumb document service: game rules
// live in the clients.
package server

import (
	"context"
	"net/http"

	"music-battle/internal/config"
	"music-battle/internal/lifecycle"
	"music-battle/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Server struct {
	store   store.Store
	ws      *wsHub
	cfg     config.Config
	limiter *rateLimiter
	life    *lifecycle.Manager
}

func New(st store.Store, cfg config.Config) *Server {
	registerValidators()
	return &Server{
		store:   st,
		ws:      newWSHub(),
		cfg:     cfg,
		limiter: newRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		life: lifecycle.New(st, lifecycle.Options{
			MaxRooms:      cfg.MaxRooms,
			Inactivity:    cfg.Inactivity(),
			SweepInterval: cfg.SweepInterval(),
		}),
	}
}

func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.GET("/healthz", s.handleHealth)

	api := r.Group("/api", s.rateLimit(), limitBody())
	api.GET("/rooms", s.handleListRooms)
	api.GET("/rooms/:code", s.handleReadRoom)
	api.PUT("/rooms/:code", s.handleWriteRoom)
	api.POST("/rooms/:code", s.handleInsertRoom)
	api.PATCH("/rooms/:code", s.handleUpdateRoom)
	api.DELETE("/rooms/:code", s.handleDeleteRoom)

	r.GET("/ws/rooms/:code", s.handleWebsocket)
	return r
}

// Run performs the inactivity sweep on the server side when enabled and
// blocks until ctx ends. Clients still sweep on their own.
func (s *Server) Run(ctx context.Context) {
	if !s.cfg.ServerSweep {
		<-ctx.Done()
		return
	}
	log.Info().Dur("interval", s.cfg.SweepInterval()).Msg("server sweep enabled")
	s.life.Run(ctx)
}

// Close drops every websocket client.
func (s *Server) Close() {
	s.ws.CloseAll()
	s.life.Stop()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		status := c.Writer.Status()
		event := log.Debug()
		if status >= http.StatusInternalServerError {
			event = log.Warn()
		}
		event.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Str("room_code", c.Param("code")).
			Int("status", status).
			Msg("request")
	}
}
