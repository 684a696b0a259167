package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/scythe504/botornot-backend/internal/database"
	"github.com/scythe504/botornot-backend/internal/game"
	"github.com/scythe504/botornot-backend/internal/websocket"
)

// HealthChecker is anything that can report its own status.
type HealthChecker interface {
	Health() map[string]string
}

type Server struct {
	port int

	manager *game.Manager
	hub     *websocket.Hub
	db      database.Service
	checks  map[string]HealthChecker
	logger  zerolog.Logger
}

type Deps struct {
	Port    int
	Manager *game.Manager
	Hub     *websocket.Hub
	DB      database.Service
	// Extra health checks keyed by component name.
	Checks map[string]HealthChecker
	Logger zerolog.Logger
}

func New(deps Deps) *Server {
	return &Server{
		port:    deps.Port,
		manager: deps.Manager,
		hub:     deps.Hub,
		db:      deps.DB,
		checks:  deps.Checks,
		logger:  deps.Logger.With().Str("component", "http").Logger(),
	}
}

func NewServer(s *Server) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// HealthFunc adapts a plain function to HealthChecker.
type HealthFunc func() map[string]string

func (f HealthFunc) Health() map[string]string { return f() }
