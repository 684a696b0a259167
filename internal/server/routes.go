package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/scythe504/botornot-backend/internal"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	// Apply CORS middleware
	r.Use(s.corsMiddleware)

	r.HandleFunc("/", s.HelloWorldHandler).Methods(http.MethodGet)

	r.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet)

	r.HandleFunc("/rooms/available", s.GetRoomToJoin).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/ws", s.hub.HandleWebSocket)

	return r
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS Headers
		w.Header().Set("Access-Control-Allow-Origin", "*") // Wildcard allows all origins
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Credentials", "false") // Credentials not allowed with wildcard origins

		// If it's a websocket upgrade, skip further CORS checks
		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) HelloWorldHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Bot or Not"})
}

// HealthHandler reports live room counts and the status of every backing service.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{}

	rooms := map[string]int{}
	for phase, n := range s.manager.Store().CountByPhase() {
		rooms[string(phase)] = n
	}
	body["rooms"] = rooms
	body["clients"] = s.hub.ConnectedClients()

	checks := map[string]HealthChecker{}
	for name, c := range s.checks {
		checks[name] = c
	}
	if s.db != nil {
		checks["database"] = s.db
	}
	for name, c := range checks {
		stats := c.Health()
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		body[name] = stats
	}

	s.writeJSON(w, status, body)
}

// GetRoomToJoin reports the newest joinable room of the requested kind.
// Joining itself happens over the socket.
func (s *Server) GetRoomToJoin(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()

	staked := false
	if raw := r.URL.Query().Get("staked"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeResponse(w, startTime, http.StatusBadRequest, "staked must be a boolean")
			return
		}
		staked = v
	}

	if roomID := s.manager.JoinableRoom(staked); roomID != "" {
		// Found a joinable room - SUCCESS
		s.writeResponse(w, startTime, http.StatusOK, roomID)
		return
	}
	// No joinable room found - the next join opens one
	s.writeResponse(w, startTime, http.StatusNotFound, "No joinable rooms available")
}

func (s *Server) writeResponse(w http.ResponseWriter, startTime int64, statusCode int, data any) {
	// Calculate response times
	endTime := time.Now().UnixMilli()
	s.writeJSON(w, statusCode, internal.Response{
		StatusCode:    statusCode,
		RespStartTime: startTime,
		RespEndTime:   endTime,
		NetRespTime:   endTime - startTime,
		Data:          data,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("encoding response failed")
	}
}
