package server

import (
	"errors"
	"net/http"
	"sync"

	"github.com/MeKo-Tech/lumentrace/internal/contour"
	"github.com/MeKo-Tech/lumentrace/internal/interactor"
	"github.com/MeKo-Tech/lumentrace/internal/slice"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server hosts interactive drawing sessions over WebSocket. Every connection
// owns its own interactor; committed contours land in one shared group.
type Server struct {
	engine      interactor.Config
	sampler     slice.SamplerOptions
	pathPoint   slice.PathPoint
	group       *contour.Group
	corsOrigin  string
	maxSliceMB  int64
	timeoutSec  int
	rateLimiter *RateLimiter
	upgrader    websocket.Upgrader

	mu       sync.Mutex
	sessions map[*wsSession]struct{}
}

// Config holds server configuration.
type Config struct {
	Host       string
	Port       int
	CORSOrigin string
	MaxSliceMB int64
	TimeoutSec int

	Engine    interactor.Config
	Sampler   slice.SamplerOptions
	PathPoint slice.PathPoint
	// Group receives committed contours. A fresh group is created when nil.
	Group *contour.Group

	SessionsPerMinute int
	SessionsPerHour   int
	MaxSlicesPerDay   int
	MaxSliceMBPerDay  int64
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Time     string `json:"time"`
	Sessions int    `json:"sessions"`
}

// ContoursResponse is returned by /contours.
type ContoursResponse struct {
	Contours []contour.Summary `json:"contours"`
	Count    int               `json:"count"`
}

// ErrorResponse is the body of every failed HTTP request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewServer creates a new contouring server.
func NewServer(config Config) (*Server, error) {
	if config.MaxSliceMB <= 0 {
		return nil, errors.New("server: max slice size must be positive")
	}
	if config.TimeoutSec <= 0 {
		return nil, errors.New("server: timeout must be positive")
	}

	group := config.Group
	if group == nil {
		group = contour.NewGroup()
	}
	if config.PathPoint == (slice.PathPoint{}) {
		config.PathPoint = slice.DefaultPathPoint()
	}

	var rl *RateLimiter
	if config.SessionsPerMinute > 0 || config.SessionsPerHour > 0 || config.MaxSlicesPerDay > 0 || config.MaxSliceMBPerDay > 0 {
		rl = NewRateLimiter(config.SessionsPerMinute, config.SessionsPerHour, config.MaxSlicesPerDay, config.MaxSliceMBPerDay<<20)
	}

	s := &Server{
		engine:      config.Engine,
		sampler:     config.Sampler,
		pathPoint:   config.PathPoint,
		group:       group,
		corsOrigin:  config.CORSOrigin,
		maxSliceMB:  config.MaxSliceMB,
		timeoutSec:  config.TimeoutSec,
		rateLimiter: rl,
		sessions:    make(map[*wsSession]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s, nil
}

// Group returns the contour group sessions commit into.
func (s *Server) Group() *contour.Group { return s.group }

// ActiveSessions returns the number of open WebSocket sessions.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close drops every open session. Sessions still drawing are aborted.
func (s *Server) Close() error {
	s.mu.Lock()
	open := make([]*wsSession, 0, len(s.sessions))
	for ws := range s.sessions {
		open = append(open, ws)
	}
	s.mu.Unlock()

	var errs []error
	for _, ws := range open {
		if err := ws.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/contours", s.corsMiddleware(s.contoursHandler))
	mux.HandleFunc("/ws", s.corsMiddleware(s.rateLimitMiddleware(s.drawWebSocketHandler)))
	mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) register(ws *wsSession) {
	s.mu.Lock()
	s.sessions[ws] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) unregister(ws *wsSession) {
	s.mu.Lock()
	delete(s.sessions, ws)
	s.mu.Unlock()
}
