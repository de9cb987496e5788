// Package api provides the HTTP API server of the node.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"github.com/gorilla/mux"

	"github.com/safe-solver/internal/batcher"
	"github.com/safe-solver/internal/logging"
	"github.com/safe-solver/internal/models"
	"github.com/safe-solver/internal/service"
)

// Service interfaces for dependency injection and testing

// GameServiceInterface serves account lookups, game state and game metadata
type GameServiceInterface interface {
	GetAddress(ctx context.Context, address string) (*models.Address, error)
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	ListAddresses(ctx context.Context, accountID int64) ([]*models.Address, error)
	GetGameState(ctx context.Context, address string) (*service.GameStateView, error)
	GetUser(ctx context.Context, address string) (*service.UserView, error)
	GetGameInfo(ctx context.Context) (*service.GameInfoView, error)
}

// LeaderboardServiceInterface serves the leaderboard and user profiles
type LeaderboardServiceInterface interface {
	GetLeaderboard(ctx context.Context, q service.LeaderboardQuery) (*service.LeaderboardView, error)
	GetUserProfile(ctx context.Context, address, start, end string) (*service.UserProfileView, error)
}

// EventServiceInterface serves the transition event log
type EventServiceInterface interface {
	ListEvents(ctx context.Context, address string, limit int) ([]*models.TransitionEvent, error)
}

// InputSubmitter accepts signed inputs for the next block
type InputSubmitter interface {
	Submit(ctx context.Context, req *batcher.Request) (*batcher.Receipt, error)
}

// HealthCheck reports whether one dependency is reachable
type HealthCheck func(ctx context.Context) error

// Server represents the HTTP API server.
type Server struct {
	router             *mux.Router
	httpServer         *http.Server
	gameService        GameServiceInterface
	leaderboardService LeaderboardServiceInterface
	eventService       EventServiceInterface
	submitter          InputSubmitter
	healthChecks       map[string]HealthCheck
	readMonitor        *service.PerformanceMonitor
	rateLimiter        *RateLimiter
	config             *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RequestsPerSecond int
	Burst             int
	// TrustedProxies may set X-Forwarded-For for the rate limiter
	TrustedProxies []netip.Prefix
}

// NewServer creates a new API server instance. submitter may be nil, in which
// case POST /send-input is not served.
func NewServer(
	config *ServerConfig,
	gameService GameServiceInterface,
	leaderboardService LeaderboardServiceInterface,
	eventService EventServiceInterface,
	submitter InputSubmitter,
	healthChecks map[string]HealthCheck,
) *Server {
	s := &Server{
		router:             mux.NewRouter(),
		gameService:        gameService,
		leaderboardService: leaderboardService,
		eventService:       eventService,
		submitter:          submitter,
		healthChecks:       healthChecks,
		config:             config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	s.rateLimiter = NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst, s.config.TrustedProxies)

	// order matters
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(s.rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/address/{address}", s.handleGetAddress).Methods("GET")
	api.HandleFunc("/account/{id}", s.handleGetAccount).Methods("GET")
	api.HandleFunc("/account/{id}/addresses", s.handleGetAccountAddresses).Methods("GET")
	api.HandleFunc("/gamestate/{walletAddress}", s.handleGetGameState).Methods("GET")
	api.HandleFunc("/user/{walletAddress}", s.handleGetUser).Methods("GET")
	api.HandleFunc("/events/{walletAddress}", s.handleGetEvents).Methods("GET")

	game := s.router.PathPrefix("/v1/game").Subrouter()
	game.HandleFunc("/leaderboard", s.handleGetLeaderboard).Methods("GET")
	game.HandleFunc("/users/{address}", s.handleGetUserProfile).Methods("GET")
	game.HandleFunc("/info", s.handleGetGameInfo).Methods("GET")

	if s.submitter != nil {
		s.router.HandleFunc("/send-input", s.handleSendInput).Methods("POST", "OPTIONS")
	}
}

// SetReadMonitor makes /health report read path statistics
func (s *Server) SetReadMonitor(m *service.PerformanceMonitor) {
	s.readMonitor = m
}

// Handler returns the routed handler with all middleware applied
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth reports the status of every registered dependency
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	checks := make(map[string]string, len(s.healthChecks))
	for name, check := range s.healthChecks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]interface{}{
		"status":  status,
		"service": "safe-solver",
		"checks":  checks,
	}
	if s.readMonitor != nil {
		body["reads"] = s.readMonitor.GetStats()
		body["readIssues"] = s.readMonitor.CheckPerformance().Issues
	}

	respondJSON(w, code, body)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
