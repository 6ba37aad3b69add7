// Package api exposes the printer subsystem to the POS UI over a local
// REST surface plus a websocket status feed.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/laundrypos/printer-server/internal/auth"
	"github.com/laundrypos/printer-server/internal/cloud"
	"github.com/laundrypos/printer-server/internal/config"
	"github.com/laundrypos/printer-server/internal/events"
	"github.com/laundrypos/printer-server/internal/registry"
	"github.com/laundrypos/printer-server/internal/syncer"
	"github.com/laundrypos/printer-server/internal/transport"
	"github.com/laundrypos/printer-server/internal/validation"
	"github.com/laundrypos/printer-server/pkg/escpos"
)

// Server represents the local REST API server
type Server struct {
	config    *config.Config
	registry  *registry.Registry
	syncer    *syncer.Syncer
	cloud     *cloud.Client
	transport transport.Transport
	events    *events.Publisher
	auth      *auth.JWTManager
	validator *validation.Validator
	clock     escpos.Clock
	router    chi.Router
	server    *http.Server
	hub       *wsHub
}

// Deps bundles the collaborators the server drives.
type Deps struct {
	Registry  *registry.Registry
	Syncer    *syncer.Syncer
	Cloud     *cloud.Client
	Transport transport.Transport
	Events    *events.Publisher
	Clock     escpos.Clock
}

// NewServer creates the local API server
func NewServer(cfg *config.Config, deps Deps) *Server {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	s := &Server{
		config:    cfg,
		registry:  deps.Registry,
		syncer:    deps.Syncer,
		cloud:     deps.Cloud,
		transport: deps.Transport,
		events:    deps.Events,
		auth:      auth.NewJWTManager(&cfg.JWT),
		validator: validation.NewValidator(),
		clock:     clock,
		router:    chi.NewRouter(),
		hub:       newWSHub(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// ListenAndServe starts the HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.server.Addr = addr
	go s.hub.run()
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.stop()
	return s.server.Shutdown(ctx)
}

// Router exposes the handler tree, used by httptest in handler tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Route("/api/v1", s.setupAPIRoutes)
	s.router.Get("/ws/status", s.HandleStatusWS)
}

// requestLogger logs each request through zerolog instead of chi's
// stdlib logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// authMiddleware is the authentication middleware
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization header")
			return
		}

		claims, err := s.auth.ValidateToken(parts[1])
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type claimsKey struct{}

// errorBody is the uniform error shape of the local API, mirroring the
// merchant backend's envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type responseEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

// respondJSON writes a success envelope
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(responseEnvelope{Success: true, Data: data}); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError writes an error envelope
func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(responseEnvelope{
		Success: false,
		Error:   &errorBody{Code: code, Message: message},
	}); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}

// emit publishes an event to the broker sinks and the websocket feed.
func (s *Server) emit(subject, printerID string, payload interface{}) {
	if s.events != nil {
		s.events.Publish(subject, printerID, payload)
	}
	s.hub.broadcast(events.Event{
		Subject:   subject,
		PrinterID: printerID,
		Time:      time.Now().UTC(),
		Payload:   payload,
	})
}
