// Package server provides the HTTP server for the formcoach trainer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/hook"
	"github.com/ayusman/formcoach/internal/metrics"
	"github.com/ayusman/formcoach/internal/server/api"
	"github.com/ayusman/formcoach/internal/store"
)

// Config holds the server configuration. Every field is optional; routes
// whose collaborator is missing are not registered.
type Config struct {
	StaticDir string
	Store     *store.Store
	Hooks     *hook.Manager
	Workout   api.Controller
	Events    *Hub
	Stream    FrameFeed
	Metrics   *metrics.Manager
	Gatherer  prometheus.Gatherer
}

// Server represents the HTTP server for the formcoach application.
type Server struct {
	config     Config
	router     *mux.Router
	start      time.Time
	httpServer *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		router: mux.NewRouter(),
		start:  time.Now(),
	}
	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(PanicRecovery())
	r.Use(LogRequest())
	if s.config.Metrics != nil {
		r.Use(RequestMetrics(s.config.Metrics))
	}

	r.HandleFunc("/api/health", s.handleHealth).Methods("GET")

	api.NewWorkoutHandler(s.config.Workout).Register(r)

	if s.config.Store != nil {
		api.NewSessionHandler(s.config.Store).Register(r)
		api.NewHookHandler(s.config.Store, s.config.Hooks).Register(r)
		api.NewSettingsHandler(s.config.Store.Settings()).Register(r)
	}

	if s.config.Events != nil {
		r.Handle("/api/events", s.config.Events).Methods("GET")
	}

	if s.config.Stream != nil {
		r.Handle("/api/stream", NewStreamHandler(s.config.Stream)).Methods("GET")
	}

	if s.config.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	}
	if s.config.Events != nil {
		response["event_clients"] = s.config.Events.Clients()
	}

	writeJSON(w, http.StatusOK, response)
}

// ListenAndServe starts the HTTP server on addr and blocks until it is
// shut down. A graceful shutdown returns nil.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until the server is shut down.
func (s *Server) Serve(ln net.Listener) error {
	log.Infof("server listening on %s", ln.Addr())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown disconnects event subscribers and gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.config.Events != nil {
		s.config.Events.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Debug("write json response")
	}
}
