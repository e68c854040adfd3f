package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yourusername/yamon/internal/store"
)

// ServerConfig holds the server configuration.
type ServerConfig struct {
	Host           string        // Host to bind to (default "localhost")
	Port           int           // Port to listen on (default 3001)
	AllowedOrigin  string        // Browser origin allowed to open sockets
	ReconnectGrace time.Duration // How long a seat survives a disconnect; 0 waits forever
	ReadTimeout    time.Duration // Read timeout for the initial HTTP exchange (default 30s)
	IdleTimeout    time.Duration // Idle timeout (default 60s)
}

// DefaultConfig returns a ServerConfig with sensible defaults.
func DefaultConfig() ServerConfig {
	return ServerConfig{
		Host:          "localhost",
		Port:          3001,
		AllowedOrigin: "http://localhost:3000",
		ReadTimeout:   30 * time.Second,
		IdleTimeout:   60 * time.Second,
	}
}

// Server is the websocket game server.
type Server struct {
	config     ServerConfig
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	server     *http.Server
	registry   *prometheus.Registry
	version    string
}

// NewServer creates a server over the given store.
func NewServer(st store.Store, config ServerConfig, version string) *Server {
	reg := prometheus.NewRegistry()
	d := NewDispatcher(st, NewMetrics(reg), config.ReconnectGrace)

	origin := config.AllowedOrigin
	return &Server{
		config:     config,
		dispatcher: d,
		registry:   reg,
		version:    version,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Non-browser clients send no Origin header.
				o := r.Header.Get("Origin")
				return o == "" || o == origin
			},
		},
	}
}

// Dispatcher exposes the event dispatcher for tests.
func (s *Server) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// handleWS upgrades the connection and hands it to the dispatcher.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}

	c := newClient(s.dispatcher, conn)
	s.dispatcher.addClient(c)
	go c.writePump()
	go c.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","version":%q}`, s.version)
}

// loggingMiddleware logs all requests.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return loggingMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.setupRoutes(),
		ReadTimeout: s.config.ReadTimeout,
		// Zero write timeout: websocket connections outlive any fixed bound.
		IdleTimeout: s.config.IdleTimeout,
	}

	log.Printf("Starting ya mon server v%s on %s", s.version, addr)
	log.Printf("Endpoints:")
	log.Printf("  WS   /ws       - Game protocol")
	log.Printf("  GET  /healthz  - Health check")
	log.Printf("  GET  /metrics  - Prometheus metrics")
	log.Printf("Allowed origin: %s", s.config.AllowedOrigin)

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ListenAndServeWithGracefulShutdown starts the server and handles shutdown signals.
func (s *Server) ListenAndServeWithGracefulShutdown() error {
	errChan := make(chan error, 1)

	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-quit:
		log.Printf("Received signal %v, shutting down...", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped gracefully")
	return nil
}
