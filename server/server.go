// Package server exposes the chat handler, the websocket transport and the
// operational endpoints over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"avatarkit/core"
	"avatarkit/handlers/chat"
	"avatarkit/transports/websocket"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds the HTTP listener settings.
type Config struct {
	Addr       string `json:"addr"`
	CORSOrigin string `json:"cors_origin"` // Allowed Origin; "*" allows any.
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:       ":3000",
		CORSOrigin: "*",
	}
}

// Server is the avatarkit HTTP server.
type Server struct {
	config     Config
	httpServer *http.Server
	logger     *core.Logger
	startTime  time.Time
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// New wires the routes around chatHandler.
func New(cfg Config, chatHandler *chat.ChatHandler, logger *core.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	s := &Server{
		config:    cfg,
		logger:    logger.With(map[string]interface{}{"component": "server"}),
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	s.handle(mux, "GET /{$}", http.HandlerFunc(s.rootHandler))
	s.handle(mux, "GET /healthz", http.HandlerFunc(s.healthHandler))
	s.handle(mux, "POST /chat", chatHandler)
	s.handle(mux, "GET /ws", websocket.NewHandler(chatHandler, s.logger))
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.corsMiddleware(s.requestLogger(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) handle(mux *http.ServeMux, pattern string, h http.Handler) {
	mux.Handle(pattern, instrument(pattern, h))
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", "addr", s.config.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Hello World!"))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	data, _ := sonic.Marshal(HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
