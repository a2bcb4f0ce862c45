package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"transvox/internal/config"
	"transvox/internal/logging"
	"transvox/internal/scheduler"
)

// anonymousUser is the submitter identity assigned to requests without an
// X-User-ID header.
const anonymousUser = "anonymous"

// Server serves the scheduler API over HTTP.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	sched   *scheduler.Scheduler
	version string

	listener net.Listener
	server   *http.Server
}

// New constructs the HTTP server. It does not bind until Start.
func New(cfg *config.Config, sched *scheduler.Scheduler, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		logger:  logging.WithComponent(logger, "api"),
		sched:   sched,
		version: version,
	}

	token := cfg.Paths.APIToken
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/whoami", s.handleWhoami)
	mux.HandleFunc("/api/pipeline/start", authMiddleware(token, s.handleStart))
	mux.HandleFunc("/api/pipeline/status/", s.handleStatus)
	mux.HandleFunc("/api/pipeline/stop/", authMiddleware(token, s.handleStop))
	mux.HandleFunc("/api/pipeline/clear/", authMiddleware(token, s.handleClear))
	mux.HandleFunc("/api/pipeline/history", s.handleHistory)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the routing table, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start binds the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Paths.APIBind)
	if bind == "" {
		return errors.New("api bind address not configured")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Args(logging.Error(err))...)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.Args(
		logging.String("address", listener.Addr().String()),
	)...)
	return nil
}

// Addr returns the bound address after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// authMiddleware validates bearer tokens on mutating endpoints. An empty
// token disables authentication.
func authMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func submitterID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	return anonymousUser
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Args(logging.Error(err))...)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
