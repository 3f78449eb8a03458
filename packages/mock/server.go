// Package mock serves the intercepts of a suite over plain HTTP, so the
// application under test can be run against the same fixtures the scenarios
// use.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/abdul-hamid-achik/uispec/packages/intercept"
)

// AdminPrefix is where the journal endpoints live.
const AdminPrefix = "/__admin"

// Server is a mock HTTP server backed by a rule set
type Server struct {
	set    *intercept.RuleSet
	router *chi.Mux
	port   int
	delay  time.Duration
	logger *slog.Logger
}

// Option is a functional option for Server
type Option func(*Server)

// WithPort sets the server port
func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithDelay adds a delay to all mocked responses
func WithDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.delay = delay
	}
}

// WithLogger sets the request logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates a mock server answering from set
func NewServer(set *intercept.RuleSet, opts ...Option) *Server {
	s := &Server{
		set:    set,
		port:   3001,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLog)

	r.Route(AdminPrefix, func(r chi.Router) {
		r.Get("/requests", s.handleRequests)
		r.Get("/routes", s.handleRoutes)
		r.Post("/reset", s.handleReset)
	})
	r.With(s.latency).Handle("/*", set)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler so the server can be used directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf(":%d", s.port)
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	rules := s.set.Rules()
	s.logger.Info("mock server started", "addr", ln.Addr().String(), "routes", len(rules), "mode", string(s.set.Mode()))
	for _, rule := range rules {
		s.logger.Debug("route", "rule", rule.String())
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("mock server stopping")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

func (s *Server) latency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.delay > 0 {
			t := time.NewTimer(s.delay)
			select {
			case <-t.C:
			case <-r.Context().Done():
				t.Stop()
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	calls := s.set.Calls()
	unmocked := s.set.Unmocked()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(calls),
		"requests": calls,
		"unmocked": unmocked,
	})
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	rules := s.set.Rules()
	out := make([]string, 0, len(rules))
	for _, rule := range rules {
		out = append(out, rule.String())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":   s.set.Mode(),
		"routes": out,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.set.ClearCalls()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
