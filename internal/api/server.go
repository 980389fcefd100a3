// Package api provides the HTTP API for observing and driving the simulation.
// GET endpoints are public (read-only observation).
// POST and DELETE endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/engine"
	"github.com/talgya/contagion/internal/history"
)

const maxStreamConns = 16

// Server serves the current run over HTTP.
type Server struct {
	Ctrl     *engine.Controller
	History  *history.Store // optional; history and chart endpoints return 503 without it
	Port     int
	AdminKey string // Bearer token for POST/DELETE endpoints. Empty = commands disabled.

	CORSOrigins []string
	Limiter     *RateLimiter // optional; limits POST requests per client

	// Defaults fill omitted start parameters. Zero rates are drawn at random.
	Defaults engine.Params
	Rand     agents.Rand

	ChartWidth  int
	ChartHeight int

	// Active SSE and websocket connections.
	streams streamCounter
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	limit := func(h http.HandlerFunc) http.HandlerFunc {
		if s.Limiter == nil {
			return h
		}
		return RateLimitMiddleware(s.Limiter, h)
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/stats/history", s.handleStatsHistory)
	mux.HandleFunc("/api/v1/chart.png", s.handleChart)
	mux.HandleFunc("/api/v1/stream", s.handleStream)
	mux.HandleFunc("/api/v1/ws", s.handleWebsocket)

	// GET snapshot, POST adds agents.
	mux.HandleFunc("/api/v1/agents", s.adminOnly(limit(s.handleAgents)))
	// GET lists recorded runs, DELETE drops one.
	mux.HandleFunc("/api/v1/runs", s.adminOnly(limit(s.handleRuns)))

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/start", s.adminOnly(limit(postOnly(s.handleStart))))
	mux.HandleFunc("/api/v1/pause", s.adminOnly(limit(postOnly(s.handlePause))))
	mux.HandleFunc("/api/v1/resume", s.adminOnly(limit(postOnly(s.handleResume))))
	mux.HandleFunc("/api/v1/end", s.adminOnly(limit(postOnly(s.handleEnd))))

	return corsMiddleware(s.CORSOrigins, mux)
}

// Start begins serving the HTTP API in a goroutine and returns the server so
// the caller can shut it down.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// Shutdown stops srv, giving in-flight requests until ctx expires.
func Shutdown(ctx context.Context, srv *http.Server) error {
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// isCommand reports whether r changes server state.
func isCommand(r *http.Request) bool {
	return r.Method == http.MethodPost || r.Method == http.MethodDelete
}

// adminOnly wraps a handler to require bearer token auth on command requests.
// GET requests pass through (for endpoints that support both reads and commands).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if isCommand(r) {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no CONTAGION_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func postOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

// current returns the current run or writes 404.
func (s *Server) current(w http.ResponseWriter) *engine.Simulation {
	sim := s.Ctrl.Current()
	if sim == nil {
		handleError(w, engine.ErrNoSimulation)
	}
	return sim
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
