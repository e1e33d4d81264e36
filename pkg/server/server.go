// Package server exposes running interviews over HTTP: start a session,
// read its status, steer it and stream its events over a WebSocket.
//
// Routes:
//
//	POST   /sessions                  start an interview
//	GET    /sessions                  list session ids
//	GET    /sessions/{id}             status snapshot
//	DELETE /sessions/{id}             stop
//	POST   /sessions/{id}/next        skip to the next question
//	POST   /sessions/{id}/reset       abandon a stuck turn
//	POST   /sessions/{id}/transcript  inject a participant answer
//	PUT    /sessions/{id}/vad         change voice detection sensitivity
//	GET    /sessions/{id}/events      WebSocket event stream
package server

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/realtime-ai/interview-agent/pkg/agent"
	"github.com/realtime-ai/interview-agent/pkg/dialogue"
)

// StartRequest is the body of POST /sessions. Both fields are optional.
type StartRequest struct {
	SessionID string `json:"session_id,omitempty"`
	// Interview replaces the configured interview description.
	Interview *dialogue.InterviewContext `json:"interview,omitempty"`
}

// SessionFactory builds an unstarted controller for a new session.
type SessionFactory func(ctx context.Context, id string, req StartRequest) (*agent.Controller, error)

// Server is the control API.
type Server struct {
	config   *Config
	registry *agent.Registry
	factory  SessionFactory

	mux        *http.ServeMux
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// New creates a server over registry. factory is called for every
// POST /sessions.
func New(config *Config, registry *agent.Registry, factory SessionFactory) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	d := DefaultConfig()
	if config.PingPeriod <= 0 {
		config.PingPeriod = d.PingPeriod
	}
	if config.WriteWait <= 0 {
		config.WriteWait = d.WriteWait
	}
	s := &Server{
		config:   config,
		registry: registry,
		factory:  factory,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /sessions", s.handleStart)
	s.mux.HandleFunc("GET /sessions", s.handleList)
	s.mux.HandleFunc("GET /sessions/{id}", s.handleStatus)
	s.mux.HandleFunc("DELETE /sessions/{id}", s.handleStop)
	s.mux.HandleFunc("POST /sessions/{id}/next", s.handleNext)
	s.mux.HandleFunc("POST /sessions/{id}/reset", s.handleReset)
	s.mux.HandleFunc("POST /sessions/{id}/transcript", s.handleTranscript)
	s.mux.HandleFunc("PUT /sessions/{id}/vad", s.handleVAD)
	s.mux.HandleFunc("GET /sessions/{id}/events", s.handleEvents)
	return s
}

// Handler returns the routes behind authentication. Browsers that cannot
// set headers on a WebSocket may pass the token as access_token.
func (s *Server) Handler() http.Handler {
	return s.authenticate(s.mux)
}

// Start listens in the background. It returns early if the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.config.Addr,
		Handler: s.Handler(),
	}

	log.Printf("[Server] starting on %s", s.config.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop ends every interview and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.registry.StopAll()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	if s.config.AuthToken == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("access_token")
		if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
		if token != s.config.AuthToken {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
