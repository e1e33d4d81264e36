package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/realtime-ai/interview-agent/pkg/agent"
)

// StartResponse is returned by POST /sessions.
type StartResponse struct {
	SessionID string      `json:"session_id"`
	State     agent.State `json:"state"`
}

type transcriptRequest struct {
	Text string `json:"text"`
}

type vadRequest struct {
	Threshold *float32 `json:"threshold"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.registry.Len()})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	if _, ok := s.registry.Get(req.SessionID); ok {
		writeError(w, http.StatusConflict, agent.ErrSessionExists.Error())
		return
	}
	if s.config.MaxSessions > 0 && s.registry.Len() >= s.config.MaxSessions {
		writeError(w, http.StatusTooManyRequests, "too many sessions")
		return
	}

	c, err := s.factory(r.Context(), req.SessionID, req)
	if err != nil {
		log.Printf("[Server] [session %s] create failed: %v", req.SessionID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.registry.Register(c); err != nil {
		c.Stop()
		writeError(w, statusOf(err), err.Error())
		return
	}
	if err := c.StartInterview(r.Context()); err != nil {
		log.Printf("[Server] [session %s] start failed: %v", c.ID(), err)
		c.Stop()
		writeError(w, statusOf(err), err.Error())
		return
	}

	log.Printf("[Server] [session %s] started", c.ID())
	writeJSON(w, http.StatusCreated, StartResponse{SessionID: c.ID(), State: c.State()})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": s.registry.IDs()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	c.Stop()
	log.Printf("[Server] [session %s] stopped", c.ID())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	s.reply(w, c.ForceNextQuestion())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	s.reply(w, c.ResetProcessing())
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	var req transcriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	s.reply(w, c.HandleTranscript(req.Text))
}

func (s *Server) handleVAD(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	var req vadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Threshold == nil {
		writeError(w, http.StatusBadRequest, "threshold is required")
		return
	}
	if err := c.UpdateVADSensitivity(*req.Threshold); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*agent.Controller, bool) {
	c, ok := s.registry.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
	}
	return c, ok
}

func (s *Server) reply(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func statusOf(err error) int {
	var merr *agent.MicrophoneAccessError
	switch {
	case errors.As(err, &merr):
		return http.StatusServiceUnavailable
	case errors.Is(err, agent.ErrSessionExists),
		errors.Is(err, agent.ErrAlreadyActive),
		errors.Is(err, agent.ErrNotActive),
		errors.Is(err, agent.ErrStopped),
		errors.Is(err, agent.ErrTurnInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
