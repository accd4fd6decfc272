// Package server exposes the session manager's UI-facing surface over HTTP.
// The browser front-end is an external presentation collaborator; it only
// reads state produced by the store and invokes its mutation operations.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"academix/internal/logger"
	"academix/internal/services"
	"academix/pkg/chattypes"
)

// Server routes HTTP requests to the session store and conversation coordinator.
type Server struct {
	store       *services.SessionStore
	coordinator *services.ConversationCoordinator
	log         *log.Logger
}

// New creates a Server over the given store and coordinator.
func New(store *services.SessionStore, coordinator *services.ConversationCoordinator) *Server {
	return &Server{
		store:       store,
		coordinator: coordinator,
		log:         logger.NewStyledLogger("Server"),
	}
}

// Handler returns the full HTTP handler, middleware included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("POST /api/sessions/{id}/select", s.handleSelectSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /api/sessions/{id}/messages", s.handleListMessages)
	mux.HandleFunc("POST /api/sessions/{id}/messages", s.handleSendMessage)

	return s.withLogging(withCORS(mux))
}

// DTOs

type sessionSummary struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	CreatedAt         time.Time `json:"created_at"`
	LastModified      time.Time `json:"last_modified"`
	MessageCount      int       `json:"message_count"`
	IsGeneratingTitle bool      `json:"is_generating_title"`
	Active            bool      `json:"active"`
}

type createSessionRequest struct {
	Activate *bool `json:"activate,omitempty"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type messagesResponse struct {
	SessionID string              `json:"session_id"`
	Title     string              `json:"title"`
	Messages  []chattypes.Message `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handlers

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.store.Initialized() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	activeID := s.store.ActiveSessionID()
	sessions := s.store.Sessions()
	out := make([]sessionSummary, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, sessionSummary{
			ID:                session.ID,
			Title:             session.Title,
			CreatedAt:         session.CreatedAt,
			LastModified:      session.LastModified,
			MessageCount:      len(session.Messages),
			IsGeneratingTitle: session.IsGeneratingTitle,
			Active:            session.ID == activeID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	activate := true
	var req createSessionRequest
	if err := decodeJSON(r, &req); err == nil && req.Activate != nil {
		activate = *req.Activate
	}

	id := s.store.CreateSession(activate)
	session, _ := s.store.Session(id)
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleSelectSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.SelectSession(id); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	// Deleting an unknown id is a no-op by store policy; the outcome is the
	// same either way.
	s.store.DeleteSession(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	session, ok := s.store.Session(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{
		SessionID: session.ID,
		Title:     session.Title,
		Messages:  session.Messages,
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	err := s.coordinator.SendMessage(r.Context(), id, req.Text, chattypes.SenderUser)
	switch {
	case errors.Is(err, services.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message text is required"})
		return
	case errors.Is(err, services.ErrSendInFlight):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "a reply is already being generated for this session"})
		return
	case errors.Is(err, services.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	case err != nil:
		s.log.Error("send message failed", "session_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	session, ok := s.store.Session(id)
	if !ok {
		// Deleted while the reply was in flight.
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{
		SessionID: session.ID,
		Title:     session.Title,
		Messages:  session.Messages,
	})
}

// Middleware

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// withCORS allows calls from the browser front-end.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Helpers

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	return json.NewDecoder(r.Body).Decode(v)
}
