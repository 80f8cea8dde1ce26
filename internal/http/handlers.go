// Package http exposes the engine over a JSON API.  Authentication is an
// external collaborator: the acting role arrives in the X-Actor-Role header
// and is trusted here.
package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"triageroom/internal/engine"
	"triageroom/internal/triage"
	"triageroom/pkg"
)

// Server bundles the dependencies required by the HTTP handlers.
type Server struct {
	Engine *engine.Engine
}

// NewServer constructs the server over the engine.
func NewServer(eng *engine.Engine) *Server {
	return &Server{Engine: eng}
}

// Router assembles the chi router with the standard middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		api.Post("/sessions", s.handleCreateSession)
		api.Route("/sessions/{id}", func(sr chi.Router) {
			sr.Get("/", s.handleGetSession)
			sr.Post("/answers", s.handleSubmitAnswer)
			sr.Post("/messages", s.handlePostMessage)
			sr.Post("/complete-intake", s.handleCompleteIntake)
			sr.Post("/emergency", s.handleEmergency)
			sr.Post("/close", s.handleClose)
		})
		api.Route("/nurse", func(nr chi.Router) {
			nr.Get("/queue", s.handleQueue)
			nr.Post("/sessions/{id}/open", s.handleNurseOpen)
			nr.Post("/sessions/{id}/complete", s.handleComplete)
		})
	})
	return r
}

// actorRole extracts the acting role supplied by the caller.  Unknown values
// fall back to patient, the least privileged role.
func actorRole(r *http.Request) pkg.Role {
	if pkg.Role(r.Header.Get("X-Actor-Role")) == pkg.RoleNurse {
		return pkg.RoleNurse
	}
	return pkg.RolePatient
}

type sessionResponse struct {
	Session      *pkg.Session  `json:"session"`
	NextQuestion string        `json:"next_question,omitempty"`
	Messages     []pkg.Message `json:"messages,omitempty"`
}

func (s *Server) respondSession(w http.ResponseWriter, status int, sess *pkg.Session, msgs []pkg.Message) {
	resp := sessionResponse{Session: sess, Messages: msgs}
	if q := s.Engine.CurrentQuestion(sess); q != nil {
		resp.NextQuestion = q.Text
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Subject == "" {
		http.Error(w, "subject is required", http.StatusBadRequest)
		return
	}
	sess, err := s.Engine.StartIntake(r.Context(), req.Subject)
	if err != nil {
		writeError(w, err)
		return
	}
	s.respondSession(w, http.StatusCreated, sess, nil)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.Engine.Store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	msgs, err := s.Engine.Store.Messages(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	s.respondSession(w, http.StatusOK, sess, msgs)
}

func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Answer == "" {
		http.Error(w, "answer is required", http.StatusBadRequest)
		return
	}
	sess, _, err := s.Engine.SubmitAnswer(r.Context(), chi.URLParam(r, "id"), req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	s.respondSession(w, http.StatusOK, sess, nil)
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}
	sess, err := s.Engine.RecordMessage(r.Context(), chi.URLParam(r, "id"), actorRole(r), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	s.respondSession(w, http.StatusOK, sess, nil)
}

func (s *Server) handleCompleteIntake(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Engine.FinishIntake(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.respondSession(w, http.StatusOK, sess, nil)
}

func (s *Server) handleEmergency(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Engine.Escalate(r.Context(), chi.URLParam(r, "id"), true)
	if err != nil {
		writeError(w, err)
		return
	}
	s.respondSession(w, http.StatusOK, sess, nil)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Engine.Close(r.Context(), chi.URLParam(r, "id"), actorRole(r))
	if err != nil {
		writeError(w, err)
		return
	}
	s.respondSession(w, http.StatusOK, sess, nil)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := triage.Load(r.Context(), s.Engine.Store)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queue)
}

func (s *Server) handleNurseOpen(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Engine.NurseOpen(r.Context(), chi.URLParam(r, "id"), actorRole(r))
	if err != nil {
		writeError(w, err)
		return
	}
	s.respondSession(w, http.StatusOK, sess, nil)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	sess, err := s.Engine.Complete(r.Context(), chi.URLParam(r, "id"), actorRole(r), req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	s.respondSession(w, http.StatusOK, sess, nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

// writeError maps the engine's error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrConflict), errors.Is(err, engine.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrSessionClosed):
		status = http.StatusGone
	}
	http.Error(w, err.Error(), status)
}
