package server

import (
	"net/http"
	"time"

	"github.com/MeKo-Tech/ucrop/internal/engine"
	"github.com/google/uuid"
)

// createSessionHandler starts an interactive session for an uploaded image.
// It accepts the same ratio and viewport fields as /crop.
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.sessions.sweep()

	src, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	cfg, err := s.engineConfigFromForm(r)
	if err != nil {
		s.writeInputError(w, err)
		return
	}

	id := uuid.NewString()
	logger := s.logger.With("session", id)
	e, err := engine.New(src, cfg, engine.WithExecutor(s.executor), engine.WithLogger(logger))
	if err != nil {
		s.writeCropError(w, err)
		return
	}
	sess := newSession(id, src, e, time.Now())
	s.sessions.add(sess)
	logger.Info("Crop session created", "source", src.Name(), "width", src.Width(), "height", src.Height())

	s.writeJSON(w, http.StatusCreated, s.sessionResponse(sess))
}

// sessionHandler returns (GET) or ends (DELETE) a session.
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		sess, ok := s.sessions.get(id)
		if !ok {
			s.writeNotFound(w)
			return
		}
		s.writeJSON(w, http.StatusOK, s.sessionResponse(sess))
	case http.MethodDelete:
		if !s.sessions.remove(id) {
			s.writeNotFound(w)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// resultHandler serves a crop written by a session.
func (s *Server) resultHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := s.sessions.get(r.PathValue("id"))
	if !ok {
		s.writeNotFound(w)
		return
	}
	path, ok := sess.result(r.PathValue("result"))
	if !ok {
		s.writeNotFound(w)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) sessionResponse(sess *session) SessionResponse {
	expires := s.sessions.expiry(sess)
	sess.mu.Lock()
	state := stateOf(sess.engine)
	sess.mu.Unlock()
	return SessionResponse{
		ID: sess.id,
		Source: ImageInfo{
			Name:        sess.src.Name(),
			Format:      sess.src.Format(),
			Width:       sess.src.Width(),
			Height:      sess.src.Height(),
			Orientation: int(sess.src.Orientation()),
			SizeBytes:   sess.src.SizeBytes(),
		},
		State:     state,
		Socket:    "/sessions/" + sess.id + "/ws",
		ExpiresAt: expires.UTC().Format(time.RFC3339),
	}
}

func (s *Server) writeNotFound(w http.ResponseWriter) {
	s.writeErrorResponse(w, ErrorResponse{Error: "not_found", Message: "Session or result not found"}, http.StatusNotFound)
}
