package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// handleState returns the blackboard snapshot.
func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.bb.State())
}

// handleListMessages returns the message log, oldest first.
func (s *Server) handleListMessages(w http.ResponseWriter, _ *http.Request) {
	msgs := s.bb.Messages()
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs, "count": len(msgs)})
}

func (s *Server) handleClearMessages(w http.ResponseWriter, _ *http.Request) {
	s.bb.ClearMessages()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "message id must be an integer")
		return
	}

	if !s.bb.DeleteMessage(id) {
		writeNotFound(w, "message not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
