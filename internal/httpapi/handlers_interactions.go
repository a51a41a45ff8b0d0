package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mityayka1/pkgraph/internal/apperr"
	"github.com/mityayka1/pkgraph/internal/store"
)

func (s *Server) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	interactions, err := s.Store.ListInteractions(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, interactions)
}

// handleInteractionByID serves one interaction with its full message list.
func (s *Server) handleInteractionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := uuid.Parse(strings.TrimPrefix(r.URL.Path, "/api/v1/interactions/"))
	if err != nil {
		writeError(w, apperr.Validation("invalid interaction id", err))
		return
	}
	it, err := s.Store.GetInteraction(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	messages, err := s.Store.MessagesByInteraction(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		*store.Interaction
		Messages []*store.Message `json:"messages"`
	}{it, messages})
}
