package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mityayka1/pkgraph/internal/apperr"
	"github.com/mityayka1/pkgraph/internal/store"
)

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var a store.Activity
		if !decodeJSON(w, r, &a) {
			return
		}
		out, err := s.Store.CreateActivity(r.Context(), &a)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleActivityByID serves /api/v1/activities/{id}[/descendants|ancestors|reparent|status].
func (s *Server) handleActivityByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/activities/")
	parts := strings.SplitN(rest, "/", 2)
	id, err := uuid.Parse(parts[0])
	if err != nil {
		writeError(w, apperr.Validation("invalid activity id", err))
		return
	}
	var sub string
	if len(parts) == 2 {
		sub = parts[1]
	}

	switch sub {
	case "":
		s.handleActivityRoot(w, r, id)
	case "descendants":
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		nodes, err := s.Store.Descendants(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nodes)
	case "ancestors":
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		nodes, err := s.Store.Ancestors(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nodes)
	case "reparent":
		s.handleReparent(w, r, id)
	case "status":
		s.handleActivityStatus(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleActivityRoot(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	switch r.Method {
	case http.MethodGet:
		a, err := s.Store.GetActivity(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleReparent(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		NewParentID *uuid.UUID `json:"newParentId"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := s.Store.Reparent(r.Context(), id, body.NewParentID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleActivityStatus(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if r.Method != http.MethodPatch {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := s.Store.SetActivityStatus(r.Context(), id, body.Status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
