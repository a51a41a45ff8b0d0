package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mityayka1/pkgraph/internal/apperr"
)

// handleListResolutions serves GET /api/v1/resolutions, the operator's
// pending-identifier triage queue, oldest first.
func (s *Server) handleListResolutions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	pending, err := s.Store.ListPendingResolutions(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

// handleMentions serves GET /api/v1/mentions and
// DELETE /api/v1/mentions/{id}: the unresolved-mention triage log written
// by extraction when a referenced name fails to resolve.
func (s *Server) handleMentions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/v1/mentions"), "/")
	switch {
	case rest == "" && r.Method == http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		mentions, err := s.Store.ListUnresolvedMentions(r.Context(), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, mentions)
	case rest != "" && r.Method == http.MethodDelete:
		id, err := uuid.Parse(rest)
		if err != nil {
			writeError(w, apperr.Validation("invalid mention id", err))
			return
		}
		if err := s.Store.DeleteMention(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleResolveIdentifier serves POST /api/v1/identifiers/resolve, the
// synchronous entry point into the identifier resolution handshake.
func (s *Server) handleResolveIdentifier(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		IdentifierType  string `json:"identifierType"`
		IdentifierValue string `json:"identifierValue"`
		DisplayName     string `json:"displayName"`
		SampleMessageID string `json:"sampleMessageId"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	result, err := s.Resolver.Resolve(r.Context(), body.IdentifierType, body.IdentifierValue, body.DisplayName, body.SampleMessageID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handlePendingResolutionAction serves /api/v1/resolutions/{id}/attach,
// .../create, and .../reject: the three ways a human clears a pending
// identifier resolution.
func (s *Server) handlePendingResolutionAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/resolutions/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		writeError(w, apperr.Validation("invalid pending resolution id", err))
		return
	}

	switch parts[1] {
	case "attach":
		var body struct {
			EntityID uuid.UUID `json:"entityId"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		if err := s.Resolver.Attach(r.Context(), id, body.EntityID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	case "create":
		var body struct {
			Name string `json:"name"`
			Type string `json:"type"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		e, err := s.Resolver.CreateNew(r.Context(), id, body.Name, body.Type)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	case "reject":
		if err := s.Resolver.Reject(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	default:
		http.NotFound(w, r)
	}
}
