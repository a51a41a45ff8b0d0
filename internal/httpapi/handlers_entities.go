package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mityayka1/pkgraph/internal/apperr"
	"github.com/mityayka1/pkgraph/internal/disambiguate"
	"github.com/mityayka1/pkgraph/internal/store"
)

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		entities, err := s.Store.ListEntities(r.Context(), store.EntityFilter{
			Type:   r.URL.Query().Get("type"),
			Search: r.URL.Query().Get("search"),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entities)
	case http.MethodPost:
		var e store.Entity
		if !decodeJSON(w, r, &e) {
			return
		}
		out, err := s.Store.CreateEntity(r.Context(), &e)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleEntityByID serves /api/v1/entities/{id}, /api/v1/entities/{id}/merge,
// and /api/v1/entities/resolve is routed separately (it isn't keyed by id).
func (s *Server) handleEntityByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/entities/")
	if rest == "resolve" {
		s.handleResolveMention(w, r)
		return
	}
	parts := strings.SplitN(rest, "/", 2)
	id, err := uuid.Parse(parts[0])
	if err != nil {
		writeError(w, apperr.Validation("invalid entity id", err))
		return
	}

	if len(parts) == 2 && parts[1] == "merge" {
		s.handleMergeEntity(w, r, id)
		return
	}
	if len(parts) == 2 && (parts[1] == "facts" || strings.HasPrefix(parts[1], "facts/")) {
		s.handleEntityFacts(w, r, id, strings.TrimPrefix(parts[1], "facts"))
		return
	}
	if len(parts) == 2 && (parts[1] == "relations" || strings.HasPrefix(parts[1], "relations/")) {
		s.handleEntityRelations(w, r, id, strings.TrimPrefix(parts[1], "relations"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		e, err := s.Store.GetEntity(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		identifiers, err := s.Store.ListIdentifiersByEntity(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			*store.Entity
			Identifiers []*store.EntityIdentifier `json:"identifiers"`
		}{e, identifiers})
	case http.MethodPatch:
		var body struct {
			Name           string     `json:"name"`
			Notes          string     `json:"notes"`
			OrganizationID *uuid.UUID `json:"organizationId"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		e, err := s.Store.UpdateEntity(r.Context(), id, body.Name, body.Notes, body.OrganizationID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	case http.MethodDelete:
		if err := s.Store.SoftDeleteEntity(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleMergeEntity(w http.ResponseWriter, r *http.Request, sourceID uuid.UUID) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		TargetID uuid.UUID `json:"targetId"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	result, err := s.Store.MergeEntities(r.Context(), sourceID, body.TargetID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleEntityRelations serves GET/POST /api/v1/entities/{id}/relations
// and DELETE /api/v1/entities/{id}/relations/{relationId}, which closes
// the relation (sets validUntil) rather than erasing its history.
func (s *Server) handleEntityRelations(w http.ResponseWriter, r *http.Request, entityID uuid.UUID, rest string) {
	switch {
	case rest == "" && r.Method == http.MethodGet:
		relations, err := s.Store.RelationsFrom(r.Context(), entityID, r.URL.Query().Get("type"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, relations)
	case rest == "" && r.Method == http.MethodPost:
		var body struct {
			ToEntityID   uuid.UUID `json:"toEntityId" validate:"required"`
			RelationType string    `json:"relationType" validate:"required"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		relation, err := s.Store.CreateRelation(r.Context(), entityID, body.ToEntityID, body.RelationType)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, relation)
	case rest != "" && r.Method == http.MethodDelete:
		relationID, err := uuid.Parse(strings.TrimPrefix(rest, "/"))
		if err != nil {
			writeError(w, apperr.Validation("invalid relation id", err))
			return
		}
		if err := s.Store.CloseRelation(r.Context(), relationID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleResolveMention(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Name          string   `json:"name"`
		ChatID        string   `json:"chatId"`
		MentionedWith []string `json:"mentionedWith"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	candidates, err := s.Disambiguate.Resolve(r.Context(), body.Name, disambiguate.Context{
		ChatID:        body.ChatID,
		MentionedWith: body.MentionedWith,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candidates)
}
