package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mityayka1/pkgraph/internal/apperr"
	"github.com/mityayka1/pkgraph/internal/store"
)

// handleListFacts serves GET /api/v1/facts?entityId=...&factType=..., a
// lookup scoped to one entity and fact type (entity_facts is never listed
// wholesale; all of one entity's facts are served by handleEntityFacts).
func (s *Server) handleListFacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	entityID, err := uuid.Parse(r.URL.Query().Get("entityId"))
	if err != nil {
		writeError(w, apperr.Validation("entityId query parameter required", err))
		return
	}
	factType := r.URL.Query().Get("factType")
	if factType == "" {
		writeError(w, apperr.Validation("factType query parameter required", nil))
		return
	}
	facts, err := s.Store.ActiveFactsByType(r.Context(), entityID, factType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, facts)
}

// handleEntityFacts serves GET/POST /api/v1/entities/{id}/facts and
// DELETE /api/v1/entities/{id}/facts/{factId} (soft). rest is the path
// remainder after "facts": empty for the collection, "/{factId}" for one.
func (s *Server) handleEntityFacts(w http.ResponseWriter, r *http.Request, entityID uuid.UUID, rest string) {
	switch {
	case rest == "" && r.Method == http.MethodGet:
		facts, err := s.Store.ListFactsForEntity(r.Context(), entityID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, facts)
	case rest == "" && r.Method == http.MethodPost:
		var body struct {
			FactType  string         `json:"factType" validate:"required"`
			Category  string         `json:"category"`
			Value     *string        `json:"value"`
			ValueDate *time.Time     `json:"valueDate"`
			ValueJSON map[string]any `json:"valueJson"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		fact, err := s.Store.CreateManualFact(r.Context(), &store.EntityFact{
			EntityID:  &entityID,
			FactType:  body.FactType,
			Category:  body.Category,
			Value:     body.Value,
			ValueDate: body.ValueDate,
			ValueJSON: body.ValueJSON,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, fact)
	case rest != "" && r.Method == http.MethodDelete:
		factID, err := uuid.Parse(strings.TrimPrefix(rest, "/"))
		if err != nil {
			writeError(w, apperr.Validation("invalid fact id", err))
			return
		}
		if err := s.Store.SoftDeleteFact(r.Context(), factID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
