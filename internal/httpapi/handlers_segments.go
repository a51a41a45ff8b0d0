package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mityayka1/pkgraph/internal/apperr"
)

// handleSegmentByID serves /api/v1/segments/{id} and /api/v1/segments/{id}/related.
func (s *Server) handleSegmentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/segments/")
	parts := strings.SplitN(rest, "/", 2)
	id, err := uuid.Parse(parts[0])
	if err != nil {
		writeError(w, apperr.Validation("invalid segment id", err))
		return
	}
	var sub string
	if len(parts) == 2 {
		sub = parts[1]
	}

	switch sub {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		seg, err := s.Store.GetSegment(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, seg)
	case "related":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			RelatedID uuid.UUID `json:"relatedId"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		if err := s.Store.LinkRelatedSegment(r.Context(), id, body.RelatedID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	default:
		http.NotFound(w, r)
	}
}
