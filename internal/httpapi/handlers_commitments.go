package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mityayka1/pkgraph/internal/apperr"
	"github.com/mityayka1/pkgraph/internal/store"
)

func (s *Server) handleCommitments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var c store.Commitment
		if !decodeJSON(w, r, &c) {
			return
		}
		out, err := s.Store.CreateCommitment(r.Context(), &c)
		if err != nil {
			writeError(w, err)
			return
		}
		_ = s.Commitment.ScheduleFirstReminder(r.Context(), out, time.Now())
		writeJSON(w, http.StatusCreated, out)
	case http.MethodGet:
		overdue, err := s.Store.ScanOverdue(r.Context(), time.Now())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, overdue)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCommitmentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/commitments/")
	parts := strings.SplitN(rest, "/", 2)
	id, err := uuid.Parse(parts[0])
	if err != nil {
		writeError(w, apperr.Validation("invalid commitment id", err))
		return
	}
	var sub string
	if len(parts) == 2 {
		sub = parts[1]
	}

	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			c, err := s.Store.GetCommitment(r.Context(), id)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, c)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	case "status":
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
		if err := s.Store.SetCommitmentStatus(r.Context(), id, body.Status); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	default:
		http.NotFound(w, r)
	}
}
