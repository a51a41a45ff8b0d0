package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mityayka1/pkgraph/internal/apperr"
	"github.com/mityayka1/pkgraph/internal/approval"
)

func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if raw := r.URL.Query().Get("batchId"); raw != "" {
		batchID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, apperr.Validation("invalid batch id", err))
			return
		}
		approvals, err := s.Store.PendingInBatch(r.Context(), batchID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, approvals)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	approvals, err := s.Store.ListPendingApprovals(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, approvals)
}

// handleApprovalAction serves the per-item routes
// /api/v1/approvals/{id}/approve, .../reject, .../target, and the
// batch-scoped /api/v1/approvals/batch/{batchId}/approve, .../reject,
// .../stats.
func (s *Server) handleApprovalAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/approvals/")
	if batchRest, ok := strings.CutPrefix(rest, "batch/"); ok {
		s.handleApprovalBatchAction(w, r, batchRest)
		return
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		writeError(w, apperr.Validation("invalid approval id", err))
		return
	}

	switch {
	case parts[1] == "approve" && r.Method == http.MethodPost:
		if err := s.Approval.Approve(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	case parts[1] == "reject" && r.Method == http.MethodPost:
		if err := s.Approval.Reject(r.Context(), id, s.rejectRetention(r)); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	case parts[1] == "target" && r.Method == http.MethodPatch:
		var edit approval.TargetEdit
		if !decodeJSON(w, r, &edit) {
			return
		}
		if err := s.Approval.UpdateTarget(r.Context(), id, edit); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleApprovalBatchAction(w http.ResponseWriter, r *http.Request, rest string) {
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	batchID, err := uuid.Parse(parts[0])
	if err != nil {
		writeError(w, apperr.Validation("invalid batch id", err))
		return
	}

	switch {
	case parts[1] == "approve" && r.Method == http.MethodPost:
		result, err := s.Approval.ApproveBatchID(r.Context(), batchID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case parts[1] == "reject" && r.Method == http.MethodPost:
		result, err := s.Approval.RejectBatchID(r.Context(), batchID, s.rejectRetention(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case parts[1] == "stats" && r.Method == http.MethodGet:
		stats, err := s.Store.ApprovalBatchStats(r.Context(), batchID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	default:
		http.NotFound(w, r)
	}
}

// rejectRetention reads an optional per-request retention override, falling
// back to the workflow default.
func (s *Server) rejectRetention(r *http.Request) int {
	var body struct {
		RetentionDays int `json:"retentionDays"`
	}
	_ = decodeOptionalJSON(r, &body)
	if body.RetentionDays == 0 {
		return approval.DefaultRetentionDays
	}
	return body.RetentionDays
}
