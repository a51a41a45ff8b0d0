package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/mityayka1/pkgraph/internal/audit"
)

// handleDataQuality serves /api/v1/data-quality/{operation}: audit
// (detect only), the three targeted remediations, and the auto-fix
// composite (normally run by the scheduler every Audit.Interval instead).
func (s *Server) handleDataQuality(w http.ResponseWriter, r *http.Request) {
	op := strings.TrimPrefix(r.URL.Path, "/api/v1/data-quality/")
	if op == "reports" {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		reports, err := s.Store.LatestQualityReports(r.Context(), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reports)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var run func(context.Context) (*audit.Report, error)
	switch op {
	case "audit":
		run = s.Audit.Detect
	case "auto-merge-duplicates":
		run = s.Audit.AutoMergeDuplicates
	case "auto-assign-orphans":
		run = s.Audit.AutoAssignOrphans
	case "auto-resolve-clients":
		run = s.Audit.AutoResolveClients
	case "auto-fix":
		run = s.Audit.Run
	default:
		http.NotFound(w, r)
		return
	}

	report, err := run(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
