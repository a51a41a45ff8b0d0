package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/mityayka1/pkgraph/internal/approval"
	"github.com/mityayka1/pkgraph/internal/audit"
	"github.com/mityayka1/pkgraph/internal/commitment"
	"github.com/mityayka1/pkgraph/internal/disambiguate"
	"github.com/mityayka1/pkgraph/internal/embedworker"
	"github.com/mityayka1/pkgraph/internal/resolver"
	"github.com/mityayka1/pkgraph/internal/segmenter"
	"github.com/mityayka1/pkgraph/internal/session"
	"github.com/mityayka1/pkgraph/internal/store"
)

// Server wires the domain services together behind an http.ServeMux: one
// mux, one HandleFunc per route, no router framework.
type Server struct {
	Store        *store.Store
	Auth         *Auth
	Approval     *approval.Service
	Audit        *audit.Service
	Commitment   *commitment.Service
	Disambiguate *disambiguate.Service
	Resolver     *resolver.Resolver
	Segmenter    *segmenter.Service
	Session      *session.Assembler
	Embed        *embedworker.Enqueuer

	limiters *limiterStore
	http     *http.Server
}

// Options configures Server's construction.
type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RateLimitPerMin int
}

// New builds a Server ready to ListenAndServe.
func New(opts Options, store *store.Store, auth *Auth, appr *approval.Service, aud *audit.Service, cmt *commitment.Service,
	dis *disambiguate.Service, res *resolver.Resolver, seg *segmenter.Service, sess *session.Assembler, embed *embedworker.Enqueuer) *Server {
	s := &Server{
		Store:        store,
		Auth:         auth,
		Approval:     appr,
		Audit:        aud,
		Commitment:   cmt,
		Disambiguate: dis,
		Resolver:     res,
		Segmenter:    seg,
		Session:      sess,
		Embed:        embed,
		limiters:     newLimiterStore(opts.RateLimitPerMin),
	}
	s.http = &http.Server{
		Addr:         addr(opts.Host, opts.Port),
		Handler:      s.router(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// ListenAndServe starts the HTTP server, blocking until it stops.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func addr(host string, port int) string {
	if host == "" {
		host = "0.0.0.0"
	}
	return host + ":" + strconv.Itoa(port)
}

func (s *Server) router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", withCORS(s.handleStatus))
	mux.HandleFunc("/api/v1/auth/login", withCORS(s.withRateLimit(s.handleLogin)))
	mux.HandleFunc("/api/v1/auth/refresh", withCORS(s.withRateLimit(s.handleRefresh)))
	mux.HandleFunc("/api/v1/auth/logout", withCORS(s.handleLogout))
	mux.HandleFunc("/api/v1/auth/logout-all", withCORS(s.requireAuth(s.handleLogoutAll)))
	mux.HandleFunc("/api/v1/auth/api-key", withCORS(s.requireAuth(s.handleIssueAPIKey)))

	mux.HandleFunc("/api/v1/entities", withCORS(s.requireAuth(s.handleEntities)))
	mux.HandleFunc("/api/v1/entities/", withCORS(s.requireAuth(s.handleEntityByID)))
	mux.HandleFunc("/api/v1/entities/resolve", withCORS(s.requireAuth(s.handleResolveMention)))

	mux.HandleFunc("/api/v1/facts", withCORS(s.requireAuth(s.handleListFacts)))

	mux.HandleFunc("/api/v1/activities", withCORS(s.requireAuth(s.handleActivities)))
	mux.HandleFunc("/api/v1/activities/", withCORS(s.requireAuth(s.handleActivityByID)))

	mux.HandleFunc("/api/v1/commitments", withCORS(s.requireAuth(s.handleCommitments)))
	mux.HandleFunc("/api/v1/commitments/", withCORS(s.requireAuth(s.handleCommitmentByID)))

	mux.HandleFunc("/api/v1/segments/", withCORS(s.requireAuth(s.handleSegmentByID)))

	mux.HandleFunc("/api/v1/approvals", withCORS(s.requireAuth(s.handleListApprovals)))
	mux.HandleFunc("/api/v1/approvals/", withCORS(s.requireAuth(s.handleApprovalAction)))

	mux.HandleFunc("/api/v1/interactions", withCORS(s.requireAuth(s.handleListInteractions)))
	mux.HandleFunc("/api/v1/interactions/", withCORS(s.requireAuth(s.handleInteractionByID)))

	mux.HandleFunc("/api/v1/data-quality/", withCORS(s.requireAuth(s.handleDataQuality)))

	mux.HandleFunc("/api/v1/messages/ingest", withCORS(s.requireAuth(s.handleIngestMessage)))

	mux.HandleFunc("/api/v1/identifiers/resolve", withCORS(s.requireAuth(s.handleResolveIdentifier)))
	mux.HandleFunc("/api/v1/resolutions", withCORS(s.requireAuth(s.handleListResolutions)))
	mux.HandleFunc("/api/v1/resolutions/", withCORS(s.requireAuth(s.handlePendingResolutionAction)))

	mux.HandleFunc("/api/v1/mentions", withCORS(s.requireAuth(s.handleMentions)))
	mux.HandleFunc("/api/v1/mentions/", withCORS(s.requireAuth(s.handleMentions)))

	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
