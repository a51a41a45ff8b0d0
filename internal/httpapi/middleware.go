package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/mityayka1/pkgraph/internal/apperr"
)

type ctxKey int

const entityIDKey ctxKey = iota

// EntityFromContext returns the authenticated caller's entity ID, set by
// requireAuth.
func EntityFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(entityIDKey).(uuid.UUID)
	return id, ok
}

// requireAuth accepts either a Bearer JWT access token or an API key
// (X-API-Key header, or an api_key query parameter for webhook-style
// callers that can't set headers). A bearer value that looks like a JWT
// (three dot-separated base64url segments starting with the "eyJ" header
// prefix every HS256 token shares) is treated as a JWT even when it
// arrives via ?api_key=, since some clients forward it that way regardless
// of which auth style they were told to use.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			token = r.URL.Query().Get("api_key")
		}
		if token == "" {
			writeError(w, apperr.Auth("missing credentials", nil))
			return
		}

		if looksLikeJWT(token) {
			id, err := s.Auth.VerifyAccessToken(token)
			if err != nil {
				writeError(w, err)
				return
			}
			next(w, r.WithContext(context.WithValue(r.Context(), entityIDKey, id)))
			return
		}

		entity, err := s.Auth.AuthenticateAPIKey(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), entityIDKey, entity.ID)))
	}
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return strings.TrimSpace(r.Header.Get("X-API-Key"))
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

func looksLikeJWT(token string) bool {
	parts := strings.Split(token, ".")
	return len(parts) == 3 && strings.HasPrefix(parts[0], "eyJ")
}

// withCORS sets permissive CORS headers on every response,
// short-circuiting preflight OPTIONS requests.
func withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

// limiterStore hands out one token-bucket limiter per client IP. Entries
// are never evicted, so the map holds one limiter per address seen since
// boot.
type limiterStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perMin   int
}

func newLimiterStore(perMin int) *limiterStore {
	if perMin <= 0 {
		perMin = 120
	}
	return &limiterStore{limiters: make(map[string]*rate.Limiter), perMin: perMin}
}

func (l *limiterStore) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(l.perMin)/60.0), l.perMin)
		l.limiters[key] = lim
	}
	return lim
}

// withRateLimit rejects a request once its source IP exceeds the
// configured per-minute budget.
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.limiters.get(ip).Allow() {
			writeError(w, apperr.Conflict("rate limit exceeded", nil))
			return
		}
		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
