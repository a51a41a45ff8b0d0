package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLooksLikeJWT(t *testing.T) {
	cases := []struct {
		token string
		want  bool
	}{
		{"eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxIn0.signature", true},
		{"pkg_not-a-jwt-at-all", false},
		{"two.parts", false},
		{"", false},
	}
	for _, c := range cases {
		if got := looksLikeJWT(c.token); got != c.want {
			t.Errorf("looksLikeJWT(%q) = %v, want %v", c.token, got, c.want)
		}
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc123")
	if got := bearerToken(r); got != "abc123" {
		t.Errorf("bearerToken() = %q, want abc123", got)
	}

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.Header.Set("X-API-Key", "pkg_xyz")
	if got := bearerToken(r2); got != "pkg_xyz" {
		t.Errorf("bearerToken() fallback = %q, want pkg_xyz", got)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.5:54321"
	if got := clientIP(r); got != "203.0.113.5" {
		t.Errorf("clientIP() = %q, want 203.0.113.5", got)
	}
}

func TestLimiterStoreRejectsOverBudget(t *testing.T) {
	ls := newLimiterStore(1)
	lim := ls.get("1.2.3.4")
	if !lim.Allow() {
		t.Fatal("first request should be allowed")
	}
	if lim.Allow() {
		t.Fatal("second immediate request should be rejected under a 1/min budget")
	}
}

func TestWithCORSShortCircuitsPreflight(t *testing.T) {
	called := false
	h := withCORS(func(w http.ResponseWriter, r *http.Request) { called = true })

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
	h(w, r)

	if called {
		t.Error("OPTIONS request should not reach the wrapped handler")
	}
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header to be set")
	}
}
