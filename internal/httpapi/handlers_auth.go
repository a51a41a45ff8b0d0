package httpapi

import (
	"net/http"

	"github.com/mityayka1/pkgraph/internal/apperr"
)

type loginRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pair, err := s.Auth.Login(r.Context(), req.Name, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	s.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, pair)
}

// refreshCookiePath scopes the refresh-token cookie to the auth endpoints
// so it never rides along on ordinary API calls.
const refreshCookiePath = "/api/v1/auth"

func (s *Server) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "refreshToken",
		Value:    token,
		Path:     refreshCookiePath,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.Auth.RefreshTokenTTL.Seconds()),
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "refreshToken",
		Value:    "",
		Path:     refreshCookiePath,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

// refreshTokenFrom reads the refresh token from the request body, falling
// back to the httpOnly cookie set at login.
func refreshTokenFrom(r *http.Request) string {
	var req refreshRequest
	_ = decodeOptionalJSON(r, &req)
	if req.RefreshToken != "" {
		return req.RefreshToken
	}
	if c, err := r.Cookie("refreshToken"); err == nil {
		return c.Value
	}
	return ""
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := refreshTokenFrom(r)
	if token == "" {
		writeError(w, apperr.Auth("missing refresh token", nil))
		return
	}
	pair, err := s.Auth.Refresh(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	s.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, pair)
}

// handleLogout ends the presented session: the refresh token from the
// body or cookie is revoked; other sessions stay alive.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := refreshTokenFrom(r)
	if token == "" {
		writeError(w, apperr.Auth("missing refresh token", nil))
		return
	}
	if err := s.Auth.LogoutToken(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	s.clearRefreshCookie(w)
	writeJSON(w, http.StatusNoContent, nil)
}

// handleLogoutAll revokes every outstanding refresh token for the caller.
func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := EntityFromContext(r.Context())
	if !ok {
		writeError(w, apperr.Auth("missing credentials", nil))
		return
	}
	if err := s.Auth.Logout(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	s.clearRefreshCookie(w)
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleIssueAPIKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := EntityFromContext(r.Context())
	if !ok {
		writeError(w, apperr.Auth("missing credentials", nil))
		return
	}
	key, err := s.Auth.IssueAPIKey(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"apiKey": key})
}
