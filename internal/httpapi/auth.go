package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mityayka1/pkgraph/internal/apperr"
	"github.com/mityayka1/pkgraph/internal/store"
)

// DefaultMaxFailedLogins and DefaultLockoutDuration apply when the
// configured values are unset.
const (
	DefaultMaxFailedLogins = 5
	DefaultLockoutDuration = 15 * time.Minute
)

// claims is the JWT payload issued for both access and refresh tokens.
// TokenType distinguishes the two so an access token can never be used
// where a refresh token is expected, or vice versa.
type claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"tokenType"`
}

// Auth issues and verifies JWTs and manages the bcrypt password / API key
// flows backing them.
type Auth struct {
	Store           *store.Store
	Secret          []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
	MaxFailedLogins int
	LockoutDuration time.Duration
}

// NewAuth builds an Auth from the configured secret, TTLs, and lockout
// policy.
func NewAuth(s *store.Store, secret string, accessTTL, refreshTTL time.Duration, bcryptCost, maxFailedLogins int, lockout time.Duration) *Auth {
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if maxFailedLogins <= 0 {
		maxFailedLogins = DefaultMaxFailedLogins
	}
	if lockout <= 0 {
		lockout = DefaultLockoutDuration
	}
	return &Auth{
		Store:           s,
		Secret:          []byte(secret),
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: refreshTTL,
		BcryptCost:      bcryptCost,
		MaxFailedLogins: maxFailedLogins,
		LockoutDuration: lockout,
	}
}

// TokenPair is returned by Login and Refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
}

// dummyHash is compared against on a login with an unknown name, so the
// response latency for "no such account" and "wrong password" doesn't leak
// which case occurred (bcrypt's cost dominates total request time either
// way).
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

// Login verifies name/password, applying lockout after MaxFailedLogins
// consecutive failures, and issues a fresh token pair on success.
func (a *Auth) Login(ctx context.Context, name, password string) (*TokenPair, error) {
	creds, err := a.Store.CredentialsByName(ctx, name)
	if err != nil {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, apperr.Auth("invalid credentials", nil)
	}
	if creds.LockedUntil != nil && creds.LockedUntil.After(time.Now()) {
		return nil, apperr.Auth("account locked, try again later", nil)
	}
	if creds.PasswordHash == "" {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, apperr.Auth("invalid credentials", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)); err != nil {
		_ = a.Store.RecordFailedLogin(ctx, creds.EntityID, a.MaxFailedLogins, a.LockoutDuration)
		return nil, apperr.Auth("invalid credentials", nil)
	}
	_ = a.Store.ClearFailedLogins(ctx, creds.EntityID)
	return a.issuePair(ctx, creds.EntityID)
}

// SetPassword bcrypt-hashes and stores a new password for an entity,
// clearing any existing lockout.
func (a *Auth) SetPassword(ctx context.Context, entityID uuid.UUID, password string) error {
	if len(password) < 8 {
		return apperr.Validation("password must be at least 8 characters", nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.BcryptCost)
	if err != nil {
		return apperr.Fatal("hash password failed", err)
	}
	return a.Store.SetPasswordHash(ctx, entityID, string(hash))
}

// IssueAPIKey generates a new API key for an entity, returning the
// plaintext (shown once, never recoverable) while storing only its hash.
func (a *Auth) IssueAPIKey(ctx context.Context, entityID uuid.UUID) (string, error) {
	key := "pkg_" + uuid.NewString() + uuid.NewString()
	if err := a.Store.SetAPIKeyHash(ctx, entityID, hashAPIKey(key)); err != nil {
		return "", err
	}
	return key, nil
}

func hashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// AuthenticateAPIKey resolves a presented API key to its owning entity.
func (a *Auth) AuthenticateAPIKey(ctx context.Context, key string) (*store.Entity, error) {
	return a.Store.EntityByAPIKeyHash(ctx, hashAPIKey(key))
}

func (a *Auth) issuePair(ctx context.Context, entityID uuid.UUID) (*TokenPair, error) {
	now := time.Now()
	access, err := a.sign(claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   entityID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.AccessTokenTTL)),
		},
		TokenType: "access",
	})
	if err != nil {
		return nil, err
	}

	jti := uuid.New()
	refreshExpiry := now.Add(a.RefreshTokenTTL)
	refresh, err := a.sign(claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   entityID.String(),
			ID:        jti.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExpiry),
		},
		TokenType: "refresh",
	})
	if err != nil {
		return nil, err
	}
	if err := a.Store.CreateRefreshToken(ctx, jti, entityID, hashAPIKey(refresh), refreshExpiry); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int(a.AccessTokenTTL.Seconds())}, nil
}

func (a *Auth) sign(c claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := tok.SignedString(a.Secret)
	if err != nil {
		return "", apperr.Fatal("sign jwt failed", err)
	}
	return signed, nil
}

func (a *Auth) parse(tokenStr string) (*claims, error) {
	var c claims
	tok, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.Auth("unexpected signing method", nil)
		}
		return a.Secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, apperr.Auth("invalid token", err)
	}
	return &c, nil
}

// VerifyAccessToken parses and validates an access-token JWT, returning the
// entity ID in its subject claim.
func (a *Auth) VerifyAccessToken(tokenStr string) (uuid.UUID, error) {
	c, err := a.parse(tokenStr)
	if err != nil {
		return uuid.Nil, err
	}
	if c.TokenType != "access" {
		return uuid.Nil, apperr.Auth("not an access token", nil)
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, apperr.Auth("invalid subject claim", err)
	}
	return id, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a
// fresh pair issued. Presenting an already-revoked token means the token
// was reused (stolen after being rotated out), so the whole token family
// for that entity is burned instead of quietly failing the one request.
func (a *Auth) Refresh(ctx context.Context, tokenStr string) (*TokenPair, error) {
	c, err := a.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if c.TokenType != "refresh" {
		return nil, apperr.Auth("not a refresh token", nil)
	}
	jti, err := uuid.Parse(c.ID)
	if err != nil {
		return nil, apperr.Auth("invalid token id", err)
	}
	rt, err := a.Store.GetRefreshToken(ctx, jti)
	if err != nil {
		return nil, err
	}
	if rt.TokenHash != hashAPIKey(tokenStr) {
		return nil, apperr.Auth("token mismatch", nil)
	}
	if rt.Revoked {
		_ = a.Store.RevokeAllRefreshTokens(ctx, rt.EntityID)
		return nil, apperr.Auth("refresh token reuse detected, session revoked", nil)
	}
	if rt.ExpiresAt.Before(time.Now()) {
		return nil, apperr.Auth("refresh token expired", nil)
	}
	if err := a.Store.RevokeRefreshToken(ctx, jti); err != nil {
		return nil, err
	}
	return a.issuePair(ctx, rt.EntityID)
}

// Logout revokes every outstanding refresh token for an entity.
func (a *Auth) Logout(ctx context.Context, entityID uuid.UUID) error {
	return a.Store.RevokeAllRefreshTokens(ctx, entityID)
}

// LogoutToken revokes just the presented refresh token, leaving the
// entity's other sessions alive.
func (a *Auth) LogoutToken(ctx context.Context, tokenStr string) error {
	c, err := a.parse(tokenStr)
	if err != nil {
		return err
	}
	if c.TokenType != "refresh" {
		return apperr.Auth("not a refresh token", nil)
	}
	jti, err := uuid.Parse(c.ID)
	if err != nil {
		return apperr.Auth("invalid token id", err)
	}
	return a.Store.RevokeRefreshToken(ctx, jti)
}
