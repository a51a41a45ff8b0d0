package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mityayka1/pkgraph/internal/apperr"
)

// Credentials is the subset of an entity's login state the auth flow needs,
// kept separate from Entity so password/API-key hashes never travel through
// the general entity read/list paths.
type Credentials struct {
	EntityID         uuid.UUID
	PasswordHash     string
	FailedLoginCount int
	LockedUntil      *time.Time
}

// CredentialsByName looks up login credentials by exact entity name. Names
// aren't unique in the graph in general, but the owner entity seeded at
// bootstrap is, and that's the only account this looks up today.
func (s *Store) CredentialsByName(ctx context.Context, name string) (*Credentials, error) {
	var c Credentials
	row := s.Pool.QueryRow(ctx, `SELECT id, password_hash, failed_login_count, locked_until
		FROM entities WHERE name = $1 AND deleted_at IS NULL ORDER BY created_at ASC LIMIT 1`, name)
	if err := row.Scan(&c.EntityID, &c.PasswordHash, &c.FailedLoginCount, &c.LockedUntil); err != nil {
		return nil, apperr.NotFound("no account with that name", err)
	}
	return &c, nil
}

// SetPasswordHash stores a bcrypt hash for an entity and clears its lockout
// state, used both at account creation and on password reset.
func (s *Store) SetPasswordHash(ctx context.Context, entityID uuid.UUID, hash string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE entities SET password_hash=$2, failed_login_count=0, locked_until=NULL, updated_at=now() WHERE id=$1`, entityID, hash)
	if err != nil {
		return apperr.Transient("set password hash failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("entity not found", nil)
	}
	return nil
}

// RecordFailedLogin increments the failure counter and, once it reaches
// maxAttempts, locks the account until lockFor has elapsed.
func (s *Store) RecordFailedLogin(ctx context.Context, entityID uuid.UUID, maxAttempts int, lockFor time.Duration) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE entities SET failed_login_count = failed_login_count + 1,
			locked_until = CASE WHEN failed_login_count + 1 >= $2 THEN now() + make_interval(secs => $3) ELSE locked_until END
		WHERE id = $1`, entityID, maxAttempts, lockFor.Seconds())
	if err != nil {
		return apperr.Transient("record failed login failed", err)
	}
	return nil
}

// ClearFailedLogins resets the lockout state after a successful login.
func (s *Store) ClearFailedLogins(ctx context.Context, entityID uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `UPDATE entities SET failed_login_count=0, locked_until=NULL WHERE id=$1`, entityID)
	if err != nil {
		return apperr.Transient("clear failed logins failed", err)
	}
	return nil
}

// SetAPIKeyHash stores the SHA-256 hash of a newly issued API key. Hashed
// with SHA-256 rather than bcrypt because lookups need to be an equality
// scan on the hash, not a per-row bcrypt compare.
func (s *Store) SetAPIKeyHash(ctx context.Context, entityID uuid.UUID, hash string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE entities SET api_key_hash=$2, updated_at=now() WHERE id=$1`, entityID, hash)
	if err != nil {
		return apperr.Conflict("set api key failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("entity not found", nil)
	}
	return nil
}

// EntityByAPIKeyHash resolves a presented API key's hash back to its owning
// entity, or apperr.Auth if no entity holds it.
func (s *Store) EntityByAPIKeyHash(ctx context.Context, hash string) (*Entity, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+entityColumns+` FROM entities WHERE api_key_hash = $1 AND deleted_at IS NULL`, hash)
	e, err := scanEntity(row)
	if err != nil {
		return nil, apperr.Auth("invalid api key", err)
	}
	return e, nil
}

// RefreshToken is a single issued refresh token record, tracked so a reused
// (already-rotated) token can be detected and its whole family revoked.
type RefreshToken struct {
	JTI       uuid.UUID
	EntityID  uuid.UUID
	TokenHash string
	Revoked   bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// CreateRefreshToken records a freshly issued refresh token.
func (s *Store) CreateRefreshToken(ctx context.Context, jti, entityID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	_, err := s.Pool.Exec(ctx, `INSERT INTO refresh_tokens (jti, user_id, token_hash, expires_at) VALUES ($1,$2,$3,$4)`,
		jti, entityID, tokenHash, expiresAt)
	if err != nil {
		return apperr.Transient("create refresh token failed", err)
	}
	return nil
}

// GetRefreshToken fetches a refresh token by its jti claim.
func (s *Store) GetRefreshToken(ctx context.Context, jti uuid.UUID) (*RefreshToken, error) {
	var rt RefreshToken
	row := s.Pool.QueryRow(ctx, `SELECT jti, user_id, token_hash, revoked, created_at, expires_at FROM refresh_tokens WHERE jti=$1`, jti)
	if err := row.Scan(&rt.JTI, &rt.EntityID, &rt.TokenHash, &rt.Revoked, &rt.CreatedAt, &rt.ExpiresAt); err != nil {
		return nil, apperr.Auth("refresh token not found", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a single token used/revoked, the rotation step
// on every successful refresh.
func (s *Store) RevokeRefreshToken(ctx context.Context, jti uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `UPDATE refresh_tokens SET revoked=TRUE WHERE jti=$1`, jti)
	if err != nil {
		return apperr.Transient("revoke refresh token failed", err)
	}
	return nil
}

// RevokeAllRefreshTokens revokes every token belonging to an entity, used
// when a rotated-out token is presented again (reuse implies the token was
// stolen, so the whole family is burned, not just the one jti).
func (s *Store) RevokeAllRefreshTokens(ctx context.Context, entityID uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `UPDATE refresh_tokens SET revoked=TRUE WHERE user_id=$1 AND revoked=FALSE`, entityID)
	if err != nil {
		return apperr.Transient("revoke all refresh tokens failed", err)
	}
	return nil
}

// PruneExpiredRefreshTokens deletes tokens past their expiry; the runtime
// scheduler runs it hourly.
func (s *Store) PruneExpiredRefreshTokens(ctx context.Context) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < now()`)
	if err != nil {
		return 0, apperr.Transient("prune refresh tokens failed", err)
	}
	return tag.RowsAffected(), nil
}
