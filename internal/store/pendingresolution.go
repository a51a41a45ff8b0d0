package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mityayka1/pkgraph/internal/apperr"
)

// PendingEntityResolution is an identifier the resolver has seen but
// could not (yet) tie to an entity with confidence.
type PendingEntityResolution struct {
	ID               uuid.UUID
	IdentifierType   string
	IdentifierValue  string
	DisplayName      string
	Status           string // pending | resolved | merged
	Resolution       string // manual | auto
	ResolvedEntityID *uuid.UUID
	Suggestions      []byte // JSON array of {entityId, score}
	SampleMessageIDs []string
	FirstSeenAt      time.Time
	ResolvedAt       *time.Time
}

const pendingResolutionColumns = `id, identifier_type, identifier_value, display_name, status, resolution,
	resolved_entity_id, suggestions, sample_message_ids, first_seen_at, resolved_at`

func scanPendingResolution(row pgx.Row) (*PendingEntityResolution, error) {
	var p PendingEntityResolution
	if err := row.Scan(&p.ID, &p.IdentifierType, &p.IdentifierValue, &p.DisplayName, &p.Status, &p.Resolution,
		&p.ResolvedEntityID, &p.Suggestions, &p.SampleMessageIDs, &p.FirstSeenAt, &p.ResolvedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertPendingResolution creates or touches the pending row for a
// (identifierType, identifierValue) key, appending sampleMessageID to its
// sample list capped at 10.
func (s *Store) UpsertPendingResolution(ctx context.Context, idType, idValue, displayName, sampleMessageID string) (*PendingEntityResolution, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO pending_entity_resolutions (identifier_type, identifier_value, display_name, sample_message_ids)
		VALUES ($1,$2,$3, CASE WHEN $4 = '' THEN '{}' ELSE ARRAY[$4] END)
		ON CONFLICT (identifier_type, identifier_value) DO UPDATE SET
			display_name = CASE WHEN pending_entity_resolutions.display_name = '' THEN EXCLUDED.display_name ELSE pending_entity_resolutions.display_name END,
			sample_message_ids = CASE
				WHEN $4 = '' OR $4 = ANY(pending_entity_resolutions.sample_message_ids) OR array_length(pending_entity_resolutions.sample_message_ids, 1) >= 10
					THEN pending_entity_resolutions.sample_message_ids
				ELSE array_append(pending_entity_resolutions.sample_message_ids, $4)
			END
		RETURNING `+pendingResolutionColumns, idType, idValue, displayName, sampleMessageID)
	out, err := scanPendingResolution(row)
	if err != nil {
		return nil, apperr.Conflict("upsert pending resolution failed", err)
	}
	return out, nil
}

// GetPendingResolution fetches by (identifierType, identifierValue).
func (s *Store) GetPendingResolution(ctx context.Context, idType, idValue string) (*PendingEntityResolution, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+pendingResolutionColumns+` FROM pending_entity_resolutions WHERE identifier_type=$1 AND identifier_value=$2`, idType, idValue)
	p, err := scanPendingResolution(row)
	if err != nil {
		return nil, apperr.NotFound("pending resolution not found", err)
	}
	return p, nil
}

// AttachResolution marks a pending row resolved to entityID, creating the
// identifier if one doesn't already exist; idempotent.
func (s *Store) AttachResolution(ctx context.Context, id uuid.UUID, entityID uuid.UUID, resolution string) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return apperr.Transient("begin attach resolution transaction failed", err)
	}
	defer tx.Rollback(ctx)

	var idType, idValue string
	if err := tx.QueryRow(ctx, `SELECT identifier_type, identifier_value FROM pending_entity_resolutions WHERE id=$1 AND status='pending'`, id).Scan(&idType, &idValue); err != nil {
		return apperr.Conflict("pending resolution is not pending", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO entity_identifiers (entity_id, identifier_type, identifier_value)
		VALUES ($1,$2,$3)
		ON CONFLICT (identifier_type, identifier_value) DO NOTHING`, entityID, idType, idValue); err != nil {
		return apperr.Transient("create identifier for resolution failed", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE pending_entity_resolutions SET status='resolved', resolution=$2, resolved_entity_id=$3, resolved_at=now() WHERE id=$1`, id, nonEmpty(resolution, "manual"), entityID); err != nil {
		return apperr.Transient("mark resolution resolved failed", err)
	}
	return tx.Commit(ctx)
}

// RejectResolution marks a pending row "merged" with no target; the
// identifier itself stays pending so a future batch can pick it up again
// (the documented reject semantics, not a delete).
func (s *Store) RejectResolution(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE pending_entity_resolutions SET status='merged', resolved_at=now() WHERE id=$1 AND status='pending'`, id)
	if err != nil {
		return apperr.Transient("reject resolution failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("pending resolution already resolved", nil)
	}
	return nil
}

// ListPendingResolutions returns open resolutions for manual review.
func (s *Store) ListPendingResolutions(ctx context.Context, limit int) ([]*PendingEntityResolution, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+pendingResolutionColumns+` FROM pending_entity_resolutions WHERE status='pending' ORDER BY first_seen_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, apperr.Transient("list pending resolutions failed", err)
	}
	defer rows.Close()
	var out []*PendingEntityResolution
	for rows.Next() {
		p, err := scanPendingResolution(rows)
		if err != nil {
			return nil, apperr.Transient("scan pending resolution failed", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
