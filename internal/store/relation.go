package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mityayka1/pkgraph/internal/apperr"
)

// EntityRelation is a typed, time-bounded edge between two entities
// (reports_to, spouse_of, works_at, ...), separate from facts because a
// relation names a second entity rather than a scalar value.
type EntityRelation struct {
	ID           uuid.UUID
	FromEntityID uuid.UUID
	ToEntityID   uuid.UUID
	RelationType string
	ValidFrom    time.Time
	ValidUntil   *time.Time
	CreatedAt    time.Time
}

const relationColumns = `id, from_entity_id, to_entity_id, relation_type, valid_from, valid_until, created_at`

func scanRelation(row pgx.Row) (*EntityRelation, error) {
	var r EntityRelation
	if err := row.Scan(&r.ID, &r.FromEntityID, &r.ToEntityID, &r.RelationType, &r.ValidFrom, &r.ValidUntil, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRelation opens a new relation edge.
func (s *Store) CreateRelation(ctx context.Context, fromID, toID uuid.UUID, relationType string) (*EntityRelation, error) {
	if fromID == toID {
		return nil, apperr.Validation("an entity cannot relate to itself", nil)
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO entity_relations (from_entity_id, to_entity_id, relation_type)
		VALUES ($1,$2,$3)
		RETURNING `+relationColumns, fromID, toID, relationType)
	out, err := scanRelation(row)
	if err != nil {
		return nil, apperr.Conflict("create relation failed", err)
	}
	return out, nil
}

// CloseRelation ends a relation's validity without deleting the historical
// row.
func (s *Store) CloseRelation(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE entity_relations SET valid_until=now() WHERE id=$1 AND valid_until IS NULL`, id)
	if err != nil {
		return apperr.Transient("close relation failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("open relation not found", nil)
	}
	return nil
}

// RelationsFrom returns the currently-valid outgoing relations of an
// entity, optionally filtered by type.
func (s *Store) RelationsFrom(ctx context.Context, entityID uuid.UUID, relationType string) ([]*EntityRelation, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+relationColumns+` FROM entity_relations
		WHERE from_entity_id=$1 AND valid_until IS NULL AND ($2 = '' OR relation_type = $2)`, entityID, relationType)
	if err != nil {
		return nil, apperr.Transient("list relations failed", err)
	}
	defer rows.Close()
	var out []*EntityRelation
	for rows.Next() {
		r, err := scanRelation(rows)
		if err != nil {
			return nil, apperr.Transient("scan relation failed", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
