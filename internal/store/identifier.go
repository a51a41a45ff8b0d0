package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mityayka1/pkgraph/internal/apperr"
)

// EntityIdentifier ties an entity to a source-platform identity.
type EntityIdentifier struct {
	ID              uuid.UUID
	EntityID        uuid.UUID
	IdentifierType  string
	IdentifierValue string
	Metadata        map[string]any
	CreatedAt       time.Time
}

func scanIdentifier(row pgx.Row) (*EntityIdentifier, error) {
	var i EntityIdentifier
	if err := row.Scan(&i.ID, &i.EntityID, &i.IdentifierType, &i.IdentifierValue, &i.Metadata, &i.CreatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

const identifierColumns = `id, entity_id, identifier_type, identifier_value, metadata, created_at`

// GetIdentifier looks up an entity by its composite (type, value) key.
func (s *Store) GetIdentifier(ctx context.Context, idType, idValue string) (*EntityIdentifier, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+identifierColumns+` FROM entity_identifiers WHERE identifier_type=$1 AND identifier_value=$2`, idType, idValue)
	out, err := scanIdentifier(row)
	if err != nil {
		return nil, apperr.NotFound("identifier not found", err)
	}
	return out, nil
}

// CreateIdentifier attaches a new (type, value) pair to an entity.
func (s *Store) CreateIdentifier(ctx context.Context, entityID uuid.UUID, idType, idValue string, metadata map[string]any) (*EntityIdentifier, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO entity_identifiers (entity_id, identifier_type, identifier_value, metadata)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (identifier_type, identifier_value) DO UPDATE SET entity_id = entity_identifiers.entity_id
		RETURNING `+identifierColumns,
		entityID, idType, idValue, metadata)
	out, err := scanIdentifier(row)
	if err != nil {
		return nil, apperr.Conflict("create identifier failed", err)
	}
	return out, nil
}

// ListIdentifiersByEntity returns every identifier attached to an entity.
func (s *Store) ListIdentifiersByEntity(ctx context.Context, entityID uuid.UUID) ([]*EntityIdentifier, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+identifierColumns+` FROM entity_identifiers WHERE entity_id=$1`, entityID)
	if err != nil {
		return nil, apperr.Transient("list identifiers failed", err)
	}
	defer rows.Close()
	var out []*EntityIdentifier
	for rows.Next() {
		i, err := scanIdentifier(rows)
		if err != nil {
			return nil, apperr.Transient("scan identifier failed", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// ReassignIdentifiers moves every identifier from source to target inside
// tx, dropping any that would violate the unique (type, value) constraint
// at the target. Used by MergeEntities.
func ReassignIdentifiers(ctx context.Context, tx pgx.Tx, sourceID, targetID uuid.UUID) (moved int, err error) {
	rows, err := tx.Query(ctx, `SELECT id, identifier_type, identifier_value FROM entity_identifiers WHERE entity_id = $1`, sourceID)
	if err != nil {
		return 0, err
	}
	type idRow struct {
		id       uuid.UUID
		idType   string
		idValue  string
	}
	var toMove []idRow
	for rows.Next() {
		var r idRow
		if err := rows.Scan(&r.id, &r.idType, &r.idValue); err != nil {
			rows.Close()
			return 0, err
		}
		toMove = append(toMove, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, r := range toMove {
		var conflictID uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM entity_identifiers WHERE identifier_type=$1 AND identifier_value=$2 AND entity_id=$3`, r.idType, r.idValue, targetID).Scan(&conflictID)
		if err == nil {
			// target already owns this identifier; drop the source's duplicate.
			if _, err := tx.Exec(ctx, `DELETE FROM entity_identifiers WHERE id = $1`, r.id); err != nil {
				return moved, err
			}
			continue
		}
		if _, err := tx.Exec(ctx, `UPDATE entity_identifiers SET entity_id = $1 WHERE id = $2`, targetID, r.id); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}
