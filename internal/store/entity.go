package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mityayka1/pkgraph/internal/apperr"
)

// Entity is a person or organization record, the unit of identity in the
// graph.
type Entity struct {
	ID             uuid.UUID
	Type           string // person | organization
	Name           string
	OrganizationID *uuid.UUID
	Notes          string
	IsOwner        bool
	IsBot          bool
	CreationSource string // manual | extracted | imported
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// EntityFilter narrows List queries.
type EntityFilter struct {
	Type         string
	Search       string
	IncludeSoft  bool
	Limit        int
	Offset       int
}

const entityColumns = `id, type, name, organization_id, notes, is_owner, is_bot, creation_source, created_at, updated_at, deleted_at`

func scanEntity(row pgx.Row) (*Entity, error) {
	var e Entity
	if err := row.Scan(&e.ID, &e.Type, &e.Name, &e.OrganizationID, &e.Notes, &e.IsOwner, &e.IsBot, &e.CreationSource, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateEntity inserts a new entity.
func (s *Store) CreateEntity(ctx context.Context, e *Entity) (*Entity, error) {
	if e.Type != "person" && e.Type != "organization" {
		return nil, apperr.Validation("entity type must be person or organization", nil)
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO entities (type, name, organization_id, notes, is_owner, is_bot, creation_source)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING `+entityColumns,
		e.Type, e.Name, e.OrganizationID, e.Notes, e.IsOwner, e.IsBot, nonEmpty(e.CreationSource, "manual"))
	out, err := scanEntity(row)
	if err != nil {
		return nil, apperr.Conflict("create entity failed", err)
	}
	return out, nil
}

// GetEntity fetches a single non-deleted entity by ID.
func (s *Store) GetEntity(ctx context.Context, id uuid.UUID) (*Entity, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = $1 AND deleted_at IS NULL`, id)
	e, err := scanEntity(row)
	if err != nil {
		return nil, apperr.NotFound("entity not found", err)
	}
	return e, nil
}

// ListEntities returns entities matching the filter, most recently updated
// first.
func (s *Store) ListEntities(ctx context.Context, f EntityFilter) ([]*Entity, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + entityColumns + ` FROM entities WHERE ($1 = '' OR type = $1)`
	if !f.IncludeSoft {
		query += ` AND deleted_at IS NULL`
	}
	query += ` AND ($2 = '' OR name ILIKE '%' || $2 || '%') ORDER BY updated_at DESC LIMIT $3 OFFSET $4`
	rows, err := s.Pool.Query(ctx, query, f.Type, f.Search, limit, f.Offset)
	if err != nil {
		return nil, apperr.Transient("list entities failed", err)
	}
	defer rows.Close()
	var out []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, apperr.Transient("scan entity failed", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateEntity applies editable fields (name, notes, organizationId).
func (s *Store) UpdateEntity(ctx context.Context, id uuid.UUID, name, notes string, orgID *uuid.UUID) (*Entity, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE entities SET name = COALESCE(NULLIF($2,''), name), notes = COALESCE(NULLIF($3,''), notes),
			organization_id = $4, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+entityColumns, id, name, notes, orgID)
	e, err := scanEntity(row)
	if err != nil {
		return nil, apperr.NotFound("entity not found", err)
	}
	return e, nil
}

// SoftDeleteEntity marks an entity deleted without removing historical
// references to it.
func (s *Store) SoftDeleteEntity(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE entities SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return apperr.Transient("soft delete entity failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("entity not found", nil)
	}
	return nil
}

func nonEmpty(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
