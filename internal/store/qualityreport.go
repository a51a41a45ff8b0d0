package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mityayka1/pkgraph/internal/apperr"
)

// DataQualityReport is one run of the auditor: the metrics it
// computed, the issues it found, and the remediations it applied.
type DataQualityReport struct {
	ID          uuid.UUID
	Metrics     map[string]any
	Issues      []map[string]any
	Resolutions []map[string]any
	CreatedAt   time.Time
}

// CreateQualityReport persists one auditor run.
func (s *Store) CreateQualityReport(ctx context.Context, r *DataQualityReport) (*DataQualityReport, error) {
	if r.Metrics == nil {
		r.Metrics = map[string]any{}
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO data_quality_reports (metrics, issues, resolutions)
		VALUES ($1,$2,$3)
		RETURNING id, metrics, issues, resolutions, created_at`,
		r.Metrics, r.Issues, r.Resolutions)
	var out DataQualityReport
	if err := row.Scan(&out.ID, &out.Metrics, &out.Issues, &out.Resolutions, &out.CreatedAt); err != nil {
		return nil, apperr.Conflict("create quality report failed", err)
	}
	return &out, nil
}

// LatestQualityReports returns the most recent n auditor runs.
func (s *Store) LatestQualityReports(ctx context.Context, n int) ([]*DataQualityReport, error) {
	if n <= 0 || n > 100 {
		n = 10
	}
	rows, err := s.Pool.Query(ctx, `SELECT id, metrics, issues, resolutions, created_at FROM data_quality_reports ORDER BY created_at DESC LIMIT $1`, n)
	if err != nil {
		return nil, apperr.Transient("list quality reports failed", err)
	}
	defer rows.Close()
	var out []*DataQualityReport
	for rows.Next() {
		var r DataQualityReport
		if err := rows.Scan(&r.ID, &r.Metrics, &r.Issues, &r.Resolutions, &r.CreatedAt); err != nil {
			return nil, apperr.Transient("scan quality report failed", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// DuplicateNameGroup is one normalized-name collision within an entity
// type (the duplicate detector).
type DuplicateNameGroup struct {
	NormalizedName string
	EntityIDs      []uuid.UUID
}

// DuplicateEntityGroups finds entities of the same type whose names
// collapse to the same normalized form. Normalization happens in Go
// (internal/dedupe.NormalizeName) rather than SQL, so this just returns
// candidate rows grouped by type for the caller to normalize and bucket.
func (s *Store) DuplicateEntityGroups(ctx context.Context, entityType string) ([]*Entity, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+entityColumns+` FROM entities WHERE type=$1 AND deleted_at IS NULL ORDER BY created_at ASC`, entityType)
	if err != nil {
		return nil, apperr.Transient("list entities for dup scan failed", err)
	}
	defer rows.Close()
	var out []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, apperr.Transient("scan entity for dup scan failed", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// OrphanedTasks returns activities of type "task" with no parent.
func (s *Store) OrphanedTasks(ctx context.Context) ([]*Activity, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+activityColumns+` FROM activities WHERE activity_type='task' AND parent_id IS NULL AND deleted_at IS NULL`)
	if err != nil {
		return nil, apperr.Transient("list orphaned tasks failed", err)
	}
	defer rows.Close()
	var out []*Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, apperr.Transient("scan orphaned task failed", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ProjectsMissingClient returns activities of type "project" with no
// clientEntityId.
func (s *Store) ProjectsMissingClient(ctx context.Context) ([]*Activity, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+activityColumns+` FROM activities WHERE activity_type='project' AND client_entity_id IS NULL AND deleted_at IS NULL`)
	if err != nil {
		return nil, apperr.Transient("list projects missing client failed", err)
	}
	defer rows.Close()
	var out []*Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, apperr.Transient("scan project missing client failed", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FieldFillRate reports, for a table.column, the fraction of non-deleted
// rows where that column is non-null (the "field-fill rate" metric).
// column must be a known-safe identifier; callers never pass user input.
func (s *Store) FieldFillRate(ctx context.Context, table, column string) (float64, error) {
	var total, filled int
	err := s.Pool.QueryRow(ctx, `SELECT count(*), count(`+column+`) FROM `+table+` WHERE deleted_at IS NULL`).Scan(&total, &filled)
	if err != nil {
		return 0, apperr.Transient("field fill rate query failed", err)
	}
	if total == 0 {
		return 1, nil
	}
	return float64(filled) / float64(total), nil
}

// SingleActiveProjectForOwner returns the owner's sole active project, or
// nil if there isn't exactly one, the orphan-resolution fallback.
func (s *Store) SingleActiveProjectForOwner(ctx context.Context, ownerEntityID uuid.UUID) (*Activity, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+activityColumns+` FROM activities WHERE activity_type='project' AND owner_entity_id=$1 AND status='active' AND deleted_at IS NULL LIMIT 2`, ownerEntityID)
	if err != nil {
		return nil, apperr.Transient("list owner active projects failed", err)
	}
	defer rows.Close()
	var out []*Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, apperr.Transient("scan owner active project failed", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, nil
	}
	return out[0], nil
}

// BatchSiblingProject finds another item from the same extraction batch as
// taskID (via pending_approvals.batch_id) that resolved to an activity with
// activity_type='project', the "same draftBatchId" leg of the orphan
// resolution.
func (s *Store) BatchSiblingProject(ctx context.Context, taskID uuid.UUID) (*Activity, error) {
	var batchID uuid.UUID
	err := s.Pool.QueryRow(ctx, `SELECT batch_id FROM pending_approvals WHERE target_id=$1 AND item_type='task'`, taskID).Scan(&batchID)
	if err != nil {
		return nil, nil
	}
	row := s.Pool.QueryRow(ctx, `
		SELECT `+activityColumns+` FROM activities a
		JOIN pending_approvals p ON p.target_id = a.id
		WHERE p.batch_id = $1 AND a.activity_type = 'project' AND a.deleted_at IS NULL
		LIMIT 1`, batchID)
	out, err := scanActivity(row)
	if err != nil {
		return nil, nil
	}
	return out, nil
}

// ActivityByNameContains finds an active project/area whose name contains
// or is contained by needle, case-insensitively, the "name-containment"
// leg of the orphan resolution.
func (s *Store) ActivityByNameContains(ctx context.Context, needle string) (*Activity, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT `+activityColumns+` FROM activities
		WHERE deleted_at IS NULL AND status='active' AND activity_type IN ('project','area')
		  AND (name ILIKE '%'||$1||'%' OR $1 ILIKE '%'||name||'%')
		ORDER BY length(name) DESC LIMIT 1`, needle)
	out, err := scanActivity(row)
	if err != nil {
		return nil, nil
	}
	return out, nil
}

// FindOrCreateUnsortedTasks returns the owner's "Unsorted Tasks" project,
// creating it if it doesn't exist yet, the last-resort leg of orphan
// resolution.
func (s *Store) FindOrCreateUnsortedTasks(ctx context.Context, ownerEntityID uuid.UUID) (*Activity, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT `+activityColumns+` FROM activities
		WHERE owner_entity_id=$1 AND activity_type='project' AND name='Unsorted Tasks' AND deleted_at IS NULL`, ownerEntityID)
	if out, err := scanActivity(row); err == nil {
		return out, nil
	}
	return s.CreateActivity(ctx, &Activity{
		Name:          "Unsorted Tasks",
		ActivityType:  "project",
		Status:        "active",
		OwnerEntityID: &ownerEntityID,
	})
}
