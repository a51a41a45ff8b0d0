package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/mityayka1/pkgraph/internal/apperr"
)

// Activity is one node in the area/project/task tree. The tree keeps
// parentId, depth, a materialized path, and a closure table in sync.
type Activity struct {
	ID                uuid.UUID
	Name              string
	ActivityType      string
	Status            string
	Priority          int
	Context           string
	ParentID          *uuid.UUID
	Depth             int
	MaterializedPath  string
	OwnerEntityID     *uuid.UUID
	OwnerDisplayName  string // free-text owner mention the resolver couldn't place
	ClientEntityID    *uuid.UUID
	ClientDisplayName string
	StartedAt         *time.Time
	DueAt             *time.Time
	CompletedAt       *time.Time
	Tags              []string
	Embedding         []float32
	ConfirmationCount int
	DeletedAt         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const activityColumns = `id, name, activity_type, status, priority, context, parent_id, depth, materialized_path,
	owner_entity_id, owner_display_name, client_entity_id, client_display_name, started_at, due_at, completed_at, tags,
	embedding, confirmation_count, deleted_at, created_at, updated_at`

func scanActivity(row pgx.Row) (*Activity, error) {
	var a Activity
	var vec *pgvector.Vector
	if err := row.Scan(&a.ID, &a.Name, &a.ActivityType, &a.Status, &a.Priority, &a.Context, &a.ParentID, &a.Depth,
		&a.MaterializedPath, &a.OwnerEntityID, &a.OwnerDisplayName, &a.ClientEntityID, &a.ClientDisplayName,
		&a.StartedAt, &a.DueAt, &a.CompletedAt, &a.Tags, &vec, &a.ConfirmationCount,
		&a.DeletedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if vec != nil {
		a.Embedding = vec.Slice()
	}
	return &a, nil
}

// CreateActivity inserts a node and maintains its materialized path, depth,
// and closure-table rows in the same transaction.
func (s *Store) CreateActivity(ctx context.Context, a *Activity) (*Activity, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Transient("begin create activity transaction failed", err)
	}
	defer tx.Rollback(ctx)

	depth := 0
	path := ""
	if a.ParentID != nil {
		var parentDepth int
		var parentPath string
		if err := tx.QueryRow(ctx, `SELECT depth, materialized_path FROM activities WHERE id=$1 AND deleted_at IS NULL`, *a.ParentID).Scan(&parentDepth, &parentPath); err != nil {
			return nil, apperr.NotFound("parent activity not found", err)
		}
		depth = parentDepth + 1
		path = parentPath
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO activities (name, activity_type, status, priority, context, parent_id, depth, materialized_path,
			owner_entity_id, owner_display_name, client_entity_id, client_display_name, started_at, due_at, tags)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'',$8,$9,$10,$11,$12,$13,$14)
		RETURNING `+activityColumns,
		a.Name, a.ActivityType, nonEmpty(a.Status, "draft"), a.Priority, a.Context, a.ParentID, depth,
		a.OwnerEntityID, a.OwnerDisplayName, a.ClientEntityID, a.ClientDisplayName, a.StartedAt, a.DueAt, a.Tags)
	out, err := scanActivity(row)
	if err != nil {
		return nil, apperr.Conflict("create activity failed", err)
	}

	fullPath := out.ID.String()
	if path != "" {
		fullPath = path + "/" + out.ID.String()
	}
	if _, err := tx.Exec(ctx, `UPDATE activities SET materialized_path=$2 WHERE id=$1`, out.ID, fullPath); err != nil {
		return nil, apperr.Transient("set materialized path failed", err)
	}
	out.MaterializedPath = fullPath

	if _, err := tx.Exec(ctx, `INSERT INTO activity_closure (ancestor_id, descendant_id, depth) VALUES ($1,$1,0)`, out.ID); err != nil {
		return nil, apperr.Transient("seed closure self row failed", err)
	}
	if a.ParentID != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO activity_closure (ancestor_id, descendant_id, depth)
			SELECT ancestor_id, $2, depth + 1 FROM activity_closure WHERE descendant_id = $1`, *a.ParentID, out.ID); err != nil {
			return nil, apperr.Transient("extend closure table failed", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Transient("commit create activity failed", err)
	}
	return out, nil
}

// Reparent moves a node (and its whole subtree) under a new parent,
// rewriting materialized_path/depth for every descendant and rebuilding the
// closure table rows that cross the moved boundary. All of it happens in
// one transaction; a reparent is atomic or it didn't happen.
func (s *Store) Reparent(ctx context.Context, id uuid.UUID, newParentID *uuid.UUID) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return apperr.Transient("begin reparent transaction failed", err)
	}
	defer tx.Rollback(ctx)

	var oldDepth int
	var oldPath string
	if err := tx.QueryRow(ctx, `SELECT depth, materialized_path FROM activities WHERE id=$1 AND deleted_at IS NULL`, id).Scan(&oldDepth, &oldPath); err != nil {
		return apperr.NotFound("activity not found", err)
	}

	newDepth := 0
	newParentPath := ""
	if newParentID != nil {
		if *newParentID == id {
			return apperr.Validation("activity cannot be its own parent", nil)
		}
		var parentPath string
		if err := tx.QueryRow(ctx, `SELECT materialized_path FROM activities WHERE id=$1 AND deleted_at IS NULL`, *newParentID).Scan(&parentPath); err != nil {
			return apperr.NotFound("new parent not found", err)
		}
		if parentPath == oldPath || strings.HasPrefix(parentPath, oldPath+"/") {
			return apperr.Validation("cannot move an activity under its own descendant", nil)
		}
		newDepth = strings.Count(parentPath, "/") + 1
		newParentPath = parentPath
	}
	depthDelta := newDepth - oldDepth

	// Remove closure rows that cross into the subtree from outside.
	if _, err := tx.Exec(ctx, `
		DELETE FROM activity_closure
		WHERE descendant_id IN (SELECT descendant_id FROM activity_closure WHERE ancestor_id = $1)
		  AND ancestor_id IN (SELECT ancestor_id FROM activity_closure WHERE descendant_id = $1 AND ancestor_id <> descendant_id)`, id); err != nil {
		return apperr.Transient("detach closure rows failed", err)
	}

	if newParentID != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO activity_closure (ancestor_id, descendant_id, depth)
			SELECT p.ancestor_id, c.descendant_id, p.depth + c.depth + 1
			FROM activity_closure p, activity_closure c
			WHERE p.descendant_id = $1 AND c.ancestor_id = $2`, *newParentID, id); err != nil {
			return apperr.Transient("reattach closure rows failed", err)
		}
	}

	rows, err := tx.Query(ctx, `SELECT descendant_id, materialized_path, depth FROM activities a
		JOIN activity_closure c ON c.descendant_id = a.id WHERE c.ancestor_id = $1`, id)
	if err != nil {
		return apperr.Transient("scan subtree failed", err)
	}
	type node struct {
		id   uuid.UUID
		path string
	}
	var subtree []node
	for rows.Next() {
		var n node
		var depth int
		if err := rows.Scan(&n.id, &n.path, &depth); err != nil {
			rows.Close()
			return apperr.Transient("scan subtree row failed", err)
		}
		subtree = append(subtree, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return apperr.Transient("iterate subtree failed", err)
	}

	for _, n := range subtree {
		// n.path is oldPath + suffix, where suffix is "" for id itself or
		// "/childId[/grandchildId...]" below it; oldPath's own last segment
		// is id.String(), so id.String()+suffix is the part of the path
		// that travels with the moved subtree regardless of new parent.
		subtreePath := id.String() + strings.TrimPrefix(n.path, oldPath)
		newPath := subtreePath
		if newParentPath != "" {
			newPath = newParentPath + "/" + subtreePath
		}
		if _, err := tx.Exec(ctx, `UPDATE activities SET materialized_path=$2, depth = depth + $3, parent_id = CASE WHEN id=$1 THEN $4 ELSE parent_id END, updated_at=now() WHERE id=$1`,
			n.id, newPath, depthDelta, newParentID); err != nil {
			return apperr.Transient("rewrite subtree path failed", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Transient("commit reparent failed", err)
	}
	return nil
}

// GetActivity fetches a single node.
func (s *Store) GetActivity(ctx context.Context, id uuid.UUID) (*Activity, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE id=$1 AND deleted_at IS NULL`, id)
	a, err := scanActivity(row)
	if err != nil {
		return nil, apperr.NotFound("activity not found", err)
	}
	return a, nil
}

// Descendants returns every node under id, including id itself, ordered by
// depth (closure-table read, 9).
func (s *Store) Descendants(ctx context.Context, id uuid.UUID) ([]*Activity, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+prefixColumns("a.", activityColumns)+` FROM activities a
		JOIN activity_closure c ON c.descendant_id = a.id
		WHERE c.ancestor_id = $1 AND a.deleted_at IS NULL
		ORDER BY c.depth ASC`, id)
	if err != nil {
		return nil, apperr.Transient("list descendants failed", err)
	}
	defer rows.Close()
	var out []*Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, apperr.Transient("scan descendant failed", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Ancestors returns every node above id, root first.
func (s *Store) Ancestors(ctx context.Context, id uuid.UUID) ([]*Activity, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+prefixColumns("a.", activityColumns)+` FROM activities a
		JOIN activity_closure c ON c.ancestor_id = a.id
		WHERE c.descendant_id = $1 AND c.ancestor_id <> c.descendant_id AND a.deleted_at IS NULL
		ORDER BY c.depth DESC`, id)
	if err != nil {
		return nil, apperr.Transient("list ancestors failed", err)
	}
	defer rows.Close()
	var out []*Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, apperr.Transient("scan ancestor failed", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetActivityStatus transitions an activity's status, stamping completedAt when it
// lands on "completed".
func (s *Store) SetActivityStatus(ctx context.Context, id uuid.UUID, status string) error {
	var completedAt *time.Time
	if status == "completed" {
		now := time.Now()
		completedAt = &now
	}
	tag, err := s.Pool.Exec(ctx, `UPDATE activities SET status=$2, completed_at=$3, updated_at=now() WHERE id=$1 AND deleted_at IS NULL`, id, status, completedAt)
	if err != nil {
		return apperr.Transient("set activity status failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("activity not found", nil)
	}
	return nil
}

// SetActivityEmbedding overwrites the embedding column; idempotent on retry.
func (s *Store) SetActivityEmbedding(ctx context.Context, id uuid.UUID, vec []float32) error {
	_, err := s.Pool.Exec(ctx, `UPDATE activities SET embedding=$2 WHERE id=$1`, id, pgvector.NewVector(vec))
	if err != nil {
		return apperr.Transient("set activity embedding failed", err)
	}
	return nil
}

// SearchActivitiesByEmbedding returns the top-k nearest activities of
// activityType owned by ownerID by cosine distance, the "same kind+owner"
// scope the semantic deduper checks before creating a new draft.
func (s *Store) SearchActivitiesByEmbedding(ctx context.Context, ownerID uuid.UUID, activityType string, vec []float32, k int) ([]*Activity, []float64, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+activityColumns+`, 1 - (embedding <=> $3) AS similarity
		FROM activities
		WHERE owner_entity_id=$1 AND activity_type=$2 AND deleted_at IS NULL AND embedding IS NOT NULL
		ORDER BY embedding <=> $3
		LIMIT $4`, ownerID, activityType, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, nil, apperr.Transient("search activities failed", err)
	}
	defer rows.Close()
	var acts []*Activity
	var sims []float64
	for rows.Next() {
		var a Activity
		var avec *pgvector.Vector
		var sim float64
		if err := rows.Scan(&a.ID, &a.Name, &a.ActivityType, &a.Status, &a.Priority, &a.Context, &a.ParentID, &a.Depth,
			&a.MaterializedPath, &a.OwnerEntityID, &a.OwnerDisplayName, &a.ClientEntityID, &a.ClientDisplayName,
			&a.StartedAt, &a.DueAt, &a.CompletedAt, &a.Tags, &avec, &a.ConfirmationCount,
			&a.DeletedAt, &a.CreatedAt, &a.UpdatedAt, &sim); err != nil {
			return nil, nil, apperr.Transient("scan activity similarity failed", err)
		}
		if avec != nil {
			a.Embedding = avec.Slice()
		}
		acts = append(acts, &a)
		sims = append(sims, sim)
	}
	return acts, sims, rows.Err()
}

// BumpActivityConfirmation increments confirmationCount, used when the
// deduper decides an extracted activity candidate matches an
// existing one.
func (s *Store) BumpActivityConfirmation(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := s.Pool.QueryRow(ctx, `UPDATE activities SET confirmation_count = confirmation_count + 1, updated_at = now() WHERE id=$1 RETURNING confirmation_count`, id).Scan(&count)
	if err != nil {
		return 0, apperr.NotFound("activity not found", err)
	}
	return count, nil
}

// LinkSegmentActivity records that a topical segment's extraction pass
// created or confirmed an activity, the join the cross-chat linker checks
// for an "activity link matches" signal.
func (s *Store) LinkSegmentActivity(ctx context.Context, segmentID, activityID uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `INSERT INTO segment_activities (segment_id, activity_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`, segmentID, activityID)
	if err != nil {
		return apperr.Transient("link segment activity failed", err)
	}
	return nil
}

// SegmentsShareActivity reports whether two segments both touched the
// same activity, the third OR'd condition in the cross-chat linker.
func (s *Store) SegmentsShareActivity(ctx context.Context, segA, segB uuid.UUID) (bool, error) {
	var shared bool
	err := s.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM segment_activities a
			JOIN segment_activities b ON a.activity_id = b.activity_id
			WHERE a.segment_id = $1 AND b.segment_id = $2
		)`, segA, segB).Scan(&shared)
	if err != nil {
		return false, apperr.Transient("check shared activity link failed", err)
	}
	return shared, nil
}

func prefixColumns(prefix, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
