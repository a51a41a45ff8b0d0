package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mityayka1/pkgraph/internal/apperr"
)

// PendingApproval is a human review gate over a draft item produced by
// extraction before it's promoted to active.
type PendingApproval struct {
	ID                  uuid.UUID
	ItemType            string // fact | project | task | commitment
	TargetID            uuid.UUID
	BatchID             uuid.UUID
	Status              string // pending | approved | rejected
	Confidence          float64
	SourceQuote         string
	SourceInteractionID *uuid.UUID
	SourceEntityID      *uuid.UUID
	Context             map[string]any
	CreatedAt           time.Time
	ReviewedAt          *time.Time
}

const approvalColumns = `id, item_type, target_id, batch_id, status, confidence, source_quote, source_interaction_id,
	source_entity_id, context, created_at, reviewed_at`

func scanApproval(row pgx.Row) (*PendingApproval, error) {
	var a PendingApproval
	if err := row.Scan(&a.ID, &a.ItemType, &a.TargetID, &a.BatchID, &a.Status, &a.Confidence, &a.SourceQuote,
		&a.SourceInteractionID, &a.SourceEntityID, &a.Context, &a.CreatedAt, &a.ReviewedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// itemActiveTable maps an approval's itemType to the table and status
// column value its target gets flipped to on approval, the registry named
// for approval dispatch.
var itemActiveTable = map[string]string{
	"fact":       "entity_facts",
	"commitment": "commitments",
	"project":    "activities",
	"task":       "activities",
}

// CreateApproval opens a pending review gate for a draft item.
func (s *Store) CreateApproval(ctx context.Context, tx pgx.Tx, a *PendingApproval) (*PendingApproval, error) {
	if _, ok := itemActiveTable[a.ItemType]; !ok {
		return nil, apperr.Validation("unknown approval item type: "+a.ItemType, nil)
	}
	if a.Context == nil {
		a.Context = map[string]any{}
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO pending_approvals (item_type, target_id, batch_id, confidence, source_quote, source_interaction_id, source_entity_id, context)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+approvalColumns,
		a.ItemType, a.TargetID, a.BatchID, a.Confidence, a.SourceQuote, a.SourceInteractionID, a.SourceEntityID, a.Context)
	out, err := scanApproval(row)
	if err != nil {
		return nil, apperr.Conflict("create approval failed", err)
	}
	return out, nil
}

// ClaimApproval row-locks a pending approval for review so two reviewers
// acting on the same batch can't both approve the same item (the state
// machine runs under this lock, not an in-memory mutex).
func (s *Store) ClaimApproval(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*PendingApproval, error) {
	row := tx.QueryRow(ctx, `SELECT `+approvalColumns+` FROM pending_approvals WHERE id=$1 AND status='pending' FOR UPDATE`, id)
	a, err := scanApproval(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.Conflict("approval is not pending", err)
		}
		return nil, apperr.Transient("claim approval failed", err)
	}
	return a, nil
}

// ResolveApproval marks the approval's outcome. Callers activate/discard the
// underlying item themselves, inside the same transaction, using ItemType
// to pick the table (the registry above).
func (s *Store) ResolveApproval(ctx context.Context, tx pgx.Tx, id uuid.UUID, approved bool) error {
	status := "rejected"
	if approved {
		status = "approved"
	}
	tag, err := tx.Exec(ctx, `UPDATE pending_approvals SET status=$2, reviewed_at=now() WHERE id=$1 AND status='pending'`, id, status)
	if err != nil {
		return apperr.Transient("resolve approval failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("approval already resolved", nil)
	}
	return nil
}

// PendingInBatch lists every still-open approval in a batch, used both by
// the review UI and the auto-promote sweep.
func (s *Store) PendingInBatch(ctx context.Context, batchID uuid.UUID) ([]*PendingApproval, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+approvalColumns+` FROM pending_approvals WHERE batch_id=$1 AND status='pending' ORDER BY created_at ASC`, batchID)
	if err != nil {
		return nil, apperr.Transient("list pending approvals failed", err)
	}
	defer rows.Close()
	var out []*PendingApproval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, apperr.Transient("scan pending approval failed", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListPendingApprovals returns the oldest-first review queue across every
// batch, the view the review UI opens by default.
func (s *Store) ListPendingApprovals(ctx context.Context, limit int) ([]*PendingApproval, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+approvalColumns+` FROM pending_approvals WHERE status='pending' ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, apperr.Transient("list pending approvals failed", err)
	}
	defer rows.Close()
	var out []*PendingApproval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, apperr.Transient("scan pending approval failed", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// PendingFactApprovalsWithConfirmations returns pending fact approvals
// whose draft has accumulated at least minConfirmations duplicate
// sightings, the input to the auditor's auto-promote pass.
func (s *Store) PendingFactApprovalsWithConfirmations(ctx context.Context, minConfirmations int) ([]*PendingApproval, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+prefixColumns("a.", approvalColumns)+` FROM pending_approvals a
		JOIN entity_facts f ON f.id = a.target_id
		WHERE a.status='pending' AND a.item_type='fact' AND f.confirmation_count >= $1 AND f.deleted_at IS NULL`,
		minConfirmations)
	if err != nil {
		return nil, apperr.Transient("list confirmed draft approvals failed", err)
	}
	defer rows.Close()
	var out []*PendingApproval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, apperr.Transient("scan confirmed draft approval failed", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// BatchStats summarizes one extraction batch's review progress, grouped by
// approval status and item type.
type BatchStats struct {
	BatchID    uuid.UUID      `json:"batchId"`
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"byStatus"`
	ByItemType map[string]int `json:"byItemType"`
}

// ApprovalBatchStats aggregates the review state of one batch.
func (s *Store) ApprovalBatchStats(ctx context.Context, batchID uuid.UUID) (*BatchStats, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT status, item_type, count(*) FROM pending_approvals WHERE batch_id=$1 GROUP BY status, item_type`, batchID)
	if err != nil {
		return nil, apperr.Transient("batch stats query failed", err)
	}
	defer rows.Close()
	stats := &BatchStats{BatchID: batchID, ByStatus: map[string]int{}, ByItemType: map[string]int{}}
	for rows.Next() {
		var status, itemType string
		var n int
		if err := rows.Scan(&status, &itemType, &n); err != nil {
			return nil, apperr.Transient("scan batch stats row failed", err)
		}
		stats.ByStatus[status] += n
		stats.ByItemType[itemType] += n
		stats.Total += n
	}
	return stats, rows.Err()
}

// StaleRejected returns rejected approvals whose reviewedAt is older than
// olderThan, the GC sweep set deleted along with their target rows.
// Pending approvals are never touched here; GC doesn't auto-reject, it
// only cleans up decisions already made.
func (s *Store) StaleRejected(ctx context.Context, olderThan time.Duration) ([]*PendingApproval, error) {
	cutoff := time.Now().Add(-olderThan)
	rows, err := s.Pool.Query(ctx, `SELECT `+approvalColumns+` FROM pending_approvals WHERE status='rejected' AND reviewed_at < $1`, cutoff)
	if err != nil {
		return nil, apperr.Transient("list stale rejected approvals failed", err)
	}
	defer rows.Close()
	var out []*PendingApproval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, apperr.Transient("scan stale rejected approval failed", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// draftTables lists every table GC's orphan sweep checks for draft-status
// rows with no backing approval row.
var draftTables = []string{"entity_facts", "activities", "commitments"}

// DeleteOrphanedDrafts deletes draft-status rows older than olderThan in
// each draft table that have no backing pending_approvals row at all, the
// second half of the nightly GC sweep.
func (s *Store) DeleteOrphanedDrafts(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	total := 0
	for _, table := range draftTables {
		tag, err := s.Pool.Exec(ctx, `
			DELETE FROM `+table+` t
			WHERE t.status='draft' AND t.created_at < $1
			  AND NOT EXISTS (SELECT 1 FROM pending_approvals a WHERE a.target_id = t.id)`, cutoff)
		if err != nil {
			return total, apperr.Transient("delete orphaned drafts failed", err)
		}
		total += int(tag.RowsAffected())
	}
	return total, nil
}

// ActiveTableFor exposes the itemType -> table registry to callers outside
// this package that need to dispatch on it (internal/approval).
func ActiveTableFor(itemType string) (string, bool) {
	t, ok := itemActiveTable[itemType]
	return t, ok
}
