// Package approval runs the human review gate a draft item passes through
// before it is promoted to active. The state machine is row-locked in the
// database rather than held in process memory, since drafts are reviewed
// asynchronously by whoever opens the review queue next and decisions must
// survive restarts.
package approval

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mityayka1/pkgraph/internal/apperr"
	"github.com/mityayka1/pkgraph/internal/commitment"
	"github.com/mityayka1/pkgraph/internal/store"
)

// DefaultRetentionDays is used when a caller does not specify one; GC
// leaves rejected approvals and orphaned drafts around for this long
// before a sweep deletes them.
const DefaultRetentionDays = 30

// Outcome reports the per-item result of a batch resolve, so one bad item
// doesn't fail the whole batch.
type Outcome struct {
	ApprovalID uuid.UUID
	Err        error
}

// Service dispatches approval decisions against the target table named by
// the item's type.
type Service struct {
	Store      *store.Store
	Commitment *commitment.Service
}

// New builds an approval Service. Commitment may be nil in contexts that
// never approve commitment drafts (e.g. tests exercising only facts).
func New(s *store.Store, c *commitment.Service) *Service {
	return &Service{Store: s, Commitment: c}
}

// Create opens a pending review gate for a freshly-created draft item,
// sharing batchID with the rest of that extraction pass.
func (svc *Service) Create(ctx context.Context, tx pgx.Tx, a *store.PendingApproval) (*store.PendingApproval, error) {
	return svc.Store.CreateApproval(ctx, tx, a)
}

// Approve claims the approval row, activates its target via the item-type
// registry, and marks the approval resolved, all under the row lock so two
// reviewers can't double-activate the same draft.
func (svc *Service) Approve(ctx context.Context, id uuid.UUID) error {
	tx, err := svc.Store.Pool.Begin(ctx)
	if err != nil {
		return apperr.Transient("begin approve transaction failed", err)
	}
	defer tx.Rollback(ctx)

	a, err := svc.Store.ClaimApproval(ctx, tx, id)
	if err != nil {
		return err
	}
	activatedCommitment, err := svc.activate(ctx, tx, a)
	if err != nil {
		return err
	}
	if err := svc.Store.ResolveApproval(ctx, tx, id, true); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Transient("commit approve failed", err)
	}
	if activatedCommitment != nil && svc.Commitment != nil && activatedCommitment.DueDate != nil {
		if err := svc.Commitment.ScheduleFirstReminder(ctx, activatedCommitment, time.Now()); err != nil {
			return err
		}
	}
	return nil
}

// activate flips a's target to active inside tx, returning the activated
// commitment row (so Approve can schedule its first reminder) when the
// item was a commitment.
func (svc *Service) activate(ctx context.Context, tx pgx.Tx, a *store.PendingApproval) (*store.Commitment, error) {
	table, ok := store.ActiveTableFor(a.ItemType)
	if !ok {
		return nil, apperr.Validation("unknown approval item type: "+a.ItemType, nil)
	}
	switch table {
	case "entity_facts":
		return nil, svc.Store.ActivateFact(ctx, tx, a.TargetID)
	case "commitments":
		row := tx.QueryRow(ctx, `UPDATE commitments SET status='pending', updated_at=now() WHERE id=$1 RETURNING `+store.CommitmentColumns, a.TargetID)
		c, err := store.ScanCommitment(row)
		if err != nil {
			return nil, apperr.Transient("activate commitment failed", err)
		}
		return c, nil
	case "activities":
		_, err := tx.Exec(ctx, `UPDATE activities SET status='active', updated_at=now() WHERE id=$1`, a.TargetID)
		if err != nil {
			return nil, apperr.Transient("activate activity failed", err)
		}
		return nil, nil
	default:
		return nil, apperr.Validation("no activation rule for table "+table, nil)
	}
}

// Reject marks the approval rejected and either hard-deletes the draft
// target (if retentionDays is 0) or soft-deletes it,.
func (svc *Service) Reject(ctx context.Context, id uuid.UUID, retentionDays int) error {
	tx, err := svc.Store.Pool.Begin(ctx)
	if err != nil {
		return apperr.Transient("begin reject transaction failed", err)
	}
	defer tx.Rollback(ctx)

	a, err := svc.Store.ClaimApproval(ctx, tx, id)
	if err != nil {
		return err
	}
	table, ok := store.ActiveTableFor(a.ItemType)
	if !ok {
		return apperr.Validation("unknown approval item type: "+a.ItemType, nil)
	}
	if retentionDays == 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE id=$1`, a.TargetID); err != nil {
			return apperr.Transient("hard delete rejected draft failed", err)
		}
	} else {
		if _, err := tx.Exec(ctx, `UPDATE `+table+` SET deleted_at=now() WHERE id=$1`, a.TargetID); err != nil {
			return apperr.Transient("soft delete rejected draft failed", err)
		}
	}
	if err := svc.Store.ResolveApproval(ctx, tx, id, false); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Transient("commit reject failed", err)
	}
	return nil
}

// ApproveBatch resolves every id, isolating per-item failures rather
// than aborting the whole batch on the first error.
func (svc *Service) ApproveBatch(ctx context.Context, ids []uuid.UUID) []Outcome {
	out := make([]Outcome, len(ids))
	for i, id := range ids {
		out[i] = Outcome{ApprovalID: id, Err: svc.Approve(ctx, id)}
	}
	return out
}

// RejectBatch is ApproveBatch's reject counterpart.
func (svc *Service) RejectBatch(ctx context.Context, ids []uuid.UUID, retentionDays int) []Outcome {
	out := make([]Outcome, len(ids))
	for i, id := range ids {
		out[i] = Outcome{ApprovalID: id, Err: svc.Reject(ctx, id, retentionDays)}
	}
	return out
}

// BatchResult aggregates per-item outcomes for a whole-batch decision.
type BatchResult struct {
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

func summarize(outcomes []Outcome) *BatchResult {
	r := &BatchResult{}
	for _, o := range outcomes {
		if o.Err != nil {
			r.Failed++
			r.Errors = append(r.Errors, o.ApprovalID.String()+": "+o.Err.Error())
			continue
		}
		r.Processed++
	}
	return r
}

// ApproveBatchID approves every still-pending approval sharing batchID.
func (svc *Service) ApproveBatchID(ctx context.Context, batchID uuid.UUID) (*BatchResult, error) {
	pending, err := svc.Store.PendingInBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(pending))
	for i, a := range pending {
		ids[i] = a.ID
	}
	return summarize(svc.ApproveBatch(ctx, ids)), nil
}

// RejectBatchID rejects every still-pending approval sharing batchID.
func (svc *Service) RejectBatchID(ctx context.Context, batchID uuid.UUID, retentionDays int) (*BatchResult, error) {
	pending, err := svc.Store.PendingInBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(pending))
	for i, a := range pending {
		ids[i] = a.ID
	}
	return summarize(svc.RejectBatch(ctx, ids, retentionDays)), nil
}

// TargetEdit names the draft fields an operator may adjust before
// deciding. An activity's parentId is deliberately absent: reparenting
// requires closure-table maintenance and must go through the activity
// service after approval.
type TargetEdit struct {
	Name     *string    `json:"name,omitempty"`
	Value    *string    `json:"value,omitempty"`
	Priority *string    `json:"priority,omitempty"`
	Context  *string    `json:"context,omitempty"`
	DueDate  *time.Time `json:"dueDate,omitempty"`
}

// UpdateTarget edits a pending draft's editable fields under the same row
// lock approve/reject take, so an edit can't race a concurrent decision.
func (svc *Service) UpdateTarget(ctx context.Context, id uuid.UUID, edit TargetEdit) error {
	tx, err := svc.Store.Pool.Begin(ctx)
	if err != nil {
		return apperr.Transient("begin target edit transaction failed", err)
	}
	defer tx.Rollback(ctx)

	a, err := svc.Store.ClaimApproval(ctx, tx, id)
	if err != nil {
		return err
	}
	table, ok := store.ActiveTableFor(a.ItemType)
	if !ok {
		return apperr.Validation("unknown approval item type: "+a.ItemType, nil)
	}

	type fieldEdit struct {
		column string
		value  any
		set    bool
	}
	var edits []fieldEdit
	switch table {
	case "entity_facts":
		edits = []fieldEdit{
			{"value", edit.Value, edit.Value != nil},
			{"valid_until", edit.DueDate, edit.DueDate != nil},
		}
	case "activities":
		edits = []fieldEdit{
			{"name", edit.Name, edit.Name != nil},
			{"priority", edit.Priority, edit.Priority != nil},
			{"context", edit.Context, edit.Context != nil},
			{"due_at", edit.DueDate, edit.DueDate != nil},
		}
	case "commitments":
		edits = []fieldEdit{
			{"title", edit.Name, edit.Name != nil},
			{"due_date", edit.DueDate, edit.DueDate != nil},
		}
	}

	touched := false
	for _, fe := range edits {
		if !fe.set {
			continue
		}
		if _, err := tx.Exec(ctx, `UPDATE `+table+` SET `+fe.column+`=$2, updated_at=now() WHERE id=$1`, a.TargetID, fe.value); err != nil {
			return apperr.Transient("edit draft field "+fe.column+" failed", err)
		}
		touched = true
	}
	if !touched {
		return apperr.Validation("no editable fields provided", nil)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Transient("commit target edit failed", err)
	}
	return nil
}

// GC deletes rejected approvals (and their target rows) whose reviewedAt
// is older than retentionDays, then deletes draft-status targets with no
// backing approval row at all, also past retentionDays. It never touches
// still-pending approvals; GC cleans up decisions already made, it
// doesn't make them. Intended to run once daily at 03:00.
func (svc *Service) GC(ctx context.Context, retentionDays int) (int, error) {
	retention := time.Duration(retentionDays) * 24 * time.Hour

	stale, err := svc.Store.StaleRejected(ctx, retention)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range stale {
		if err := svc.deleteRejected(ctx, a); err != nil {
			continue
		}
		n++
	}

	orphaned, err := svc.Store.DeleteOrphanedDrafts(ctx, retention)
	if err != nil {
		return n, err
	}
	return n + orphaned, nil
}

// deleteRejected hard-deletes a rejected approval's target row (soft
// deletion already happened in Reject) and the approval row itself.
func (svc *Service) deleteRejected(ctx context.Context, a *store.PendingApproval) error {
	table, ok := store.ActiveTableFor(a.ItemType)
	if !ok {
		return apperr.Validation("unknown approval item type: "+a.ItemType, nil)
	}
	tx, err := svc.Store.Pool.Begin(ctx)
	if err != nil {
		return apperr.Transient("begin gc transaction failed", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE id=$1`, a.TargetID); err != nil {
		return apperr.Transient("gc delete target failed", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM pending_approvals WHERE id=$1`, a.ID); err != nil {
		return apperr.Transient("gc delete approval failed", err)
	}
	return tx.Commit(ctx)
}
