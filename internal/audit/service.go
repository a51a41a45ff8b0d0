package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mityayka1/pkgraph/internal/approval"
	"github.com/mityayka1/pkgraph/internal/store"
)

// Report is what one auditor pass produces: raw metrics, the issues it
// found, and the remediations it applied, persisted as a
// store.DataQualityReport.
type Report struct {
	Metrics     map[string]any
	Issues      []map[string]any
	Resolutions []map[string]any
}

// Service runs the auditor's detection and remediation phases against the
// store. Approval and AutoPromoteCount are optional; when Approval is set,
// the auto-fix pass also approves draft facts whose confirmation count
// crossed the threshold.
type Service struct {
	Store            *store.Store
	Approval         *approval.Service
	AutoPromoteCount int
}

// New builds an audit Service.
func New(s *store.Store) *Service {
	return &Service{Store: s}
}

// DefaultAutoPromoteCount applies when AutoPromoteCount is unset.
const DefaultAutoPromoteCount = 3

// Run executes one full auto-fix pass: detect, then auto-remediate what it
// can, then persist a report. Each phase is best-effort and isolated; one
// failing phase never aborts the others.
func (svc *Service) Run(ctx context.Context) (*Report, error) {
	r := &Report{Metrics: map[string]any{}}

	svc.detectDuplicates(ctx, r)
	svc.detectOrphanedTasks(ctx, r)
	svc.detectMissingClients(ctx, r)
	svc.computeFillRates(ctx, r)

	svc.remediateDuplicates(ctx, r)
	svc.remediateOrphans(ctx, r)
	svc.remediateMissingClients(ctx, r)
	svc.remediateAutoPromote(ctx, r)

	return svc.persist(ctx, r)
}

// remediateAutoPromote approves pending draft facts the deduper has since
// seen confirmed enough times: repeated independent sightings are treated
// as the reviewer's yes.
func (svc *Service) remediateAutoPromote(ctx context.Context, r *Report) {
	if svc.Approval == nil {
		return
	}
	min := svc.AutoPromoteCount
	if min <= 0 {
		min = DefaultAutoPromoteCount
	}
	approvals, err := svc.Store.PendingFactApprovalsWithConfirmations(ctx, min)
	if err != nil {
		slog.Error("audit: confirmed-draft scan failed", "error", err)
		return
	}
	for _, a := range approvals {
		if err := svc.Approval.Approve(ctx, a.ID); err != nil {
			slog.Error("audit: auto-promote failed", "approval_id", a.ID, "error", err)
			continue
		}
		r.Resolutions = append(r.Resolutions, map[string]any{
			"type": "auto_promoted", "approvalId": a.ID, "targetId": a.TargetID,
		})
	}
}

// Detect runs the detection phases only, persisting a report without
// changing any data.
func (svc *Service) Detect(ctx context.Context) (*Report, error) {
	r := &Report{Metrics: map[string]any{}}
	svc.detectDuplicates(ctx, r)
	svc.detectOrphanedTasks(ctx, r)
	svc.detectMissingClients(ctx, r)
	svc.computeFillRates(ctx, r)
	return svc.persist(ctx, r)
}

// AutoMergeDuplicates runs duplicate detection plus the merge remediation
// alone.
func (svc *Service) AutoMergeDuplicates(ctx context.Context) (*Report, error) {
	r := &Report{Metrics: map[string]any{}}
	svc.detectDuplicates(ctx, r)
	svc.remediateDuplicates(ctx, r)
	return svc.persist(ctx, r)
}

// AutoAssignOrphans runs orphaned-task detection plus the reparenting
// remediation alone.
func (svc *Service) AutoAssignOrphans(ctx context.Context) (*Report, error) {
	r := &Report{Metrics: map[string]any{}}
	svc.detectOrphanedTasks(ctx, r)
	svc.remediateOrphans(ctx, r)
	return svc.persist(ctx, r)
}

// AutoResolveClients runs missing-client detection plus its remediation
// alone.
func (svc *Service) AutoResolveClients(ctx context.Context) (*Report, error) {
	r := &Report{Metrics: map[string]any{}}
	svc.detectMissingClients(ctx, r)
	svc.remediateMissingClients(ctx, r)
	return svc.persist(ctx, r)
}

func (svc *Service) persist(ctx context.Context, r *Report) (*Report, error) {
	_, err := svc.Store.CreateQualityReport(ctx, &store.DataQualityReport{
		Metrics:     r.Metrics,
		Issues:      r.Issues,
		Resolutions: r.Resolutions,
	})
	if err != nil {
		return r, err
	}
	return r, nil
}

func (svc *Service) detectDuplicates(ctx context.Context, r *Report) {
	for _, entityType := range []string{"person", "organization"} {
		entities, err := svc.Store.DuplicateEntityGroups(ctx, entityType)
		if err != nil {
			slog.Error("audit: duplicate scan failed", "type", entityType, "error", err)
			continue
		}
		ids := make([]uuid.UUID, len(entities))
		names := make([]string, len(entities))
		for i, e := range entities {
			ids[i] = e.ID
			names[i] = e.Name
		}
		for _, g := range GroupDuplicates(ids, names) {
			r.Issues = append(r.Issues, map[string]any{
				"type":           "duplicate_entity",
				"entityType":     entityType,
				"normalizedName": g.NormalizedName,
				"entityIds":      g.EntityIDs,
			})
		}
	}
}

func (svc *Service) detectOrphanedTasks(ctx context.Context, r *Report) {
	tasks, err := svc.Store.OrphanedTasks(ctx)
	if err != nil {
		slog.Error("audit: orphaned task scan failed", "error", err)
		return
	}
	for _, t := range tasks {
		r.Issues = append(r.Issues, map[string]any{"type": "orphaned_task", "activityId": t.ID})
	}
	r.Metrics["orphanedTaskCount"] = len(tasks)
}

func (svc *Service) detectMissingClients(ctx context.Context, r *Report) {
	projects, err := svc.Store.ProjectsMissingClient(ctx)
	if err != nil {
		slog.Error("audit: missing client scan failed", "error", err)
		return
	}
	for _, p := range projects {
		r.Issues = append(r.Issues, map[string]any{"type": "missing_client", "activityId": p.ID})
	}
	r.Metrics["projectsMissingClientCount"] = len(projects)
}

func (svc *Service) computeFillRates(ctx context.Context, r *Report) {
	fields := map[string][2]string{
		"activity.dueAt":          {"activities", "due_at"},
		"activity.ownerEntityId":  {"activities", "owner_entity_id"},
		"commitment.dueDate":      {"commitments", "due_date"},
		"entity.organizationId":   {"entities", "organization_id"},
	}
	for label, tc := range fields {
		rate, err := svc.Store.FieldFillRate(ctx, tc[0], tc[1])
		if err != nil {
			slog.Error("audit: fill rate query failed", "field", label, "error", err)
			continue
		}
		r.Metrics["fillRate."+label] = rate
	}
}

// remediateDuplicates auto-merges every duplicate entity group found this
// pass, keeper chosen by SelectKeeper. Merge failures are recorded,
// not retried inline.
func (svc *Service) remediateDuplicates(ctx context.Context, r *Report) {
	for _, issue := range r.Issues {
		if issue["type"] != "duplicate_entity" {
			continue
		}
		ids, ok := issue["entityIds"].([]uuid.UUID)
		if !ok || len(ids) < 2 {
			continue
		}
		candidates := make([]KeeperCandidate, len(ids))
		for i, id := range ids {
			e, err := svc.Store.GetEntity(ctx, id)
			if err != nil {
				continue
			}
			candidates[i] = KeeperCandidate{ID: id, CreatedAt: e.CreatedAt}
		}
		keeper := SelectKeeper(candidates)
		for _, id := range ids {
			if id == keeper {
				continue
			}
			if _, err := svc.Store.MergeEntities(ctx, id, keeper); err != nil {
				slog.Error("audit: auto-merge failed", "source", id, "target", keeper, "error", err)
				continue
			}
			r.Resolutions = append(r.Resolutions, map[string]any{
				"type": "auto_merge", "source": id, "target": keeper,
			})
		}
	}
}

// remediateOrphans resolves orphaned tasks via the fallback chain:
// name-containment, same draft batch, owner's single active project,
// create/reuse "Unsorted Tasks".
func (svc *Service) remediateOrphans(ctx context.Context, r *Report) {
	tasks, err := svc.Store.OrphanedTasks(ctx)
	if err != nil {
		return
	}
	for _, t := range tasks {
		parent := svc.resolveOrphanParent(ctx, t)
		if parent == nil {
			continue
		}
		if err := svc.Store.Reparent(ctx, t.ID, &parent.ID); err != nil {
			slog.Error("audit: orphan reparent failed", "task", t.ID, "error", err)
			continue
		}
		r.Resolutions = append(r.Resolutions, map[string]any{
			"type": "orphan_resolved", "taskId": t.ID, "parentId": parent.ID,
		})
	}
}

func (svc *Service) resolveOrphanParent(ctx context.Context, t *store.Activity) *store.Activity {
	if p, err := svc.Store.ActivityByNameContains(ctx, t.Name); err == nil && p != nil {
		return p
	}
	if p, err := svc.Store.BatchSiblingProject(ctx, t.ID); err == nil && p != nil {
		return p
	}
	if t.OwnerEntityID != nil {
		if p, err := svc.Store.SingleActiveProjectForOwner(ctx, *t.OwnerEntityID); err == nil && p != nil {
			return p
		}
		if p, err := svc.Store.FindOrCreateUnsortedTasks(ctx, *t.OwnerEntityID); err == nil {
			return p
		}
	}
	return nil
}

// remediateMissingClients resolves each client-less project by recording
// the issue for manual follow-up: identifying the "best client" is the
// disambiguation scorer's job and needs participant/mention context this
// pass doesn't have, so it's surfaced rather than guessed.
func (svc *Service) remediateMissingClients(ctx context.Context, r *Report) {
	projects, err := svc.Store.ProjectsMissingClient(ctx)
	if err != nil {
		return
	}
	for _, p := range projects {
		r.Resolutions = append(r.Resolutions, map[string]any{
			"type": "missing_client_flagged", "activityId": p.ID, "needsReview": true,
		})
	}
}

// GCInterval is one day. The scheduled audit does not use it: its cadence
// comes from config Audit.Interval (default 6h).
const GCInterval = 24 * time.Hour
