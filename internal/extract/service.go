package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mityayka1/pkgraph/internal/apperr"
	"github.com/mityayka1/pkgraph/internal/dedupe"
	"github.com/mityayka1/pkgraph/internal/disambiguate"
	"github.com/mityayka1/pkgraph/internal/provider"
	"github.com/mityayka1/pkgraph/internal/resolver"
	"github.com/mityayka1/pkgraph/internal/store"
)

// Service drives one segment through the full extraction pipeline: LLM
// call, participant resolution, dedup, draft + approval creation.
type Service struct {
	Store    *store.Store
	LLM      provider.LLMProvider
	Embedder provider.Embedder
	Resolver *resolver.Resolver
	Disambig *disambiguate.Service
	Dedupe   *dedupe.Service
}

// New builds an extraction Service.
func New(s *store.Store, llm provider.LLMProvider, embedder provider.Embedder, res *resolver.Resolver, disambig *disambiguate.Service, dd *dedupe.Service) *Service {
	return &Service{Store: s, LLM: llm, Embedder: embedder, Resolver: res, Disambig: disambig, Dedupe: dd}
}

// ProcessSegment runs one extraction pass over seg. It refuses to
// reprocess a segment already marked processed unless force is set; it
// does not check whether drafts from an earlier pass are still awaiting
// approval. When every retry fails, the segment is marked failed with the
// last error.
func (svc *Service) ProcessSegment(ctx context.Context, seg *store.TopicalSegment, force bool) error {
	if seg.ExtractionStatus == "processed" && !force {
		return nil
	}

	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff(attempt))
		}
		if err := svc.attemptOnce(ctx, seg); err != nil {
			lastErr = err
			slog.Warn("extraction attempt failed", "segment_id", seg.ID, "attempt", attempt, "error", err)
			continue
		}
		return nil
	}
	if tx, err := svc.Store.Pool.Begin(ctx); err == nil {
		err = svc.Store.MarkSegmentExtracted(ctx, tx, seg.ID, false, lastErr.Error())
		if err == nil {
			err = tx.Commit(ctx)
		}
		if err != nil {
			tx.Rollback(ctx)
			slog.Warn("extract: could not mark segment failed", "segment_id", seg.ID, "error", err)
		}
	}
	return apperr.Upstream("extraction failed after retries", lastErr)
}

// PendingBatchSize bounds how many segments one sweep claims.
const PendingBatchSize = 20

// RunPendingSegments is the scheduler.Run callback that claims unprocessed
// (or previously failed) segments and runs ProcessSegment over each.
func (svc *Service) RunPendingSegments(ctx context.Context, _ time.Time) error {
	tx, err := svc.Store.Pool.Begin(ctx)
	if err != nil {
		return apperr.Transient("extract: begin claim transaction failed", err)
	}
	segs, err := svc.Store.ClaimPendingSegments(ctx, tx, PendingBatchSize)
	if err != nil {
		tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Transient("extract: commit claim failed", err)
	}

	for _, seg := range segs {
		if err := svc.ProcessSegment(ctx, seg, false); err != nil {
			slog.Error("extract: segment processing failed", "segment_id", seg.ID, "error", err)
		}
	}
	return nil
}

func backoff(attempt int) time.Duration {
	d := time.Second
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d
}

func (svc *Service) attemptOnce(ctx context.Context, seg *store.TopicalSegment) error {
	messages, err := svc.Store.MessagesByInteraction(ctx, *seg.InteractionID)
	if err != nil {
		return err
	}

	participantNames := map[string]string{}
	for _, pid := range seg.ParticipantIDs {
		e, err := svc.Store.GetEntity(ctx, pid)
		if err == nil {
			participantNames[pid.String()] = e.Name
		}
	}

	prompt := BuildPrompt(seg, messages, participantNames)
	resp, err := svc.LLM.Chat(ctx, ChatRequestFor(prompt))
	if err != nil {
		return err
	}
	result, err := Parse(resp.Content)
	if err != nil {
		return err
	}

	batchID := uuid.New()

	for _, f := range result.Facts {
		if err := svc.createFactDraft(ctx, seg, batchID, f); err != nil {
			slog.Error("extraction: fact draft failed", "segment_id", seg.ID, "error", err)
		}
	}
	for _, a := range result.Activities {
		if err := svc.createActivityDraft(ctx, seg, batchID, a); err != nil {
			slog.Error("extraction: activity draft failed", "segment_id", seg.ID, "error", err)
		}
	}
	for _, c := range result.Commitments {
		if err := svc.createCommitmentDraft(ctx, seg, batchID, c); err != nil {
			slog.Error("extraction: commitment draft failed", "segment_id", seg.ID, "error", err)
		}
	}

	tx, err := svc.Store.Pool.Begin(ctx)
	if err != nil {
		return apperr.Transient("begin mark-extracted transaction failed", err)
	}
	defer tx.Rollback(ctx)
	if err := svc.Store.MarkSegmentExtracted(ctx, tx, seg.ID, true, ""); err != nil {
		return err
	}
	for _, m := range messages {
		if err := svc.Store.MarkExtracted(ctx, tx, m.ID, true); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Transient("commit mark-extracted failed", err)
	}
	return nil
}

func (svc *Service) resolveMention(ctx context.Context, mention string, mentionedWith []string, chatID string) (*uuid.UUID, error) {
	if mention == "" {
		return nil, nil
	}
	candidates, err := svc.Disambig.Resolve(ctx, mention, disambiguate.Context{ChatID: chatID, MentionedWith: mentionedWith, MessageTimestamp: time.Now()})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 || disambiguate.IsAmbiguous(candidates) {
		return nil, nil
	}
	id, err := uuid.Parse(candidates[0].EntityID)
	if err != nil {
		return nil, nil
	}
	return &id, nil
}

// resolveOrLog resolves mention and, when the mention was non-empty text
// that still failed to resolve, records it for manual triage
// instead of silently discarding it.
func (svc *Service) resolveOrLog(ctx context.Context, seg *store.TopicalSegment, mention string, mentionedWith []string) *uuid.UUID {
	id, err := svc.resolveMention(ctx, mention, mentionedWith, seg.ChatID)
	if err != nil {
		slog.Warn("extraction: mention resolution failed", "segment_id", seg.ID, "mention", mention, "error", err)
		return nil
	}
	if id == nil && mention != "" {
		if _, err := svc.Store.RecordUnresolvedMention(ctx, &seg.ID, mention, seg.ChatID); err != nil {
			slog.Warn("extraction: recording unresolved mention failed", "segment_id", seg.ID, "mention", mention, "error", err)
		}
	}
	return id
}

func (svc *Service) createFactDraft(ctx context.Context, seg *store.TopicalSegment, batchID uuid.UUID, f ExtractedFact) error {
	entityID := svc.resolveOrLog(ctx, seg, f.EntityMention, nil)

	var emb []float32
	if svc.Embedder != nil {
		if e, err := svc.Embedder.Embed(ctx, &provider.EmbeddingRequest{Input: f.Value}); err == nil {
			emb = e.Vector
		}
	}

	decision := dedupe.Outcome{Decision: dedupe.DecisionCreate}
	if emb != nil && svc.Dedupe != nil && entityID != nil {
		if d, err := svc.Dedupe.CheckFact(ctx, *entityID, f.FactType, f.Value, emb); err == nil {
			decision = d
		}
	}
	if decision.Decision == dedupe.DecisionSkip {
		return nil
	}

	fact := &store.EntityFact{
		EntityID:    entityID,
		DisplayName: f.EntityMention,
		FactType:    f.FactType,
		Category:    f.Category,
		Value:       &f.Value,
		Source:      "extracted",
		Confidence:  f.Confidence,
	}
	if decision.Decision == dedupe.DecisionReview {
		fact.NeedsReview = true
		fact.ReviewReason = fmt.Sprintf("similar to existing fact %s (similarity %.2f)", decision.MatchID, decision.Similarity)
	}
	draft, err := svc.Store.CreateDraftFact(ctx, fact)
	if err != nil {
		return err
	}
	if emb != nil {
		_ = svc.Store.SetFactEmbedding(ctx, draft.ID, emb)
	}

	return svc.createApproval(ctx, "fact", draft.ID, batchID, f.Confidence)
}

func (svc *Service) createActivityDraft(ctx context.Context, seg *store.TopicalSegment, batchID uuid.UUID, a ExtractedActivity) error {
	ownerID := svc.resolveOrLog(ctx, seg, a.OwnerMention, nil)
	clientID := svc.resolveOrLog(ctx, seg, a.ClientMention, nil)

	var emb []float32
	if svc.Embedder != nil {
		if e, err := svc.Embedder.Embed(ctx, &provider.EmbeddingRequest{Input: a.Name}); err == nil {
			emb = e.Vector
		}
	}

	decision := dedupe.Outcome{Decision: dedupe.DecisionCreate}
	if emb != nil && svc.Dedupe != nil && ownerID != nil {
		if d, err := svc.Dedupe.CheckActivity(ctx, *ownerID, a.ActivityType, a.Name, emb); err == nil {
			decision = d
		}
	}
	if decision.Decision == dedupe.DecisionSkip {
		return nil
	}

	activity := &store.Activity{
		Name:              a.Name,
		ActivityType:      a.ActivityType,
		OwnerEntityID:     ownerID,
		OwnerDisplayName:  a.OwnerMention,
		ClientEntityID:    clientID,
		ClientDisplayName: a.ClientMention,
	}
	draft, err := svc.Store.CreateActivity(ctx, activity)
	if err != nil {
		return err
	}
	if emb != nil {
		_ = svc.Store.SetActivityEmbedding(ctx, draft.ID, emb)
	}
	if err := svc.Store.LinkSegmentActivity(ctx, seg.ID, draft.ID); err != nil {
		slog.Warn("extraction: segment-activity link failed", "segment_id", seg.ID, "activity_id", draft.ID, "error", err)
	}

	itemType := "task"
	if a.ActivityType == "project" {
		itemType = "project"
	}
	return svc.createApproval(ctx, itemType, draft.ID, batchID, a.Confidence)
}

func (svc *Service) createCommitmentDraft(ctx context.Context, seg *store.TopicalSegment, batchID uuid.UUID, c ExtractedCommitment) error {
	fromID := svc.resolveOrLog(ctx, seg, c.FromMention, nil)
	toID := svc.resolveOrLog(ctx, seg, c.ToMention, nil)

	var dueDate *time.Time
	if c.DueDate != "" {
		if t, err := time.Parse(time.RFC3339, c.DueDate); err == nil {
			dueDate = &t
		}
	}

	var emb []float32
	if svc.Embedder != nil {
		if e, err := svc.Embedder.Embed(ctx, &provider.EmbeddingRequest{Input: c.Title}); err == nil {
			emb = e.Vector
		}
	}

	decision := dedupe.Outcome{Decision: dedupe.DecisionCreate}
	if emb != nil && svc.Dedupe != nil && fromID != nil {
		if d, err := svc.Dedupe.CheckCommitment(ctx, *fromID, c.Type, c.Title, emb); err == nil {
			decision = d
		}
	}
	if decision.Decision == dedupe.DecisionSkip {
		return nil
	}

	draft, err := svc.Store.CreateCommitment(ctx, &store.Commitment{
		Type:            c.Type,
		Title:           c.Title,
		FromEntityID:    fromID,
		FromDisplayName: c.FromMention,
		ToEntityID:      toID,
		ToDisplayName:   c.ToMention,
		DueDate:         dueDate,
		RecurrenceRule:  c.RecurrenceRule,
		Confidence:      c.Confidence,
	})
	if err != nil {
		return err
	}
	if emb != nil {
		_ = svc.Store.SetCommitmentEmbedding(ctx, draft.ID, emb)
	}
	return svc.createApproval(ctx, "commitment", draft.ID, batchID, c.Confidence)
}

func (svc *Service) createApproval(ctx context.Context, itemType string, targetID, batchID uuid.UUID, confidence float64) error {
	tx, err := svc.Store.Pool.Begin(ctx)
	if err != nil {
		return apperr.Transient("begin approval transaction failed", err)
	}
	defer tx.Rollback(ctx)

	approval := &store.PendingApproval{
		ItemType:   itemType,
		TargetID:   targetID,
		BatchID:    batchID,
		Confidence: confidence,
	}
	if _, err := svc.Store.CreateApproval(ctx, tx, approval); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Transient("commit approval failed", err)
	}
	return nil
}
