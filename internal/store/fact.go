package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/mityayka1/pkgraph/internal/apperr"
	"github.com/mityayka1/pkgraph/internal/factmerge"
)

// EntityFact is an atomic claim about an entity (birthday, employer, city,
// ...). supersededBy chains form a DAG of fact revisions.
type EntityFact struct {
	ID                  uuid.UUID
	EntityID            *uuid.UUID
	DisplayName         string // free-text mention the resolver couldn't place, kept instead of dropping the fact
	FactType            string
	Category            string
	Value               *string
	ValueDate           *time.Time
	ValueJSON           map[string]any
	Source              string // manual | extracted | imported | inferred
	Confidence          float64
	SourceInteractionID *uuid.UUID
	ValidFrom           *time.Time
	ValidUntil          *time.Time
	Status              string // draft | active
	DeletedAt           *time.Time
	Rank                string // preferred | normal | deprecated
	SupersededBy        *uuid.UUID
	NeedsReview         bool
	ReviewReason        string
	ConfirmationCount   int
	Embedding           []float32
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

const factColumns = `id, entity_id, display_name, fact_type, category, value, value_date, value_json, source, confidence,
	source_interaction_id, valid_from, valid_until, status, deleted_at, rank, superseded_by,
	needs_review, review_reason, confirmation_count, embedding, created_at, updated_at`

func scanFact(row pgx.Row) (*EntityFact, error) {
	var f EntityFact
	var vec *pgvector.Vector
	if err := row.Scan(&f.ID, &f.EntityID, &f.DisplayName, &f.FactType, &f.Category, &f.Value, &f.ValueDate, &f.ValueJSON,
		&f.Source, &f.Confidence, &f.SourceInteractionID, &f.ValidFrom, &f.ValidUntil, &f.Status, &f.DeletedAt,
		&f.Rank, &f.SupersededBy, &f.NeedsReview, &f.ReviewReason, &f.ConfirmationCount, &vec, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if vec != nil {
		f.Embedding = vec.Slice()
	}
	return &f, nil
}

// CreateDraftFact inserts a new fact in draft status, the shape produced by
// the extraction orchestrator before it clears the deduper.
// EntityID may be nil when the mention couldn't be resolved; DisplayName
// then carries the free-text name instead.
func (s *Store) CreateDraftFact(ctx context.Context, f *EntityFact) (*EntityFact, error) {
	if f.Confidence < 0 || f.Confidence > 1 {
		return nil, apperr.Validation("fact confidence must be in [0,1]", nil)
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO entity_facts (entity_id, display_name, fact_type, category, value, value_date, value_json, source,
			confidence, source_interaction_id, status, needs_review, review_reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'draft',$11,$12)
		RETURNING `+factColumns,
		f.EntityID, f.DisplayName, f.FactType, f.Category, f.Value, f.ValueDate, f.ValueJSON, nonEmpty(f.Source, "extracted"),
		f.Confidence, f.SourceInteractionID, f.NeedsReview, f.ReviewReason)
	out, err := scanFact(row)
	if err != nil {
		return nil, apperr.Conflict("create fact failed", err)
	}
	return out, nil
}

// ActivateFact flips a draft fact to active (the target of an approval).
func (s *Store) ActivateFact(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `UPDATE entity_facts SET status='active', updated_at=now() WHERE id=$1 AND status='draft'`, id)
	if err != nil {
		return apperr.Transient("activate fact failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("fact is not a pending draft", nil)
	}
	return nil
}

// BumpConfirmation increments confirmationCount, used when the deduper
// decides an extracted candidate matches an existing active fact.
func (s *Store) BumpConfirmation(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := s.Pool.QueryRow(ctx, `UPDATE entity_facts SET confirmation_count = confirmation_count + 1, updated_at = now() WHERE id=$1 RETURNING confirmation_count`, id).Scan(&count)
	if err != nil {
		return 0, apperr.NotFound("fact not found", err)
	}
	return count, nil
}

// Supersede marks oldID deprecated pointing at newID, refusing to create a
// cycle by walking the existing chain up to depth 64.
func (s *Store) Supersede(ctx context.Context, tx pgx.Tx, oldID, newID uuid.UUID) error {
	chain := []string{newID.String()}
	cur := newID
	for depth := 0; depth < 64; depth++ {
		var next *uuid.UUID
		err := tx.QueryRow(ctx, `SELECT superseded_by FROM entity_facts WHERE id = $1`, cur).Scan(&next)
		if err != nil || next == nil {
			break
		}
		cur = *next
		chain = append(chain, cur.String())
	}
	if !factmerge.CanSupersede(oldID.String(), newID.String(), chain) {
		return apperr.Fatal("supersededBy chain would cycle", nil)
	}
	_, err := tx.Exec(ctx, `UPDATE entity_facts SET rank='deprecated', superseded_by=$2, updated_at=now() WHERE id=$1`, oldID, newID)
	if err != nil {
		return apperr.Transient("supersede fact failed", err)
	}
	return nil
}

// CreateManualFact inserts an operator-entered fact directly in active
// status; manual facts never pass through the approval queue.
func (s *Store) CreateManualFact(ctx context.Context, f *EntityFact) (*EntityFact, error) {
	if f.EntityID == nil {
		return nil, apperr.Validation("manual fact requires an entity id", nil)
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO entity_facts (entity_id, fact_type, category, value, value_date, value_json, source, confidence, status)
		VALUES ($1,$2,$3,$4,$5,$6,'manual',1.0,'active')
		RETURNING `+factColumns,
		f.EntityID, f.FactType, f.Category, f.Value, f.ValueDate, f.ValueJSON)
	out, err := scanFact(row)
	if err != nil {
		return nil, apperr.Conflict("create manual fact failed", err)
	}
	return out, nil
}

// ListFactsForEntity returns every active, non-deprecated fact on an
// entity across all fact types.
func (s *Store) ListFactsForEntity(ctx context.Context, entityID uuid.UUID) ([]*EntityFact, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+factColumns+` FROM entity_facts
		WHERE entity_id=$1 AND status='active' AND rank<>'deprecated' AND deleted_at IS NULL
		ORDER BY fact_type, created_at DESC`, entityID)
	if err != nil {
		return nil, apperr.Transient("list entity facts failed", err)
	}
	defer rows.Close()
	var out []*EntityFact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, apperr.Transient("scan entity fact failed", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// SoftDeleteFact tombstones a fact; historical references stay intact.
func (s *Store) SoftDeleteFact(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE entity_facts SET deleted_at=now(), updated_at=now() WHERE id=$1 AND deleted_at IS NULL`, id)
	if err != nil {
		return apperr.Transient("soft delete fact failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("fact not found", nil)
	}
	return nil
}

// ActiveFactsByType returns the non-deprecated, non-deleted facts of a type
// for an entity, used by the disambiguation scorer and extraction.
func (s *Store) ActiveFactsByType(ctx context.Context, entityID uuid.UUID, factType string) ([]*EntityFact, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+factColumns+` FROM entity_facts WHERE entity_id=$1 AND fact_type=$2 AND status='active' AND rank<>'deprecated' AND deleted_at IS NULL`, entityID, factType)
	if err != nil {
		return nil, apperr.Transient("list facts failed", err)
	}
	defer rows.Close()
	var out []*EntityFact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, apperr.Transient("scan fact failed", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// SetFactEmbedding overwrites the embedding column; idempotent by design
// (the embedding worker simply overwrites on retry/duplicate delivery).
func (s *Store) SetFactEmbedding(ctx context.Context, id uuid.UUID, vec []float32) error {
	_, err := s.Pool.Exec(ctx, `UPDATE entity_facts SET embedding=$2 WHERE id=$1`, id, pgvector.NewVector(vec))
	if err != nil {
		return apperr.Transient("set fact embedding failed", err)
	}
	return nil
}

// SearchFactsByEmbedding returns the top-k nearest facts by cosine distance
// for the given entity+factType scope, used by the semantic deduper.
func (s *Store) SearchFactsByEmbedding(ctx context.Context, entityID uuid.UUID, factType string, vec []float32, k int) ([]*EntityFact, []float64, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+factColumns+`, 1 - (embedding <=> $3) AS similarity
		FROM entity_facts
		WHERE entity_id=$1 AND fact_type=$2 AND status='active' AND rank<>'deprecated' AND deleted_at IS NULL AND embedding IS NOT NULL
		ORDER BY embedding <=> $3
		LIMIT $4`, entityID, factType, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, nil, apperr.Transient("search facts failed", err)
	}
	defer rows.Close()
	var facts []*EntityFact
	var sims []float64
	for rows.Next() {
		var f EntityFact
		var fvec *pgvector.Vector
		var sim float64
		if err := rows.Scan(&f.ID, &f.EntityID, &f.DisplayName, &f.FactType, &f.Category, &f.Value, &f.ValueDate, &f.ValueJSON,
			&f.Source, &f.Confidence, &f.SourceInteractionID, &f.ValidFrom, &f.ValidUntil, &f.Status, &f.DeletedAt,
			&f.Rank, &f.SupersededBy, &f.NeedsReview, &f.ReviewReason, &f.ConfirmationCount, &fvec, &f.CreatedAt, &f.UpdatedAt, &sim); err != nil {
			return nil, nil, apperr.Transient("scan fact similarity failed", err)
		}
		if fvec != nil {
			f.Embedding = fvec.Slice()
		}
		facts = append(facts, &f)
		sims = append(sims, sim)
	}
	return facts, sims, rows.Err()
}

// ReassignFacts moves every fact from source to target inside tx. Facts of
// the same factType are left for the caller to resolve via
// internal/factmerge before calling this (conflicting duplicates are not
// auto-collapsed here).
func ReassignFacts(ctx context.Context, tx pgx.Tx, sourceID, targetID uuid.UUID) (moved int, err error) {
	tag, err := tx.Exec(ctx, `UPDATE entity_facts SET entity_id=$2, updated_at=now() WHERE entity_id=$1`, sourceID, targetID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
