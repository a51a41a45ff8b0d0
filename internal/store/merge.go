package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mityayka1/pkgraph/internal/apperr"
	"github.com/mityayka1/pkgraph/internal/factmerge"
)

// MergeResult reports what Merge moved,.
type MergeResult struct {
	IdentifiersMoved int
	FactsMoved       int
	SourceDeleted    bool
}

// MergeEntities reassigns every identifier and fact from source to target,
// reassigns interaction participants, collapses duplicate facts of the same
// factType via internal/factmerge, then soft-deletes source. The whole
// operation is one transaction.
func (s *Store) MergeEntities(ctx context.Context, sourceID, targetID uuid.UUID) (*MergeResult, error) {
	if sourceID == targetID {
		return nil, apperr.Validation("cannot merge an entity into itself", nil)
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Transient("begin merge transaction failed", err)
	}
	defer tx.Rollback(ctx)

	idMoved, err := ReassignIdentifiers(ctx, tx, sourceID, targetID)
	if err != nil {
		return nil, apperr.Conflict("reassign identifiers failed", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE interaction_participants SET entity_id = $2 WHERE entity_id = $1`, sourceID, targetID); err != nil {
		return nil, apperr.Transient("reassign participants failed", err)
	}

	if err := collapseDuplicateFacts(ctx, s, tx, sourceID, targetID); err != nil {
		return nil, err
	}
	factsMoved, err := ReassignFacts(ctx, tx, sourceID, targetID)
	if err != nil {
		return nil, apperr.Transient("reassign facts failed", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE entities SET deleted_at = now(), updated_at = now() WHERE id = $1`, sourceID); err != nil {
		return nil, apperr.Transient("soft delete merge source failed", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Transient("commit merge transaction failed", err)
	}
	return &MergeResult{IdentifiersMoved: idMoved, FactsMoved: factsMoved, SourceDeleted: true}, nil
}

// collapseDuplicateFacts finds (factType) pairs present on both source and
// target and resolves each via factmerge.Resolve before the bulk reassign,
// so the loser is marked deprecated/supersededBy rather than ending up as a
// second active fact of the same type on the merged entity.
func collapseDuplicateFacts(ctx context.Context, s *Store, tx pgx.Tx, sourceID, targetID uuid.UUID) error {
	rows, err := tx.Query(ctx, `
		SELECT s.id, s.fact_type, s.rank, s.confidence, s.created_at, COALESCE(s.value,''),
		       t.id, t.rank, t.confidence, t.created_at, COALESCE(t.value,'')
		FROM entity_facts s
		JOIN entity_facts t ON t.entity_id = $2 AND t.fact_type = s.fact_type AND t.status='active' AND t.deleted_at IS NULL
		WHERE s.entity_id = $1 AND s.status='active' AND s.deleted_at IS NULL`, sourceID, targetID)
	if err != nil {
		return apperr.Transient("scan duplicate facts failed", err)
	}
	type pair struct {
		sourceID, targetID uuid.UUID
		source, target     factmerge.Candidate
	}
	var pairs []pair
	for rows.Next() {
		var p pair
		p.source.ID = "source"
		p.target.ID = "target"
		if err := rows.Scan(&p.sourceID, new(string), &p.source.Rank, &p.source.Confidence, &p.source.CreatedAt, &p.source.Value,
			&p.targetID, &p.target.Rank, &p.target.Confidence, &p.target.CreatedAt, &p.target.Value); err != nil {
			rows.Close()
			return apperr.Transient("scan duplicate fact row failed", err)
		}
		pairs = append(pairs, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return apperr.Transient("iterate duplicate facts failed", err)
	}

	for _, p := range pairs {
		decision := factmerge.Resolve(p.source, p.target)
		winnerID, loserID := p.targetID, p.sourceID
		if decision.Winner == factmerge.WinnerA {
			winnerID, loserID = p.sourceID, p.targetID
		}
		if err := s.Supersede(ctx, tx, loserID, winnerID); err != nil {
			return err
		}
	}
	return nil
}
