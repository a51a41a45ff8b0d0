package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mityayka1/pkgraph/internal/apperr"
)

// UnresolvedMention is a name the identifier resolver could not tie
// to an existing entity or pending resolution with enough confidence to
// act automatically; it's surfaced for manual triage rather than dropped.
type UnresolvedMention struct {
	ID        uuid.UUID
	SegmentID *uuid.UUID
	RawName   string
	Context   string
	CreatedAt time.Time
}

const mentionColumns = `id, segment_id, raw_name, context, created_at`

func scanMention(row pgx.Row) (*UnresolvedMention, error) {
	var m UnresolvedMention
	if err := row.Scan(&m.ID, &m.SegmentID, &m.RawName, &m.Context, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordUnresolvedMention inserts a triage row for a name the resolver
// couldn't place.
func (s *Store) RecordUnresolvedMention(ctx context.Context, segmentID *uuid.UUID, rawName, context string) (*UnresolvedMention, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO unresolved_mentions (segment_id, raw_name, context)
		VALUES ($1,$2,$3)
		RETURNING `+mentionColumns, segmentID, rawName, context)
	out, err := scanMention(row)
	if err != nil {
		return nil, apperr.Conflict("record unresolved mention failed", err)
	}
	return out, nil
}

// ListUnresolvedMentions returns the most recent unresolved mentions for
// manual review.
func (s *Store) ListUnresolvedMentions(ctx context.Context, limit int) ([]*UnresolvedMention, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+mentionColumns+` FROM unresolved_mentions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, apperr.Transient("list unresolved mentions failed", err)
	}
	defer rows.Close()
	var out []*UnresolvedMention
	for rows.Next() {
		m, err := scanMention(rows)
		if err != nil {
			return nil, apperr.Transient("scan unresolved mention failed", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMention removes a mention once it's been manually resolved or
// dismissed.
func (s *Store) DeleteMention(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM unresolved_mentions WHERE id=$1`, id)
	if err != nil {
		return apperr.Transient("delete mention failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("mention not found", nil)
	}
	return nil
}
