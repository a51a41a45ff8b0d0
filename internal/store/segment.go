package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/mityayka1/pkgraph/internal/apperr"
)

// TopicalSegment groups a run of messages in a single Interaction that
// share one topic, the unit the extraction orchestrator and the
// cross-chat linker operate on.
type TopicalSegment struct {
	ID                   uuid.UUID
	ChatID               string
	InteractionID        *uuid.UUID
	Topic                string
	Keywords             []string
	Summary              string
	ParticipantIDs       []uuid.UUID
	PrimaryParticipantID *uuid.UUID
	MessageCount         int
	StartedAt            *time.Time
	EndedAt              *time.Time
	Status               string // active | merged | superseded
	Confidence           float64
	RelatedSegmentIDs    []uuid.UUID
	ExtractionStatus     string // unprocessed | pending | processed | failed
	ExtractionAttempts   int
	ExtractionError      string
	BatchID              *uuid.UUID
	Embedding            []float32
	CreatedAt            time.Time
}

const segmentColumns = `id, chat_id, interaction_id, topic, keywords, summary, participant_ids, primary_participant_id,
	message_count, started_at, ended_at, status, confidence, related_segment_ids, extraction_status, extraction_attempts,
	extraction_error, batch_id, embedding, created_at`

func scanSegment(row pgx.Row) (*TopicalSegment, error) {
	var seg TopicalSegment
	var vec *pgvector.Vector
	if err := row.Scan(&seg.ID, &seg.ChatID, &seg.InteractionID, &seg.Topic, &seg.Keywords, &seg.Summary,
		&seg.ParticipantIDs, &seg.PrimaryParticipantID, &seg.MessageCount, &seg.StartedAt, &seg.EndedAt, &seg.Status,
		&seg.Confidence, &seg.RelatedSegmentIDs, &seg.ExtractionStatus, &seg.ExtractionAttempts, &seg.ExtractionError,
		&seg.BatchID, &vec, &seg.CreatedAt); err != nil {
		return nil, err
	}
	if vec != nil {
		seg.Embedding = vec.Slice()
	}
	return &seg, nil
}

// CreateSegment opens a new topical segment, the output of the topic
// boundary detector as it watches an interaction's messages arrive.
func (s *Store) CreateSegment(ctx context.Context, seg *TopicalSegment) (*TopicalSegment, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO topical_segments (chat_id, interaction_id, topic, keywords, summary, participant_ids,
			primary_participant_id, started_at, confidence, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,'active')
		RETURNING `+segmentColumns,
		seg.ChatID, seg.InteractionID, seg.Topic, seg.Keywords, seg.Summary, seg.ParticipantIDs,
		seg.PrimaryParticipantID, seg.StartedAt, seg.Confidence)
	out, err := scanSegment(row)
	if err != nil {
		return nil, apperr.Conflict("create segment failed", err)
	}
	return out, nil
}

// GetSegment fetches a single segment by ID.
func (s *Store) GetSegment(ctx context.Context, id uuid.UUID) (*TopicalSegment, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+segmentColumns+` FROM topical_segments WHERE id=$1`, id)
	seg, err := scanSegment(row)
	if err != nil {
		return nil, apperr.NotFound("segment not found", err)
	}
	return seg, nil
}

// AttachMessage links a message into a segment and bumps messageCount.
func (s *Store) AttachMessage(ctx context.Context, tx pgx.Tx, segmentID, messageID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `INSERT INTO segment_messages (segment_id, message_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`, segmentID, messageID); err != nil {
		return apperr.Transient("attach message to segment failed", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE topical_segments SET message_count = (SELECT count(*) FROM segment_messages WHERE segment_id=$1) WHERE id=$1`, segmentID); err != nil {
		return apperr.Transient("recompute segment message count failed", err)
	}
	return nil
}

// CloseSegment finalizes a segment with its summary and embedding inputs
// once the boundary detector decides the topic has ended.
func (s *Store) CloseSegment(ctx context.Context, id uuid.UUID, summary string, keywords []string, endedAt time.Time) error {
	_, err := s.Pool.Exec(ctx, `UPDATE topical_segments SET summary=$2, keywords=$3, ended_at=$4 WHERE id=$1`, id, summary, keywords, endedAt)
	if err != nil {
		return apperr.Transient("close segment failed", err)
	}
	return nil
}

// LinkRelatedSegment records a cross-chat topical link found by the linker
//; it is symmetric, so callers link both directions.
func (s *Store) LinkRelatedSegment(ctx context.Context, id, relatedID uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `UPDATE topical_segments SET related_segment_ids = array_append(related_segment_ids, $2) WHERE id=$1 AND NOT ($2 = ANY(related_segment_ids))`, id, relatedID)
	if err != nil {
		return apperr.Transient("link related segment failed", err)
	}
	return nil
}

// SetSegmentEmbedding overwrites the embedding column; idempotent on retry.
func (s *Store) SetSegmentEmbedding(ctx context.Context, id uuid.UUID, vec []float32) error {
	_, err := s.Pool.Exec(ctx, `UPDATE topical_segments SET embedding=$2 WHERE id=$1`, id, pgvector.NewVector(vec))
	if err != nil {
		return apperr.Transient("set segment embedding failed", err)
	}
	return nil
}

// SearchSegmentsByEmbedding finds the top-k topically similar segments
// across other chats, the core of the cross-chat linker. excludeID
// is omitted from results.
func (s *Store) SearchSegmentsByEmbedding(ctx context.Context, excludeID uuid.UUID, vec []float32, k int) ([]*TopicalSegment, []float64, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+segmentColumns+`, 1 - (embedding <=> $2) AS similarity
		FROM topical_segments
		WHERE id <> $1 AND embedding IS NOT NULL AND status='active'
		ORDER BY embedding <=> $2
		LIMIT $3`, excludeID, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, nil, apperr.Transient("search segments failed", err)
	}
	defer rows.Close()
	var segs []*TopicalSegment
	var sims []float64
	for rows.Next() {
		var seg TopicalSegment
		var fvec *pgvector.Vector
		var sim float64
		if err := rows.Scan(&seg.ID, &seg.ChatID, &seg.InteractionID, &seg.Topic, &seg.Keywords, &seg.Summary,
			&seg.ParticipantIDs, &seg.PrimaryParticipantID, &seg.MessageCount, &seg.StartedAt, &seg.EndedAt, &seg.Status,
			&seg.Confidence, &seg.RelatedSegmentIDs, &seg.ExtractionStatus, &seg.ExtractionAttempts, &seg.ExtractionError,
			&seg.BatchID, &fvec, &seg.CreatedAt, &sim); err != nil {
			return nil, nil, apperr.Transient("scan segment similarity failed", err)
		}
		if fvec != nil {
			seg.Embedding = fvec.Slice()
		}
		segs = append(segs, &seg)
		sims = append(sims, sim)
	}
	return segs, sims, rows.Err()
}

// ClaimPendingSegments locks up to limit not-yet-extracted segments for a
// worker, incrementing extractionAttempts so repeated failures are visible
// to the data quality auditor.
func (s *Store) ClaimPendingSegments(ctx context.Context, tx pgx.Tx, limit int) ([]*TopicalSegment, error) {
	rows, err := tx.Query(ctx, `
		UPDATE topical_segments SET extraction_status='pending', extraction_attempts = extraction_attempts + 1
		WHERE id IN (
			SELECT id FROM topical_segments WHERE extraction_status IN ('unprocessed','failed')
			ORDER BY created_at ASC LIMIT $1 FOR UPDATE SKIP LOCKED
		)
		RETURNING `+segmentColumns, limit)
	if err != nil {
		return nil, apperr.Transient("claim pending segments failed", err)
	}
	defer rows.Close()
	var out []*TopicalSegment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, apperr.Transient("scan claimed segment failed", err)
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

// MarkSegmentExtracted records the outcome of an extraction pass over a
// segment.
func (s *Store) MarkSegmentExtracted(ctx context.Context, tx pgx.Tx, id uuid.UUID, ok bool, errMsg string) error {
	status := "processed"
	if !ok {
		status = "failed"
	}
	_, err := tx.Exec(ctx, `UPDATE topical_segments SET extraction_status=$2, extraction_error=$3 WHERE id=$1`, id, status, errMsg)
	if err != nil {
		return apperr.Transient("mark segment extracted failed", err)
	}
	return nil
}
