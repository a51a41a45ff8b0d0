package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mityayka1/pkgraph/internal/apperr"
)

// Interaction is a bounded conversation session.
type Interaction struct {
	ID             uuid.UUID
	Type           string
	Source         string
	ChatID         string
	TopicID        string
	Status         string // active | completed | archived
	StartedAt      time.Time
	EndedAt        *time.Time
	LastMessageAt  time.Time
	SourceMetadata map[string]any
	CreatedAt      time.Time
}

const interactionColumns = `id, type, source, chat_id, topic_id, status, started_at, ended_at, last_message_at, source_metadata, created_at`

func scanInteraction(row pgx.Row) (*Interaction, error) {
	var it Interaction
	if err := row.Scan(&it.ID, &it.Type, &it.Source, &it.ChatID, &it.TopicID, &it.Status, &it.StartedAt, &it.EndedAt, &it.LastMessageAt, &it.SourceMetadata, &it.CreatedAt); err != nil {
		return nil, err
	}
	return &it, nil
}

// OpenInteractionForKey returns the currently-open (status=active)
// interaction for (source, chatId, topicId), or nil if none exists.
func (s *Store) OpenInteractionForKey(ctx context.Context, tx pgx.Tx, source, chatID, topicID string) (*Interaction, error) {
	row := tx.QueryRow(ctx, `SELECT `+interactionColumns+` FROM interactions
		WHERE source=$1 AND chat_id=$2 AND topic_id=$3 AND status='active'
		ORDER BY started_at DESC LIMIT 1`, source, chatID, topicID)
	it, err := scanInteraction(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.Transient("lookup open interaction failed", err)
	}
	return it, nil
}

// InteractionCoveringTimestamp finds the interaction whose [startedAt,
// endedAt] range (or open range) covers ts, used when a message arrives
// out of order.
func (s *Store) InteractionCoveringTimestamp(ctx context.Context, tx pgx.Tx, source, chatID, topicID string, ts time.Time) (*Interaction, error) {
	row := tx.QueryRow(ctx, `SELECT `+interactionColumns+` FROM interactions
		WHERE source=$1 AND chat_id=$2 AND topic_id=$3
		  AND started_at <= $4 AND (ended_at IS NULL OR ended_at >= $4)
		ORDER BY started_at DESC LIMIT 1`, source, chatID, topicID, ts)
	it, err := scanInteraction(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.Transient("lookup covering interaction failed", err)
	}
	return it, nil
}

// CreateInteraction opens a new interaction.
func (s *Store) CreateInteraction(ctx context.Context, tx pgx.Tx, typ, source, chatID, topicID string, startedAt time.Time, metadata map[string]any) (*Interaction, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO interactions (type, source, chat_id, topic_id, status, started_at, last_message_at, source_metadata)
		VALUES ($1,$2,$3,$4,'active',$5,$5,$6)
		RETURNING `+interactionColumns, typ, source, chatID, topicID, startedAt, metadata)
	out, err := scanInteraction(row)
	if err != nil {
		return nil, apperr.Conflict("create interaction failed", err)
	}
	return out, nil
}

// CloseInteraction marks an interaction completed with endedAt set to its
// last observed message timestamp.
func (s *Store) CloseInteraction(ctx context.Context, tx pgx.Tx, id uuid.UUID, endedAt time.Time) error {
	_, err := tx.Exec(ctx, `UPDATE interactions SET status='completed', ended_at=$2 WHERE id=$1`, id, endedAt)
	if err != nil {
		return apperr.Transient("close interaction failed", err)
	}
	return nil
}

// MarkForResegmentation clears an interaction's segmented_at so the next
// segmenter sweep picks it up again, used when a late message lands inside
// an already-completed interaction.
func (s *Store) MarkForResegmentation(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE interactions SET segmented_at = NULL WHERE id=$1`, id)
	if err != nil {
		return apperr.Transient("mark interaction for resegmentation failed", err)
	}
	return nil
}

// TouchInteraction advances lastMessageAt after a new message is appended.
func (s *Store) TouchInteraction(ctx context.Context, tx pgx.Tx, id uuid.UUID, ts time.Time) error {
	_, err := tx.Exec(ctx, `UPDATE interactions SET last_message_at = GREATEST(last_message_at, $2) WHERE id=$1`, id, ts)
	if err != nil {
		return apperr.Transient("touch interaction failed", err)
	}
	return nil
}

// GetInteraction fetches a single interaction by id.
func (s *Store) GetInteraction(ctx context.Context, id uuid.UUID) (*Interaction, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+interactionColumns+` FROM interactions WHERE id=$1`, id)
	it, err := scanInteraction(row)
	if err != nil {
		return nil, apperr.NotFound("interaction not found", err)
	}
	return it, nil
}

// ListInteractions returns recent interactions, most recent first.
func (s *Store) ListInteractions(ctx context.Context, limit, offset int) ([]*Interaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+interactionColumns+` FROM interactions ORDER BY last_message_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, apperr.Transient("list interactions failed", err)
	}
	defer rows.Close()
	var out []*Interaction
	for rows.Next() {
		it, err := scanInteraction(rows)
		if err != nil {
			return nil, apperr.Transient("scan interaction failed", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ClaimUnsegmentedInteractions locks up to limit completed interactions
// that the topical segmenter hasn't processed yet, marking them claimed so
// two worker replicas never segment the same interaction twice.
func (s *Store) ClaimUnsegmentedInteractions(ctx context.Context, limit int) ([]*Interaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 25
	}
	rows, err := s.Pool.Query(ctx, `
		UPDATE interactions SET segmented_at = now()
		WHERE id IN (
			SELECT id FROM interactions WHERE status='completed' AND segmented_at IS NULL
			ORDER BY ended_at ASC LIMIT $1 FOR UPDATE SKIP LOCKED
		)
		RETURNING `+interactionColumns, limit)
	if err != nil {
		return nil, apperr.Transient("claim unsegmented interactions failed", err)
	}
	defer rows.Close()
	var out []*Interaction
	for rows.Next() {
		it, err := scanInteraction(rows)
		if err != nil {
			return nil, apperr.Transient("scan claimed interaction failed", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpsertParticipant inserts an interaction participant row if the
// (interactionId, identifierType, identifierValue) key is new; a no-op
// otherwise.
func (s *Store) UpsertParticipant(ctx context.Context, tx pgx.Tx, interactionID uuid.UUID, entityID *uuid.UUID, role, idType, idValue, displayName string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO interaction_participants (interaction_id, entity_id, role, identifier_type, identifier_value, display_name)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (interaction_id, identifier_type, identifier_value) DO NOTHING`,
		interactionID, entityID, nonEmpty(role, "participant"), idType, idValue, displayName)
	if err != nil {
		return apperr.Transient("upsert participant failed", err)
	}
	return nil
}
