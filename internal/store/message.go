package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/mityayka1/pkgraph/internal/apperr"
)

// Message is a single turn inside an Interaction.
type Message struct {
	ID                    uuid.UUID
	InteractionID         uuid.UUID
	SenderEntityID        *uuid.UUID
	RecipientEntityID     *uuid.UUID
	SenderIdentifierType  string
	SenderIdentifierValue string
	Content               string
	IsOutgoing            bool
	Timestamp             time.Time
	SourceMessageID       string
	ReplyToMessageID      string
	MediaType             string
	MediaURL              string
	ChatType              string
	TopicID               string
	ExtractionStatus      string // unprocessed | pending | processed | failed
	Embedding             []float32
	CreatedAt             time.Time
}

const messageColumns = `id, interaction_id, sender_entity_id, recipient_entity_id, sender_identifier_type, sender_identifier_value,
	content, is_outgoing, timestamp, source_message_id, reply_to_message_id, media_type, media_url, chat_type, topic_id,
	extraction_status, embedding, created_at`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	var sourceMessageID *string
	var replyTo *string
	var vec *pgvector.Vector
	if err := row.Scan(&m.ID, &m.InteractionID, &m.SenderEntityID, &m.RecipientEntityID, &m.SenderIdentifierType, &m.SenderIdentifierValue,
		&m.Content, &m.IsOutgoing, &m.Timestamp, &sourceMessageID, &replyTo, &m.MediaType, &m.MediaURL, &m.ChatType, &m.TopicID,
		&m.ExtractionStatus, &vec, &m.CreatedAt); err != nil {
		return nil, err
	}
	if sourceMessageID != nil {
		m.SourceMessageID = *sourceMessageID
	}
	if replyTo != nil {
		m.ReplyToMessageID = *replyTo
	}
	if vec != nil {
		m.Embedding = vec.Slice()
	}
	return &m, nil
}

// AppendMessage inserts a message idempotently: a retry or duplicate
// delivery carrying the same (interactionId, sourceMessageId) is a no-op
// that returns the original row rather than erroring.
func (s *Store) AppendMessage(ctx context.Context, tx pgx.Tx, m *Message) (*Message, bool, error) {
	var sourceMessageID *string
	if m.SourceMessageID != "" {
		sourceMessageID = &m.SourceMessageID
	}
	var replyTo *string
	if m.ReplyToMessageID != "" {
		replyTo = &m.ReplyToMessageID
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO messages (interaction_id, sender_entity_id, recipient_entity_id, sender_identifier_type, sender_identifier_value,
			content, is_outgoing, timestamp, source_message_id, reply_to_message_id, media_type, media_url, chat_type, topic_id, extraction_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,'unprocessed')
		ON CONFLICT (interaction_id, source_message_id) WHERE source_message_id IS NOT NULL DO NOTHING
		RETURNING `+messageColumns,
		m.InteractionID, m.SenderEntityID, m.RecipientEntityID, m.SenderIdentifierType, m.SenderIdentifierValue,
		m.Content, m.IsOutgoing, m.Timestamp, sourceMessageID, replyTo, m.MediaType, m.MediaURL, m.ChatType, m.TopicID)
	out, err := scanMessage(row)
	if err == nil {
		return out, true, nil
	}
	if err != pgx.ErrNoRows {
		return nil, false, apperr.Transient("append message failed", err)
	}
	if sourceMessageID == nil {
		return nil, false, apperr.Transient("append message failed", err)
	}
	existing, gerr := s.getMessageByKey(ctx, tx, m.InteractionID, *sourceMessageID)
	if gerr != nil {
		return nil, false, gerr
	}
	return existing, false, nil
}

func (s *Store) getMessageByKey(ctx context.Context, tx pgx.Tx, interactionID uuid.UUID, sourceMessageID string) (*Message, error) {
	row := tx.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE interaction_id=$1 AND source_message_id=$2`, interactionID, sourceMessageID)
	out, err := scanMessage(row)
	if err != nil {
		return nil, apperr.Conflict("duplicate message not found on conflict", err)
	}
	return out, nil
}

// AssignMessageSender backfills sender_entity_id on a message and on its
// interaction's matching participant row once the sender's identifier has
// resolved to an entity.
func (s *Store) AssignMessageSender(ctx context.Context, messageID, entityID uuid.UUID) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return apperr.Transient("begin assign sender failed", err)
	}
	defer tx.Rollback(ctx)

	var interactionID uuid.UUID
	var idType, idValue string
	if err := tx.QueryRow(ctx, `
		UPDATE messages SET sender_entity_id=$2 WHERE id=$1
		RETURNING interaction_id, sender_identifier_type, sender_identifier_value`,
		messageID, entityID).Scan(&interactionID, &idType, &idValue); err != nil {
		return apperr.Transient("assign message sender failed", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE interaction_participants SET entity_id=$4
		WHERE interaction_id=$1 AND identifier_type=$2 AND identifier_value=$3 AND entity_id IS NULL`,
		interactionID, idType, idValue, entityID); err != nil {
		return apperr.Transient("assign participant entity failed", err)
	}
	return tx.Commit(ctx)
}

// MessagesByInteraction returns an interaction's messages in send order.
func (s *Store) MessagesByInteraction(ctx context.Context, interactionID uuid.UUID) ([]*Message, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+messageColumns+` FROM messages WHERE interaction_id=$1 ORDER BY timestamp ASC`, interactionID)
	if err != nil {
		return nil, apperr.Transient("list messages failed", err)
	}
	defer rows.Close()
	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, apperr.Transient("scan message failed", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkExtracted transitions a message out of pending once extraction runs.
// Failures go back to "unprocessed" rather than a terminal "failed" state so
// the next sweep retries them; repeated failures are surfaced by the data
// quality auditor instead of a hand-rolled retry counter on the row.
func (s *Store) MarkExtracted(ctx context.Context, tx pgx.Tx, id uuid.UUID, ok bool) error {
	status := "processed"
	if !ok {
		status = "unprocessed"
	}
	_, err := tx.Exec(ctx, `UPDATE messages SET extraction_status=$2 WHERE id=$1`, id, status)
	if err != nil {
		return apperr.Transient("mark message extracted failed", err)
	}
	return nil
}

// SetMessageEmbedding overwrites the embedding column; idempotent on retry.
func (s *Store) SetMessageEmbedding(ctx context.Context, id uuid.UUID, vec []float32) error {
	_, err := s.Pool.Exec(ctx, `UPDATE messages SET embedding=$2 WHERE id=$1`, id, pgvector.NewVector(vec))
	if err != nil {
		return apperr.Transient("set message embedding failed", err)
	}
	return nil
}
