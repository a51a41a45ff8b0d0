package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/mityayka1/pkgraph/internal/apperr"
)

// EmbeddingTargetText fetches the text the embedding worker should embed
// for a (targetKind, targetId) pair recorded on the embedding_jobs retry
// queue. Kept as one switch rather than five near-identical getters since
// it only ever backs the retry sweep; the happy path carries its text
// inline on the Kafka job payload instead of re-querying.
func (s *Store) EmbeddingTargetText(ctx context.Context, targetKind string, targetID uuid.UUID) (string, error) {
	var table, col string
	switch targetKind {
	case "message":
		table, col = "messages", "content"
	case "fact":
		table, col = "entity_facts", "value"
	case "activity":
		table, col = "activities", "name"
	case "commitment":
		table, col = "commitments", "title"
	case "segment":
		table, col = "topical_segments", "topic"
	default:
		return "", apperr.Validation("unknown embedding target kind", nil)
	}
	var text *string
	row := s.Pool.QueryRow(ctx, `SELECT `+col+` FROM `+table+` WHERE id = $1`, targetID)
	if err := row.Scan(&text); err != nil {
		return "", apperr.NotFound("embedding target not found", err)
	}
	if text == nil {
		return "", nil
	}
	return *text, nil
}
